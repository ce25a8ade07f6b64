package bib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBib = `@article{einstein1905photo,
  author = {Albert Einstein},
  title = {On a Heuristic Viewpoint},
  year = {1905}
}

@phdthesis{feynman1942principle,
  author = {Richard Feynman},
  title = {The Principle of
           Least Action},
  year = {1942}
}
`

func writeBib(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_ParsesEntries(t *testing.T) {
	dir := t.TempDir()
	path := writeBib(t, dir, "physics.bib", sampleBib)

	entries, err := NewLoader().LoadFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "einstein1905photo", entries[0].Key)
	assert.Equal(t, "article", entries[0].Type)
	assert.Equal(t, "Albert Einstein", entries[0].Fields["author"])
	assert.Equal(t, path, entries[0].SourceFile)

	// Whitespace inside a value collapses to single spaces
	assert.Equal(t, "The Principle of Least Action", entries[1].Fields["title"])
}

func TestLoad_WalksDirectories(t *testing.T) {
	dir := t.TempDir()
	writeBib(t, dir, "a.bib", `@misc{a1, title = {Alpha}}`)
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	writeBib(t, sub, "b.bib", `@misc{b1, title = {Beta}}`)
	writeBib(t, dir, "notes.txt", "not a bib file")

	entries, err := NewLoader().Load([]string{dir})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a1", entries[0].Key)
	assert.Equal(t, "b1", entries[1].Key)
}

func TestLoad_MissingPath(t *testing.T) {
	_, err := NewLoader().Load([]string{filepath.Join(t.TempDir(), "nope.bib")})
	assert.Error(t, err)
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"{Quantum Mechanics}", "Quantum Mechanics"},
		{"{{Nested}}", "Nested"},
		{"  spaced   out  ", "spaced out"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeValue(tt.in))
	}
}
