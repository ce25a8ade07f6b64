package format

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibdex/bibdex/internal/search"
)

func sampleResults() []search.Result {
	return []search.Result{
		{
			Key:       "feynman1942principle",
			EntryType: "phdthesis",
			Fields: map[string]string{
				"author": "Richard Feynman",
				"title":  "The Principle of Least Action",
				"year":   "1942",
			},
			Score:   4.2,
			Snippet: "The [Principle] of [Least] [Action]",
		},
	}
}

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"table", "bibtex", "json", "keys"} {
		f, err := ParseFormat(name)
		require.NoError(t, err)
		assert.Equal(t, Format(name), f)
	}

	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatTable, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestResults_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Results(&buf, sampleResults(), FormatTable))

	out := buf.String()
	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "feynman1942principle")
	assert.Contains(t, out, "1942")
}

func TestResults_Keys(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Results(&buf, sampleResults(), FormatKeys))
	assert.Equal(t, "feynman1942principle\n", buf.String())
}

func TestResults_BibTeX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Results(&buf, sampleResults(), FormatBibTeX))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "@phdthesis{feynman1942principle,"))
	assert.Contains(t, out, "author = {Richard Feynman}")
}

func TestResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Results(&buf, sampleResults(), FormatJSON))

	var decoded []search.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "feynman1942principle", decoded[0].Key)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "long str…", truncate("long string here", 9))
}
