package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_PlainLinesForNonTTY(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	w.Status("loading %d files", 3)
	w.Success("done")

	assert.Equal(t, "loading 3 files\ndone\n", buf.String())
}

func TestWriter_ColorWhenForced(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, WithColor(true))

	w.Error("boom")

	assert.Contains(t, buf.String(), colorRed)
	assert.Contains(t, buf.String(), "error: boom")
	assert.Contains(t, buf.String(), colorReset)
}

func TestWriter_QuietSuppressesStatusNotErrors(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, WithQuiet(true))

	w.Status("hidden")
	w.Progress("hidden", 1, 2)
	w.Warning("shown")
	w.Error("also shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "warning: shown")
	assert.Contains(t, buf.String(), "error: also shown")
}

func TestWriter_Progress(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	w.Progress("indexing", 250, 500)

	assert.Equal(t, "indexing 250/500\n", buf.String())
}

func TestIsTTY_NilAndBuffer(t *testing.T) {
	assert.False(t, IsTTY(nil))
	assert.False(t, IsTTY(&bytes.Buffer{}))
}
