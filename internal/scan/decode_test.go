package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/sast"
)

func TestDecodeUTF8(t *testing.T) {
	text, err := decode([]byte("x = 'é'\n"))
	require.NoError(t, err)
	assert.Equal(t, "x = 'é'\n", text)

	text, err = decode([]byte("\xef\xbb\xbfimport os\n"))
	require.NoError(t, err)
	assert.Equal(t, "import os\n", text, "byte-order mark is dropped")
}

func TestDecodeUTF16(t *testing.T) {
	// "ab\n" in UTF-16LE with a byte-order mark.
	data := []byte{0xff, 0xfe, 'a', 0, 'b', 0, '\n', 0}
	text, err := decode(data)
	require.NoError(t, err)
	assert.Equal(t, "ab\n", text)
}

func TestScanFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handler.py")
	require.NoError(t, os.WriteFile(path, []byte("import pickle\n\ndef load(b):\n    return pickle.loads(b)\n"), 0o644))

	findings, err := ScanFile(path, sast.DefaultRules())
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "SEC005", findings[0].RuleID)
	assert.Equal(t, 4, findings[0].Line)
	assert.Equal(t, filepath.ToSlash(path), findings[0].File)
}

func TestScanFileMissing(t *testing.T) {
	_, err := ScanFile(filepath.Join(t.TempDir(), "nope.py"), sast.DefaultRules())
	var fe *ir.FileError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ir.FileErrorRead, fe.Kind)
	assert.NotContains(t, fe.Message, "nope.py")
}
