package packfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAsFile(t *testing.T) {
	t.Parallel()

	a, _ := newArchive(t, 2, 4)
	data := content(7000, 5)
	require.NoError(t, a.WriteFile("report.bin", data))

	target := filepath.Join(t.TempDir(), "nested", "dir", "report.bin")
	require.NoError(t, a.SaveAsFile("report.bin", target))
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Existing files are replaced.
	require.NoError(t, a.WriteFile("report.bin", []byte("short")))
	require.NoError(t, a.SaveAsFile("report.bin", target))
	got, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "short", string(got))

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestWriteFileFromPath(t *testing.T) {
	t.Parallel()

	a, _ := newArchive(t, 2, 4)
	src := filepath.Join(t.TempDir(), "src.bin")
	data := content(4097, 9)
	require.NoError(t, os.WriteFile(src, data, 0o600))

	require.NoError(t, a.WriteFileFromPath("copied", src))
	got, err := a.ReadFile("copied")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.ErrorIs(t, a.WriteFileFromPath("dir", t.TempDir()), ErrInvalidArgument)
	require.ErrorIs(t, a.WriteFileFromPath("missing", filepath.Join(t.TempDir(), "nope")), os.ErrNotExist)
}

func TestDigest(t *testing.T) {
	t.Parallel()

	a, _ := newArchive(t, 2, 4)
	data := content(12345, 3)
	require.NoError(t, a.WriteFile("d", data))

	got, err := a.Digest("d")
	require.NoError(t, err)
	assert.Equal(t, digest.FromBytes(data), got)
	require.NoError(t, got.Validate())
}
