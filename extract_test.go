package packfs

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractFixture(t *testing.T) (*Archive, map[string][]byte) {
	t.Helper()
	a, _ := newArchive(t, 8, 16)
	files := map[string][]byte{
		"top.txt":          content(10, 1),
		"docs/readme.md":   content(5000, 2),
		"docs/deep/x.bin":  content(9000, 3),
		"other/empty.file": nil,
	}
	for name, data := range files {
		require.NoError(t, a.WriteFile(name, data))
	}
	return a, files
}

func TestExtractAll(t *testing.T) {
	t.Parallel()

	for _, concurrency := range []int{1, 4} {
		a, files := extractFixture(t)
		dest := t.TempDir()

		stats, err := a.ExtractAll(dest, ExtractWithReadConcurrency(concurrency))
		require.NoError(t, err)
		assert.Equal(t, len(files), stats.FilesWritten)
		assert.Zero(t, stats.FilesSkipped)
		assert.Equal(t, int64(10+5000+9000), stats.Bytes)

		for name, data := range files {
			got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(name)))
			require.NoError(t, err, name)
			assert.Equal(t, len(data), len(got), name)
			if len(data) > 0 {
				assert.Equal(t, data, got, name)
			}
		}
	}
}

func TestExtractAll_SkipAndOverwrite(t *testing.T) {
	t.Parallel()

	a, files := extractFixture(t)
	dest := t.TempDir()
	existing := filepath.Join(dest, "top.txt")
	require.NoError(t, os.WriteFile(existing, []byte("keep"), 0o600))

	stats, err := a.ExtractAll(dest)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesSkipped)
	got, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(got))

	stats, err = a.ExtractAll(dest, ExtractWithOverwrite(true))
	require.NoError(t, err)
	assert.Equal(t, len(files), stats.FilesWritten)
	got, err = os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, files["top.txt"], got)
}

func TestExtractAll_Prefix(t *testing.T) {
	t.Parallel()

	a, _ := extractFixture(t)
	dest := t.TempDir()

	stats, err := a.ExtractAll(dest, ExtractWithPrefix("docs/"))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesWritten)
	assert.FileExists(t, filepath.Join(dest, "docs", "readme.md"))
	assert.FileExists(t, filepath.Join(dest, "docs", "deep", "x.bin"))
	assert.NoFileExists(t, filepath.Join(dest, "top.txt"))
}

func TestExtractAll_InvalidName(t *testing.T) {
	t.Parallel()

	a, _ := extractFixture(t)
	require.NoError(t, a.WriteFile("../escape", []byte("x")))
	dest := filepath.Join(t.TempDir(), "out")

	_, err := a.ExtractAll(dest)
	require.ErrorIs(t, err, fs.ErrInvalid)
	assert.NoDirExists(t, dest, "nothing is written")
}
