package packfs

import (
	"io"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFSArchive(t *testing.T) *Archive {
	t.Helper()
	a, _ := newArchive(t, 8, 16)
	files := map[string]string{
		"a.txt":         "alpha",
		"dir/b.txt":     "bravo",
		"dir/sub/c.txt": "charlie",
		"empty":         "",
		"/abs":          "hidden",
		"dir/../up":     "hidden",
	}
	for name, data := range files {
		require.NoError(t, a.WriteFile(name, []byte(data)))
	}
	return a
}

func TestFS_Conformance(t *testing.T) {
	t.Parallel()

	a := newFSArchive(t)
	require.NoError(t, fstest.TestFS(a.FS(), "a.txt", "dir/b.txt", "dir/sub/c.txt", "empty"))
}

func TestFS_ReadDir(t *testing.T) {
	t.Parallel()

	fsys := newFSArchive(t).FS()

	entries, err := fs.ReadDir(fsys, ".")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"a.txt", "dir", "empty"}, names, "invalid paths are not visible")

	entries, err = fs.ReadDir(fsys, "dir")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b.txt", entries[0].Name())
	assert.False(t, entries[0].IsDir())
	assert.Equal(t, "sub", entries[1].Name())
	assert.True(t, entries[1].IsDir())

	_, err = fs.ReadDir(fsys, "a.txt")
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestFS_OpenAndStat(t *testing.T) {
	t.Parallel()

	fsys := newFSArchive(t).FS()

	f, err := fsys.Open("dir/sub/c.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "charlie", string(data))
	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, "c.txt", info.Name())
	assert.Equal(t, int64(7), info.Size())
	require.NoError(t, f.Close())
	require.ErrorIs(t, f.Close(), fs.ErrClosed)

	info, err = fs.Stat(fsys, "dir/sub")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = fsys.Open("missing")
	require.ErrorIs(t, err, fs.ErrNotExist)
	_, err = fs.ReadFile(fsys, "missing")
	require.ErrorIs(t, err, fs.ErrNotExist)
	_, err = fsys.Open("/abs")
	require.ErrorIs(t, err, fs.ErrInvalid)
}

func TestFS_Closed(t *testing.T) {
	t.Parallel()

	a := newFSArchive(t)
	fsys := a.FS()
	require.NoError(t, a.Shutdown())

	_, err := fsys.Open("a.txt")
	require.ErrorIs(t, err, ErrClosed)
}
