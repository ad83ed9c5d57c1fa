package file

import (
	"bytes"
	"io"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChild(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dir, name string
		child     string
		isDir     bool
		ok        bool
	}{
		{dir: ".", name: "a.txt", child: "a.txt", ok: true},
		{dir: ".", name: "dir/a.txt", child: "dir", isDir: true, ok: true},
		{dir: "dir", name: "dir/a.txt", child: "a.txt", ok: true},
		{dir: "dir", name: "dir/sub/a.txt", child: "sub", isDir: true, ok: true},
		{dir: "dir", name: "dir", ok: false},
		{dir: "dir", name: "dirt/a.txt", ok: false},
		{dir: "dir", name: "other/a.txt", ok: false},
	}
	for _, tt := range tests {
		child, isDir, ok := Child(tt.dir, tt.name)
		assert.Equal(t, tt.ok, ok, "%s in %s", tt.name, tt.dir)
		if tt.ok {
			assert.Equal(t, tt.child, child, "%s in %s", tt.name, tt.dir)
			assert.Equal(t, tt.isDir, isDir, "%s in %s", tt.name, tt.dir)
		}
	}
}

func TestFile(t *testing.T) {
	t.Parallel()

	backing := bytes.NewReader([]byte("....hello world...."))
	f := Open(backing, "docs/greeting.txt", 4, 11)

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, "greeting.txt", info.Name())
	assert.Equal(t, int64(11), info.Size())
	assert.Equal(t, FileMode, info.Mode())
	assert.False(t, info.IsDir())

	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))

	buf := make([]byte, 5)
	n, err := f.ReadAt(buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf[:n]))

	pos, err := f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	assert.Zero(t, pos)

	require.NoError(t, f.Close())
	_, err = f.Read(buf)
	require.ErrorIs(t, err, fs.ErrClosed)
	require.ErrorIs(t, f.Close(), fs.ErrClosed)
}

func TestInfo(t *testing.T) {
	t.Parallel()

	var de fs.DirEntry = DirInfo("sub")
	assert.Equal(t, "sub", de.Name())
	assert.True(t, de.IsDir())
	assert.Equal(t, fs.ModeDir, de.Type())
	info, err := de.Info()
	require.NoError(t, err)
	assert.Equal(t, DirMode, info.Mode())

	de = FileInfo("a.txt", 3)
	assert.False(t, de.IsDir())
	assert.Equal(t, fs.FileMode(0), de.Type())
	info, err = de.Info()
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Size())
	assert.Equal(t, FileMode, info.Mode())
	assert.True(t, info.ModTime().IsZero())
}
