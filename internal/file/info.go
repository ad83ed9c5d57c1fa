package file

import (
	"io/fs"
	"time"
)

// Modes reported by the view. Archives store no permissions, so everything
// is read-only.
const (
	FileMode fs.FileMode = 0o444
	DirMode  fs.FileMode = fs.ModeDir | 0o555
)

// Info describes an archive file or a synthesized directory. It serves as
// both fs.FileInfo and fs.DirEntry.
type Info struct {
	name string
	size int64
	dir  bool
}

var (
	_ fs.FileInfo = (*Info)(nil)
	_ fs.DirEntry = (*Info)(nil)
)

// FileInfo describes a file of size bytes.
func FileInfo(name string, size int64) *Info {
	return &Info{name: name, size: size}
}

// DirInfo describes a directory.
func DirInfo(name string) *Info {
	return &Info{name: name, dir: true}
}

func (i *Info) Name() string { return i.name }
func (i *Info) Size() int64  { return i.size }
func (i *Info) IsDir() bool  { return i.dir }
func (i *Info) Sys() any     { return nil }

// ModTime is always the zero time.
func (i *Info) ModTime() time.Time { return time.Time{} }

func (i *Info) Mode() fs.FileMode {
	if i.dir {
		return DirMode
	}
	return FileMode
}

// Type implements fs.DirEntry.
func (i *Info) Type() fs.FileMode { return i.Mode().Type() }

// Info implements fs.DirEntry.
func (i *Info) Info() (fs.FileInfo, error) { return i, nil }

func (i *Info) String() string { return fs.FormatFileInfo(i) }
