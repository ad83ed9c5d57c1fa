package packfs

import (
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/meigma/packfs/internal/file"
	"github.com/meigma/packfs/internal/packtype"
)

// archiveFS is the read-only fs.FS view of an Archive.
type archiveFS struct {
	a *Archive
}

// Interface compliance.
var (
	_ fs.FS         = (*archiveFS)(nil)
	_ fs.StatFS     = (*archiveFS)(nil)
	_ fs.ReadFileFS = (*archiveFS)(nil)
	_ fs.ReadDirFS  = (*archiveFS)(nil)
)

// FS returns a read-only fs.FS view of the archive.
//
// File names are treated as slash-separated paths and directories are
// synthesized from them. Names that are not valid fs paths are not visible.
// Unlike ReadFile, the view reports missing files as fs.ErrNotExist.
// Open files read the stream directly and must not outlive changes to the
// files they refer to.
func (a *Archive) FS() fs.FS {
	return &archiveFS{a: a}
}

// check validates a view operation. Callers hold f.a.mu.
func (f *archiveFS) check(op, name string) error {
	if !fs.ValidPath(name) {
		return &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	if f.a.closed {
		return &fs.PathError{Op: op, Path: name, Err: packtype.ErrClosed}
	}
	if !f.a.access.CanRead() {
		return &fs.PathError{Op: op, Path: name, Err: packtype.ErrAccess}
	}
	return nil
}

// Open implements fs.FS.
func (f *archiveFS) Open(name string) (fs.File, error) {
	f.a.mu.RLock()
	defer f.a.mu.RUnlock()

	if err := f.check("open", name); err != nil {
		return nil, err
	}
	if b, ok := f.a.lookup(name); ok {
		return file.Open(f.a.s, name, b.Offset(), b.Length), nil
	}
	if f.isDir(name) {
		return &openDir{name: name, entries: f.dirEntries(name)}, nil
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// Stat implements fs.StatFS.
func (f *archiveFS) Stat(name string) (fs.FileInfo, error) {
	f.a.mu.RLock()
	defer f.a.mu.RUnlock()

	if err := f.check("stat", name); err != nil {
		return nil, err
	}
	if b, ok := f.a.lookup(name); ok {
		return file.FileInfo(path.Base(name), b.Length), nil
	}
	if f.isDir(name) {
		return file.DirInfo(path.Base(name)), nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// ReadFile implements fs.ReadFileFS.
func (f *archiveFS) ReadFile(name string) ([]byte, error) {
	f.a.mu.RLock()
	defer f.a.mu.RUnlock()

	if err := f.check("readfile", name); err != nil {
		return nil, err
	}
	b, ok := f.a.lookup(name)
	if !ok {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrNotExist}
	}
	buf := make([]byte, b.Length)
	if err := readFull(f.a.s, buf, b.Offset(), "file content"); err != nil {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: err}
	}
	return buf, nil
}

// ReadDir implements fs.ReadDirFS. Entries are sorted by name.
func (f *archiveFS) ReadDir(name string) ([]fs.DirEntry, error) {
	f.a.mu.RLock()
	defer f.a.mu.RUnlock()

	if err := f.check("readdir", name); err != nil {
		return nil, err
	}
	if !f.isDir(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	return f.dirEntries(name), nil
}

// isDir reports whether name is the root or holds a visible file.
func (f *archiveFS) isDir(name string) bool {
	if name == "." {
		return true
	}
	for n := range f.a.dir {
		if _, _, ok := file.Child(name, n); ok && fs.ValidPath(n) {
			return true
		}
	}
	return false
}

// dirEntries lists the immediate children of a directory. A name that is
// both a file and a directory prefix is listed once, as the file.
func (f *archiveFS) dirEntries(name string) []fs.DirEntry {
	byName := make(map[string]*file.Info)
	for n, index := range f.a.dir {
		child, isDir, ok := file.Child(name, n)
		if !ok || !fs.ValidPath(n) {
			continue
		}
		if !isDir {
			byName[child] = file.FileInfo(child, f.a.alloc.Block(index).Length)
		} else if _, seen := byName[child]; !seen {
			byName[child] = file.DirInfo(child)
		}
	}
	entries := make([]fs.DirEntry, 0, len(byName))
	for _, info := range byName {
		entries = append(entries, info)
	}
	slices.SortFunc(entries, func(x, y fs.DirEntry) int {
		return strings.Compare(x.Name(), y.Name())
	})
	return entries
}

// openDir implements fs.ReadDirFile for synthesized directories.
type openDir struct {
	name    string
	entries []fs.DirEntry
	pos     int
}

func (d *openDir) Read(_ []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *openDir) Stat() (fs.FileInfo, error) {
	return file.DirInfo(path.Base(d.name)), nil
}

func (d *openDir) Close() error {
	return nil
}

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	rest := d.entries[d.pos:]
	if n <= 0 {
		d.pos = len(d.entries)
		return slices.Clone(rest), nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	n = min(n, len(rest))
	d.pos += n
	return slices.Clone(rest[:n]), nil
}
