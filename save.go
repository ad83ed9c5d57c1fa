package packfs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// SaveAsFile copies the named file to the external path, replacing any file
// already there. Parent directories are created as needed, and the content
// is written to a temporary file that is renamed into place.
func (a *Archive) SaveAsFile(name, path string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if err := a.checkRead("save", name); err != nil {
		return err
	}
	b, ok := a.lookup(name)
	if !ok {
		return &fs.PathError{Op: "save", Path: name, Err: fs.ErrNotExist}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}
	if err := streamFileAtomic(path, io.NewSectionReader(a.s, b.Offset(), b.Length), b.Length); err != nil {
		return &fs.PathError{Op: "save", Path: name, Err: err}
	}
	a.log().Debug("file saved", "name", name, "dest", path, "size", b.Length)
	return nil
}

// streamFileAtomic streams size bytes from r to a temp file then renames it
// to target.
func streamFileAtomic(target string, r io.Reader, size int64) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".packfs-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err == nil && n != size {
		err = fmt.Errorf("%w: file content truncated (%d of %d bytes)", ErrCorrupt, n, size)
	}
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
