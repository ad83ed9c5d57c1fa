package packfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/meigma/packfs/internal/packtype"
	"github.com/meigma/packfs/internal/sizing"
)

// WriteFile stores data under name, replacing any existing file.
//
// A new name fails with an error matching ErrFileLimit once the archive holds
// MaxFiles files. Allocation failures match ErrBlockLimit or ErrNoSpace. In
// every capacity failure the archive keeps its previous content.
func (a *Archive) WriteFile(name string, data []byte) error {
	return a.write("write", name, int64(len(data)), func(w io.WriterAt, off int64) error {
		_, err := w.WriteAt(data, off)
		return err
	})
}

// WriteFileFrom stores exactly size bytes read from r under name.
// A reader that ends early fails with io.ErrUnexpectedEOF and leaves any
// previous file content in place.
func (a *Archive) WriteFileFrom(name string, r io.Reader, size int64) error {
	if size < 0 {
		return &fs.PathError{Op: "write", Path: name,
			Err: fmt.Errorf("%w: negative size %d", packtype.ErrInvalidArgument, size)}
	}
	return a.write("write", name, size, func(w io.WriterAt, off int64) error {
		n, err := io.CopyN(io.NewOffsetWriter(w, off), r, size)
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("source ended after %d of %d bytes: %w", n, size, io.ErrUnexpectedEOF)
		}
		return err
	})
}

// WriteFileFromPath stores the content of the external file at path under name.
func (a *Archive) WriteFileFromPath(name, path string) error {
	f, err := os.Open(path) //nolint:gosec // caller-provided path is intentional
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return &fs.PathError{Op: "write", Path: path, Err: fmt.Errorf("%w: not a regular file", packtype.ErrInvalidArgument)}
	}
	return a.WriteFileFrom(name, f, info.Size())
}

// write allocates a block for size bytes, fills it, and points name at it.
//
// Overwrites keep the name slot, always use a new block, and release the old
// block, then any blocks shadowed under the same name, only after the new one
// is recorded.
func (a *Archive) write(op, name string, size int64, fill func(w io.WriterAt, off int64) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkWrite(op, name); err != nil {
		return err
	}
	pathErr := func(err error) error {
		return &fs.PathError{Op: op, Path: name, Err: err}
	}

	oldIndex, exists := a.dir[name]
	slot := -1
	if exists {
		slot = int(a.alloc.Block(oldIndex).NameSlot)
	} else if len(a.dir) >= a.maxFiles() {
		return pathErr(packtype.ErrFileLimit)
	}

	index, err := a.alloc.Allocate(size)
	if err != nil {
		a.log().Debug("allocation failed", "name", name, "size", size, "error", err)
		return pathErr(err)
	}

	if size > 0 {
		if err := fill(a.s, a.alloc.Block(index).Offset()); err != nil {
			return pathErr(a.release(index, fmt.Errorf("write payload: %w", err)))
		}
	}
	if !exists {
		if slot, err = a.names.Store(name); err != nil {
			return pathErr(a.release(index, err))
		}
	}
	nameSlot, err := sizing.ToInt32(slot, packtype.ErrSizeOverflow)
	if err != nil {
		return pathErr(a.release(index, err))
	}
	if err := a.alloc.Use(index, nameSlot, size); err != nil {
		if !exists {
			_ = a.names.Clear(slot) //nolint:errcheck // best-effort rollback
		}
		return pathErr(a.release(index, err))
	}

	a.dir[name] = index
	if exists {
		if err := a.alloc.Free(oldIndex); err != nil {
			return pathErr(fmt.Errorf("free replaced block: %w", err))
		}
		if err := a.releaseShadowed(name); err != nil {
			return pathErr(err)
		}
	}

	a.log().Debug("file written", "name", name, "size", size, "block", index, "slot", slot, "replaced", exists)
	return a.sync(op, name)
}

// release hands an allocated but unused block back and returns cause.
func (a *Archive) release(index int, cause error) error {
	if err := a.alloc.Free(index); err != nil {
		return errors.Join(cause, fmt.Errorf("release block %d: %w", index, err))
	}
	return cause
}

// RenameFile gives the file oldName the name newName.
// It fails with fs.ErrNotExist if oldName is missing and with fs.ErrExist if
// newName is already taken.
func (a *Archive) RenameFile(oldName, newName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkWrite("rename", oldName); err != nil {
		return err
	}
	if err := checkName("rename", newName); err != nil {
		return err
	}
	index, ok := a.dir[oldName]
	if !ok {
		return &fs.PathError{Op: "rename", Path: oldName, Err: fs.ErrNotExist}
	}
	if _, taken := a.dir[newName]; taken {
		return &fs.PathError{Op: "rename", Path: newName, Err: fs.ErrExist}
	}

	if err := a.releaseShadowed(oldName); err != nil {
		return &fs.PathError{Op: "rename", Path: oldName, Err: err}
	}
	slot := int(a.alloc.Block(index).NameSlot)
	if err := a.names.Rewrite(slot, newName); err != nil {
		return &fs.PathError{Op: "rename", Path: oldName, Err: err}
	}
	delete(a.dir, oldName)
	a.dir[newName] = index

	a.log().Debug("file renamed", "old", oldName, "new", newName, "slot", slot)
	return a.sync("rename", newName)
}

// DeleteFile removes the named file and releases its block and name slot,
// along with any blocks shadowed under the same name at load.
func (a *Archive) DeleteFile(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkWrite("delete", name); err != nil {
		return err
	}
	index, ok := a.dir[name]
	if !ok {
		return &fs.PathError{Op: "delete", Path: name, Err: fs.ErrNotExist}
	}

	if err := a.releaseShadowed(name); err != nil {
		return &fs.PathError{Op: "delete", Path: name, Err: err}
	}
	slot := int(a.alloc.Block(index).NameSlot)
	if err := a.alloc.Free(index); err != nil {
		return &fs.PathError{Op: "delete", Path: name, Err: err}
	}
	delete(a.dir, name)
	if err := a.names.Clear(slot); err != nil {
		return &fs.PathError{Op: "delete", Path: name, Err: err}
	}

	a.log().Debug("file deleted", "name", name, "block", index, "slot", slot)
	return a.sync("delete", name)
}
