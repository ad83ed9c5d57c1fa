package batch

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
)

// DirSink writes entries as files below a directory. Entry names are
// slash-separated paths relative to it and may not escape it.
//
// Each file is staged under a hidden temporary name in its target directory
// and renamed into place on Commit.
type DirSink struct {
	root      *os.Root
	overwrite bool
}

// DirSinkOption configures a DirSink.
type DirSinkOption func(*DirSink)

// WithOverwrite replaces existing files instead of skipping them.
func WithOverwrite(overwrite bool) DirSinkOption {
	return func(s *DirSink) {
		s.overwrite = overwrite
	}
}

// OpenDirSink creates dir if needed and returns a sink writing below it.
// The caller must Close the sink.
func OpenDirSink(dir string, opts ...DirSinkOption) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	s := &DirSink{root: root}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the directory handle.
func (s *DirSink) Close() error {
	return s.root.Close()
}

// Want skips files that already exist unless overwriting. Invalid names are
// wanted so that Create can reject them.
func (s *DirSink) Want(e *Entry) bool {
	if s.overwrite || !fs.ValidPath(e.Name) {
		return true
	}
	_, err := s.root.Stat(e.Name)
	return errors.Is(err, fs.ErrNotExist)
}

// Create stages the entry in a temporary file.
func (s *DirSink) Create(e *Entry) (Pending, error) {
	if !fs.ValidPath(e.Name) || e.Name == "." {
		return nil, &fs.PathError{Op: "create", Path: e.Name, Err: fs.ErrInvalid}
	}
	dir := path.Dir(e.Name)
	if err := s.root.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	f, tmp, err := s.tempFile(dir)
	if err != nil {
		return nil, err
	}
	return &staged{root: s.root, f: f, tmp: tmp, dest: e.Name}, nil
}

func (s *DirSink) tempFile(dir string) (*os.File, string, error) {
	var suffix [8]byte
	for range 8 {
		if _, err := rand.Read(suffix[:]); err != nil {
			return nil, "", err
		}
		tmp := path.Join(dir, ".packfs-"+hex.EncodeToString(suffix[:]))
		f, err := s.root.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if !errors.Is(err, fs.ErrExist) {
			return f, tmp, err
		}
	}
	return nil, "", fmt.Errorf("create temp file in %s: too many collisions", dir)
}

// staged is a file written under a temporary name.
type staged struct {
	root *os.Root
	f    *os.File
	tmp  string
	dest string
}

func (p *staged) Write(b []byte) (int, error) {
	return p.f.Write(b)
}

// Commit closes the temporary file and renames it over the destination.
func (p *staged) Commit() error {
	err := p.f.Close()
	if err == nil {
		err = p.root.Rename(p.tmp, p.dest)
	}
	if err != nil {
		_ = p.root.Remove(p.tmp) //nolint:errcheck // already failing
	}
	return err
}

// Abort closes and removes the temporary file.
func (p *staged) Abort() error {
	return errors.Join(p.f.Close(), p.root.Remove(p.tmp))
}
