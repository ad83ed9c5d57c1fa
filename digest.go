package packfs

import (
	_ "crypto/sha256" // registers digest.SHA256
	"io"
	"io/fs"

	"github.com/opencontainers/go-digest"
)

// Digest returns the canonical (sha256) digest of the named file's content.
func (a *Archive) Digest(name string) (digest.Digest, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if err := a.checkRead("digest", name); err != nil {
		return "", err
	}
	b, ok := a.lookup(name)
	if !ok {
		return "", &fs.PathError{Op: "digest", Path: name, Err: fs.ErrNotExist}
	}
	d, err := digest.Canonical.FromReader(io.NewSectionReader(a.s, b.Offset(), b.Length))
	if err != nil {
		return "", &fs.PathError{Op: "digest", Path: name, Err: err}
	}
	return d, nil
}
