package packfs

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/meigma/packfs/internal/packtype"
	"github.com/meigma/packfs/stream"
	packhttp "github.com/meigma/packfs/stream/http"
)

// StreamOpener opens the backing stream for path. create is true when the
// manager is creating a new archive.
type StreamOpener func(path string, access Access, create bool) (stream.Stream, error)

// Manager owns a set of open archives keyed by path.
type Manager struct {
	mu          sync.Mutex
	archives    map[string]*Archive
	opener      StreamOpener
	archiveOpts []Option
	logger      *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStreamOpener replaces how the manager opens backing streams.
func WithStreamOpener(opener StreamOpener) ManagerOption {
	return func(m *Manager) {
		m.opener = opener
	}
}

// WithManagerLogger sets the logger for the manager and the archives it opens.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithArchiveOptions sets options applied to every archive the manager opens.
func WithArchiveOptions(opts ...Option) ManagerOption {
	return func(m *Manager) {
		m.archiveOpts = append(m.archiveOpts, opts...)
	}
}

// NewManager creates an empty manager.
//
// By default, local paths open as files and http:// or https:// URLs open
// read-only over HTTP range requests.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		archives: make(map[string]*Archive),
		opener:   DefaultStreamOpener,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// log returns the logger, falling back to a discard logger if nil.
func (m *Manager) log() *slog.Logger {
	if m.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return m.logger
}

// DefaultStreamOpener opens local files with stream.CreateFile or
// stream.OpenFile and remote URLs with the read-only HTTP stream.
func DefaultStreamOpener(path string, access Access, create bool) (stream.Stream, error) {
	if IsRemote(path) {
		if create || access.CanWrite() {
			return nil, fmt.Errorf("%w: remote archives are read-only", packtype.ErrAccess)
		}
		return packhttp.Open(path)
	}
	if create {
		return stream.CreateFile(path)
	}
	return stream.OpenFile(path, access.CanWrite())
}

// IsRemote reports whether path is an http:// or https:// URL.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// cleanPath normalizes local paths. URLs are kept as given.
func cleanPath(path string) string {
	if IsRemote(path) {
		return path
	}
	return filepath.Clean(path)
}

func (m *Manager) options() []Option {
	opts := make([]Option, 0, len(m.archiveOpts)+1)
	if m.logger != nil {
		opts = append(opts, WithLogger(m.logger))
	}
	return append(opts, m.archiveOpts...)
}

// Create creates a new archive at path and registers it.
// It fails with fs.ErrExist if the manager already holds an archive there.
func (m *Manager) Create(path string, access Access, maxFiles, maxBlocks int) (*Archive, error) {
	return m.open("create", path, access, func(key string) (*Archive, error) {
		s, err := m.opener(key, access, true)
		if err != nil {
			return nil, err
		}
		return Create(key, access, s, maxFiles, maxBlocks, m.options()...)
	})
}

// Load opens the existing archive at path and registers it.
// It fails with fs.ErrExist if the manager already holds an archive there.
func (m *Manager) Load(path string, access Access) (*Archive, error) {
	return m.open("load", path, access, func(key string) (*Archive, error) {
		s, err := m.opener(key, access, false)
		if err != nil {
			return nil, err
		}
		return Load(key, access, s, m.options()...)
	})
}

func (m *Manager) open(op, path string, access Access, fn func(key string) (*Archive, error)) (*Archive, error) {
	key := cleanPath(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.archives[key]; ok {
		return nil, &fs.PathError{Op: op, Path: key, Err: fs.ErrExist}
	}
	a, err := fn(key)
	if err != nil {
		return nil, err
	}
	m.archives[key] = a
	m.log().Debug("archive registered", "op", op, "path", key, "access", access.String())
	return a, nil
}

// Get returns the archive registered at path.
func (m *Manager) Get(path string) (*Archive, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.archives[cleanPath(path)]
	return a, ok
}

// Has reports whether an archive is registered at path.
func (m *Manager) Has(path string) bool {
	_, ok := m.Get(path)
	return ok
}

// All returns the registered archives sorted by path.
func (m *Manager) All() []*Archive {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Archive, 0, len(m.archives))
	for _, a := range m.archives {
		out = append(out, a)
	}
	slices.SortFunc(out, func(x, y *Archive) int {
		return cmp.Compare(x.Path(), y.Path())
	})
	return out
}

// Destroy shuts down the archive registered at path and forgets it.
// With deletePhysical, the backing file is removed as well.
func (m *Manager) Destroy(path string, deletePhysical bool) error {
	key := cleanPath(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.archives[key]
	if !ok {
		return &fs.PathError{Op: "destroy", Path: key, Err: fs.ErrNotExist}
	}
	delete(m.archives, key)

	err := a.Shutdown()
	if deletePhysical {
		if IsRemote(key) {
			err = errors.Join(err, &fs.PathError{Op: "destroy", Path: key, Err: packtype.ErrAccess})
		} else if rmErr := os.Remove(key); rmErr != nil {
			err = errors.Join(err, rmErr)
		}
	}
	m.log().Debug("archive destroyed", "path", key, "deleted", deletePhysical)
	return err
}

// Close shuts down every registered archive.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for key, a := range m.archives {
		if err := a.Shutdown(); err != nil {
			errs = append(errs, err)
		}
		delete(m.archives, key)
	}
	return errors.Join(errs...)
}
