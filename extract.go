package packfs

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"github.com/meigma/packfs/internal/batch"
	"github.com/meigma/packfs/internal/record"
)

// ExtractOption configures ExtractAll.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	overwrite       bool
	readConcurrency int
	readAheadBytes  int64
	prefix          string
}

// ExtractWithOverwrite allows replacing existing files in the destination.
// By default, existing files are skipped.
func ExtractWithOverwrite(overwrite bool) ExtractOption {
	return func(c *extractConfig) {
		c.overwrite = overwrite
	}
}

// ExtractWithReadConcurrency sets the number of concurrent stream reads.
// Values < 1 force serial reads.
func ExtractWithReadConcurrency(n int) ExtractOption {
	return func(c *extractConfig) {
		c.readConcurrency = n
	}
}

// ExtractWithReadAheadBytes caps the bytes buffered ahead of the writers.
// A value of 0 disables the cap.
func ExtractWithReadAheadBytes(limit int64) ExtractOption {
	return func(c *extractConfig) {
		c.readAheadBytes = limit
	}
}

// ExtractWithPrefix limits extraction to the file named prefix and the files
// below it when prefix is read as a directory.
func ExtractWithPrefix(prefix string) ExtractOption {
	return func(c *extractConfig) {
		c.prefix = strings.TrimSuffix(prefix, "/")
	}
}

// ExtractStats reports what ExtractAll did.
type ExtractStats struct {
	// FilesWritten is the number of files written to the destination.
	FilesWritten int

	// FilesSkipped is the number of files left alone because they existed.
	FilesSkipped int

	// Bytes is the total size of the written files.
	Bytes int64
}

// ExtractAll copies the archive's files below destDir, using each name as a
// slash-separated relative path.
//
// Payloads are read in offset order, neighbouring blocks share one read, and
// each file is written to a temporary file that is renamed into place. A name
// that is not a valid fs path aborts the extraction with fs.ErrInvalid before
// anything is written.
func (a *Archive) ExtractAll(destDir string, opts ...ExtractOption) (ExtractStats, error) {
	cfg := extractConfig{readConcurrency: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if err := a.checkOpen("extract", destDir); err != nil {
		return ExtractStats{}, err
	}
	if !a.access.CanRead() {
		return ExtractStats{}, &fs.PathError{Op: "extract", Path: destDir, Err: ErrAccess}
	}

	var entries []*batch.Entry
	for _, info := range a.snapshot() {
		if !cfg.matches(info.Name) {
			continue
		}
		if !fs.ValidPath(info.Name) {
			return ExtractStats{}, &fs.PathError{Op: "extract", Path: info.Name, Err: fs.ErrInvalid}
		}
		entries = append(entries, &batch.Entry{Name: info.Name, Offset: info.Offset, Length: info.Length})
	}

	sink, err := batch.OpenDirSink(destDir, batch.WithOverwrite(cfg.overwrite))
	if err != nil {
		return ExtractStats{}, fmt.Errorf("open destination: %w", err)
	}
	defer sink.Close()

	copier := batch.New(a.s,
		batch.WithMaxGap(record.ClusterSize-1),
		batch.WithReaders(cfg.readConcurrency),
		batch.WithReadAhead(cfg.readAheadBytes),
		batch.WithLogger(a.logger),
	)
	st, err := copier.Run(context.Background(), entries, sink)
	stats := ExtractStats{FilesWritten: st.Written, FilesSkipped: st.Skipped, Bytes: st.Bytes}
	if err != nil {
		return stats, &fs.PathError{Op: "extract", Path: destDir, Err: err}
	}

	a.log().Info("archive extracted",
		"path", a.path,
		"dest", destDir,
		"written", stats.FilesWritten,
		"skipped", stats.FilesSkipped,
		"bytes", stats.Bytes)
	return stats, nil
}

func (c *extractConfig) matches(name string) bool {
	if c.prefix == "" || c.prefix == "." {
		return true
	}
	return name == c.prefix || strings.HasPrefix(name, c.prefix+"/")
}
