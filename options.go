package packfs

import (
	"crypto/rand"
	"io"
	"log/slog"
)

// Option configures an Archive.
type Option func(*config)

type config struct {
	logger            *slog.Logger
	rand              io.Reader
	reclaimDuplicates bool
}

func newConfig(opts []Option) *config {
	cfg := &config{rand: rand.Reader}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithLogger sets the logger for archive operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithReclaimDuplicates makes Load free blocks shadowed by a later block of
// the same name, and clear name slots only they reference, before returning.
// It has no effect on read-only archives.
//
// Without it Load leaves the stored tables untouched and shadowed blocks stay
// in place until their name is next written, renamed or deleted.
func WithReclaimDuplicates() Option {
	return func(c *config) {
		c.reclaimDuplicates = true
	}
}

// withRand sets the source of the name key and filler bytes.
func withRand(r io.Reader) Option {
	return func(c *config) {
		c.rand = r
	}
}
