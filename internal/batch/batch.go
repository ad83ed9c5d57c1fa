package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/meigma/packfs/internal/packtype"
	"github.com/meigma/packfs/internal/sizing"
)

// Copier moves entries from a backing stream into a Sink.
type Copier struct {
	src       io.ReaderAt
	maxGap    int64
	readers   int
	writers   int
	readAhead int64
	logger    *slog.Logger
}

// Option configures a Copier.
type Option func(*Copier)

// WithMaxGap lets two payloads up to n bytes apart share one read.
func WithMaxGap(n int64) Option {
	return func(c *Copier) {
		c.maxGap = max(n, 0)
	}
}

// WithReaders sets how many spans are read concurrently. Values below 1
// mean one.
func WithReaders(n int) Option {
	return func(c *Copier) {
		c.readers = max(n, 1)
	}
}

// WithWriters sets how many entries of one span are written concurrently.
// Values below 1 mean one.
func WithWriters(n int) Option {
	return func(c *Copier) {
		c.writers = max(n, 1)
	}
}

// WithReadAhead caps the bytes read but not yet written. Zero means no cap.
// A span larger than the cap is still read, alone.
func WithReadAhead(n int64) Option {
	return func(c *Copier) {
		c.readAhead = max(n, 0)
	}
}

// WithLogger sets the logger for copy progress.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Copier) {
		c.logger = logger
	}
}

// New returns a Copier reading from src.
func New(src io.ReaderAt, opts ...Option) *Copier {
	c := &Copier{src: src, readers: 1, writers: 1}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Copier) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Run copies every entry the sink wants and stops at the first error.
func (c *Copier) Run(ctx context.Context, entries []*Entry, sink Sink) (Stats, error) {
	var st Stats
	wanted := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if sink.Want(e) {
			wanted = append(wanted, e)
		} else {
			st.Skipped++
		}
	}

	spans, err := plan(wanted, c.maxGap)
	if err != nil {
		return st, err
	}
	c.log().Debug("batch copy", "entries", len(wanted), "spans", len(spans), "skipped", st.Skipped)

	if c.readers == 1 && c.readAhead == 0 {
		err = c.serial(ctx, spans, sink)
	} else {
		err = c.pipelined(ctx, spans, sink)
	}
	if err != nil {
		return st, err
	}

	st.Written = len(wanted)
	for _, e := range wanted {
		st.Bytes += e.Length
	}
	return st, nil
}

func (c *Copier) serial(ctx context.Context, spans []span, sink Sink) error {
	for i := range spans {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := c.read(&spans[i])
		if err != nil {
			return err
		}
		if err := c.write(ctx, &spans[i], data, sink); err != nil {
			return err
		}
	}
	return nil
}

// pipelined reads spans on up to c.readers goroutines and writes them in
// order on the calling goroutine. Budgets are taken in span order by the
// dispatcher and returned by the writer, so the span the writer waits for
// always holds its share.
func (c *Copier) pipelined(ctx context.Context, spans []span, sink Sink) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	window := semaphore.NewWeighted(int64(2 * c.readers))
	var inflight *semaphore.Weighted
	if c.readAhead > 0 {
		inflight = semaphore.NewWeighted(c.readAhead)
	}
	cost := func(s *span) int64 { return min(s.size(), c.readAhead) }

	results := make([]chan []byte, len(spans))
	for i := range results {
		results[i] = make(chan []byte, 1)
	}

	var readers errgroup.Group
	readers.SetLimit(c.readers)
	dispatched := make(chan error, 1)
	go func() {
		defer close(dispatched)
		for i := range spans {
			s := &spans[i]
			if err := window.Acquire(ctx, 1); err != nil {
				break
			}
			if inflight != nil {
				if err := inflight.Acquire(ctx, cost(s)); err != nil {
					break
				}
			}
			out := results[i]
			readers.Go(func() error {
				data, err := c.read(s)
				if err != nil {
					cancel(err)
					return err
				}
				out <- data
				return nil
			})
		}
		dispatched <- readers.Wait()
	}()

	var werr error
	for i := range spans {
		var (
			data []byte
			ok   bool
		)
		select {
		case data, ok = <-results[i]:
		case <-ctx.Done():
		}
		if !ok {
			werr = context.Cause(ctx)
			break
		}
		if err := c.write(ctx, &spans[i], data, sink); err != nil {
			werr = err
			cancel(err)
			break
		}
		window.Release(1)
		if inflight != nil {
			inflight.Release(cost(&spans[i]))
		}
	}

	rerr := <-dispatched
	switch {
	case werr != nil:
		return werr
	case rerr != nil:
		return rerr
	}
	return nil
}

// read fetches the bytes a span covers.
func (c *Copier) read(s *span) ([]byte, error) {
	n, err := sizing.ToInt(s.size(), packtype.ErrSizeOverflow)
	if err != nil || n == 0 {
		return nil, err
	}
	data := make([]byte, n)
	got, err := c.src.ReadAt(data, s.off)
	if got == n {
		return data, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read %d bytes at %d: %w", n, s.off, err)
}

// write hands every entry of a span to the sink.
func (c *Copier) write(ctx context.Context, s *span, data []byte, sink Sink) error {
	if c.writers == 1 || len(s.entries) == 1 {
		for _, e := range s.entries {
			if err := store(sink, e, s.slice(data, e)); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.writers)
	for _, e := range s.entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return store(sink, e, s.slice(data, e))
		})
	}
	return g.Wait()
}

// store writes one entry and commits it, aborting on failure.
func store(sink Sink, e *Entry, content []byte) error {
	p, err := sink.Create(e)
	if err != nil {
		return fmt.Errorf("%s: %w", e.Name, err)
	}
	if _, err := p.Write(content); err != nil {
		_ = p.Abort() //nolint:errcheck // the write error wins
		return fmt.Errorf("%s: %w", e.Name, err)
	}
	if err := p.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", e.Name, err)
	}
	return nil
}
