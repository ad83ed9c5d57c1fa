// Package http provides a read-only stream over HTTP range requests, so an
// archive can be loaded for reading straight from a web server.
package http //nolint:revive // intentional naming for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/meigma/packfs/stream"
)

var _ stream.Stream = (*Stream)(nil)

var (
	// ErrRangeUnsupported is returned when the server ignores Range headers.
	ErrRangeUnsupported = errors.New("stream/http: server does not support range requests")

	// ErrRemoteChanged is returned by conditional reads once the remote
	// content no longer matches the version seen at Open.
	ErrRemoteChanged = errors.New("stream/http: remote content changed")
)

// validators identify one version of the remote content.
type validators struct {
	etag         string
	lastModified string
}

func (v validators) empty() bool {
	return v.etag == "" && v.lastModified == ""
}

// setPreconditions adds If-Match and If-Unmodified-Since unless the caller
// configured them explicitly.
func (v validators) setPreconditions(h nethttp.Header) {
	if v.etag != "" && h.Get("If-Match") == "" {
		h.Set("If-Match", v.etag)
	}
	if v.lastModified != "" && h.Get("If-Unmodified-Since") == "" {
		h.Set("If-Unmodified-Since", v.lastModified)
	}
}

// Stream implements stream.Stream with HTTP range requests.
// Writes and truncation fail with stream.ErrReadOnly.
type Stream struct {
	url         string
	client      *nethttp.Client
	headers     nethttp.Header
	timeout     time.Duration
	conditional bool

	size    int64
	version validators
	closed  atomic.Bool
}

// Option configures a Stream.
type Option func(*Stream)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Stream) {
		s.client = client
	}
}

// WithHeaders adds headers to every request.
func WithHeaders(headers nethttp.Header) Option {
	return func(s *Stream) {
		for key, values := range headers {
			for _, value := range values {
				s.header().Add(key, value)
			}
		}
	}
}

// WithHeader sets a single header on every request.
func WithHeader(key, value string) Option {
	return func(s *Stream) {
		s.header().Set(key, value)
	}
}

// WithConditionalHeaders makes every read conditional on the ETag or
// Last-Modified value seen at Open. Reads fail with ErrRemoteChanged when the
// server reports a different version.
func WithConditionalHeaders() Option {
	return func(s *Stream) {
		s.conditional = true
	}
}

// WithTimeout bounds each request. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Stream) {
		s.timeout = d
	}
}

func (s *Stream) header() nethttp.Header {
	if s.headers == nil {
		s.headers = make(nethttp.Header)
	}
	return s.headers
}

// Open connects to the archive at url and records its size.
//
// The server must answer a one-byte range request with 206 Partial Content.
// When it also answers HEAD, both reported sizes must agree.
func Open(url string, opts ...Option) (*Stream, error) {
	s := &Stream{url: url}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}

	if err := s.probe(); err != nil {
		return nil, fmt.Errorf("open %s: %w", url, err)
	}
	return s, nil
}

// URL returns the remote location of the stream.
func (s *Stream) URL() string {
	return s.url
}

// Size returns the length of the remote content seen at Open.
func (s *Stream) Size() (int64, error) {
	if s.closed.Load() {
		return 0, stream.ErrClosed
	}
	return s.size, nil
}

// ReadAt implements io.ReaderAt with one range request per call. A read that
// runs past the end returns the available bytes and io.EOF.
func (s *Stream) ReadAt(p []byte, off int64) (int, error) {
	switch {
	case s.closed.Load():
		return 0, stream.ErrClosed
	case off < 0:
		return 0, fmt.Errorf("read at %d: negative offset", off)
	case len(p) == 0:
		return 0, nil
	case off >= s.size:
		return 0, io.EOF
	}

	want := min(int64(len(p)), s.size-off)
	n, err := s.fetch(p[:want], off)
	if err != nil {
		return n, err
	}
	if want < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt always fails with stream.ErrReadOnly.
func (s *Stream) WriteAt([]byte, int64) (int, error) {
	return 0, stream.ErrReadOnly
}

// Truncate always fails with stream.ErrReadOnly.
func (s *Stream) Truncate(int64) error {
	return stream.ErrReadOnly
}

// Sync has nothing to flush.
func (s *Stream) Sync() error {
	return nil
}

// Close drops idle connections. Later reads fail with stream.ErrClosed.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return stream.ErrClosed
	}
	s.client.CloseIdleConnections()
	return nil
}

// fetch fills p from the byte range starting at off.
func (s *Stream) fetch(p []byte, off int64) (int, error) {
	last := off + int64(len(p)) - 1
	resp, cancel, err := s.do(nethttp.MethodGet, fmt.Sprintf("bytes=%d-%d", off, last), s.conditional)
	if err != nil {
		return 0, err
	}
	defer cancel()
	defer drain(resp)

	if err := s.checkRange(resp); err != nil {
		if resp.StatusCode == nethttp.StatusRequestedRangeNotSatisfiable {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("read %d bytes at %d: %w", len(p), off, err)
	}
	return io.ReadFull(resp.Body, p)
}

// probe learns the size and version of the remote content.
func (s *Stream) probe() error {
	headSize := int64(-1)
	if resp, cancel, err := s.do(nethttp.MethodHead, "", false); err == nil {
		if resp.StatusCode == nethttp.StatusOK {
			headSize = resp.ContentLength
			s.version = versionOf(resp)
		}
		drain(resp)
		cancel()
	}

	resp, cancel, err := s.do(nethttp.MethodGet, "bytes=0-0", false)
	if err != nil {
		return err
	}
	defer cancel()
	defer drain(resp)

	if err := s.checkRange(resp); err != nil {
		return err
	}
	size, err := totalSize(resp.Header.Get("Content-Range"))
	if err != nil {
		return err
	}
	if headSize > 0 && headSize != size {
		return fmt.Errorf("size mismatch: HEAD reports %d bytes, range probe %d", headSize, size)
	}
	if s.version.empty() {
		s.version = versionOf(resp)
	}
	s.size = size
	return nil
}

// checkRange maps a range response status to an error.
func (s *Stream) checkRange(resp *nethttp.Response) error {
	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
		return nil
	case nethttp.StatusOK:
		return ErrRangeUnsupported
	case nethttp.StatusPreconditionFailed:
		if s.conditional && !s.version.empty() {
			return ErrRemoteChanged
		}
	}
	return fmt.Errorf("unexpected response %s", resp.Status)
}

// do sends one request. The returned cancel func releases the request
// context and must be called once the body is consumed.
func (s *Stream) do(method, byteRange string, conditional bool) (*nethttp.Response, context.CancelFunc, error) {
	ctx, cancel := context.Background(), context.CancelFunc(func() {})
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, s.url, nethttp.NoBody)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	for key, values := range s.headers {
		req.Header[key] = append([]string(nil), values...)
	}
	if req.Header.Get("Accept-Encoding") == "" {
		// Ranges must address the stored bytes, not a transfer encoding.
		req.Header.Set("Accept-Encoding", "identity")
	}
	if byteRange != "" {
		req.Header.Set("Range", byteRange)
	}
	if conditional {
		s.version.setPreconditions(req.Header)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return resp, cancel, nil
}

func versionOf(resp *nethttp.Response) validators {
	return validators{
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
	}
}

// drain discards the rest of the body so the connection can be reused.
func drain(resp *nethttp.Response) {
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // connection reuse only
	_ = resp.Body.Close()
}

// totalSize returns the complete length from a "bytes first-last/total"
// Content-Range value.
func totalSize(contentRange string) (int64, error) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(contentRange), "bytes ")
	if !ok {
		return 0, fmt.Errorf("invalid Content-Range %q", contentRange)
	}
	_, total, ok := strings.Cut(spec, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("invalid Content-Range %q", contentRange)
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("invalid Content-Range %q", contentRange)
	}
	return size, nil
}
