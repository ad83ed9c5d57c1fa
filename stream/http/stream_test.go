package http_test

import (
	"bytes"
	"context"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/packfs/stream"
	packhttp "github.com/meigma/packfs/stream/http"
)

func serveBytes(t *testing.T, data []byte, etag string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if etag != "" {
			w.Header().Set("ETag", etag)
		}
		nethttp.ServeContent(w, r, "archive", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestStream_ReadAt(t *testing.T) {
	t.Parallel()

	data := []byte("hello world")
	server := serveBytes(t, data, "")

	s, err := packhttp.Open(server.URL, packhttp.WithConditionalHeaders())
	require.NoError(t, err)
	size, err := s.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), size)
	assert.Equal(t, server.URL, s.URL())

	tests := []struct {
		name    string
		bufSize int
		offset  int64
		wantN   int
		wantErr error
		want    string
	}{
		{name: "read from middle", bufSize: 5, offset: 6, wantN: 5, want: "world"},
		{name: "read past end returns EOF", bufSize: 10, offset: int64(len(data) - 3), wantN: 3, wantErr: io.EOF, want: "rld"},
		{name: "offset at end", bufSize: 4, offset: int64(len(data)), wantN: 0, wantErr: io.EOF, want: ""},
		{name: "empty buffer", bufSize: 0, offset: 2, wantN: 0, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			buf := make([]byte, tt.bufSize)
			n, err := s.ReadAt(buf, tt.offset)
			assert.Equal(t, tt.wantErr, err)
			assert.Equal(t, tt.wantN, n)
			assert.Equal(t, tt.want, string(buf[:n]))
		})
	}
}

func TestStream_ReadOnly(t *testing.T) {
	t.Parallel()

	server := serveBytes(t, []byte("content"), "")
	s, err := packhttp.Open(server.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.WriteAt([]byte("x"), 0)
	require.ErrorIs(t, err, stream.ErrReadOnly)
	require.ErrorIs(t, s.Truncate(100), stream.ErrReadOnly)
	require.NoError(t, s.Sync())
}

func TestOpen_RangeUnsupported(t *testing.T) {
	t.Parallel()

	data := []byte("range unsupported")
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method == nethttp.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(server.Close)

	_, err := packhttp.Open(server.URL)
	require.ErrorIs(t, err, packhttp.ErrRangeUnsupported)
}

func TestStream_Headers(t *testing.T) {
	t.Parallel()

	data := []byte("secret archive")
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(nethttp.StatusUnauthorized)
			return
		}
		nethttp.ServeContent(w, r, "archive", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	_, err := packhttp.Open(server.URL)
	require.Error(t, err)

	s, err := packhttp.Open(server.URL, packhttp.WithHeader("Authorization", "Bearer token"))
	require.NoError(t, err)

	buf := make([]byte, 6)
	n, err := s.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "secret", string(buf[:n]))
}

func TestStream_ReadAt_FailsWhenRemoteChanges(t *testing.T) {
	t.Parallel()

	data := []byte("hello world")
	etag := `"v1"`
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method == nethttp.MethodGet && r.Header.Get("Range") != "bytes=0-0" && r.Header.Get("If-Match") != "" {
			w.WriteHeader(nethttp.StatusPreconditionFailed)
			return
		}
		w.Header().Set("ETag", etag)
		nethttp.ServeContent(w, r, "archive", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	s, err := packhttp.Open(server.URL, packhttp.WithConditionalHeaders())
	require.NoError(t, err)

	buf := make([]byte, 5)
	_, err = s.ReadAt(buf, 6)
	require.ErrorIs(t, err, packhttp.ErrRemoteChanged)
}

func TestStream_Close(t *testing.T) {
	t.Parallel()

	server := serveBytes(t, []byte("content"), `"v1"`)
	s, err := packhttp.Open(server.URL, packhttp.WithTimeout(5*time.Second))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Close(), stream.ErrClosed)
	_, err = s.ReadAt(make([]byte, 2), 0)
	require.ErrorIs(t, err, stream.ErrClosed)
	_, err = s.Size()
	require.ErrorIs(t, err, stream.ErrClosed)
}

func TestStream_Timeout(t *testing.T) {
	t.Parallel()

	data := []byte("slow archive")
	slow := make(chan struct{})
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Header.Get("Range") != "bytes=0-0" && r.Method == nethttp.MethodGet {
			select {
			case <-slow:
			case <-r.Context().Done():
				return
			}
		}
		nethttp.ServeContent(w, r, "archive", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(slow) })

	s, err := packhttp.Open(server.URL, packhttp.WithTimeout(50*time.Millisecond))
	require.NoError(t, err)
	_, err = s.ReadAt(make([]byte, 4), 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
