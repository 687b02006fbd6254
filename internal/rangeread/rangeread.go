// Package rangeread reads a remote file at random offsets with HTTP range
// requests, so a zip's central directory and single entries can be read
// without downloading the whole archive.
package rangeread

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ErrRangeUnsupported is returned when the server answers a range request
// with the whole body.
var ErrRangeUnsupported = errors.New("rangeread: server does not support range requests")

// DefaultBlockSize is the least a range request fetches. Reads inside the
// last fetched block are served without a request.
const DefaultBlockSize = 1 << 20

// Longest body drained so a connection can be reused.
const maxDrain = 64 << 10

// Source is an io.ReaderAt over a URL. It also reports the remote size.
// Reads are serialized so sequential readers share the cached block.
type Source struct {
	url       string
	client    *http.Client
	size      int64
	blockSize int64

	mu       sync.Mutex
	block    []byte
	blockOff int64
}

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(c *http.Client) Option {
	return func(s *Source) {
		if c != nil {
			s.client = c
		}
	}
}

// WithBlockSize sets the least number of bytes a range request fetches.
func WithBlockSize(n int64) Option {
	return func(s *Source) {
		if n > 0 {
			s.blockSize = n
		}
	}
}

// IsURL reports whether name should be opened with New rather than as a
// local path.
func IsURL(name string) bool {
	return strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://")
}

// New probes url with a one byte range request and returns a Source of the
// length the server reports.
func New(url string, opts ...Option) (*Source, error) {
	s := &Source{url: url, client: http.DefaultClient, blockSize: DefaultBlockSize}
	for _, opt := range opts {
		opt(s)
	}

	resp, err := s.get(0, 0)
	if err != nil {
		return nil, err
	}
	defer release(resp)
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	s.size, err = parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return nil, err
	}
	slog.Debug("Opened remote file", "url", url, "size", s.size)
	return s, nil
}

// Size is the length of the remote file.
func (s *Source) Size() int64 {
	return s.size
}

// ReadAt copies len(p) bytes at off, fetching a block of at least the
// configured block size when they are not cached. A read running past the
// end returns the available bytes and io.EOF.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, errors.Errorf("rangeread: negative offset %d", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}
	want := min(int64(len(p)), s.size-off)

	s.mu.Lock()
	defer s.mu.Unlock()
	if off < s.blockOff || off+want > s.blockOff+int64(len(s.block)) {
		if err := s.fetch(off, min(max(want, s.blockSize), s.size-off)); err != nil {
			return 0, err
		}
	}
	n := copy(p[:want], s.block[off-s.blockOff:])
	if want < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// fetch replaces the cached block with n bytes at off.
func (s *Source) fetch(off, n int64) error {
	s.block = s.block[:0]
	resp, err := s.get(off, off+n-1)
	if err != nil {
		return err
	}
	defer release(resp)
	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		return io.EOF
	}
	if err := checkStatus(resp); err != nil {
		return err
	}

	if int64(cap(s.block)) < n {
		s.block = make([]byte, n)
	}
	block := s.block[:n]
	if _, err := io.ReadFull(resp.Body, block); err != nil {
		return errors.Wrapf(err, "read range %d-%d", off, off+n-1)
	}
	s.block, s.blockOff = block, off
	slog.Debug("Fetched remote block", "offset", off, "length", n)
	return nil
}

func (s *Source) get(from, to int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "build range request")
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", from, to))
	// Byte offsets refer to the stored file, not a transfer encoding of it.
	req.Header.Set("Accept-Encoding", "identity")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", s.url)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusPartialContent:
		return nil
	case http.StatusOK:
		return errors.WithStack(ErrRangeUnsupported)
	}
	return errors.Errorf("rangeread: range request failed: %s", resp.Status)
}

// release closes the body. A short partial body is drained first so the
// connection can be reused; anything else, such as a whole file sent in
// answer to a range request, is dropped with its connection.
func release(resp *http.Response) {
	if resp.StatusCode == http.StatusPartialContent {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	}
	_ = resp.Body.Close()
}

// parseContentRange returns the total length from "bytes first-last/total".
func parseContentRange(v string) (int64, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(v), "bytes ")
	if !ok {
		return 0, errors.Errorf("rangeread: invalid Content-Range %q", v)
	}
	_, total, ok := strings.Cut(rest, "/")
	if !ok || total == "*" {
		return 0, errors.Errorf("rangeread: invalid Content-Range %q", v)
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil || size < 0 {
		return 0, errors.Errorf("rangeread: invalid Content-Range %q", v)
	}
	return size, nil
}
