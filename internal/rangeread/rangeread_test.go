package rangeread

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, data []byte) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.ServeContent(w, r, "archive.zip", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestReadAt(t *testing.T) {
	data := []byte("0123456789abcdef")
	srv, _ := serve(t, data)

	s, err := New(srv.URL)
	require.NoError(t, err)
	assert.EqualValues(t, len(data), s.Size())

	tests := []struct {
		name    string
		n       int
		off     int64
		want    string
		wantErr error
	}{
		{name: "middle", n: 4, off: 6, want: "6789"},
		{name: "past end", n: 8, off: 12, want: "cdef", wantErr: io.EOF},
		{name: "at end", n: 4, off: 16, wantErr: io.EOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, tt.n)
			n, err := s.ReadAt(buf, tt.off)
			assert.Equal(t, tt.wantErr, err)
			assert.Equal(t, tt.want, string(buf[:n]))
		})
	}
}

func TestSectionReaderOverSource(t *testing.T) {
	data := bytes.Repeat([]byte("range"), 1000)
	srv, requests := serve(t, data)

	s, err := New(srv.URL)
	require.NoError(t, err)
	got, err := io.ReadAll(io.NewSectionReader(s, 100, 50))
	require.NoError(t, err)
	assert.Equal(t, data[100:150], got)
	assert.Greater(t, requests.Load(), int64(1))
}

// readChunks reads s from off to the end in chunk sized ReadAt calls.
func readChunks(t *testing.T, s *Source, off int64, chunk int) []byte {
	t.Helper()
	var got []byte
	buf := make([]byte, chunk)
	for off < s.Size() {
		n, err := s.ReadAt(buf, off)
		got = append(got, buf[:n]...)
		off += int64(n)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	return got
}

func TestReadAtServesFromBlock(t *testing.T) {
	data := make([]byte, 3<<20)
	for i := range data {
		data[i] = byte(i * 7)
	}
	srv, requests := serve(t, data)

	s, err := New(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, data[10:], readChunks(t, s, 10, 4096))
	// One request for the size, then one per block.
	assert.EqualValues(t, 1+3, requests.Load())

	buf := make([]byte, 100)
	_, err = s.ReadAt(buf, s.Size()-200)
	require.NoError(t, err)
	assert.Equal(t, data[len(data)-200:len(data)-100], buf)
	assert.EqualValues(t, 4, requests.Load())
}

func TestWithBlockSize(t *testing.T) {
	data := bytes.Repeat([]byte("block"), 100)
	srv, requests := serve(t, data)

	s, err := New(srv.URL, WithBlockSize(100))
	require.NoError(t, err)
	assert.Equal(t, data, readChunks(t, s, 0, 50))
	assert.EqualValues(t, 1+5, requests.Load())
}

func TestRangeUnsupported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("whole body"))
	}))
	t.Cleanup(srv.Close)

	_, err := New(srv.URL)
	assert.ErrorIs(t, err, ErrRangeUnsupported)
}

func TestRangeUnsupportedDropsBody(t *testing.T) {
	const total = 64 << 20
	var written atomic.Int64
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(done)
		chunk := make([]byte, 32<<10)
		for written.Load() < total {
			n, err := w.Write(chunk)
			written.Add(int64(n))
			if err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	_, err := New(srv.URL)
	require.ErrorIs(t, err, ErrRangeUnsupported)
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("handler still writing")
	}
	assert.Less(t, written.Load(), int64(total))
}

func TestParseContentRange(t *testing.T) {
	size, err := parseContentRange("bytes 0-0/1234")
	require.NoError(t, err)
	assert.EqualValues(t, 1234, size)

	for _, v := range []string{"", "bytes 0-0/*", "items 0-0/5", "bytes 0-0", "bytes 0-0/-3"} {
		_, err := parseContentRange(v)
		assert.Error(t, err, v)
	}
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://example.com/fm.zip"))
	assert.True(t, IsURL("http://host/fm.zip"))
	assert.False(t, IsURL("fm.zip"))
	assert.False(t, IsURL("/srv/fms/http.zip"))
}
