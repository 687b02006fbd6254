package mission

import (
	"bytes"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"
)

// SeekableSource is a mission file with random access and a known length,
// such as an *io.SectionReader or *bytes.Reader.
type SeekableSource interface {
	io.ReaderAt
	Size() int64
}

// Source is what the classifier reads from. Offsets given to window never
// decrease between calls, so forward-only streams can serve it. Use
// FromReaderAt or FromStream to build one.
type Source interface {
	// probeOffsets orders the signature offsets as this source can visit them.
	probeOffsets() []int64
	// window returns up to n bytes at off; fewer near the end of the file.
	window(off int64, n int) ([]byte, error)
	// objectMapGame runs the table of contents walk.
	objectMapGame(maxBuffer int64) (Game, error)
}

type seekableSource struct {
	r SeekableSource
}

func (s seekableSource) probeOffsets() []int64 {
	return probeOffsets
}

func (s seekableSource) window(off int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	m, err := s.r.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "read %d bytes at %d", n, off)
	}
	return buf[:m], nil
}

func (s seekableSource) objectMapGame(int64) (Game, error) {
	return walkTOC(s.r)
}

// forwardSource reads a stream once from the start. Every byte consumed is
// kept, so the table of contents walk can reuse the probed prefix.
type forwardSource struct {
	r        io.Reader
	sizeHint int64
	buf      []byte
	eof      bool
}

func (f *forwardSource) probeOffsets() []int64 {
	return forwardProbeOffsets
}

// window reads forward until off+n bytes have been consumed. The read
// length is relative to what earlier windows already consumed.
func (f *forwardSource) window(off int64, n int) ([]byte, error) {
	end := off + int64(n)
	if err := f.fill(end - int64(len(f.buf))); err != nil {
		return nil, err
	}
	end = min(end, int64(len(f.buf)))
	if off >= end {
		return nil, nil
	}
	return f.buf[off:end], nil
}

// fill appends up to n more bytes from the stream.
func (f *forwardSource) fill(n int64) error {
	if f.eof || n <= 0 {
		return nil
	}
	start := len(f.buf)
	f.buf = append(f.buf, make([]byte, n)...)
	m, err := io.ReadFull(f.r, f.buf[start:])
	f.buf = f.buf[:start+m]
	switch err {
	case nil:
		return nil
	case io.EOF, io.ErrUnexpectedEOF:
		f.eof = true
		return nil
	}
	return errors.Wrap(err, "read mission stream")
}

// objectMapGame buffers the rest of the stream for the table of contents
// walk. A stream longer than maxBuffer is scanned for the marker instead.
func (f *forwardSource) objectMapGame(maxBuffer int64) (Game, error) {
	if !f.eof {
		buf := bytes.NewBuffer(f.buf)
		if want := growHint(f.sizeHint, maxBuffer, len(f.buf)); want > 0 {
			buf.Grow(want)
		}
		// One byte past the cap tells a stream that fits from one that does not.
		rest := io.LimitReader(f.r, maxBuffer+1-int64(len(f.buf)))
		if _, err := buf.ReadFrom(rest); err != nil {
			return GameUnknown, errors.Wrap(err, "read mission stream")
		}
		f.buf = buf.Bytes()
	}
	if int64(len(f.buf)) > maxBuffer {
		slog.Debug("mission exceeds buffer cap, scanning for marker", "cap", maxBuffer)
		return scanForMarker(io.MultiReader(bytes.NewReader(f.buf), f.r))
	}
	return walkTOC(bytes.NewReader(f.buf))
}

// maxPreGrow bounds the allocation made from a size hint, which comes from
// untrusted archive metadata.
const maxPreGrow = 16 << 20

// growHint is how many bytes to reserve beyond the have bytes already buffered.
func growHint(sizeHint, maxBuffer int64, have int) int {
	want := min(sizeHint, maxBuffer, maxPreGrow) - int64(have)
	if want <= 0 {
		return 0
	}
	return int(want)
}

// FromReaderAt returns a seekable source over r.
func FromReaderAt(r SeekableSource) Source {
	return seekableSource{r: r}
}

// FromStream returns a forward-only source, such as a decompressing zip
// entry stream. sizeHint, when positive, is the expected decompressed
// length and only sizes the buffer.
func FromStream(r io.Reader, sizeHint int64) Source {
	return &forwardSource{r: r, sizeHint: sizeHint}
}

// openFile returns a seekable source over the named file.
func openFile(name string) (Source, io.Closer, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open mission")
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, errors.Wrap(err, "stat mission")
	}
	return seekableSource{r: io.NewSectionReader(f, 0, fi.Size())}, f, nil
}
