package zipfast

import (
	"bufio"
	"io"
	"strconv"

	"github.com/klauspost/compress/flate"

	"github.com/abe-nagisa/fmscan/zipfast/deflate64"
)

// Method is the compression method recorded for an entry.
type Method uint16

// Compression methods. Only Stored, Deflate and Deflate64 can be opened;
// the others are named so errors can report them.
const (
	Stored    Method = 0  // no compression
	Deflate   Method = 8  // DEFLATE compressed
	Deflate64 Method = 9  // DEFLATE64(tm) enhanced compression
	BZip2     Method = 12 // BZIP2
	LZMA      Method = 14 // LZMA
)

func (m Method) String() string {
	switch m {
	case Stored:
		return "stored"
	case Deflate:
		return "deflate"
	case Deflate64:
		return "deflate64"
	case BZip2:
		return "bzip2"
	case LZMA:
		return "lzma"
	}
	return "method(" + strconv.Itoa(int(m)) + ")"
}

// Supported reports whether entries using m can be decompressed.
func (m Method) Supported() bool {
	switch m {
	case Stored, Deflate, Deflate64:
		return true
	}
	return false
}

// decompressor wraps the bounded compressed range of an entry.
func decompressor(m Method, r io.Reader) io.ReadCloser {
	switch m {
	case Deflate:
		return flate.NewReader(r)
	case Deflate64:
		return deflate64.NewReader(bufio.NewReader(r))
	}
	return io.NopCloser(r)
}
