// Package bytesearch finds short fixed tokens in byte buffers and streams.
//
// The search locates the token's first byte with a single scan, verifies the
// rest in place, and on mismatch restarts the first-byte scan just past the
// failed candidate. Tokens here are short ASCII markers in binary data, for
// which this beats building strings or general substring search.
package bytesearch

import (
	"bytes"
	"io"
)

// Index returns the index of the first instance of token in buf, or -1.
// An empty token is never found.
func Index(buf, token []byte) int {
	if len(token) == 0 {
		return -1
	}
	first := token[0]
	for start := 0; ; {
		i := bytes.IndexByte(buf[start:], first)
		if i < 0 {
			return -1
		}
		i += start
		if len(buf)-i < len(token) {
			return -1
		}
		if matchAt(buf, i, token) {
			return i
		}
		start = i + 1
	}
}

// Contains reports whether token occurs in buf.
func Contains(buf, token []byte) bool {
	return Index(buf, token) >= 0
}

func matchAt(buf []byte, i int, token []byte) bool {
	for j := 1; j < len(token); j++ {
		if buf[i+j] != token[j] {
			return false
		}
	}
	return true
}

// DefaultChunkSize is the read size ReaderContains uses when given zero.
const DefaultChunkSize = 80 * 1024

// ReaderContains reads r to the end or to the first match of token. The
// last len(token)-1 bytes of every chunk are carried into the next, so a
// token spanning two reads is still found.
func ReaderContains(r io.Reader, token []byte, chunkSize int) (bool, error) {
	if len(token) == 0 {
		return false, nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	carry := len(token) - 1
	buf := make([]byte, carry+chunkSize)
	kept := 0
	for {
		n, err := io.ReadFull(r, buf[kept:kept+chunkSize])
		if n > 0 {
			window := buf[:kept+n]
			if Contains(window, token) {
				return true, nil
			}
			kept = min(carry, len(window))
			copy(buf, window[len(window)-kept:])
		}
		switch err {
		case nil:
		case io.EOF, io.ErrUnexpectedEOF:
			return false, nil
		default:
			return false, err
		}
	}
}
