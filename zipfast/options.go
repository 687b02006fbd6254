package zipfast

import (
	"io"

	"golang.org/x/text/encoding"
)

// Option configures an Archive.
type Option func(*Archive)

// WithLegacyEncoding sets the encoding used for entry names that do not carry
// the UTF-8 flag. A nil encoding keeps those names as raw UTF-8.
func WithLegacyEncoding(e encoding.Encoding) Option {
	return func(a *Archive) {
		a.legacy = e
	}
}

// WithCloser hands c to the Archive; Close closes it.
func WithCloser(c io.Closer) Option {
	return func(a *Archive) {
		a.closer = c
	}
}
