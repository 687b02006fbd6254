package zipfast

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotAnArchive is returned when no end of central directory record
	// is found in the trailing comment window.
	ErrNotAnArchive = errors.New("zip: not a valid zip file")

	// ErrCorruptEOCD is returned when the end of central directory record or
	// its zip64 locator/record fails a signature or bounds check.
	ErrCorruptEOCD = errors.New("zip: corrupt end of central directory")

	// ErrCorruptCentralDirectory is returned when the central directory holds
	// fewer valid headers than the end record declares.
	ErrCorruptCentralDirectory = errors.New("zip: corrupt central directory")

	// ErrCorruptLocalHeader is returned when an entry's local header or data
	// range is inconsistent with the archive.
	ErrCorruptLocalHeader = errors.New("zip: corrupt local file header")

	// ErrSplitArchiveUnsupported is returned for archives spanning several disks.
	ErrSplitArchiveUnsupported = errors.New("zip: split or spanned archives are not supported")

	// ErrUnsupportedCompression matches every *UnsupportedCompressionError.
	ErrUnsupportedCompression = errors.New("zip: unsupported compression method")

	// ErrClosed is returned when the archive has already been closed.
	ErrClosed = errors.New("zip: archive is closed")
)

// UnsupportedCompressionError reports an entry stored with a method this
// reader recognizes but cannot decode.
type UnsupportedCompressionError struct {
	Method Method
}

func (e *UnsupportedCompressionError) Error() string {
	return fmt.Sprintf("zip: unsupported compression method %s", e.Method)
}

// Is makes errors.Is(err, ErrUnsupportedCompression) hold.
func (e *UnsupportedCompressionError) Is(target error) bool {
	return target == ErrUnsupportedCompression
}
