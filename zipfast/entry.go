package zipfast

import (
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// creatorFAT marks entries made on MS-DOS/Windows, whose names may use
// backslash or colon separators.
const creatorFAT = 0

// Entry describes one file in the archive. Sizes, offset and disk number
// already have their zip64 values applied.
type Entry struct {
	Name             string
	Method           Method
	CompressedSize   int64
	UncompressedSize int64
	HeaderOffset     int64 // offset of the local file header
	DiskNumberStart  uint32
	CRC32            uint32
	Modified         uint32 // raw MS-DOS date (high half) and time (low half)
	Flags            uint16
	CreatorVersion   uint16
	ExternalAttrs    uint32

	archive *Archive

	// dataOffset is where the compressed bytes start. It is unknown until
	// the local header has been read once.
	dataOffset int64
	resolved   bool
}

func (a *Archive) newEntry(h *directoryHeader) *Entry {
	return &Entry{
		Name:             decodeName(h.name, h.flags, a.legacy),
		Method:           Method(h.method),
		CompressedSize:   int64(h.compressedSize),
		UncompressedSize: int64(h.size),
		HeaderOffset:     int64(h.headerOffset),
		DiskNumberStart:  h.diskNumberStart,
		CRC32:            h.crc32,
		Modified:         h.modified,
		Flags:            h.flags,
		CreatorVersion:   h.creatorVersion,
		ExternalAttrs:    h.externalAttrs,
		archive:          a,
	}
}

// Open opens the entry through the archive it was read from.
func (e *Entry) Open() (io.ReadCloser, error) {
	return e.archive.OpenEntry(e)
}

// IsDir reports whether the entry names a directory.
func (e *Entry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

// BaseName is the last element of the entry name, split according to the
// conventions of the system that made the archive.
func (e *Entry) BaseName() string {
	seps := "/"
	if e.CreatorVersion>>8 == creatorFAT {
		seps = `/\:`
	}
	return e.Name[strings.LastIndexAny(e.Name, seps)+1:]
}

// ModTime decodes the MS-DOS timestamp. The stored value carries no zone
// and is returned as UTC.
func (e *Entry) ModTime() time.Time {
	dosTime := uint16(e.Modified)
	dosDate := uint16(e.Modified >> 16)
	return time.Date(
		// date bits 0-4: day of month; 5-8: month; 9-15: years since 1980
		int(dosDate>>9+1980),
		time.Month(dosDate>>5&0xf),
		int(dosDate&0x1f),

		// time bits 0-4: second/2; 5-10: minute; 11-15: hour
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f*2),
		0, // nanoseconds

		time.UTC,
	)
}

// OpenEntry returns a stream of the entry's decompressed bytes. The stream
// reads from the archive and must be closed before the archive is.
func (a *Archive) OpenEntry(e *Entry) (io.ReadCloser, error) {
	if a.closed {
		return nil, errors.WithStack(ErrClosed)
	}
	if e.archive != a {
		return nil, errors.Errorf("zip: entry %q belongs to another archive", e.Name)
	}
	if err := a.checkOpenable(e); err != nil {
		return nil, err
	}
	offset, err := a.dataOffset(e)
	if err != nil {
		return nil, err
	}
	if e.CompressedSize > a.size-offset {
		return nil, errors.Wrapf(ErrCorruptLocalHeader,
			"%q: %d compressed bytes at %d overrun %d byte zip", e.Name, e.CompressedSize, offset, a.size)
	}
	return decompressor(e.Method, io.NewSectionReader(a.r, offset, e.CompressedSize)), nil
}

func (a *Archive) checkOpenable(e *Entry) error {
	if !e.Method.Supported() {
		return errors.Wrapf(&UnsupportedCompressionError{Method: e.Method}, "%q", e.Name)
	}
	if e.DiskNumberStart != a.diskNbr {
		return errors.Wrapf(ErrSplitArchiveUnsupported,
			"%q starts on disk %d, archive is disk %d", e.Name, e.DiskNumberStart, a.diskNbr)
	}
	if e.HeaderOffset >= a.size {
		return errors.Wrapf(ErrCorruptLocalHeader,
			"%q: header offset %d beyond %d byte zip", e.Name, e.HeaderOffset, a.size)
	}
	return nil
}

// dataOffset reads just enough of the local header to skip it and returns
// the offset of the compressed data. The result is kept on the entry, so
// the header is read at most once per entry.
func (a *Archive) dataOffset(e *Entry) (int64, error) {
	if e.resolved {
		return e.dataOffset, nil
	}

	var buf [fileHeaderLen]byte
	if err := readFullAt(a.r, buf[:], e.HeaderOffset); err != nil {
		if err == io.ErrUnexpectedEOF {
			return 0, errors.Wrapf(ErrCorruptLocalHeader, "%q: truncated header", e.Name)
		}
		return 0, errors.Wrapf(err, "read local header of %q", e.Name)
	}
	b := readBuf(buf[:])
	if sig := b.uint32(); sig != fileHeaderSignature {
		return 0, errors.Wrapf(ErrCorruptLocalHeader, "%q: header signature %#08x", e.Name, sig)
	}
	b.skip(22) // skip over most of the header
	filenameLen := int64(b.uint16())
	extraLen := int64(b.uint16())

	offset := e.HeaderOffset + fileHeaderLen + filenameLen + extraLen
	if offset > a.size {
		return 0, errors.Wrapf(ErrCorruptLocalHeader, "%q: header runs past end of zip", e.Name)
	}
	e.dataOffset, e.resolved = offset, true
	return offset, nil
}
