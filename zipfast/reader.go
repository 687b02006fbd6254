// Package zipfast is a minimal random-access zip reader. It parses the end
// of central directory record (with its zip64 locator and record) and the
// central directory, and opens entries stored, deflated or deflate64'd.
//
// An Archive is not safe for concurrent use. Entry streams read through the
// archive's io.ReaderAt and must be closed before the archive is.
package zipfast

import (
	"bufio"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
)

// Archive is an opened zip archive.
type Archive struct {
	// Entries in central directory order.
	Entries []*Entry
	Comment string

	r       io.ReaderAt
	size    int64
	closer  io.Closer
	legacy  encoding.Encoding
	diskNbr uint32
	closed  bool
}

// OpenFile opens the named archive. Closing the Archive closes the file.
func OpenFile(name string, opts ...Option) (*Archive, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "open archive")
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "stat archive")
	}
	a, err := New(f, fi.Size(), append(opts, WithCloser(f))...)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "%s", name)
	}
	return a, nil
}

// New reads the central directory of the size-byte archive behind r. The
// whole directory is parsed up front; a damaged directory fails the call.
func New(r io.ReaderAt, size int64, opts ...Option) (*Archive, error) {
	a := &Archive{
		r:      r,
		size:   size,
		legacy: DefaultLegacyEncoding,
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.init(); err != nil {
		return nil, err
	}
	return a, nil
}

// Size is the length of the underlying archive stream.
func (a *Archive) Size() int64 {
	return a.size
}

// Lookup returns the first entry named name, or nil.
func (a *Archive) Lookup(name string) *Entry {
	for _, e := range a.Entries {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Close invalidates every entry and closes the file opened by OpenFile or
// handed over with WithCloser.
func (a *Archive) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	a.Entries = nil
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

func (a *Archive) init() error {
	end, endOffset, err := a.readDirectoryEnd()
	if err != nil {
		return err
	}
	if end.needsZip64() {
		p, err := a.findDirectory64End(endOffset)
		if err != nil {
			return err
		}
		if err := a.readDirectory64End(p, end); err != nil {
			return err
		}
	}
	if end.diskNbr != end.dirDiskNbr || end.dirRecordsThisDisk != end.directoryRecords {
		return errors.Wrapf(ErrSplitArchiveUnsupported,
			"central directory starts on disk %d of %d", end.dirDiskNbr, end.diskNbr)
	}
	if end.directoryRecords > uint64(a.size)/directoryHeaderLen {
		return errors.Wrapf(ErrCorruptCentralDirectory,
			"TOC declares impossible %d files in %d byte zip", end.directoryRecords, a.size)
	}
	if end.directoryOffset > uint64(a.size) {
		return errors.Wrapf(ErrCorruptCentralDirectory,
			"directory offset %d beyond %d byte zip", end.directoryOffset, a.size)
	}
	a.diskNbr = end.diskNbr
	a.Comment = end.comment

	offset := int64(end.directoryOffset)
	br := bufio.NewReader(io.NewSectionReader(a.r, offset, a.size-offset))
	a.Entries = make([]*Entry, 0, end.directoryRecords)
	for i := uint64(0); i < end.directoryRecords; i++ {
		h, err := readDirectoryHeader(br)
		if err != nil {
			return errors.Wrapf(err, "entry %d of %d", i, end.directoryRecords)
		}
		a.Entries = append(a.Entries, a.newEntry(h))
	}
	slog.Debug("Read central directory",
		"entries", len(a.Entries), "offset", offset, "size", a.size)
	return nil
}

// readDirectoryEnd finds the end of central directory record and returns it
// with its absolute offset.
func (a *Archive) readDirectoryEnd() (*directoryEnd, int64, error) {
	if a.size < directoryEndLen {
		return nil, 0, errors.Wrapf(ErrNotAnArchive, "%d bytes is too short", a.size)
	}
	blockLen := min(a.size, directoryEndLen+maxCommentLen)
	block := make([]byte, blockLen)
	start := a.size - blockLen
	if err := readFullAt(a.r, block, start); err != nil {
		return nil, 0, errors.Wrap(err, "read end of central directory")
	}
	i := findSignatureInBlock(block)
	if i < 0 {
		return nil, 0, errors.WithStack(ErrNotAnArchive)
	}

	b := readBuf(block[i+4:]) // skip signature
	d := &directoryEnd{
		diskNbr:            uint32(b.uint16()),
		dirDiskNbr:         uint32(b.uint16()),
		dirRecordsThisDisk: uint64(b.uint16()),
		directoryRecords:   uint64(b.uint16()),
		directorySize:      uint64(b.uint32()),
		directoryOffset:    uint64(b.uint32()),
		commentLen:         b.uint16(),
	}
	l := int(d.commentLen)
	if l > len(b) {
		return nil, 0, errors.Wrap(ErrCorruptEOCD, "invalid comment length")
	}
	d.comment = string(b[:l])
	return d, start + int64(i), nil
}

// findDirectory64End reads the zip64 locator sitting immediately before the
// end record and returns the offset of the zip64 end record.
func (a *Archive) findDirectory64End(directoryEndOffset int64) (int64, error) {
	locOffset := directoryEndOffset - directory64LocLen
	if locOffset < 0 {
		return 0, errors.Wrap(ErrCorruptEOCD, "no room for zip64 locator")
	}
	var buf [directory64LocLen]byte
	if err := readFullAt(a.r, buf[:], locOffset); err != nil {
		return 0, errors.Wrap(err, "read zip64 locator")
	}
	b := readBuf(buf[:])
	if sig := b.uint32(); sig != directory64LocSignature {
		return 0, errors.Wrapf(ErrCorruptEOCD, "zip64 locator signature %#08x", sig)
	}
	b.skip(4)       // number of the disk with the start of the zip64 end of central directory
	p := b.uint64() // relative offset of the zip64 end of central directory record
	if disks := b.uint32(); disks > 1 {
		return 0, errors.Wrapf(ErrSplitArchiveUnsupported, "%d disks", disks)
	}
	if p > uint64(locOffset) || uint64(locOffset)-p < directory64EndLen {
		return 0, errors.Wrapf(ErrCorruptEOCD, "zip64 end record offset %d", p)
	}
	return int64(p), nil
}

func (a *Archive) readDirectory64End(offset int64, d *directoryEnd) error {
	var buf [directory64EndLen]byte
	if err := readFullAt(a.r, buf[:], offset); err != nil {
		return errors.Wrap(err, "read zip64 end of central directory")
	}

	b := readBuf(buf[:])
	if sig := b.uint32(); sig != directory64EndSignature {
		return errors.Wrapf(ErrCorruptEOCD, "zip64 end record signature %#08x", sig)
	}

	b.skip(12)                        // skip dir size, version and version needed (uint64 + 2x uint16)
	d.diskNbr = b.uint32()            // number of this disk
	d.dirDiskNbr = b.uint32()         // number of the disk with the start of the central directory
	d.dirRecordsThisDisk = b.uint64() // total number of entries in the central directory on this disk
	d.directoryRecords = b.uint64()   // total number of entries in the central directory
	d.directorySize = b.uint64()      // size of the central directory
	d.directoryOffset = b.uint64()    // offset of start of central directory with respect to the starting disk number
	return nil
}

// readDirectoryHeader reads one central directory header from r. Any short
// read or bad signature is reported as a corrupt central directory.
func readDirectoryHeader(r io.Reader) (*directoryHeader, error) {
	var buf [directoryHeaderLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, corruptDirectory(err)
	}
	b := readBuf(buf[:])
	if sig := b.uint32(); sig != directoryHeaderSignature {
		return nil, errors.Wrapf(ErrCorruptCentralDirectory, "header signature %#08x", sig)
	}

	h := &directoryHeader{
		creatorVersion: b.uint16(),
		readerVersion:  b.uint16(),
		flags:          b.uint16(),
		method:         b.uint16(),
		modified:       b.uint32(),
		crc32:          b.uint32(),
		compressedSize: uint64(b.uint32()),
		size:           uint64(b.uint32()),
	}
	filenameLen := int(b.uint16())
	extraLen := int(b.uint16())
	commentLen := int(b.uint16())
	h.diskNumberStart = uint32(b.uint16())
	b.skip(2) // internal attributes
	h.externalAttrs = b.uint32()
	h.headerOffset = uint64(b.uint32())

	d := make([]byte, filenameLen+extraLen+commentLen)
	if _, err := io.ReadFull(r, d); err != nil {
		return nil, corruptDirectory(err)
	}
	h.name = d[:filenameLen]
	if err := h.applyZip64(d[filenameLen : filenameLen+extraLen]); err != nil {
		return nil, err
	}
	return h, nil
}

func corruptDirectory(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrap(ErrCorruptCentralDirectory, "truncated header")
	}
	return errors.Wrap(err, "read central directory")
}

// findSignatureInBlock scans b backwards for an end of central directory
// signature whose declared comment fits in the rest of b.
func findSignatureInBlock(b []byte) int {
	for i := len(b) - directoryEndLen; i >= 0; i-- {
		// defined from directoryEndSignature in struct.go
		if b[i] == 'P' && b[i+1] == 'K' && b[i+2] == 0x05 && b[i+3] == 0x06 {
			// n is length of comment
			n := int(b[i+directoryEndLen-2]) | int(b[i+directoryEndLen-1])<<8
			if n+directoryEndLen+i <= len(b) {
				return i
			}
		}
	}
	return -1
}

// readFullAt fills buf from off. Reaching the end of r before buf is full
// is reported as io.ErrUnexpectedEOF.
func readFullAt(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// fitsInt64 reports whether v can be used as an offset or length.
func fitsInt64(v uint64) bool {
	return v <= math.MaxInt64
}
