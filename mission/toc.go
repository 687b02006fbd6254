package mission

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/abe-nagisa/fmscan/internal/bytesearch"
	"github.com/pkg/errors"
)

const (
	tocTagLen    = 12
	tocRecordLen = tocTagLen + 4 + 4
)

var (
	objMapTag    = []byte("OBJ_MAP")
	thief2Marker = []byte("RopeyArrow")
)

// walkTOC finds the first table of contents record whose tag contains
// OBJ_MAP and reports Thief 2 if its chunk mentions the marker.
//
// The file starts with the offset of the table of contents. The table is a
// record count followed by records of a 12 byte tag, chunk offset and chunk
// length, all little-endian.
func walkTOC(src SeekableSource) (Game, error) {
	size := src.Size()
	if size < 4 {
		return GameUnknown, errors.Wrapf(ErrTruncatedOrCorruptMission, "%d byte file", size)
	}

	var word [4]byte
	if err := readFullAt(src, word[:], 0); err != nil {
		return GameUnknown, err
	}
	tocOffset := int64(binary.LittleEndian.Uint32(word[:]))
	if tocOffset+4 > size {
		return GameUnknown, errors.Wrapf(ErrTruncatedOrCorruptMission,
			"table of contents at %d past end of %d byte file", tocOffset, size)
	}
	if err := readFullAt(src, word[:], tocOffset); err != nil {
		return GameUnknown, err
	}
	count := int64(binary.LittleEndian.Uint32(word[:]))

	// Read as much of the table as the file holds; a record cut off by the
	// end is only an error if the walk gets to it.
	start := tocOffset + 4
	toc := make([]byte, min(count*tocRecordLen, size-start))
	if err := readFullAt(src, toc, start); err != nil {
		return GameUnknown, err
	}

	for i := int64(0); i < count; i++ {
		if (i+1)*tocRecordLen > int64(len(toc)) {
			return GameUnknown, errors.Wrapf(ErrTruncatedOrCorruptMission,
				"table of contents entry %d of %d runs past end of file", i, count)
		}
		rec := toc[i*tocRecordLen : (i+1)*tocRecordLen]
		if !bytesearch.Contains(rec[:tocTagLen], objMapTag) {
			continue
		}

		off := int64(binary.LittleEndian.Uint32(rec[tocTagLen:]))
		length := int64(binary.LittleEndian.Uint32(rec[tocTagLen+4:]))
		if off+length > size {
			return GameUnknown, errors.Wrapf(ErrTruncatedOrCorruptMission,
				"chunk %q at %d length %d past end of %d byte file", tagName(rec[:tocTagLen]), off, length, size)
		}
		chunk := make([]byte, length)
		if err := readFullAt(src, chunk, off); err != nil {
			return GameUnknown, err
		}
		if bytesearch.Contains(chunk, thief2Marker) {
			return Thief2, nil
		}
		return Thief1, nil
	}
	return GameUnknown, nil
}

// scanForMarker is the fallback for streams too large to buffer: it reports
// Thief 2 if the marker appears anywhere in the file.
func scanForMarker(r io.Reader) (Game, error) {
	found, err := bytesearch.ReaderContains(r, thief2Marker, bytesearch.DefaultChunkSize)
	if err != nil {
		return GameUnknown, errors.Wrap(err, "scan mission stream")
	}
	if found {
		return Thief2, nil
	}
	return Thief1, nil
}

func readFullAt(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || err == io.EOF {
		return errors.Wrapf(ErrTruncatedOrCorruptMission, "short read at %d", off)
	}
	return errors.Wrapf(err, "read %d bytes at %d", len(buf), off)
}

// tagName trims the NUL padding from a chunk tag.
func tagName(tag []byte) string {
	if i := bytes.IndexByte(tag, 0); i >= 0 {
		tag = tag[:i]
	}
	return string(tag)
}
