package zipfast

import "github.com/pkg/errors"

// zip64Extra holds the fields of a zip64 extended information block. Only
// the fields whose header value was a sentinel are present on disk.
type zip64Extra struct {
	size            uint64
	compressedSize  uint64
	headerOffset    uint64
	diskNumberStart uint32
}

// findZip64Extra walks the extra field blocks and returns the first zip64
// block whose length is exactly what the requested fields need, packed in
// the order size, compressed size, header offset, disk number. A zip64
// block of any other length is skipped and the search continues.
func findZip64Extra(extra []byte, wantSize, wantCompressed, wantOffset, wantDisk bool) (zip64Extra, bool) {
	expected := 0
	if wantSize {
		expected += 8
	}
	if wantCompressed {
		expected += 8
	}
	if wantOffset {
		expected += 8
	}
	if wantDisk {
		expected += 4
	}

	b := readBuf(extra)
	for len(b) >= 4 {
		tag := b.uint16()
		n := int(b.uint16())
		if n > len(b) {
			break
		}
		data := b.sub(n)
		if tag != zip64ExtraID || n != expected {
			continue
		}

		var z zip64Extra
		if wantSize {
			z.size = data.uint64()
		}
		if wantCompressed {
			z.compressedSize = data.uint64()
		}
		if wantOffset {
			z.headerOffset = data.uint64()
		}
		if wantDisk {
			z.diskNumberStart = data.uint32()
		}
		return z, true
	}
	return zip64Extra{}, false
}

// applyZip64 replaces sentinel header fields with their zip64 values. When
// no matching block exists the 32-bit values stand.
func (h *directoryHeader) applyZip64(extra []byte) error {
	wantSize := h.size == uint32max
	wantCompressed := h.compressedSize == uint32max
	wantOffset := h.headerOffset == uint32max
	wantDisk := h.diskNumberStart == uint16max
	if !wantSize && !wantCompressed && !wantOffset && !wantDisk {
		return nil
	}

	z, ok := findZip64Extra(extra, wantSize, wantCompressed, wantOffset, wantDisk)
	if !ok {
		return nil
	}
	if wantSize {
		h.size = z.size
	}
	if wantCompressed {
		h.compressedSize = z.compressedSize
	}
	if wantOffset {
		h.headerOffset = z.headerOffset
	}
	if wantDisk {
		h.diskNumberStart = z.diskNumberStart
	}
	if !fitsInt64(h.size) || !fitsInt64(h.compressedSize) || !fitsInt64(h.headerOffset) {
		return errors.Wrap(ErrCorruptCentralDirectory, "zip64 field too large")
	}
	return nil
}
