package zipfast

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/require"
)

type testEntry struct {
	name     string
	method   Method
	data     []byte
	flags    uint16
	creator  uint16
	modified uint32
	disk     uint16
	// zip64 puts sentinels in the central directory sizes and header
	// offset and the real values in a zip64 extra block.
	zip64 bool
	// extra builds the central directory extra field from the real header
	// offset. It implies a sentinel offset.
	extra func(offset uint64) []byte
	// compressedSize overrides the recorded compressed size when set.
	compressedSize uint32
	// payload is stored as is instead of compressing data.
	payload []byte
}

type testArchive struct {
	entries []testEntry
	comment string
	// zip64End writes a zip64 end record and locator, leaving sentinels in
	// the classic end record.
	zip64End bool
}

func le16(b []byte, v uint16) []byte { return binary.LittleEndian.AppendUint16(b, v) }
func le32(b []byte, v uint32) []byte { return binary.LittleEndian.AppendUint32(b, v) }
func le64(b []byte, v uint64) []byte { return binary.LittleEndian.AppendUint64(b, v) }

func compress(t *testing.T, m Method, data []byte) []byte {
	t.Helper()
	level := flate.BestCompression
	switch m {
	case Deflate:
	case Deflate64:
		// Literal-only streams are valid Deflate64.
		level = flate.HuffmanOnly
	default:
		return data
	}
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// zip64Block builds a zip64 extra block from the given fields.
func zip64Block(fields ...uint64) []byte {
	b := le16(nil, zip64ExtraID)
	b = le16(b, uint16(8*len(fields)))
	for _, f := range fields {
		b = le64(b, f)
	}
	return b
}

func (a testArchive) bytes(t *testing.T) []byte {
	t.Helper()
	var out, cd []byte
	for _, e := range a.entries {
		payload := e.payload
		if payload == nil {
			payload = compress(t, e.method, e.data)
		}
		crc := crc32.ChecksumIEEE(e.data)
		offset := uint64(len(out))
		csize := uint32(len(payload))
		if e.compressedSize != 0 {
			csize = e.compressedSize
		}

		out = le32(out, fileHeaderSignature)
		out = le16(out, 20)
		out = le16(out, e.flags)
		out = le16(out, uint16(e.method))
		out = le32(out, e.modified)
		out = le32(out, crc)
		out = le32(out, csize)
		out = le32(out, uint32(len(e.data)))
		out = le16(out, uint16(len(e.name)))
		out = le16(out, 0)
		out = append(out, e.name...)
		out = append(out, payload...)

		cdSize, cdCompressed, cdOffset := uint32(len(e.data)), csize, uint32(offset)
		var extra []byte
		switch {
		case e.zip64:
			cdSize, cdCompressed, cdOffset = uint32max, uint32max, uint32max
			extra = zip64Block(uint64(len(e.data)), uint64(csize), offset)
		case e.extra != nil:
			cdOffset = uint32max
			extra = e.extra(offset)
		}

		cd = le32(cd, directoryHeaderSignature)
		cd = le16(cd, e.creator)
		cd = le16(cd, 45)
		cd = le16(cd, e.flags)
		cd = le16(cd, uint16(e.method))
		cd = le32(cd, e.modified)
		cd = le32(cd, crc)
		cd = le32(cd, cdCompressed)
		cd = le32(cd, cdSize)
		cd = le16(cd, uint16(len(e.name)))
		cd = le16(cd, uint16(len(extra)))
		cd = le16(cd, 0) // comment
		cd = le16(cd, e.disk)
		cd = le16(cd, 0) // internal attributes
		cd = le32(cd, 0) // external attributes
		cd = le32(cd, cdOffset)
		cd = append(cd, e.name...)
		cd = append(cd, extra...)
	}

	cdOffset := uint64(len(out))
	out = append(out, cd...)
	count := uint64(len(a.entries))

	if a.zip64End {
		end64 := uint64(len(out))
		out = le32(out, directory64EndSignature)
		out = le64(out, directory64EndLen-12)
		out = le16(out, 45)
		out = le16(out, 45)
		out = le32(out, 0) // this disk
		out = le32(out, 0) // directory disk
		out = le64(out, count)
		out = le64(out, count)
		out = le64(out, uint64(len(cd)))
		out = le64(out, cdOffset)

		out = le32(out, directory64LocSignature)
		out = le32(out, 0)
		out = le64(out, end64)
		out = le32(out, 1)
	}

	out = le32(out, directoryEndSignature)
	out = le16(out, 0)
	out = le16(out, 0)
	if a.zip64End {
		out = le16(out, uint16max)
		out = le16(out, uint16max)
		out = le32(out, uint32max)
		out = le32(out, uint32max)
	} else {
		out = le16(out, uint16(count))
		out = le16(out, uint16(count))
		out = le32(out, uint32(len(cd)))
		out = le32(out, uint32(cdOffset))
	}
	out = le16(out, uint16(len(a.comment)))
	out = append(out, a.comment...)
	return out
}

// endOffset returns the offset of the classic end record.
func (a testArchive) endOffset(data []byte) int {
	return len(data) - directoryEndLen - len(a.comment)
}
