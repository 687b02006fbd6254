// Package deflate64test builds raw Deflate64 streams bit by bit for tests
// that need back-references a deflate encoder never emits.
package deflate64test

import "bytes"

// EndOfBlock is the literal/length symbol that ends a block.
const EndOfBlock = 256

// Writer packs deflate bit fields, least significant bit first.
type Writer struct {
	buf   bytes.Buffer
	acc   uint64
	nbits uint
}

// Bits writes the low n bits of v.
func (w *Writer) Bits(v uint32, n uint) {
	w.acc |= uint64(v) << w.nbits
	w.nbits += n
	for w.nbits >= 8 {
		w.buf.WriteByte(byte(w.acc))
		w.acc >>= 8
		w.nbits -= 8
	}
}

// Code writes a Huffman code, which deflate stores most significant bit first.
func (w *Writer) Code(c uint32, n uint) {
	var rev uint32
	for i := uint(0); i < n; i++ {
		rev = rev<<1 | (c>>i)&1
	}
	w.Bits(rev, n)
}

func (w *Writer) align() {
	if w.nbits > 0 {
		w.Bits(0, 8-w.nbits)
	}
}

// Bytes pads the last byte and returns the stream.
func (w *Writer) Bytes() []byte {
	w.align()
	return w.buf.Bytes()
}

// FixedHeader starts a block coded with the fixed Huffman tables.
func (w *Writer) FixedHeader(final bool) {
	w.Bits(boolBit(final), 1)
	w.Bits(1, 2)
}

// FixedLiteral writes a literal byte with the fixed literal/length code.
func (w *Writer) FixedLiteral(b byte) {
	if b < 144 {
		w.Code(0x30+uint32(b), 8)
		return
	}
	w.Code(0x190+uint32(b)-144, 9)
}

// FixedSymbol writes a length or end-of-block symbol (256..287).
func (w *Writer) FixedSymbol(sym uint32) {
	if sym < 280 {
		w.Code(sym-256, 7)
		return
	}
	w.Code(0xc0+sym-280, 8)
}

// Stored writes a stored block holding data, at most 65535 bytes.
func (w *Writer) Stored(final bool, data []byte) {
	w.Bits(boolBit(final), 1)
	w.Bits(0, 2)
	w.align()
	n := uint16(len(data))
	w.buf.Write([]byte{byte(n), byte(n >> 8), byte(^n), byte(^n >> 8)})
	w.buf.Write(data)
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
