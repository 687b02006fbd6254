// Package deflate64 decompresses the Deflate64 ("enhanced deflate") format,
// zip method 9.
//
// Deflate64 shares its block structure with deflate but uses a 64 KiB
// window, adds distance codes 30 and 31, and gives length code 285 sixteen
// extra bits instead of a fixed length of 258. Streams produced by a plain
// deflate encoder are therefore not always valid Deflate64.
package deflate64

import (
	"io"
	"strconv"
)

const (
	maxCodeLen = 15      // maximum bits in a Huffman code
	windowSize = 1 << 16 // history available to back-references
	windowMask = windowSize - 1

	endOfBlock   = 256
	numLitCodes  = 288
	numDistCodes = 32
	numCLCodes   = 19
)

// A CorruptInputError reports the presence of corrupt input at a given offset.
type CorruptInputError int64

func (e CorruptInputError) Error() string {
	return "deflate64: corrupt input before offset " + strconv.FormatInt(int64(e), 10)
}

var (
	// Base lengths and extra bits for length codes 257..285.
	lengthBase = [29]uint16{
		3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31,
		35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 3,
	}
	lengthExtra = [29]uint8{
		0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2,
		3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 16,
	}

	// Base distances and extra bits for distance codes 0..31.
	distBase = [numDistCodes]uint32{
		1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193,
		257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577, 32769, 49153,
	}
	distExtra = [numDistCodes]uint8{
		0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6,
		7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13, 14, 14,
	}

	// Order in which code length code lengths are stored.
	clOrder = [numCLCodes]uint8{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

	fixedLit, fixedDist = fixedTables()
)

// huffman is a canonical Huffman decoding table: the number of codes of
// each length and the symbols ordered by code.
type huffman struct {
	count  [maxCodeLen + 1]uint16
	symbol []uint16
}

// init builds h from per-symbol code lengths. Incomplete codes are
// accepted; an undecodable bit pattern surfaces when it is read.
func (h *huffman) init(lengths []uint8) bool {
	h.count = [maxCodeLen + 1]uint16{}
	for _, l := range lengths {
		h.count[l]++
	}
	if int(h.count[0]) == len(lengths) {
		h.symbol = h.symbol[:0]
		return true
	}

	left := 1
	for l := 1; l <= maxCodeLen; l++ {
		left <<= 1
		left -= int(h.count[l])
		if left < 0 {
			return false // over-subscribed
		}
	}

	var offs [maxCodeLen + 1]uint16
	for l := 1; l < maxCodeLen; l++ {
		offs[l+1] = offs[l] + h.count[l]
	}
	if cap(h.symbol) < len(lengths) {
		h.symbol = make([]uint16, len(lengths))
	}
	h.symbol = h.symbol[:len(lengths)]
	for sym, l := range lengths {
		if l != 0 {
			h.symbol[offs[l]] = uint16(sym)
			offs[l]++
		}
	}
	return true
}

func fixedTables() (*huffman, *huffman) {
	var lengths [numLitCodes]uint8
	for i := range lengths {
		switch {
		case i < 144:
			lengths[i] = 8
		case i < 256:
			lengths[i] = 9
		case i < 280:
			lengths[i] = 7
		default:
			lengths[i] = 8
		}
	}
	lit := new(huffman)
	lit.init(lengths[:])

	var dlengths [numDistCodes]uint8
	for i := range dlengths {
		dlengths[i] = 5
	}
	dist := new(huffman)
	dist.init(dlengths[:])
	return lit, dist
}

type blockState int

const (
	stateHeader blockState = iota
	stateStored
	stateHuffman
	stateDone
)

// decompressor holds all state between Read calls. Output is produced one
// symbol at a time so a Read never returns more than len(p) bytes.
type decompressor struct {
	r       io.ByteReader
	roffset int64

	bits  uint32
	nbits uint

	win     [windowSize]byte
	written int64

	state  blockState
	final  bool
	stored int

	lit, dist   *huffman
	dynLit      huffman
	dynDist     huffman
	codeLengths [numLitCodes + numDistCodes]uint8

	copyLen  int
	copyDist int
	err      error
}

// NewReader returns a ReadCloser that decompresses Deflate64 data read
// from r. Close does not close r.
func NewReader(r io.ByteReader) io.ReadCloser {
	return &decompressor{r: r}
}

func (f *decompressor) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && f.err == nil {
		if f.copyLen > 0 {
			b := f.win[(f.written-int64(f.copyDist))&windowMask]
			f.emit(b)
			p[n] = b
			n++
			f.copyLen--
			continue
		}

		switch f.state {
		case stateHeader:
			if f.final {
				f.state = stateDone
				continue
			}
			f.err = f.readBlockHeader()
		case stateStored:
			if f.stored == 0 {
				f.state = stateHeader
				continue
			}
			b, err := f.r.ReadByte()
			if err != nil {
				f.err = noEOF(err)
				continue
			}
			f.roffset++
			f.stored--
			f.emit(b)
			p[n] = b
			n++
		case stateHuffman:
			var lit byte
			var ok bool
			if lit, ok, f.err = f.nextSymbol(); f.err == nil && ok {
				p[n] = lit
				n++
			}
		case stateDone:
			f.err = io.EOF
		}
	}
	if n > 0 {
		return n, nil
	}
	return 0, f.err
}

// Close is a no-op; the underlying reader belongs to the caller.
func (f *decompressor) Close() error {
	return nil
}

func (f *decompressor) emit(b byte) {
	f.win[f.written&windowMask] = b
	f.written++
}

// nextSymbol decodes one literal/length symbol. A literal is returned with
// ok set; a length starts a back-reference copy; end of block returns to
// the header state.
func (f *decompressor) nextSymbol() (byte, bool, error) {
	sym, err := f.decode(f.lit)
	if err != nil {
		return 0, false, err
	}
	switch {
	case sym < endOfBlock:
		b := byte(sym)
		f.emit(b)
		return b, true, nil
	case sym == endOfBlock:
		f.state = stateHeader
		return 0, false, nil
	}

	sym -= endOfBlock + 1
	if sym >= len(lengthBase) {
		return 0, false, CorruptInputError(f.roffset)
	}
	extra, err := f.readBits(uint(lengthExtra[sym]))
	if err != nil {
		return 0, false, err
	}
	length := int(lengthBase[sym]) + int(extra)

	dsym, err := f.decode(f.dist)
	if err != nil {
		return 0, false, err
	}
	if dsym >= numDistCodes {
		return 0, false, CorruptInputError(f.roffset)
	}
	dextra, err := f.readBits(uint(distExtra[dsym]))
	if err != nil {
		return 0, false, err
	}
	dist := int(distBase[dsym]) + int(dextra)
	if int64(dist) > f.written || dist > windowSize {
		return 0, false, CorruptInputError(f.roffset)
	}
	f.copyLen, f.copyDist = length, dist
	return 0, false, nil
}

func (f *decompressor) readBlockHeader() error {
	final, err := f.readBits(1)
	if err != nil {
		return err
	}
	f.final = final == 1
	typ, err := f.readBits(2)
	if err != nil {
		return err
	}
	switch typ {
	case 0:
		return f.readStoredHeader()
	case 1:
		f.lit, f.dist = fixedLit, fixedDist
		f.state = stateHuffman
		return nil
	case 2:
		if err := f.readDynamicTables(); err != nil {
			return err
		}
		f.lit, f.dist = &f.dynLit, &f.dynDist
		f.state = stateHuffman
		return nil
	}
	return CorruptInputError(f.roffset)
}

func (f *decompressor) readStoredHeader() error {
	// Stored blocks start on a byte boundary.
	f.bits, f.nbits = 0, 0
	var hdr [4]byte
	for i := range hdr {
		b, err := f.r.ReadByte()
		if err != nil {
			return noEOF(err)
		}
		f.roffset++
		hdr[i] = b
	}
	n := uint16(hdr[0]) | uint16(hdr[1])<<8
	nn := uint16(hdr[2]) | uint16(hdr[3])<<8
	if n != ^nn {
		return CorruptInputError(f.roffset)
	}
	f.stored = int(n)
	f.state = stateStored
	return nil
}

func (f *decompressor) readDynamicTables() error {
	hlit, err := f.readBits(5)
	if err != nil {
		return err
	}
	hdist, err := f.readBits(5)
	if err != nil {
		return err
	}
	hclen, err := f.readBits(4)
	if err != nil {
		return err
	}
	nlit, ndist, nclen := int(hlit)+257, int(hdist)+1, int(hclen)+4
	if nlit > 286 {
		return CorruptInputError(f.roffset)
	}

	var clLengths [numCLCodes]uint8
	for i := 0; i < nclen; i++ {
		v, err := f.readBits(3)
		if err != nil {
			return err
		}
		clLengths[clOrder[i]] = uint8(v)
	}
	var cl huffman
	if !cl.init(clLengths[:]) {
		return CorruptInputError(f.roffset)
	}

	lengths := f.codeLengths[:nlit+ndist]
	for i := 0; i < len(lengths); {
		sym, err := f.decode(&cl)
		if err != nil {
			return err
		}
		if sym < 16 {
			lengths[i] = uint8(sym)
			i++
			continue
		}

		var rep int
		var val uint8
		switch sym {
		case 16:
			if i == 0 {
				return CorruptInputError(f.roffset)
			}
			val = lengths[i-1]
			x, err := f.readBits(2)
			if err != nil {
				return err
			}
			rep = 3 + int(x)
		case 17:
			x, err := f.readBits(3)
			if err != nil {
				return err
			}
			rep = 3 + int(x)
		default:
			x, err := f.readBits(7)
			if err != nil {
				return err
			}
			rep = 11 + int(x)
		}
		if i+rep > len(lengths) {
			return CorruptInputError(f.roffset)
		}
		for ; rep > 0; rep-- {
			lengths[i] = val
			i++
		}
	}

	if lengths[endOfBlock] == 0 {
		return CorruptInputError(f.roffset)
	}
	if !f.dynLit.init(lengths[:nlit]) || !f.dynDist.init(lengths[nlit:]) {
		return CorruptInputError(f.roffset)
	}
	return nil
}

// decode reads one symbol bit by bit, walking the canonical code lengths.
func (f *decompressor) decode(h *huffman) (int, error) {
	code, first, index := 0, 0, 0
	for l := 1; l <= maxCodeLen; l++ {
		bit, err := f.readBits(1)
		if err != nil {
			return 0, err
		}
		code |= int(bit)
		count := int(h.count[l])
		if code-first < count {
			return int(h.symbol[index+code-first]), nil
		}
		index += count
		first += count
		first <<= 1
		code <<= 1
	}
	return 0, CorruptInputError(f.roffset)
}

// readBits returns the next n bits, least significant first.
func (f *decompressor) readBits(n uint) (uint32, error) {
	for f.nbits < n {
		b, err := f.r.ReadByte()
		if err != nil {
			return 0, noEOF(err)
		}
		f.roffset++
		f.bits |= uint32(b) << f.nbits
		f.nbits += 8
	}
	v := f.bits & (1<<n - 1)
	f.bits >>= n
	f.nbits -= n
	return v, nil
}

// noEOF turns io.EOF into io.ErrUnexpectedEOF; the stream ends only after a
// final block.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
