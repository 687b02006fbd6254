package zipfast

const (
	fileHeaderSignature      = 0x04034b50
	directoryHeaderSignature = 0x02014b50
	directoryEndSignature    = 0x06054b50
	directory64LocSignature  = 0x07064b50
	directory64EndSignature  = 0x06064b50
	fileHeaderLen            = 30 // + filename + extra
	directoryHeaderLen       = 46 // + filename + extra + comment
	directoryEndLen          = 22 // + comment
	directory64LocLen        = 20 //
	directory64EndLen        = 56 // + extra

	// Limits for non zip64 files. A field holding one of these values
	// defers to the zip64 extra field or end record.
	uint16max = (1 << 16) - 1
	uint32max = (1 << 32) - 1

	// The EOCD may be followed by a comment of at most uint16max bytes,
	// which bounds how far back from the end the signature can sit.
	maxCommentLen = uint16max

	zip64ExtraID = 0x0001 // Zip64 extended information

	// General purpose flag bits.
	flagUTF8 = 0x800 // name and comment are UTF-8
)

type directoryEnd struct {
	diskNbr            uint32
	dirDiskNbr         uint32
	dirRecordsThisDisk uint64
	directoryRecords   uint64
	directorySize      uint64
	directoryOffset    uint64 // relative to file
	commentLen         uint16
	comment            string
}

// needsZip64 reports whether any field of the classic record holds its
// sentinel, meaning the real value lives in the zip64 end record.
func (d *directoryEnd) needsZip64() bool {
	return d.diskNbr == uint16max ||
		d.dirDiskNbr == uint16max ||
		d.dirRecordsThisDisk == uint16max ||
		d.directoryRecords == uint16max ||
		d.directorySize == uint32max ||
		d.directoryOffset == uint32max
}

// directoryHeader is one central directory record with its zip64
// overrides already applied.
type directoryHeader struct {
	creatorVersion  uint16
	readerVersion   uint16
	flags           uint16
	method          uint16
	modified        uint32 // DOS time in the low half, DOS date in the high half
	crc32           uint32
	compressedSize  uint64
	size            uint64
	diskNumberStart uint32
	externalAttrs   uint32
	headerOffset    uint64
	name            []byte
}
