// Package block implements the fixed-size data/lookup block layout shared
// by every channel: the 16-byte block header, the block allocator, and the
// Filer abstraction blocks are read from and written to.
package block

import "encoding/binary"

const (
	// DBSIZE is the default data block size in bytes.
	DBSIZE = 64 * 1024

	// DLSIZE is the default lookup (sub-allocated) block size in bytes.
	DLSIZE = 4 * 1024

	// HeaderSize is the size, in bytes, of the 16-byte block header that
	// precedes the payload of every block.
	HeaderSize = 16

	// FileChan is the sentinel channel number stamped on file-header blocks.
	FileChan = 0xFFFF

	// NoChan marks a free/never-used block (no channel has written it).
	NoChan = 0xFFFF
)

// FANOUT is the number of (first_time, disk_off) entries a lookup node of
// size DLSIZE can hold: (DLSIZE-16)/16.
func FANOUT(dlsize int) int { return (dlsize - HeaderSize) / 16 }

// Header is the 16-byte header every block (data or lookup) begins with.
//
//	parent_off   64 bits, DLSIZE-aligned; low bits carry level/parent_index
//	level         3 bits  (0 = data, 1..6 = lookup level)
//	parent_index  8 bits  (index of this block within parent's entry table)
//	chan         16 bits  (channel number, or FileChan for header blocks)
//	chan_id      16 bits  (reuse generation)
//	n_items      32 bits  (valid entry count)
type Header struct {
	ParentOff    int64 // byte offset of parent lookup block, DLSIZE-aligned
	Level        uint8 // 0 = data, 1..6 = lookup level
	ParentIndex  uint8 // index of this block inside parent's entry table
	Chan         uint16
	ChanID       uint16
	NItems       uint32
}

// firstBlockMagic is the identifier stamped into the first block of the
// file in place of ParentOff. Bytes 0..2 are "S64"; bytes 3 and 4 encode
// log2(DBSIZE) and log2(DLSIZE) as 'a'-1+n; byte 5 is zero; byte 6 is the
// minor version; byte 7 is the major version.
type FirstBlockMagic struct {
	DBSIZELog2 uint8
	DLSIZELog2 uint8
	Minor      uint8
	Major      uint8
}

func log2(n int) uint8 {
	var l uint8
	for n > 1 {
		n >>= 1
		l++
	}
	return l
}

// EncodeFirstBlockMagic renders the 8-byte magic/version prefix of the
// file's first block.
func EncodeFirstBlockMagic(dbsize, dlsize int, major, minor uint8) [8]byte {
	var b [8]byte
	b[0], b[1], b[2] = 'S', '6', '4'
	b[3] = 'a' - 1 + log2(dbsize)
	b[4] = 'a' - 1 + log2(dlsize)
	b[5] = 0
	b[6] = minor
	b[7] = major
	return b
}

// DecodeFirstBlockMagic parses the 8-byte prefix written by
// EncodeFirstBlockMagic. It reports ok=false if the S64 signature is absent.
func DecodeFirstBlockMagic(b [8]byte) (m FirstBlockMagic, ok bool) {
	if b[0] != 'S' || b[1] != '6' || b[2] != '4' {
		return m, false
	}
	m.DBSIZELog2 = b[3] - ('a' - 1)
	m.DLSIZELog2 = b[4] - ('a' - 1)
	m.Minor = b[6]
	m.Major = b[7]
	return m, true
}

// packParentOff folds level (3 bits) and parentIndex (8 bits) into the low
// bits of a DLSIZE-aligned offset. DLSIZE is always a power of two well
// above 2^11, so the low 11 bits of a real offset are always zero and free
// to reuse.
func packParentOff(off int64, level, parentIndex uint8) int64 {
	return (off &^ 0x7FF) | int64(level&0x7) | int64(parentIndex)<<3
}

func unpackParentOff(packed int64) (off int64, level, parentIndex uint8) {
	off = packed &^ 0x7FF
	level = uint8(packed) & 0x7
	parentIndex = uint8(packed>>3) & 0xFF
	return
}

// Encode writes the header into buf[0:16].
func (h Header) Encode(buf []byte) {
	_ = buf[15]
	packed := packParentOff(h.ParentOff, h.Level, h.ParentIndex)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(packed))
	binary.LittleEndian.PutUint16(buf[8:10], h.Chan)
	binary.LittleEndian.PutUint16(buf[10:12], h.ChanID)
	binary.LittleEndian.PutUint32(buf[12:16], h.NItems)
}

// Decode reads a header from buf[0:16].
func Decode(buf []byte) Header {
	_ = buf[15]
	packed := int64(binary.LittleEndian.Uint64(buf[0:8]))
	off, level, parentIndex := unpackParentOff(packed)
	return Header{
		ParentOff:   off,
		Level:       level,
		ParentIndex: parentIndex,
		Chan:        binary.LittleEndian.Uint16(buf[8:10]),
		ChanID:      binary.LittleEndian.Uint16(buf[10:12]),
		NItems:      binary.LittleEndian.Uint32(buf[12:16]),
	}
}

// IsFileHeader reports whether this header's Chan marks a file-header block.
func (h Header) IsFileHeader() bool { return h.Chan == FileChan }
