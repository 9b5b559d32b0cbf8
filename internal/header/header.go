// Package header implements the file header described in spec.md §4.4: a
// fixed struct, a user area, the channel-header array, and the
// string-store image, made to appear as one contiguous logical blob even
// though physically only the first DBSIZE bytes of the file are
// contiguous and the rest lives in a chain of up to 128 overflow blocks.
package header

import (
	"encoding/binary"
	"math"

	"github.com/cznic/s64/internal/serr"
)

// MaxOverflowBlocks bounds the overflow chain (spec.md §4.4: "up to 128").
const MaxOverflowBlocks = 128

// FixedSize is the space, in bytes, reserved for Fixed at the start of the
// header blob. Encode and Decode use its first 68+MaxOverflowBlocks*8
// bytes; the last 8 are unused.
const FixedSize = 8 + 8 + 8 + 8 + 4 + 4 + 8 + 8 + 8 + 8 + 4 + MaxOverflowBlocks*8

// Fixed is the file header's fixed-layout struct (spec.md §4.4), the part
// that precedes the user area and is never resized.
type Fixed struct {
	TickPeriod    float64 // seconds per tick
	Created       int64   // creation time, unix seconds
	MaxTime       int64   // file-wide max written time, -1 if empty
	NextBlockOff  int64   // persisted block.Allocator.NextBlockOff
	NextSubOff    int64   // persisted block.Allocator.NextSubOff
	NumChannels   uint32  // size of the channel-header slot array
	UserAreaSize  uint32  // bytes of user area following Fixed
	Creator       [8]byte // opaque creator-application string
	FormatMajor   uint8
	FormatMinor   uint8
	_             [6]byte // reserved/padding to keep the struct 8-aligned
	OverflowCount uint32
	Overflow      [MaxOverflowBlocks]int64 // byte offsets of overflow blocks
}

// Encode serializes f into buf, which must be at least FixedSize bytes.
func (f *Fixed) Encode(buf []byte) {
	_ = buf[FixedSize-1]
	le := binary.LittleEndian
	le.PutUint64(buf[0:8], math.Float64bits(f.TickPeriod))
	le.PutUint64(buf[8:16], uint64(f.Created))
	le.PutUint64(buf[16:24], uint64(f.MaxTime))
	le.PutUint64(buf[24:32], uint64(f.NextBlockOff))
	le.PutUint64(buf[32:40], uint64(f.NextSubOff))
	le.PutUint32(buf[40:44], f.NumChannels)
	le.PutUint32(buf[44:48], f.UserAreaSize)
	copy(buf[48:56], f.Creator[:])
	buf[56] = f.FormatMajor
	buf[57] = f.FormatMinor
	le.PutUint32(buf[64:68], f.OverflowCount)
	off := 68
	for i := 0; i < MaxOverflowBlocks; i++ {
		le.PutUint64(buf[off:off+8], uint64(f.Overflow[i]))
		off += 8
	}
}

// Decode deserializes a Fixed from buf.
func Decode(buf []byte) (*Fixed, error) {
	if len(buf) < FixedSize {
		return nil, serr.New(serr.CorruptFile, "header.Decode", "short buffer")
	}
	le := binary.LittleEndian
	f := &Fixed{}
	f.TickPeriod = math.Float64frombits(le.Uint64(buf[0:8]))
	f.Created = int64(le.Uint64(buf[8:16]))
	f.MaxTime = int64(le.Uint64(buf[16:24]))
	f.NextBlockOff = int64(le.Uint64(buf[24:32]))
	f.NextSubOff = int64(le.Uint64(buf[32:40]))
	f.NumChannels = le.Uint32(buf[40:44])
	f.UserAreaSize = le.Uint32(buf[44:48])
	copy(f.Creator[:], buf[48:56])
	f.FormatMajor = buf[56]
	f.FormatMinor = buf[57]
	f.OverflowCount = le.Uint32(buf[64:68])
	off := 68
	for i := 0; i < MaxOverflowBlocks; i++ {
		f.Overflow[i] = int64(le.Uint64(buf[off : off+8]))
		off += 8
	}
	if f.OverflowCount > MaxOverflowBlocks {
		return nil, serr.New(serr.CorruptFile, "header.Decode", "overflow count out of range")
	}
	return f, nil
}

// RepairV1OverflowCount implements spec.md §4.4's bug-compat rule: a file
// written by format version 1.0 may under-report the overflow blocks
// needed to hold its string table. If declaredLen would fit within
// MaxOverflowBlocks overflow blocks, but not within the currently recorded
// OverflowCount, the count is silently raised (not an error) so the file
// still opens.
func (f *Fixed) RepairV1OverflowCount(dbsize int, declaredLen uint32) {
	if f.FormatMajor != 1 || f.FormatMinor != 0 {
		return
	}
	per := uint32(dbsize - 16)
	capacity := per + f.OverflowCount*per
	if declaredLen <= capacity {
		return
	}
	need := (declaredLen - per + per - 1) / per
	if need > MaxOverflowBlocks {
		need = MaxOverflowBlocks
	}
	if need > f.OverflowCount {
		f.OverflowCount = need
	}
}

// RequiredOverflowBlocks reports how many overflow blocks a logical header
// blob of totalLen bytes needs beyond block 0 (spec.md §4.4). The caller
// grows Fixed.Overflow/OverflowCount to at least this count, allocating
// fresh blocks from the file's block.Allocator, before writing or reading
// any region that reaches into them.
func RequiredOverflowBlocks(dbsize int, totalLen int64) (uint32, error) {
	per := int64(dbsize - 16)
	if totalLen <= per {
		return 0, nil
	}
	need := (totalLen - per + per - 1) / per
	if need > MaxOverflowBlocks {
		return 0, serr.New(serr.PastEof, "header.RequiredOverflowBlocks", totalLen)
	}
	return uint32(need), nil
}

// Transfer is one physical I/O span backing a slice of the logical header
// blob.
type Transfer struct {
	PhysOff int64
	Length  int
}

// HeadOffset converts a logical, contiguous byte range [byteOff,
// byteOff+length) of the header blob (Fixed + user area + channel-header
// array + string-store image, in that order, all following the 16-byte
// block header of block 0) into the physical transfers needed to read or
// write it, per spec.md §4.4.
func (f *Fixed) HeadOffset(dbsize int, byteOff int64, length int) ([]Transfer, error) {
	per := int64(dbsize - 16)
	maxLen := per + int64(f.OverflowCount)*per
	if byteOff < 0 || int64(length) < 0 || byteOff+int64(length) > maxLen {
		return nil, serr.New(serr.PastEof, "header.HeadOffset", byteOff+int64(length))
	}

	var out []Transfer
	remaining := int64(length)
	logical := byteOff
	for remaining > 0 {
		block := logical / per
		within := logical % per
		avail := per - within
		n := avail
		if n > remaining {
			n = remaining
		}
		var physBase int64
		if block == 0 {
			physBase = 16
		} else {
			physBase = f.Overflow[block-1] + 16
		}
		out = append(out, Transfer{PhysOff: physBase + within, Length: int(n)})
		logical += n
		remaining -= n
	}
	return out, nil
}
