package codec

import (
	"encoding/binary"

	"github.com/cznic/s64/internal/block"
)

// MarkerRecordSize is the fixed record size for plain marker blocks
// (spec.md §4.8: {time i64, codes [4]u8, reserved i32} = 16 bytes).
const MarkerRecordSize = 16

// MaxMark is the number of marker records a data block can hold
// (spec.md §4.8: MAX_MARK = (DBSIZE-16)/16).
func MaxMark(dbsize int) int { return (dbsize - block.HeaderSize) / MarkerRecordSize }

// MarkerRec is one decoded marker record.
type MarkerRec struct {
	Time  int64
	Codes [4]byte
}

// Marker is the fixed-size-record codec for Marker channels (spec.md
// §4.8).
type Marker struct{ DBSIZE int }

func (c Marker) recAt(raw []byte, i int) MarkerRec {
	off := block.HeaderSize + i*MarkerRecordSize
	var rec MarkerRec
	rec.Time = int64(binary.LittleEndian.Uint64(raw[off : off+8]))
	copy(rec.Codes[:], raw[off+8:off+12])
	return rec
}

func (c Marker) putRec(raw []byte, i int, rec MarkerRec) {
	off := block.HeaderSize + i*MarkerRecordSize
	binary.LittleEndian.PutUint64(raw[off:off+8], uint64(rec.Time))
	copy(raw[off+8:off+12], rec.Codes[:])
	binary.LittleEndian.PutUint32(raw[off+12:off+16], 0)
}

// FirstTime implements index.DataBlockInfo.
func (c Marker) FirstTime(raw []byte) int64 { return c.recAt(raw, 0).Time }

// LastTime implements index.DataBlockInfo.
func (c Marker) LastTime(raw []byte) int64 {
	n := int(block.Decode(raw).NItems)
	if n == 0 {
		return NoTime
	}
	return c.recAt(raw, n-1).Time
}

func (c Marker) lowerBound(raw []byte, n int, t int64) int {
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		if c.recAt(raw, mid).Time < t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// AddData appends records in time order, returning how many fit
// (spec.md §4.8).
func (c Marker) AddData(raw []byte, recs []MarkerRec) int {
	hdr := block.Decode(raw)
	n := int(hdr.NItems)
	cap := MaxMark(len(raw))
	last := NoTime
	if n > 0 {
		last = c.recAt(raw, n-1).Time
	}
	accepted := 0
	for _, rec := range recs {
		if n >= cap || (last != NoTime && rec.Time <= last) {
			break
		}
		c.putRec(raw, n, rec)
		last = rec.Time
		n++
		accepted++
	}
	hdr.NItems = uint32(n)
	hdr.Encode(raw)
	return accepted
}

// GetData copies records in [r.From, r.Upto), matching f if non-nil, up
// to r.Max and len(dst).
func (c Marker) GetData(raw []byte, dst []MarkerRec, r *Range, f Filter) (int, error) {
	n := int(block.Decode(raw).NItems)
	lo := c.lowerBound(raw, n, r.From)
	copied := 0
	for i := lo; i < n && copied < len(dst) && copied < r.Max; i++ {
		if r.yielded() {
			return copied, ErrCallAgain
		}
		rec := c.recAt(raw, i)
		if rec.Time >= r.Upto {
			break
		}
		if f != nil && !f.Test(rec.Codes) {
			continue
		}
		dst[copied] = rec
		copied++
	}
	return copied, nil
}

// EditMarker finds the record whose time equals t exactly and overwrites
// its codes (bytes past the timestamp), per spec.md §4.8. Returns true if
// found.
func (c Marker) EditMarker(raw []byte, t int64, newCodes [4]byte) bool {
	n := int(block.Decode(raw).NItems)
	idx := c.lowerBound(raw, n, t)
	if idx >= n || c.recAt(raw, idx).Time != t {
		return false
	}
	off := block.HeaderSize + idx*MarkerRecordSize
	copy(raw[off+8:off+12], newCodes[:])
	return true
}

// PrevNTime mirrors Event.PrevNTime for marker blocks, optionally
// filtered: it walks backward from r.Upto (exclusive), no earlier than
// r.From, counting down r.Max matching records, and returns the time of
// the record it lands on. ok is false when the block runs out of
// matching records before the budget (r.Max is reduced by the count
// consumed, so the caller can continue into the previous block).
func (c Marker) PrevNTime(raw []byte, r *Range, f Filter) (t int64, ok bool) {
	n := int(block.Decode(raw).NItems)
	hi := c.lowerBound(raw, n, r.Upto)
	for i := hi - 1; i >= 0; i-- {
		rec := c.recAt(raw, i)
		if rec.Time < r.From {
			return NoTime, true
		}
		if f != nil && !f.Test(rec.Codes) {
			continue
		}
		if r.Max == 0 {
			return rec.Time, true
		}
		r.Max--
	}
	return NoTime, false
}
