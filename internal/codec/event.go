package codec

import (
	"encoding/binary"

	"github.com/cznic/s64/internal/block"
)

// MaxEvent is the number of i64 timestamps a data block can hold
// (spec.md §4.8: MAX_EVENT = (DBSIZE-16)/8).
func MaxEvent(dbsize int) int { return (dbsize - block.HeaderSize) / 8 }

// Event is the dense-timestamp-array codec for EventRise/EventFall/
// EventBoth-raw channels (spec.md §4.8).
type Event struct {
	DBSIZE int
}

// FirstTime implements index.DataBlockInfo.
func (c Event) FirstTime(raw []byte) int64 { return c.timeAt(raw, 0) }

// LastTime implements index.DataBlockInfo.
func (c Event) LastTime(raw []byte) int64 {
	n := int(block.Decode(raw).NItems)
	if n == 0 {
		return NoTime
	}
	return c.timeAt(raw, n-1)
}

func (c Event) timeAt(raw []byte, i int) int64 {
	off := block.HeaderSize + i*8
	return int64(binary.LittleEndian.Uint64(raw[off : off+8]))
}

// AddData appends times (already sorted, strictly increasing, and
// strictly greater than the block's current last time) and returns how
// many were accepted (spec.md §4.8).
func (c Event) AddData(raw []byte, times []int64) int {
	hdr := block.Decode(raw)
	n := int(hdr.NItems)
	cap := MaxEvent(len(raw))
	last := NoTime
	if n > 0 {
		last = c.timeAt(raw, n-1)
	}
	accepted := 0
	for _, t := range times {
		if n >= cap {
			break
		}
		if last != NoTime && t <= last {
			break
		}
		off := block.HeaderSize + n*8
		binary.LittleEndian.PutUint64(raw[off:off+8], uint64(t))
		last = t
		n++
		accepted++
	}
	hdr.NItems = uint32(n)
	hdr.Encode(raw)
	return accepted
}

// GetData copies times in [r.From, r.Upto) into dst, up to r.Max, and
// returns how many were copied.
func (c Event) GetData(raw []byte, dst []int64, r *Range) (int, error) {
	n := int(block.Decode(raw).NItems)
	lo := c.lowerBound(raw, n, r.From)
	copied := 0
	for i := lo; i < n && copied < len(dst) && copied < r.Max; i++ {
		if r.yielded() {
			return copied, ErrCallAgain
		}
		t := c.timeAt(raw, i)
		if t >= r.Upto {
			break
		}
		dst[copied] = t
		copied++
	}
	return copied, nil
}

func (c Event) lowerBound(raw []byte, n int, t int64) int {
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		if c.timeAt(raw, mid) < t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// PrevNTime implements spec.md §4.8's prev_n_time for dense event blocks:
// skip r.Max items backward from r.Upto (exclusive), no earlier than
// r.From. It reports ok=false (and reduces r.Max by what it could
// consume) when the block is exhausted before the budget, signaling the
// caller to continue into the previous block.
func (c Event) PrevNTime(raw []byte, r *Range) (t int64, ok bool) {
	n := int(block.Decode(raw).NItems)
	hi := c.lowerBound(raw, n, r.Upto) // first index >= Upto
	idx := hi - 1 - r.Max
	if idx < 0 {
		r.Max -= hi
		return NoTime, false
	}
	t = c.timeAt(raw, idx)
	if t < r.From {
		return NoTime, true
	}
	return t, true
}
