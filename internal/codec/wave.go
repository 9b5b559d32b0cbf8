package codec

import (
	"encoding/binary"
	"math"

	"github.com/cznic/s64/internal/block"
)

// WaveKind distinguishes the element type of a waveform block.
type WaveKind uint8

const (
	AdcWave WaveKind = iota
	RealWave
)

const runHeaderFull = 16 // first_time i64 + n u32 + pad u32

// Wave is the run-based codec for Adc/RealWave channels (spec.md §4.8): a
// sequence of runs, each {first_time i64, n u32, pad u32} followed by n
// samples, the whole run padded to a multiple of 8 bytes. The block
// header's n_items counts runs, not samples.
type Wave struct {
	DBSIZE      int
	Kind        WaveKind
	TickDivide  int64 // sample spacing in ticks
}

func (c Wave) sampleSize() int {
	if c.Kind == RealWave {
		return 4
	}
	return 2
}

// SampleSize reports the byte width of one sample: 4 for RealWave, 2 for
// AdcWave.
func (c Wave) SampleSize() int { return c.sampleSize() }

func runBytes(n int, sampleSize int) int {
	total := runHeaderFull + n*sampleSize
	return (total + 7) &^ 7
}

type runHeader struct {
	FirstTime int64
	N         uint32
}

func (c Wave) readRunHeader(raw []byte, off int) runHeader {
	return runHeader{
		FirstTime: int64(binary.LittleEndian.Uint64(raw[off : off+8])),
		N:         binary.LittleEndian.Uint32(raw[off+8 : off+12]),
	}
}

func (c Wave) writeRunHeader(raw []byte, off int, h runHeader) {
	binary.LittleEndian.PutUint64(raw[off:off+8], uint64(h.FirstTime))
	binary.LittleEndian.PutUint32(raw[off+8:off+12], h.N)
	binary.LittleEndian.PutUint32(raw[off+12:off+16], 0)
}

// runOffsets walks the block's runs, invoking yield(off, hdr) for each;
// stops early if yield returns false.
func (c Wave) runOffsets(raw []byte, nRuns int, yield func(off int, hdr runHeader) bool) {
	off := block.HeaderSize
	for i := 0; i < nRuns; i++ {
		hdr := c.readRunHeader(raw, off)
		if !yield(off, hdr) {
			return
		}
		off += runBytes(int(hdr.N), c.sampleSize())
	}
}

// FirstTime implements index.DataBlockInfo.
func (c Wave) FirstTime(raw []byte) int64 {
	if block.Decode(raw).NItems == 0 {
		return NoTime
	}
	return c.readRunHeader(raw, block.HeaderSize).FirstTime
}

// LastTime implements index.DataBlockInfo.
func (c Wave) LastTime(raw []byte) int64 {
	nRuns := int(block.Decode(raw).NItems)
	if nRuns == 0 {
		return NoTime
	}
	var last runHeader
	var lastOff int
	c.runOffsets(raw, nRuns, func(off int, hdr runHeader) bool {
		last, lastOff = hdr, off
		return true
	})
	_ = lastOff
	return last.FirstTime + int64(last.N-1)*c.TickDivide
}

// freeBytes returns how many bytes remain after the last run.
func (c Wave) freeBytes(raw []byte, nRuns int) int {
	used := block.HeaderSize
	c.runOffsets(raw, nRuns, func(off int, hdr runHeader) bool {
		used = off + runBytes(int(hdr.N), c.sampleSize())
		return true
	})
	return len(raw) - used
}

// AddData appends samples starting at firstTime. If firstTime equals the
// block's current last time plus TickDivide, the current run is
// extended; otherwise, if firstTime is strictly after the last time and
// room remains, a new run starts (spec.md §4.8). Returns the number of
// samples accepted.
func (c Wave) AddData(raw []byte, firstTime int64, samples []byte) int {
	hdr := block.Decode(raw)
	nRuns := int(hdr.NItems)
	last := c.LastTime(raw)

	if nRuns > 0 && last != NoTime && firstTime == last+c.TickDivide {
		return c.extendLastRun(raw, nRuns, samples)
	}
	if last != NoTime && firstTime <= last {
		return 0
	}
	return c.startNewRun(raw, nRuns, firstTime, samples)
}

func (c Wave) extendLastRun(raw []byte, nRuns int, samples []byte) int {
	var lastOff int
	var lastHdr runHeader
	c.runOffsets(raw, nRuns, func(off int, hdr runHeader) bool {
		lastOff, lastHdr = off, hdr
		return true
	})
	ss := c.sampleSize()
	free := c.freeBytes(raw, nRuns) + (runBytes(int(lastHdr.N), ss) - (runHeaderFull + int(lastHdr.N)*ss))
	maxExtra := free / ss
	extra := len(samples) / ss
	if extra > maxExtra {
		extra = maxExtra
	}
	if extra <= 0 {
		return 0
	}
	// Growing a run in place requires shifting nothing (it's the last
	// run), but its padding may need to move: recompute by rewriting
	// the tail.
	oldDataEnd := lastOff + runHeaderFull + int(lastHdr.N)*ss
	copy(raw[oldDataEnd:oldDataEnd+extra*ss], samples[:extra*ss])
	lastHdr.N += uint32(extra)
	c.writeRunHeader(raw, lastOff, lastHdr)
	return extra
}

func (c Wave) startNewRun(raw []byte, nRuns int, firstTime int64, samples []byte) int {
	ss := c.sampleSize()
	free := c.freeBytes(raw, nRuns)
	maxN := (free - runHeaderFull) / ss
	if maxN <= 0 {
		return 0
	}
	n := len(samples) / ss
	if n > maxN {
		n = maxN
	}
	var off int
	c.runOffsets(raw, nRuns, func(o int, hdr runHeader) bool {
		off = o + runBytes(int(hdr.N), ss)
		return true
	})
	if nRuns == 0 {
		off = block.HeaderSize
	}
	c.writeRunHeader(raw, off, runHeader{FirstTime: firstTime, N: uint32(n)})
	copy(raw[off+runHeaderFull:off+runHeaderFull+n*ss], samples[:n*ss])

	hdr := block.Decode(raw)
	hdr.NItems = uint32(nRuns + 1)
	hdr.Encode(raw)
	return n
}

// GetData delivers samples in [r.From, r.Upto), up to r.Max, by invoking
// yield once per contiguous run segment with tFirst (the time of the
// segment's first sample) and the segment's raw sample bytes; it returns
// the number of samples delivered and stops early when yield returns
// false.
func (c Wave) GetData(raw []byte, r *Range, yield func(tFirst int64, samples []byte) bool) (int, error) {
	nRuns := int(block.Decode(raw).NItems)
	ss := c.sampleSize()
	copied := 0
	var stopErr error
	c.runOffsets(raw, nRuns, func(off int, hdr runHeader) bool {
		if r.yielded() {
			stopErr = ErrCallAgain
			return false
		}
		runEnd := hdr.FirstTime + int64(hdr.N)*c.TickDivide
		if runEnd <= r.From || hdr.FirstTime >= r.Upto {
			return true
		}
		startIdx := 0
		if r.From > hdr.FirstTime {
			startIdx = int((r.From - hdr.FirstTime + c.TickDivide - 1) / c.TickDivide)
		}
		endIdx := int(hdr.N)
		if r.Upto < runEnd {
			endIdx = int((r.Upto - hdr.FirstTime + c.TickDivide - 1) / c.TickDivide)
		}
		if endIdx > int(hdr.N) {
			endIdx = int(hdr.N)
		}
		if endIdx-startIdx > r.Max-copied {
			endIdx = startIdx + (r.Max - copied)
		}
		if endIdx <= startIdx {
			return copied < r.Max
		}
		segOff := off + runHeaderFull + startIdx*ss
		segLen := (endIdx - startIdx) * ss
		tFirst := hdr.FirstTime + int64(startIdx)*c.TickDivide
		if !yield(tFirst, raw[segOff:segOff+segLen]) {
			return false
		}
		copied += endIdx - startIdx
		return copied < r.Max
	})
	return copied, stopErr
}

// ChangeWave overwrites samples in place at the nearest-sample-aligned
// time, without crossing runs or extending the block (spec.md §4.8).
// Returns the number of samples actually overwritten.
func (c Wave) ChangeWave(raw []byte, tFrom int64, samples []byte) int {
	nRuns := int(block.Decode(raw).NItems)
	ss := c.sampleSize()
	overwritten := 0
	c.runOffsets(raw, nRuns, func(off int, hdr runHeader) bool {
		runEnd := hdr.FirstTime + int64(hdr.N)*c.TickDivide
		if tFrom < hdr.FirstTime || tFrom >= runEnd {
			return true
		}
		startIdx := int((tFrom - hdr.FirstTime) / c.TickDivide)
		avail := int(hdr.N) - startIdx
		n := len(samples) / ss
		if n > avail {
			n = avail
		}
		segOff := off + runHeaderFull + startIdx*ss
		copy(raw[segOff:segOff+n*ss], samples[:n*ss])
		overwritten = n
		return false
	})
	return overwritten
}

// PrevNTime implements prev_n_time for run-based waveform blocks (spec.md
// §4.8): walks backward from r.Upto (exclusive) across runs, no earlier
// than r.From, and returns the time of the earliest of the r.Max most
// recent samples. Adc/RealWave blocks are already a sample stream, so
// there is no separate as-wave mode here.
func (c Wave) PrevNTime(raw []byte, r *Range) (t int64, ok bool) {
	nRuns := int(block.Decode(raw).NItems)
	var runs []runHeader
	c.runOffsets(raw, nRuns, func(off int, hdr runHeader) bool {
		runs = append(runs, hdr)
		return true
	})

	remaining := r.Max
	for i := len(runs) - 1; i >= 0; i-- {
		hdr := runs[i]
		if hdr.FirstTime >= r.Upto {
			continue
		}
		visible := int(hdr.N)
		runEnd := hdr.FirstTime + int64(hdr.N)*c.TickDivide
		if runEnd > r.Upto {
			visible = int((r.Upto-hdr.FirstTime-1)/c.TickDivide) + 1
			if visible > int(hdr.N) {
				visible = int(hdr.N)
			}
		}
		if visible <= 0 {
			continue
		}
		if remaining <= visible {
			idx := visible - remaining
			landed := hdr.FirstTime + int64(idx)*c.TickDivide
			r.Max = 0
			if landed < r.From {
				return NoTime, true
			}
			return landed, true
		}
		remaining -= visible
		if hdr.FirstTime < r.From {
			r.Max = remaining
			return NoTime, true
		}
	}
	r.Max = remaining
	return NoTime, false
}

// RealSampleAt decodes a float32 sample from a raw segment returned by
// GetData, for RealWave channels.
func RealSampleAt(seg []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(seg[i*4 : i*4+4]))
}

// AdcSampleAt decodes an int16 sample from a raw segment returned by
// GetData, for Adc-wave channels.
func AdcSampleAt(seg []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(seg[i*2 : i*2+2]))
}
