package channel

import (
	"encoding/binary"

	"github.com/cznic/s64/internal/codec"
	"github.com/cznic/s64/internal/index"
	"github.com/cznic/s64/internal/serr"
)

// buildSink wires this channel's ring.Sink to its own codec/append-path
// calls, dispatching on kind (spec.md §4.9, §4.11).
func (c *Channel) buildSink() {
	c.sink.Append = c.appendItems
	c.sink.ReadDisk = c.diskRead
	c.sink.LastTimeOnDisk = func() int64 { return c.Writer.LastTimeOnDisk }
}

// appendItems is the write side of the sink: it submits n (time, item)
// pairs, already time-ordered, to the append-tree data blocks, opening a
// fresh block whenever the currently open one has no more room (spec.md
// §4.7, §4.9).
func (c *Channel) appendItems(times []int64, flat []byte, n, itemSize int) (int, error) {
	switch Kind(c.Head.Kind) {
	case EventRise, EventFall, EventBoth:
		return c.appendEvent(times[:n])
	case Marker:
		return c.appendMarker(decodeMarkerRecs(times[:n], flat, n))
	case TextMark, RealMark, AdcMark:
		return c.appendExtMark(decodeExtRecs(times[:n], flat, n, itemSize))
	case Adc, RealWave:
		return c.appendWave(times[:n], flat[:n*itemSize])
	}
	return 0, serr.New(serr.ChannelType, "channel.Channel.appendItems", c.Head.Kind)
}

func decodeMarkerRecs(times []int64, flat []byte, n int) []codec.MarkerRec {
	recs := make([]codec.MarkerRec, n)
	for i := range recs {
		var codes [4]byte
		copy(codes[:], flat[i*codec.MarkerRecordSize+8:i*codec.MarkerRecordSize+12])
		recs[i] = codec.MarkerRec{Time: times[i], Codes: codes}
	}
	return recs
}

func decodeExtRecs(times []int64, flat []byte, n, itemSize int) []codec.ExtRec {
	recs := make([]codec.ExtRec, n)
	for i := range recs {
		off := i * itemSize
		var codes [4]byte
		copy(codes[:], flat[off+8:off+12])
		recs[i] = codec.ExtRec{Time: times[i], Codes: codes, Payload: flat[off+16 : off+itemSize]}
	}
	return recs
}

// ensurePending returns this channel's currently open append block,
// allocating a fresh in-memory one if none is open.
func (c *Channel) ensurePending(firstTime int64) {
	if c.pendingRaw != nil {
		return
	}
	c.pendingRaw = make([]byte, c.DBSIZE)
	c.pendingOff = 0
	c.pendingFirst = firstTime
}

// flushPending persists the currently open block (reusing a deleted
// channel's old block while in reuse mode, allocating fresh space, or
// rewriting a block in place if it already has an offset) and updates the
// channel header's block counts and last-written time (spec.md §4.7, §3's
// "subsequent writes reuse old blocks until exhausted").
func (c *Channel) flushPending(lastTime int64) error {
	wasNew := c.pendingOff == 0
	pb := &index.PendingBlock{Off: c.pendingOff, FirstTime: c.pendingFirst, Raw: c.pendingRaw}

	reused := false
	if wasNew && c.EmptyForReuse() {
		err := c.Writer.AppendBlock(pb, true)
		switch {
		case err == nil:
			reused = true
		case isReuseExhausted(err):
			// Fall through to a fresh allocation below.
		default:
			return err
		}
	}
	if !reused {
		if err := c.Writer.AppendBlock(pb, false); err != nil {
			return err
		}
	}

	c.pendingOff = pb.Off
	c.Writer.SetLastTimeOnDisk(lastTime)
	c.Head.LastTimeOnDisk = lastTime
	if wasNew {
		c.Head.ActiveBlocks++
		if !reused {
			c.Head.AllocatedBlocks++
		}
	}
	return nil
}

// isReuseExhausted reports whether err is AppendPath's "no more reusable
// blocks" signal, the point at which a reset channel must start allocating
// fresh blocks again (spec.md §3).
func isReuseExhausted(err error) bool {
	code, ok := serr.AsCode(err)
	return ok && code == serr.NoBlock
}

// closePending marks the open block as no longer accepting writes, so the
// next append opens a fresh one.
func (c *Channel) closePending() {
	c.pendingRaw = nil
	c.pendingOff = 0
}

func (c *Channel) appendEvent(times []int64) (int, error) {
	ev := codec.Event{DBSIZE: c.DBSIZE}
	total := 0
	for total < len(times) {
		c.ensurePending(times[total])
		accepted := ev.AddData(c.pendingRaw, times[total:])
		if accepted == 0 {
			c.closePending()
			continue
		}
		total += accepted
		if err := c.flushPending(ev.LastTime(c.pendingRaw)); err != nil {
			return total, err
		}
	}
	return total, nil
}

func (c *Channel) appendMarker(recs []codec.MarkerRec) (int, error) {
	mk := codec.Marker{DBSIZE: c.DBSIZE}
	total := 0
	for total < len(recs) {
		c.ensurePending(recs[total].Time)
		accepted := mk.AddData(c.pendingRaw, recs[total:])
		if accepted == 0 {
			c.closePending()
			continue
		}
		total += accepted
		if err := c.flushPending(mk.LastTime(c.pendingRaw)); err != nil {
			return total, err
		}
	}
	return total, nil
}

func (c *Channel) extMarkCodec() codec.ExtMark {
	k := Kind(c.Head.Kind)
	var ek codec.ExtKind
	switch k {
	case RealMark:
		ek = codec.RealMark
	case AdcMark:
		ek = codec.AdcMark
	default:
		ek = codec.TextMark
	}
	return codec.ExtMark{DBSIZE: c.DBSIZE, Kind: ek, Rows: c.Head.Rows, Cols: c.Head.Cols, ObjSize: int(c.Head.ItemBytes), TickDivide: c.Head.SampleInterval}
}

func (c *Channel) appendExtMark(recs []codec.ExtRec) (int, error) {
	em := c.extMarkCodec()
	total := 0
	for total < len(recs) {
		c.ensurePending(recs[total].Time)
		accepted := em.AddData(c.pendingRaw, recs[total:])
		if accepted == 0 {
			c.closePending()
			continue
		}
		total += accepted
		if err := c.flushPending(em.LastTime(c.pendingRaw)); err != nil {
			return total, err
		}
	}
	return total, nil
}

// appendWave splits times/samples into maximal tick-contiguous runs
// before handing each to the wave codec, which itself splits a run across
// blocks as capacity requires (spec.md §4.8).
func (c *Channel) appendWave(times []int64, samples []byte) (int, error) {
	wv := codec.Wave{DBSIZE: c.DBSIZE, Kind: waveKind(Kind(c.Head.Kind)), TickDivide: c.Head.SampleInterval}
	ss := wv.SampleSize()
	total := 0
	for total < len(times) {
		runLen := 1
		for total+runLen < len(times) && times[total+runLen] == times[total+runLen-1]+c.Head.SampleInterval {
			runLen++
		}
		firstTime := times[total]
		runSamples := samples[total*ss : (total+runLen)*ss]
		accepted, err := c.appendWaveRun(wv, firstTime, runSamples)
		if err != nil {
			return total, err
		}
		total += accepted
		if accepted < runLen {
			return total, nil
		}
	}
	return total, nil
}

func (c *Channel) appendWaveRun(wv codec.Wave, firstTime int64, samples []byte) (int, error) {
	ss := wv.SampleSize()
	total := 0
	for total*ss < len(samples) {
		c.ensurePending(firstTime)
		accepted := wv.AddData(c.pendingRaw, firstTime, samples[total*ss:])
		if accepted == 0 {
			c.closePending()
			continue
		}
		total += accepted
		firstTime += int64(accepted) * wv.TickDivide
		if err := c.flushPending(wv.LastTime(c.pendingRaw)); err != nil {
			return total, err
		}
	}
	return total, nil
}

func waveKind(k Kind) codec.WaveKind {
	if k == RealWave {
		return codec.RealWave
	}
	return codec.AdcWave
}

// diskRead is the read side of the sink: it walks the read tree from the
// block containing `from`, copying items into a generic (times, flat)
// pair up to max, for every kind (spec.md §4.6, §4.9).
func (c *Channel) diskRead(from, upto int64, max int) (times []int64, flat []byte, n int, err error) {
	if c.Head.ActiveBlocks == 0 || max <= 0 {
		return nil, nil, 0, nil
	}
	if err := c.Reader.Seek(from); err != nil {
		if code, ok := serr.AsCode(err); ok && code == serr.PastEof {
			return nil, nil, 0, nil
		}
		return nil, nil, 0, err
	}

	switch Kind(c.Head.Kind) {
	case EventRise, EventFall, EventBoth:
		return c.diskReadEvent(from, upto, max)
	case Marker:
		return c.diskReadMarker(from, upto, max, nil)
	case TextMark, RealMark, AdcMark:
		return c.diskReadExtMark(from, upto, max, nil)
	case Adc, RealWave:
		return c.diskReadWave(from, upto, max)
	}
	return nil, nil, 0, serr.New(serr.ChannelType, "channel.Channel.diskRead", c.Head.Kind)
}

func (c *Channel) diskReadEvent(from, upto int64, max int) ([]int64, []byte, int, error) {
	ev := codec.Event{DBSIZE: c.DBSIZE}
	var times []int64
	r := &codec.Range{From: from, Upto: upto, Max: max}
	for len(times) < max {
		dst := make([]int64, max-len(times))
		r.Max = max - len(times)
		got, err := ev.GetData(c.Reader.DataBlock, dst, r)
		if err != nil {
			return times, flatFromTimes(times, 8), len(times), err
		}
		times = append(times, dst[:got]...)
		if len(times) >= max || got == 0 {
			break
		}
		if err := c.Reader.Next(); err != nil {
			break
		}
	}
	return times, flatFromTimes(times, 8), len(times), nil
}

func flatFromTimes(times []int64, itemSize int) []byte {
	flat := make([]byte, len(times)*itemSize)
	for i, t := range times {
		binary.LittleEndian.PutUint64(flat[i*itemSize:i*itemSize+8], uint64(t))
	}
	return flat
}

func (c *Channel) diskReadMarker(from, upto int64, max int, f codec.Filter) ([]int64, []byte, int, error) {
	mk := codec.Marker{DBSIZE: c.DBSIZE}
	var recs []codec.MarkerRec
	r := &codec.Range{From: from, Upto: upto}
	for len(recs) < max {
		dst := make([]codec.MarkerRec, max-len(recs))
		r.Max = max - len(recs)
		got, err := mk.GetData(c.Reader.DataBlock, dst, r, f)
		if err != nil {
			return timesOf(recs), flatFromMarkers(recs), len(recs), err
		}
		recs = append(recs, dst[:got]...)
		if len(recs) >= max || got == 0 {
			break
		}
		if err := c.Reader.Next(); err != nil {
			break
		}
	}
	return timesOf(recs), flatFromMarkers(recs), len(recs), nil
}

func timesOf(recs []codec.MarkerRec) []int64 {
	t := make([]int64, len(recs))
	for i, r := range recs {
		t[i] = r.Time
	}
	return t
}

func flatFromMarkers(recs []codec.MarkerRec) []byte {
	flat := make([]byte, len(recs)*codec.MarkerRecordSize)
	for i, r := range recs {
		off := i * codec.MarkerRecordSize
		binary.LittleEndian.PutUint64(flat[off:off+8], uint64(r.Time))
		copy(flat[off+8:off+12], r.Codes[:])
	}
	return flat
}

func (c *Channel) diskReadExtMark(from, upto int64, max int, f codec.Filter) ([]int64, []byte, int, error) {
	em := c.extMarkCodec()
	var recs []codec.ExtRec
	r := &codec.Range{From: from, Upto: upto}
	for len(recs) < max {
		r.Max = max - len(recs)
		_, err := em.GetData(c.Reader.DataBlock, r, f, func(t int64, codes [4]byte, payload []byte) bool {
			cp := append([]byte(nil), payload...)
			recs = append(recs, codec.ExtRec{Time: t, Codes: codes, Payload: cp})
			return len(recs) < max
		})
		if err != nil {
			return timesOfExt(recs), flatFromExt(recs, em.ObjSize), len(recs), err
		}
		if len(recs) >= max {
			break
		}
		if err := c.Reader.Next(); err != nil {
			break
		}
	}
	return timesOfExt(recs), flatFromExt(recs, em.ObjSize), len(recs), nil
}

func timesOfExt(recs []codec.ExtRec) []int64 {
	t := make([]int64, len(recs))
	for i, r := range recs {
		t[i] = r.Time
	}
	return t
}

func flatFromExt(recs []codec.ExtRec, objSize int) []byte {
	flat := make([]byte, len(recs)*objSize)
	for i, r := range recs {
		off := i * objSize
		binary.LittleEndian.PutUint64(flat[off:off+8], uint64(r.Time))
		copy(flat[off+8:off+12], r.Codes[:])
		copy(flat[off+16:off+objSize], r.Payload)
	}
	return flat
}

func (c *Channel) diskReadWave(from, upto int64, max int) ([]int64, []byte, int, error) {
	wv := codec.Wave{DBSIZE: c.DBSIZE, Kind: waveKind(Kind(c.Head.Kind)), TickDivide: c.Head.SampleInterval}
	ss := wv.SampleSize()
	var times []int64
	var flat []byte
	r := &codec.Range{From: from, Upto: upto}
	for len(times) < max {
		r.Max = max - len(times)
		_, err := wv.GetData(c.Reader.DataBlock, r, func(tFirst int64, seg []byte) bool {
			n := len(seg) / ss
			for i := 0; i < n && len(times) < max; i++ {
				times = append(times, tFirst+int64(i)*wv.TickDivide)
				flat = append(flat, seg[i*ss:(i+1)*ss]...)
			}
			return len(times) < max
		})
		if err != nil {
			return times, flat, len(times), err
		}
		if len(times) >= max {
			break
		}
		if err := c.Reader.Next(); err != nil {
			break
		}
	}
	return times, flat, len(times), nil
}
