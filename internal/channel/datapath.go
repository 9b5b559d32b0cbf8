package channel

import (
	"github.com/cznic/s64/internal/codec"
	"github.com/cznic/s64/internal/serr"
)

// write submits n (time, item) pairs through the circular buffer, or
// straight to the sink if this channel is unbuffered (spec.md §4.9, §7:
// a ReadOnly channel returns the ReadOnly constraint error, no state
// change).
func (c *Channel) write(times []int64, flat []byte, n, itemSize int) error {
	if c.ReadOnly {
		return serr.New(serr.ReadOnly, "channel.Channel.write", nil)
	}
	if c.Buf != nil {
		return c.Buf.Write(times, flat, n, c.sink)
	}
	_, err := c.sink.Append(times, flat, n, itemSize)
	return err
}

// readRaw merges buffered and on-disk items in [from, upto), up to max,
// into the generic (times, flat) form (spec.md §4.9).
func (c *Channel) readRaw(from, upto int64, max int) (times []int64, flat []byte, n int, err error) {
	if c.Buf != nil {
		return c.Buf.Read(from, upto, max, c.sink)
	}
	return c.sink.ReadDisk(from, upto, max)
}

// WriteEvent appends raw edge times to an EventRise/EventFall/EventBoth
// channel (spec.md §4.8). times must be sorted, strictly increasing, and
// strictly greater than MaxTime.
func (c *Channel) WriteEvent(times []int64) error {
	return c.write(times, flatFromTimes(times, 8), len(times), 8)
}

// ReadEvent reads times in [from, upto), up to max, from an event channel.
func (c *Channel) ReadEvent(from, upto int64, max int) ([]int64, error) {
	times, _, _, err := c.readRaw(from, upto, max)
	return times, err
}

// WriteMarker appends marker records to a Marker channel (spec.md §4.8).
func (c *Channel) WriteMarker(recs []codec.MarkerRec) error {
	return c.write(timesOf(recs), flatFromMarkers(recs), len(recs), codec.MarkerRecordSize)
}

// ReadMarker reads records in [from, upto), up to max, optionally matching
// f, from a Marker channel. Filtering against buffered items is applied
// after the generic ring/disk merge rather than threaded through it, so a
// request whose buffered region is mostly filtered out may return fewer
// records than `max` even though more matching records exist on disk.
func (c *Channel) ReadMarker(from, upto int64, max int, f codec.Filter) ([]codec.MarkerRec, error) {
	times, flat, n, err := c.readRaw(from, upto, max)
	if err != nil {
		return nil, err
	}
	recs := decodeMarkerRecs(times, flat, n)
	if f == nil {
		return recs, nil
	}
	out := recs[:0]
	for _, r := range recs {
		if f.Test(r.Codes) {
			out = append(out, r)
		}
	}
	return out, nil
}

// EditMarker rewrites the first len(data) bytes past the timestamp of the
// record at exactly time t, on disk only (spec.md §4.8: edit_marker(t,
// new, n_copy) is a general codec-contract operation, not Marker-only;
// the teacher's CMarkerChan/CBMarkerChan and CExtMarkChan/CBExtMarkChan,
// s64chan.h:612,642,671,701, both implement it). It returns false if no
// record with that exact time is on disk, or if this channel's kind has
// no marker-shaped records to edit (Event*/Adc/RealWave).
func (c *Channel) EditMarker(t int64, data []byte) (bool, error) {
	if c.ReadOnly {
		return false, serr.New(serr.ReadOnly, "channel.Channel.EditMarker", nil)
	}
	k := Kind(c.Head.Kind)
	if k != Marker && k != TextMark && k != RealMark && k != AdcMark {
		return false, nil
	}
	if err := c.Reader.Seek(t); err != nil {
		return false, err
	}
	var found bool
	if k == Marker {
		var codes [4]byte
		copy(codes[:], data)
		mk := codec.Marker{DBSIZE: c.DBSIZE}
		found = mk.EditMarker(c.Reader.DataBlock, t, codes)
	} else {
		em := c.extMarkCodec()
		found = em.EditMarker(c.Reader.DataBlock, t, data)
	}
	if !found {
		return false, nil
	}
	_, err := c.Reader.Filer.WriteAt(c.Reader.DataBlock, c.Reader.DataOff)
	return err == nil, err
}

// WriteExtMark appends records to a TextMark/RealMark/AdcMark channel
// (spec.md §4.8). Each record's Payload must be exactly ItemBytes-16
// bytes.
func (c *Channel) WriteExtMark(recs []codec.ExtRec) error {
	objSize := int(c.Head.ItemBytes)
	return c.write(timesOfExt(recs), flatFromExt(recs, objSize), len(recs), objSize)
}

// ReadExtMark reads records in [from, upto), up to max, optionally
// matching f, from a TextMark/RealMark/AdcMark channel. The same
// post-hoc-filtering caveat as ReadMarker applies to the buffered region.
func (c *Channel) ReadExtMark(from, upto int64, max int, f codec.Filter) ([]codec.ExtRec, error) {
	objSize := int(c.Head.ItemBytes)
	times, flat, n, err := c.readRaw(from, upto, max)
	if err != nil {
		return nil, err
	}
	recs := make([]codec.ExtRec, 0, n)
	for i := 0; i < n; i++ {
		off := i * objSize
		var codes [4]byte
		copy(codes[:], flat[off+8:off+12])
		rec := codec.ExtRec{Time: times[i], Codes: codes, Payload: flat[off+16 : off+objSize]}
		if f == nil || f.Test(rec.Codes) {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

// WaveSegment is one contiguous run of equally-spaced samples, as
// returned by ReadWave (spec.md §4.8: runs may have gaps between them).
type WaveSegment struct {
	FirstTime int64
	Samples   []byte
}

// WriteWave appends samples starting at firstTime to an Adc/RealWave
// channel, spaced by the channel's tick divide (spec.md §4.8).
func (c *Channel) WriteWave(firstTime int64, samples []byte) error {
	wv := codec.Wave{Kind: waveKind(Kind(c.Head.Kind)), TickDivide: c.Head.SampleInterval}
	ss := wv.SampleSize()
	n := len(samples) / ss
	times := make([]int64, n)
	for i := range times {
		times[i] = firstTime + int64(i)*c.Head.SampleInterval
	}
	return c.write(times, samples, n, ss)
}

// ReadWave reads samples in [from, upto), up to max total samples, from
// an Adc/RealWave channel, re-segmenting the merged ring/disk result at
// any point where consecutive sample times are not exactly one tick
// divide apart.
func (c *Channel) ReadWave(from, upto int64, max int) ([]WaveSegment, error) {
	times, flat, n, err := c.readRaw(from, upto, max)
	if err != nil {
		return nil, err
	}
	ss := int(c.Head.ItemBytes)
	if n == 0 {
		return nil, nil
	}
	var segs []WaveSegment
	segStart := 0
	for i := 1; i <= n; i++ {
		if i == n || times[i] != times[i-1]+c.Head.SampleInterval {
			segs = append(segs, WaveSegment{
				FirstTime: times[segStart],
				Samples:   flat[segStart*ss : i*ss],
			})
			segStart = i
		}
	}
	return segs, nil
}

// PrevNTime reports the time reached by walking backward from upto
// (exclusive), no earlier than from, skipping max matching items,
// optionally filtered by f (Marker/ExtMark kinds only; ignored otherwise)
// (spec.md §4.8, §4.9). asWave only applies to AdcMark channels: it
// treats each marker's payload as a contiguous stretch of Rows samples at
// the channel's tick divide rather than one opaque item (spec.md §4.8).
// The teacher protects against a stray asWave=true on Adc/RealWave
// channels, which are already a sample stream, by ignoring it there
// (CSon64Chan::PrevNTime, s64chan.cpp).
func (c *Channel) PrevNTime(from, upto int64, max int, f codec.Filter, asWave bool) (int64, error) {
	prevDisk := func(pfrom, pupto int64, pmax int) (int64, error) {
		return c.prevDiskTime(pfrom, pupto, pmax, f, asWave)
	}
	if c.Buf != nil {
		return c.Buf.PrevNTime(from, upto, max, prevDisk)
	}
	return prevDisk(from, upto, max)
}

func (c *Channel) prevDiskTime(from, upto int64, max int, f codec.Filter, asWave bool) (int64, error) {
	if c.Head.ActiveBlocks == 0 {
		return NoTime, nil
	}
	tFind := upto - 1
	if tFind < from {
		return NoTime, nil
	}
	if err := c.Reader.Seek(tFind); err != nil {
		return NoTime, err
	}
	r := &codec.Range{From: from, Upto: upto, Max: max}

	for {
		t, ok, err := c.prevNTimeInBlock(r, f, asWave)
		if err != nil {
			return NoTime, err
		}
		if ok {
			return t, nil
		}
		if err := c.Reader.Prev(); err != nil {
			return NoTime, nil
		}
	}
}

func (c *Channel) prevNTimeInBlock(r *codec.Range, f codec.Filter, asWave bool) (int64, bool, error) {
	switch Kind(c.Head.Kind) {
	case EventRise, EventFall, EventBoth:
		ev := codec.Event{DBSIZE: c.DBSIZE}
		t, ok := ev.PrevNTime(c.Reader.DataBlock, r)
		return t, ok, nil
	case Marker:
		mk := codec.Marker{DBSIZE: c.DBSIZE}
		t, ok := mk.PrevNTime(c.Reader.DataBlock, r, f)
		return t, ok, nil
	case TextMark, RealMark, AdcMark:
		em := c.extMarkCodec()
		t, ok := em.PrevNTime(c.Reader.DataBlock, r, f, asWave)
		return t, ok, nil
	case Adc, RealWave:
		wv := codec.Wave{DBSIZE: c.DBSIZE, Kind: waveKind(Kind(c.Head.Kind)), TickDivide: c.Head.SampleInterval}
		t, ok := wv.PrevNTime(c.Reader.DataBlock, r)
		return t, ok, nil
	}
	return NoTime, false, nil
}
