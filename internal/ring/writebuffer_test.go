package ring

import "testing"

const wbItemSize = 8

func packItem(v int64) []byte {
	b := make([]byte, wbItemSize)
	for i := 0; i < wbItemSize; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func unpackItem(b []byte) int64 {
	var v int64
	for i := 0; i < wbItemSize; i++ {
		v |= int64(b[i]) << (8 * i)
	}
	return v
}

// fakeDisk is a minimal committed-storage stand-in driving a Sink.
type fakeDisk struct {
	times []int64
	flat  []byte
}

func (d *fakeDisk) sink() Sink {
	return Sink{
		Append: func(times []int64, flat []byte, n, itemSize int) (int, error) {
			d.times = append(d.times, times[:n]...)
			d.flat = append(d.flat, flat[:n*itemSize]...)
			return n, nil
		},
		ReadDisk: func(from, upto int64, max int) ([]int64, []byte, int, error) {
			var times []int64
			var flat []byte
			n := 0
			for i, t := range d.times {
				if t < from {
					continue
				}
				if t >= upto || n >= max {
					break
				}
				times = append(times, t)
				flat = append(flat, d.flat[i*wbItemSize:(i+1)*wbItemSize]...)
				n++
			}
			return times, flat, n, nil
		},
		LastTimeOnDisk: func() int64 {
			if len(d.times) == 0 {
				return NoTime
			}
			return d.times[len(d.times)-1]
		},
	}
}

func flatOf(vals ...int64) []byte {
	b := make([]byte, 0, len(vals)*wbItemSize)
	for _, v := range vals {
		b = append(b, packItem(v)...)
	}
	return b
}

func TestWriteBufferUnbufferedWritesStraightToSink(t *testing.T) {
	w := NewWriteBuffer(wbItemSize)
	d := &fakeDisk{}
	if err := w.Write([]int64{1, 2, 3}, flatOf(1, 2, 3), 3, d.sink()); err != nil {
		t.Fatal(err)
	}
	if len(d.times) != 3 || d.times[2] != 3 {
		t.Fatalf("got %v", d.times)
	}
}

func TestWriteBufferAutoFlushAndManualFlushAllSaving(t *testing.T) {
	w := NewWriteBuffer(wbItemSize)
	w.Resize(4)
	w.Saves.SetSave(0, true)
	d := &fakeDisk{}
	sink := d.sink()

	for i := int64(0); i < 10; i++ {
		if err := w.Write([]int64{i}, packItem(i), 1, sink); err != nil {
			t.Fatal(err)
		}
	}
	// Automatic flushes should have already committed times 0..5.
	if g, e := len(d.times), 6; g != e {
		t.Fatalf("got %d committed so far, want %d", g, e)
	}

	if err := w.Flush(w.Ring.Len(), sink); err != nil {
		t.Fatal(err)
	}
	if g, e := len(d.times), 10; g != e {
		t.Fatalf("got %d committed, want 10", g)
	}
	for i, want := range []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9} {
		if d.times[i] != want {
			t.Fatalf("idx %d: got %d, want %d", i, d.times[i], want)
		}
	}
	if w.Ring.Len() != 0 {
		t.Fatal("want ring drained")
	}
}

func TestWriteBufferFlushSkipsNonSavingRanges(t *testing.T) {
	w := NewWriteBuffer(wbItemSize)
	w.Resize(4)
	w.Saves.SetSave(5, true) // not saving before time 5
	d := &fakeDisk{}
	sink := d.sink()

	for i := int64(0); i < 10; i++ {
		if err := w.Write([]int64{i}, packItem(i), 1, sink); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Flush(w.Ring.Len(), sink); err != nil {
		t.Fatal(err)
	}

	// Every item is evicted from the ring regardless of save state, but
	// only times >= 5 should have reached disk.
	want := []int64{5, 6, 7, 8, 9}
	if len(d.times) != len(want) {
		t.Fatalf("got %v, want %v", d.times, want)
	}
	for i := range want {
		if d.times[i] != want[i] {
			t.Fatalf("got %v, want %v", d.times, want)
		}
	}
}

func TestWriteBufferReadMergesDiskAndRing(t *testing.T) {
	w := NewWriteBuffer(wbItemSize)
	w.Resize(10)
	d := &fakeDisk{times: []int64{0, 1, 2}, flat: flatOf(0, 1, 2)}
	sink := d.sink()

	if err := w.Write([]int64{3, 4, 5}, flatOf(3, 4, 5), 3, sink); err != nil {
		t.Fatal(err)
	}

	times, flat, n, err := w.Read(0, 6, 100, sink)
	if err != nil {
		t.Fatal(err)
	}
	if n != 6 {
		t.Fatalf("got %d, want 6", n)
	}
	for i := 0; i < 6; i++ {
		if times[i] != int64(i) {
			t.Fatalf("idx %d: got time %d, want %d", i, times[i], i)
		}
		if got := unpackItem(flat[i*wbItemSize : (i+1)*wbItemSize]); got != int64(i) {
			t.Fatalf("idx %d: got item %d, want %d", i, got, i)
		}
	}
}

func TestWriteBufferReadRespectsMax(t *testing.T) {
	w := NewWriteBuffer(wbItemSize)
	w.Resize(10)
	d := &fakeDisk{}
	sink := d.sink()
	if err := w.Write([]int64{1, 2, 3, 4}, flatOf(1, 2, 3, 4), 4, sink); err != nil {
		t.Fatal(err)
	}
	_, _, n, err := w.Read(0, 100, 2, sink)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("got %d, want 2", n)
	}
}

func TestWriteBufferMaxTime(t *testing.T) {
	w := NewWriteBuffer(wbItemSize)
	d := &fakeDisk{times: []int64{1, 2, 3}, flat: flatOf(1, 2, 3)}
	sink := d.sink()
	if g, e := w.MaxTime(sink), int64(3); g != e {
		t.Fatal(g, e)
	}

	w.Resize(4)
	if err := w.Write([]int64{10}, packItem(10), 1, sink); err != nil {
		t.Fatal(err)
	}
	if g, e := w.MaxTime(sink), int64(10); g != e {
		t.Fatal(g, e)
	}
}

func TestWriteBufferResizeDownThenUp(t *testing.T) {
	w := NewWriteBuffer(wbItemSize)
	w.Resize(4)
	d := &fakeDisk{}
	sink := d.sink()
	for i := int64(0); i < 3; i++ {
		if err := w.Write([]int64{i}, packItem(i), 1, sink); err != nil {
			t.Fatal(err)
		}
	}
	w.Resize(0)
	if w.Ring != nil || w.Buffering {
		t.Fatal("want unbuffered after Resize(0)")
	}

	if err := w.Write([]int64{99}, packItem(99), 1, sink); err != nil {
		t.Fatal(err)
	}
	if d.times[len(d.times)-1] != 99 {
		t.Fatal("want direct sink write while unbuffered")
	}
}

func TestWriteBufferPrevNTimeRingThenDisk(t *testing.T) {
	w := NewWriteBuffer(wbItemSize)
	w.Resize(10)
	d := &fakeDisk{times: []int64{0, 10, 20}, flat: flatOf(0, 10, 20)}
	sink := d.sink()
	if err := w.Write([]int64{30, 40}, flatOf(30, 40), 2, sink); err != nil {
		t.Fatal(err)
	}

	prevDisk := func(from, upto int64, max int) (int64, error) {
		// Mirror the ring's own skip-back logic over fakeDisk's times.
		var matching []int64
		for _, t := range d.times {
			if t < from || t >= upto {
				continue
			}
			matching = append(matching, t)
		}
		remaining := max
		for i := len(matching) - 1; i >= 0; i-- {
			if remaining == 0 {
				return matching[i], nil
			}
			remaining--
		}
		return NoTime, nil
	}

	// Skip 1 back from 50 (exclusive): {40,30,20,...} skip 40 -> lands on 30.
	got, err := w.PrevNTime(0, 50, 1, prevDisk)
	if err != nil {
		t.Fatal(err)
	}
	if g, e := got, int64(30); g != e {
		t.Fatal(g, e)
	}

	// Skip past everything in the ring (2 items) into disk.
	got2, err := w.PrevNTime(0, 50, 3, prevDisk)
	if err != nil {
		t.Fatal(err)
	}
	if g, e := got2, int64(10); g != e {
		t.Fatal(g, e)
	}
}
