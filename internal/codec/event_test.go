package codec

import (
	"testing"

	"github.com/cznic/s64/internal/block"
)

func newEventBlock() []byte { return make([]byte, block.DBSIZE) }

func TestEventAddDataAcceptsSortedIncreasing(t *testing.T) {
	c := Event{DBSIZE: block.DBSIZE}
	raw := newEventBlock()
	times := []int64{10, 20, 30, 40}
	n := c.AddData(raw, times)
	if n != len(times) {
		t.Fatalf("got %d accepted, want %d", n, len(times))
	}
	if g, e := c.FirstTime(raw), int64(10); g != e {
		t.Fatal(g, e)
	}
	if g, e := c.LastTime(raw), int64(40); g != e {
		t.Fatal(g, e)
	}
}

func TestEventAddDataStopsAtNonIncreasing(t *testing.T) {
	c := Event{DBSIZE: block.DBSIZE}
	raw := newEventBlock()
	c.AddData(raw, []int64{10, 20})
	n := c.AddData(raw, []int64{15, 30}) // 15 <= last(20): rejected outright
	if n != 0 {
		t.Fatalf("got %d accepted, want 0", n)
	}
}

func TestEventAddDataRespectsCapacity(t *testing.T) {
	c := Event{DBSIZE: block.DBSIZE}
	raw := newEventBlock()
	cap := MaxEvent(block.DBSIZE)
	times := make([]int64, cap+5)
	for i := range times {
		times[i] = int64(i + 1)
	}
	n := c.AddData(raw, times)
	if n != cap {
		t.Fatalf("got %d accepted, want cap %d", n, cap)
	}
}

func TestEventFirstLastTimeEmptyBlock(t *testing.T) {
	c := Event{DBSIZE: block.DBSIZE}
	raw := newEventBlock()
	if g := c.LastTime(raw); g != NoTime {
		t.Fatal(g)
	}
}

func TestEventGetDataRange(t *testing.T) {
	c := Event{DBSIZE: block.DBSIZE}
	raw := newEventBlock()
	c.AddData(raw, []int64{10, 20, 30, 40, 50})

	dst := make([]int64, 10)
	n, err := c.GetData(raw, dst, &Range{From: 20, Upto: 50, Max: 10})
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{20, 30, 40}
	if n != len(want) {
		t.Fatalf("got %d, want %d", n, len(want))
	}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("idx %d: got %d, want %d", i, dst[i], want[i])
		}
	}
}

func TestEventGetDataRespectsMax(t *testing.T) {
	c := Event{DBSIZE: block.DBSIZE}
	raw := newEventBlock()
	c.AddData(raw, []int64{10, 20, 30, 40, 50})

	dst := make([]int64, 10)
	n, err := c.GetData(raw, dst, &Range{From: 0, Upto: 1000, Max: 2})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("got %d, want 2", n)
	}
}

func TestEventPrevNTime(t *testing.T) {
	c := Event{DBSIZE: block.DBSIZE}
	raw := newEventBlock()
	c.AddData(raw, []int64{10, 20, 30, 40, 50})

	r := &Range{From: 0, Upto: 50, Max: 2}
	tm, ok := c.PrevNTime(raw, r)
	if !ok {
		t.Fatal("want ok")
	}
	// Upto=50 excludes 50; skipping back 2 from {10,20,30,40} lands on 20.
	if g, e := tm, int64(20); g != e {
		t.Fatal(g, e)
	}
}

func TestEventPrevNTimeExhaustsBlock(t *testing.T) {
	c := Event{DBSIZE: block.DBSIZE}
	raw := newEventBlock()
	c.AddData(raw, []int64{10, 20})

	r := &Range{From: 0, Upto: 20, Max: 5}
	_, ok := c.PrevNTime(raw, r)
	if ok {
		t.Fatal("want not ok: budget exceeds block contents")
	}
	if r.Max != 4 { // reduced by the one entry (10) below Upto
		t.Fatalf("got remaining max %d, want 4", r.Max)
	}
}
