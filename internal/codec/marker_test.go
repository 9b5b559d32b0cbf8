package codec

import (
	"testing"

	"github.com/cznic/s64/internal/block"
)

func newMarkerBlock() []byte { return make([]byte, block.DBSIZE) }

func sampleMarkerRecs() []MarkerRec {
	return []MarkerRec{
		{Time: 10, Codes: [4]byte{1, 0, 0, 0}},
		{Time: 20, Codes: [4]byte{2, 0, 0, 0}},
		{Time: 30, Codes: [4]byte{1, 0, 0, 0}},
		{Time: 40, Codes: [4]byte{2, 0, 0, 0}},
		{Time: 50, Codes: [4]byte{1, 0, 0, 0}},
	}
}

func TestMarkerAddDataAndTimes(t *testing.T) {
	c := Marker{DBSIZE: block.DBSIZE}
	raw := newMarkerBlock()
	recs := sampleMarkerRecs()
	n := c.AddData(raw, recs)
	if n != len(recs) {
		t.Fatalf("got %d, want %d", n, len(recs))
	}
	if g, e := c.FirstTime(raw), int64(10); g != e {
		t.Fatal(g, e)
	}
	if g, e := c.LastTime(raw), int64(50); g != e {
		t.Fatal(g, e)
	}
}

func TestMarkerGetDataUnfiltered(t *testing.T) {
	c := Marker{DBSIZE: block.DBSIZE}
	raw := newMarkerBlock()
	c.AddData(raw, sampleMarkerRecs())

	dst := make([]MarkerRec, 10)
	n, err := c.GetData(raw, dst, &Range{From: 20, Upto: 50, Max: 10}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("got %d, want 3", n)
	}
	if dst[0].Time != 20 || dst[2].Time != 40 {
		t.Fatalf("got %+v", dst[:n])
	}
}

type codeZeroFilter struct{ want byte }

func (f codeZeroFilter) Test(codes [4]byte) bool { return codes[0] == f.want }
func (f codeZeroFilter) Column() int             { return -1 }

func TestMarkerGetDataFiltered(t *testing.T) {
	c := Marker{DBSIZE: block.DBSIZE}
	raw := newMarkerBlock()
	c.AddData(raw, sampleMarkerRecs())

	dst := make([]MarkerRec, 10)
	n, err := c.GetData(raw, dst, &Range{From: 0, Upto: 1000, Max: 10}, codeZeroFilter{want: 2})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("got %d, want 2", n)
	}
	if dst[0].Time != 20 || dst[1].Time != 40 {
		t.Fatalf("got %+v", dst[:n])
	}
}

func TestMarkerEditMarker(t *testing.T) {
	c := Marker{DBSIZE: block.DBSIZE}
	raw := newMarkerBlock()
	c.AddData(raw, sampleMarkerRecs())

	ok := c.EditMarker(raw, 30, [4]byte{9, 9, 9, 9})
	if !ok {
		t.Fatal("want found")
	}
	dst := make([]MarkerRec, 1)
	n, err := c.GetData(raw, dst, &Range{From: 30, Upto: 31, Max: 1}, nil)
	if err != nil || n != 1 {
		t.Fatal(n, err)
	}
	if dst[0].Codes != ([4]byte{9, 9, 9, 9}) {
		t.Fatalf("got %+v", dst[0])
	}
}

func TestMarkerEditMarkerNoExactMatch(t *testing.T) {
	c := Marker{DBSIZE: block.DBSIZE}
	raw := newMarkerBlock()
	c.AddData(raw, sampleMarkerRecs())
	if c.EditMarker(raw, 25, [4]byte{1, 1, 1, 1}) {
		t.Fatal("want not found")
	}
}

func TestMarkerPrevNTime(t *testing.T) {
	c := Marker{DBSIZE: block.DBSIZE}
	raw := newMarkerBlock()
	c.AddData(raw, sampleMarkerRecs())

	r := &Range{From: 0, Upto: 50, Max: 2}
	tm, ok := c.PrevNTime(raw, r, nil)
	if !ok {
		t.Fatal("want ok")
	}
	if g, e := tm, int64(20); g != e {
		t.Fatal(g, e)
	}
}

func TestMarkerPrevNTimeFiltered(t *testing.T) {
	c := Marker{DBSIZE: block.DBSIZE}
	raw := newMarkerBlock()
	c.AddData(raw, sampleMarkerRecs())

	// Only code-0==1 records qualify: times 10, 30, 50.
	r := &Range{From: 0, Upto: 50, Max: 0}
	tm, ok := c.PrevNTime(raw, r, codeZeroFilter{want: 1})
	if !ok {
		t.Fatal("want ok")
	}
	if g, e := tm, int64(30); g != e {
		t.Fatal(g, e)
	}
}
