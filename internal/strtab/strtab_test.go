package strtab

import "testing"

func TestTableAddLookup(t *testing.T) {
	tbl := New()
	id := tbl.Add("hello", 0)
	if id == 0 {
		t.Fatal("want nonzero id")
	}
	if g, e := tbl.Lookup(id), "hello"; g != e {
		t.Fatal(g, e)
	}
	if g, e := tbl.RefCount(id), uint32(1); g != e {
		t.Fatal(g, e)
	}
}

func TestTableAddEmptyStringIsIDZero(t *testing.T) {
	tbl := New()
	if g := tbl.Add("", 0); g != 0 {
		t.Fatal(g)
	}
	if g := tbl.Lookup(0); g != "" {
		t.Fatal(g)
	}
}

func TestTableAddDedupsAndRefCounts(t *testing.T) {
	tbl := New()
	id1 := tbl.Add("x", 0)
	id2 := tbl.Add("x", 0)
	if id1 != id2 {
		t.Fatal(id1, id2)
	}
	if g, e := tbl.RefCount(id1), uint32(2); g != e {
		t.Fatal(g, e)
	}
}

func TestTableAddReplacesOldID(t *testing.T) {
	tbl := New()
	id1 := tbl.Add("a", 0)
	id2 := tbl.Add("b", id1)
	if tbl.RefCount(id1) != 0 {
		t.Fatal("old id should have been released")
	}
	if tbl.Lookup(id1) != "" {
		t.Fatal("old id should no longer resolve")
	}
	if tbl.Lookup(id2) != "b" {
		t.Fatal("new id should resolve")
	}
}

func TestTableSubFreesAndRecyclesSmallestID(t *testing.T) {
	tbl := New()
	id1 := tbl.Add("a", 0)
	id2 := tbl.Add("b", 0)
	id3 := tbl.Add("c", 0)
	_ = id3

	tbl.Sub(id1)
	tbl.Sub(id2)

	// Freed ids are reissued smallest-first.
	reissued := tbl.Add("d", 0)
	if reissued != id1 {
		t.Fatalf("got id %d, want smallest freed id %d", reissued, id1)
	}
	reissued2 := tbl.Add("e", 0)
	if reissued2 != id2 {
		t.Fatalf("got id %d, want next freed id %d", reissued2, id2)
	}
}

func TestTableMarshalUnmarshalRoundTrip(t *testing.T) {
	tbl := New()
	idA := tbl.Add("alpha", 0)
	idB := tbl.Add("beta-longer-string", 0)
	tbl.Add("alpha", 0) // bump refcount to 2
	_ = idB

	b := tbl.Marshal()
	got, err := Unmarshal(b, 0)
	if err != nil {
		t.Fatal(err)
	}
	if g, e := got.Lookup(idA), "alpha"; g != e {
		t.Fatal(g, e)
	}
	if g, e := got.RefCount(idA), uint32(2); g != e {
		t.Fatal(g, e)
	}
	if g, e := got.Lookup(idB), "beta-longer-string"; g != e {
		t.Fatal(g, e)
	}
}

func TestTableMarshalUnmarshalPreservesFreedSlots(t *testing.T) {
	tbl := New()
	id1 := tbl.Add("a", 0)
	tbl.Add("b", 0)
	tbl.Sub(id1)

	b := tbl.Marshal()
	got, err := Unmarshal(b, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.Lookup(id1) != "" {
		t.Fatal("freed slot should stay freed across round trip")
	}
	// The round-tripped table should still recycle the freed id first.
	if g := got.Add("c", 0); g != id1 {
		t.Fatalf("got %d, want recycled id %d", g, id1)
	}
}

func TestUnmarshalRejectsRefcountOverCap(t *testing.T) {
	tbl := New()
	id := tbl.Add("x", 0)
	tbl.Add("x", 0)
	tbl.Add("x", 0)
	_ = id

	b := tbl.Marshal()
	if _, err := Unmarshal(b, 1); err == nil {
		t.Fatal("want error")
	}
}

func TestUnmarshalRejectsShortBuffer(t *testing.T) {
	if _, err := Unmarshal([]byte{1, 2, 3}, 0); err == nil {
		t.Fatal("want error")
	}
}

func TestTruncateUTF8StopsAtRuneBoundary(t *testing.T) {
	s := "héllo" // 'é' is 2 bytes in UTF-8
	got := TruncateUTF8(s, 2)
	if got != "h" {
		t.Fatalf("got %q, want %q", got, "h")
	}
}

func TestTruncateUTF8NoOpWhenShortEnough(t *testing.T) {
	if g, e := TruncateUTF8("abc", 10), "abc"; g != e {
		t.Fatal(g, e)
	}
}
