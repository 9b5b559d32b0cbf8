package block

import "testing"

func TestMemFilerWriteAt(t *testing.T) {
	f := NewMemFiler()

	if _, err := f.WriteAt([]byte{1}, 0); err != nil {
		t.Fatal(err)
	}
	if g, e := len(f.pages), 1; g != e {
		t.Fatal(g, e)
	}

	if _, err := f.WriteAt([]byte{2}, pgSize); err != nil {
		t.Fatal(err)
	}
	if g, e := len(f.pages), 2; g != e {
		t.Fatal(g, e)
	}

	if err := f.Truncate(1); err != nil {
		t.Fatal(err)
	}
	if g, e := len(f.pages), 1; g != e {
		t.Fatal(g, e)
	}

	if err := f.Truncate(0); err != nil {
		t.Fatal(err)
	}
	if g, e := len(f.pages), 0; g != e {
		t.Fatal(g, e)
	}
}

func TestMemFilerReadWriteRoundTrip(t *testing.T) {
	f := NewMemFiler()
	want := make([]byte, 3*pgSize+17)
	for i := range want {
		want[i] = byte(i)
	}
	if n, err := f.WriteAt(want, 5); n != len(want) || err != nil {
		t.Fatal(n, err)
	}
	if g, e := f.Size(), int64(5+len(want)); g != e {
		t.Fatal(g, e)
	}

	got := make([]byte, len(want))
	if n, err := f.ReadAt(got, 5); n != len(got) || err != nil {
		t.Fatal(n, err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %d want %d", i, got[i], want[i])
		}
	}
}

func TestMemFilerReadPastEOF(t *testing.T) {
	f := NewMemFiler()
	if _, err := f.WriteAt([]byte{1, 2, 3}, 0); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 10)
	n, err := f.ReadAt(buf, 0)
	if n != 3 {
		t.Fatal(n)
	}
	if err == nil {
		t.Fatal("want EOF")
	}
}

func TestMemFilerPunchHole(t *testing.T) {
	f := NewMemFiler()
	if _, err := f.WriteAt(make([]byte, 4*pgSize), 0); err != nil {
		t.Fatal(err)
	}
	if g, e := len(f.pages), 4; g != e {
		t.Fatal(g, e)
	}
	if err := f.PunchHole(pgSize, 2*pgSize); err != nil {
		t.Fatal(err)
	}
	if g, e := len(f.pages), 2; g != e {
		t.Fatalf("got %d pages, want %d", g, e)
	}
}

func TestMemFilerTruncateNegative(t *testing.T) {
	f := NewMemFiler()
	if err := f.Truncate(-1); err == nil {
		t.Fatal("want error")
	}
}
