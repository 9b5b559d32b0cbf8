package index

import "testing"

func TestDepth(t *testing.T) {
	cases := []struct {
		n      int64
		fanout int
		want   int
	}{
		{0, 16, 1},
		{1, 16, 1},
		{16, 16, 1},
		{17, 16, 2},
		{256, 16, 2},
		{257, 16, 3},
	}
	for _, c := range cases {
		if g := Depth(c.n, c.fanout); g != c.want {
			t.Fatalf("Depth(%d, %d): got %d, want %d", c.n, c.fanout, g, c.want)
		}
	}
}

func TestPathLenRootOffReset(t *testing.T) {
	var p Path
	if p.Len() != 0 {
		t.Fatal(p.Len())
	}
	if p.RootOff() != 0 {
		t.Fatal(p.RootOff())
	}

	n1 := NewNode(4, 1, 0, 0)
	n2 := NewNode(4, 2, 0, 0)
	p.Nodes = []*Node{n1, n2}
	p.Offs = []int64{100, 200}

	if g, e := p.Len(), 2; g != e {
		t.Fatal(g, e)
	}
	if g, e := p.RootOff(), int64(200); g != e {
		t.Fatal(g, e)
	}

	p.Reset()
	if p.Len() != 0 || p.RootOff() != 0 {
		t.Fatal("want empty after Reset")
	}
}
