package index

import (
	"encoding/binary"
	"testing"

	"github.com/cznic/s64/internal/block"
)

// pointInfo treats a data block as holding exactly one item, whose time is
// stored as an int64 right after the block header. It exists only to drive
// the append/block-manager integration test without depending on any real
// codec.
type pointInfo struct{}

func (pointInfo) FirstTime(raw []byte) int64 {
	return int64(binary.LittleEndian.Uint64(raw[block.HeaderSize : block.HeaderSize+8]))
}

func (pointInfo) LastTime(raw []byte) int64 { return pointInfo{}.FirstTime(raw) }

func pointBlock(dbsize int, t int64) []byte {
	raw := make([]byte, dbsize)
	hdr := block.Header{Level: 0, NItems: 1}
	hdr.Encode(raw)
	binary.LittleEndian.PutUint64(raw[block.HeaderSize:block.HeaderSize+8], uint64(t))
	return raw
}

func newTestTree(t *testing.T) (*AppendPath, *BlockManager) {
	const dbsize, dlsize = 128, 64 // fanout = (64-16)/16 = 3
	filer := block.NewMemFiler()
	alloc := block.NewAllocator(dbsize, dlsize, 0, 0)
	ap := NewAppendPath(filer, alloc, dbsize, dlsize, 1, 1)
	bm := NewBlockManager(filer, dbsize, dlsize, 1, 1, pointInfo{})
	ap.Reader = bm
	bm.Append = ap
	ap.OnRootGrow = func(off int64, depth int) { bm.SetRoot(off, depth, nil) }
	return ap, bm
}

func TestAppendPathGrowsMultipleLevels(t *testing.T) {
	const dbsize = 128
	ap, bm := newTestTree(t)

	const n = 10
	for i := 0; i < n; i++ {
		pb := &PendingBlock{FirstTime: int64(i * 100), Raw: pointBlock(dbsize, int64(i*100))}
		if err := ap.AppendBlock(pb, false); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	// fanout 3 means more than 3 leaf entries force a level-2 root.
	if ap.Depth() < 2 {
		t.Fatalf("got depth %d, want at least 2 after %d appends", ap.Depth(), n)
	}
	if bm.Depth != ap.Depth() {
		t.Fatalf("reader depth %d != writer depth %d", bm.Depth, ap.Depth())
	}
}

func TestBlockManagerSeekExactAndBetween(t *testing.T) {
	const dbsize = 128
	ap, bm := newTestTree(t)

	const n = 10
	for i := 0; i < n; i++ {
		pb := &PendingBlock{FirstTime: int64(i * 100), Raw: pointBlock(dbsize, int64(i*100))}
		if err := ap.AppendBlock(pb, false); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	if err := bm.Seek(0); err != nil {
		t.Fatal(err)
	}
	if g, e := (pointInfo{}).FirstTime(bm.DataBlock), int64(0); g != e {
		t.Fatalf("Seek(0): got block time %d, want %d", g, e)
	}

	if err := bm.Seek(250); err != nil {
		t.Fatal(err)
	}
	if g, e := (pointInfo{}).FirstTime(bm.DataBlock), int64(300); g != e {
		t.Fatalf("Seek(250): got block time %d, want %d", g, e)
	}

	if err := bm.Seek(900); err != nil {
		t.Fatal(err)
	}
	if g, e := (pointInfo{}).FirstTime(bm.DataBlock), int64(900); g != e {
		t.Fatalf("Seek(900): got block time %d, want %d", g, e)
	}
}

func TestBlockManagerNextPrevWalksAllBlocks(t *testing.T) {
	const dbsize = 128
	ap, bm := newTestTree(t)

	const n = 10
	for i := 0; i < n; i++ {
		pb := &PendingBlock{FirstTime: int64(i * 100), Raw: pointBlock(dbsize, int64(i*100))}
		if err := ap.AppendBlock(pb, false); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	if err := bm.Seek(0); err != nil {
		t.Fatal(err)
	}
	for i := 1; i < n; i++ {
		if err := bm.Next(); err != nil {
			t.Fatalf("Next at step %d: %v", i, err)
		}
		if g, e := (pointInfo{}).FirstTime(bm.DataBlock), int64(i*100); g != e {
			t.Fatalf("step %d: got time %d, want %d", i, g, e)
		}
	}
	if err := bm.Next(); err == nil {
		t.Fatal("want error walking past the last block")
	}

	for i := n - 2; i >= 0; i-- {
		if err := bm.Prev(); err != nil {
			t.Fatalf("Prev at step %d: %v", i, err)
		}
		if g, e := (pointInfo{}).FirstTime(bm.DataBlock), int64(i*100); g != e {
			t.Fatalf("step %d: got time %d, want %d", i, g, e)
		}
	}
	if err := bm.Prev(); err == nil {
		t.Fatal("want error walking before the first block")
	}
}

func TestAppendPathRecommitSameBlock(t *testing.T) {
	const dbsize = 128
	ap, bm := newTestTree(t)

	pb := &PendingBlock{FirstTime: 0, Raw: pointBlock(dbsize, 0)}
	if err := ap.AppendBlock(pb, false); err != nil {
		t.Fatal(err)
	}
	firstOff := pb.Off

	// Recommit: same Off, different payload content (still time 0, but a
	// real codec would have grown NItems in place).
	pb.Raw = pointBlock(dbsize, 0)
	if err := ap.AppendBlock(pb, false); err != nil {
		t.Fatal(err)
	}
	if pb.Off != firstOff {
		t.Fatalf("recommit changed offset: got %d, want %d", pb.Off, firstOff)
	}

	if err := bm.Seek(0); err != nil {
		t.Fatal(err)
	}
	if bm.DataOff != firstOff {
		t.Fatalf("got data offset %d, want %d", bm.DataOff, firstOff)
	}
}
