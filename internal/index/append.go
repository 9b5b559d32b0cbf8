package index

import (
	"github.com/cznic/s64/internal/block"
	"github.com/cznic/s64/internal/serr"
)

// AppendPath is the per-channel writer (spec.md §4.7): it owns the append
// tree (root to the current write-end block) and the block reuse cursor
// used while `allocated_blocks > active_blocks`.
type AppendPath struct {
	Filer  block.Filer
	Alloc  *block.Allocator
	DBSIZE int
	DLSIZE int
	Fanout int
	Chan   uint16
	ChanID uint16

	Path Path
	idx  []int // last-written entry index at each level

	// ReuseIdx mirrors idx but walks a pre-existing (reused) tree rather
	// than growing a new one; nil when not in a reuse walk.
	ReuseIdx []int

	// Reader is informed of index/data mutations so a concurrent read
	// at the write-end stays consistent (spec.md §4.6, §9).
	Reader *BlockManager

	// OnRootGrow is invoked whenever the tree gains a new root level;
	// the caller (channel dispatcher) persists the new root offset and
	// depth into the channel header and invalidates the read tree.
	OnRootGrow func(newRootOff int64, newDepth int)

	LastTimeOnDisk int64

	rootOffHint int64
	reuseDepth  int
}

// NewAppendPath returns a writer for one channel.
func NewAppendPath(filer block.Filer, alloc *block.Allocator, dbsize, dlsize int, ch, chanID uint16) *AppendPath {
	return &AppendPath{
		Filer: filer, Alloc: alloc, DBSIZE: dbsize, DLSIZE: dlsize,
		Fanout: block.FANOUT(dlsize), Chan: ch, ChanID: chanID,
	}
}

func (a *AppendPath) setPathLevel(level int, n *Node, off int64) {
	for len(a.Path.Nodes) <= level {
		a.Path.Nodes = append(a.Path.Nodes, nil)
		a.Path.Offs = append(a.Path.Offs, 0)
		a.idx = append(a.idx, 0)
	}
	a.Path.Nodes[level] = n
	a.Path.Offs[level] = off
}

func (a *AppendPath) loadNode(off int64) (*Node, error) {
	buf := make([]byte, a.DLSIZE)
	if _, err := a.Filer.ReadAt(buf, off); err != nil {
		return nil, serr.New(serr.BadRead, "index.AppendPath.loadNode", err)
	}
	return DecodeNode(buf, a.Fanout)
}

func (a *AppendPath) flushLevel(level int) error {
	n := a.Path.Nodes[level]
	if n == nil || !n.Dirty {
		return nil
	}
	buf := n.Encode(a.DLSIZE)
	if _, err := a.Filer.WriteAt(buf, a.Path.Offs[level]); err != nil {
		return serr.New(serr.BadWrite, "index.AppendPath.flushLevel", err)
	}
	n.Dirty = false
	if a.Reader != nil {
		a.Reader.UpdateIndex(level, n, a.Path.Offs[level])
	}
	return nil
}

// SaveAppendIndex flushes level's node if dirty (spec.md §4.7).
func (a *AppendPath) SaveAppendIndex(level int) error {
	if level < 0 || level >= a.Path.Len() {
		return nil
	}
	return a.flushLevel(level)
}

// FlushAll flushes every dirty append-tree node, root to leaf.
func (a *AppendPath) FlushAll() error {
	for level := a.Path.Len() - 1; level >= 0; level-- {
		if err := a.flushLevel(level); err != nil {
			return err
		}
	}
	return nil
}

// AddIndexEntry inserts (off, t) into the append tree at the given level
// (0 == the node pointing directly at data blocks), growing a new root
// when the tree is full, per spec.md §4.7.
func (a *AppendPath) AddIndexEntry(level int, off, t int64) error {
	if level == a.Path.Len() {
		if err := a.growRoot(level, off, t); err != nil {
			return err
		}
	}

	node := a.Path.Nodes[level]
	if _, err := node.AddEntry(off, t); err != nil {
		if err != ErrFull {
			return err
		}
		newOff, aerr := a.Alloc.AllocateLookup()
		if aerr != nil {
			return aerr
		}
		if err := a.AddIndexEntry(level+1, newOff, t); err != nil {
			return err
		}
		if err := a.flushLevel(level); err != nil {
			return err
		}
		parent := a.Path.Nodes[level+1]
		fresh := NewNode(a.Fanout, uint8(level+1), a.Chan, a.ChanID)
		fresh.ParentOff = a.Path.Offs[level+1]
		fresh.ParentIndex = uint8(len(parent.Entries) - 1)
		a.setPathLevel(level, fresh, newOff)
		if _, err := fresh.AddEntry(off, t); err != nil {
			return err
		}
	}
	a.idx[level] = len(a.Path.Nodes[level].Entries) - 1
	return nil
}

// growRoot allocates a new lookup block to become the root at `level`,
// linking the previous root (if any) beneath it.
func (a *AppendPath) growRoot(level int, off, t int64) error {
	if level == 0 {
		newOff, err := a.Alloc.AllocateLookup()
		if err != nil {
			return err
		}
		a.setPathLevel(0, NewNode(a.Fanout, 1, a.Chan, a.ChanID), newOff)
		if a.OnRootGrow != nil {
			a.OnRootGrow(newOff, 1)
		}
		return nil
	}

	oldRoot := a.Path.Nodes[level-1]
	oldRootOff := a.Path.Offs[level-1]
	newOff, err := a.Alloc.AllocateLookup()
	if err != nil {
		return err
	}
	newRoot := NewNode(a.Fanout, uint8(level+1), a.Chan, a.ChanID)
	if _, err := newRoot.AddEntry(oldRootOff, oldRoot.Entries[0].FirstTime); err != nil {
		return err
	}
	a.setPathLevel(level, newRoot, newOff)
	oldRoot.ParentOff = newOff
	oldRoot.ParentIndex = 0
	oldRoot.Dirty = true
	if a.OnRootGrow != nil {
		a.OnRootGrow(newOff, level+1)
	}
	return nil
}

// PendingBlock is a not-yet-placed data block: Off is nonzero only when
// recommitting a block that was already assigned an offset (spec.md
// §4.7's "recommit of a partially-written block").
type PendingBlock struct {
	Off       int64
	FirstTime int64
	Raw       []byte // DBSIZE bytes, header already stamped with NItems
}

// AppendBlock writes pb, allocating fresh space (or consuming a reused
// block, or reusing pb.Off on a recommit) and growing the index tree as
// needed (spec.md §4.7).
func (a *AppendPath) AppendBlock(pb *PendingBlock, reuseMode bool) error {
	var off int64
	var parentOff int64
	var parentIndex uint8

	switch {
	case pb.Off != 0:
		off = pb.Off
		hdr := block.Decode(pb.Raw)
		parentOff, parentIndex = hdr.ParentOff, hdr.ParentIndex
	case reuseMode:
		var err error
		off, parentOff, parentIndex, err = a.getReuseOffsetSetTime(pb.FirstTime)
		if err != nil {
			return err
		}
	default:
		var err error
		off, err = a.Alloc.AllocateData()
		if err != nil {
			return err
		}
		if err := a.AddIndexEntry(0, off, pb.FirstTime); err != nil {
			return err
		}
		parentOff = a.Path.Offs[0]
		parentIndex = uint8(a.idx[0])
	}

	hdr := block.Decode(pb.Raw)
	hdr.ParentOff, hdr.ParentIndex = parentOff, parentIndex
	hdr.Chan, hdr.ChanID = a.Chan, a.ChanID
	hdr.Encode(pb.Raw)

	if _, err := a.Filer.WriteAt(pb.Raw, off); err != nil {
		return serr.New(serr.BadWrite, "index.AppendPath.AppendBlock", err)
	}
	pb.Off = off
	a.LastTimeOnDisk = lastInBlock(pb.Raw, a.LastTimeOnDisk)
	if a.Reader != nil {
		a.Reader.UpdateData(off, pb.Raw)
	}
	return nil
}

// lastInBlock is a placeholder hook: the real "last time in block" value
// is codec-specific and supplied by the caller (channel dispatcher) via
// SetLastTimeOnDisk after decoding pb.Raw with the right codec; this
// function just preserves the previous value until that happens.
func lastInBlock(raw []byte, prev int64) int64 { return prev }

// SetLastTimeOnDisk lets the channel dispatcher report the true last time
// written, after decoding pb.Raw with the channel's codec.
func (a *AppendPath) SetLastTimeOnDisk(t int64) { a.LastTimeOnDisk = t }

// getReuseOffsetSetTime walks the pre-existing (reused) tree one step and
// returns the next block's offset, updating the first-time entries of any
// node whose reuse cursor sits at position 0 and propagating that update
// upward until a non-zero cursor position is reached (spec.md §4.7).
func (a *AppendPath) getReuseOffsetSetTime(firstTime int64) (off, parentOff int64, parentIndex uint8, err error) {
	if a.ReuseIdx == nil {
		if err := a.positionReuseAtStart(); err != nil {
			return 0, 0, 0, err
		}
	} else if err := a.advanceReuse(0); err != nil {
		return 0, 0, 0, err
	}

	leaf := a.Path.Nodes[0]
	idx := a.ReuseIdx[0]
	off = leaf.Entries[idx].Off
	parentOff = a.Path.Offs[0]
	parentIndex = uint8(idx)

	for level := 0; level < a.Path.Len(); level++ {
		if a.ReuseIdx[level] != 0 {
			break
		}
		a.Path.Nodes[level].Entries[0].FirstTime = firstTime
		a.Path.Nodes[level].Dirty = true
		if a.Reader != nil {
			a.Reader.UpdateIndex(level, a.Path.Nodes[level], a.Path.Offs[level])
		}
	}
	return off, parentOff, parentIndex, nil
}

// positionReuseAtStart loads the append tree positioned at the first
// reusable block (root down, always taking entry 0), for the first write
// after entering reuse mode.
func (a *AppendPath) positionReuseAtStart() error {
	a.Path.Reset()
	off := a.rootOffHint
	a.ReuseIdx = make([]int, a.reuseDepth)
	for level := a.reuseDepth - 1; level >= 0; level-- {
		n, err := a.loadNode(off)
		if err != nil {
			return err
		}
		a.setPathLevel(level, n, off)
		a.ReuseIdx[level] = 0
		off = n.Entries[0].Off
	}
	return nil
}

// advanceReuse moves the reuse cursor forward by one leaf entry, mirroring
// BlockManager.nextBlock's recursive structure but over a static,
// pre-existing tree (no allocation).
func (a *AppendPath) advanceReuse(level int) error {
	if level >= a.Path.Len() {
		return serr.New(serr.NoBlock, "index.AppendPath.advanceReuse", "reuse exhausted")
	}
	node := a.Path.Nodes[level]
	newIdx := a.ReuseIdx[level] + 1
	if newIdx >= len(node.Entries) {
		if err := a.advanceReuse(level + 1); err != nil {
			return err
		}
		parent := a.Path.Nodes[level+1]
		newOff := parent.Entries[a.ReuseIdx[level+1]].Off
		fresh, err := a.loadNode(newOff)
		if err != nil {
			return err
		}
		a.setPathLevel(level, fresh, newOff)
		newIdx = 0
	}
	a.ReuseIdx[level] = newIdx
	return nil
}

// Depth reports the append tree's current number of levels.
func (a *AppendPath) Depth() int { return a.Path.Len() }

// SetReuseRoot tells the append path which root offset to resume reuse
// walks from (the deleted channel's original, still-intact index tree).
func (a *AppendPath) SetReuseRoot(rootOff int64, depth int) {
	a.rootOffHint = rootOff
	a.reuseDepth = depth
}
