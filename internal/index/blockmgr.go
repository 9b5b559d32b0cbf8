package index

import (
	"github.com/cznic/s64/internal/block"
	"github.com/cznic/s64/internal/serr"
)

// DataBlockInfo lets the block manager ask a channel's codec for the first
// and last times recorded in a raw data block, without the index package
// needing to know anything about per-kind payload layouts.
type DataBlockInfo interface {
	FirstTime(raw []byte) int64
	LastTime(raw []byte) int64
}

// BlockManager is the per-channel reader (spec.md §4.6): it owns the read
// tree (root to the currently loaded data block) and the one data block
// currently loaded.
type BlockManager struct {
	Filer  block.Filer
	DBSIZE int
	DLSIZE int
	Fanout int
	Chan   uint16
	ChanID uint16
	Info   DataBlockInfo

	RootOff int64
	Depth   int

	// ReuseCount[level], when >= 0, caps how many of Path.Nodes[level]'s
	// entries are genuinely in use (spec.md §4.6: "reuse_count[level]
	// giving the count of in-use entries in the last node at each
	// level"); -1 means "use the node's real NItems".
	ReuseCount []int

	// Append is consulted so a node the writer just updated is copied
	// from memory instead of re-read from disk (spec.md §4.6, §9).
	Append *AppendPath

	Path  Path
	idx   []int // chosen entry index at each Path level
	Valid bool  // read tree is populated and consistent

	DataOff   int64
	DataBlock []byte // DBSIZE-sized raw block, valid iff len > 0
}

// NewBlockManager returns a reader for one channel.
func NewBlockManager(filer block.Filer, dbsize, dlsize int, ch, chanID uint16, info DataBlockInfo) *BlockManager {
	return &BlockManager{
		Filer: filer, DBSIZE: dbsize, DLSIZE: dlsize, Fanout: block.FANOUT(dlsize),
		Chan: ch, ChanID: chanID, Info: info,
	}
}

// Invalidate forces the next Seek to reload the read tree from disk
// (spec.md §4.5: "When an append causes the tree to grow..., the read-tree
// is invalidated").
func (m *BlockManager) Invalidate() { m.Valid = false }

// SetRoot installs the current root offset, tree depth, and reuse counts,
// as tracked by the channel header; called whenever these may have
// changed (e.g. after an append grows the tree).
func (m *BlockManager) SetRoot(rootOff int64, depth int, reuseCount []int) {
	m.RootOff = rootOff
	m.Depth = depth
	m.ReuseCount = reuseCount
}

func (m *BlockManager) nUse(level int, n *Node) int {
	if m.ReuseCount != nil && level < len(m.ReuseCount) && m.ReuseCount[level] >= 0 {
		return m.ReuseCount[level]
	}
	return len(n.Entries)
}

func (m *BlockManager) loadNode(off int64) (*Node, error) {
	buf := make([]byte, m.DLSIZE)
	if _, err := m.Filer.ReadAt(buf, off); err != nil {
		m.Valid = false
		return nil, serr.New(serr.BadRead, "index.BlockManager.loadNode", err)
	}
	return DecodeNode(buf, m.Fanout)
}

// loadNodePreferAppend loads the node at off for Path level `level`,
// copying it from the append tree in memory if the append tree currently
// holds a node at that level with the same offset (spec.md §4.6, §9): this
// avoids re-reading a node the writer just mutated and keeps a read that
// immediately precedes the write-end consistent.
func (m *BlockManager) loadNodePreferAppend(level int, off int64) (*Node, error) {
	if m.Append != nil && level < m.Append.Path.Len() && m.Append.Path.Offs[level] == off {
		src := m.Append.Path.Nodes[level]
		cp := *src
		cp.Entries = append([]Entry(nil), src.Entries...)
		return &cp, nil
	}
	if level < m.Path.Len() && m.Path.Offs[level] == off {
		return m.Path.Nodes[level], nil
	}
	return m.loadNode(off)
}

func (m *BlockManager) setPathLevel(level int, n *Node, off int64) {
	for len(m.Path.Nodes) <= level {
		m.Path.Nodes = append(m.Path.Nodes, nil)
		m.Path.Offs = append(m.Path.Offs, 0)
		m.idx = append(m.idx, 0)
	}
	m.Path.Nodes[level] = n
	m.Path.Offs[level] = off
}

func (m *BlockManager) loadData(off int64) error {
	buf := make([]byte, m.DBSIZE)
	if _, err := m.Filer.ReadAt(buf, off); err != nil {
		return serr.New(serr.BadRead, "index.BlockManager.loadData", err)
	}
	m.DataOff = off
	m.DataBlock = buf
	return nil
}

// Seek walks from the root to the data block that should contain tFind
// (spec.md §4.6). Callers must have already verified the channel has at
// least one active block.
func (m *BlockManager) Seek(tFind int64) error {
	if !m.Valid {
		m.Path.Reset()
		m.idx = nil
		m.Valid = true
	}

	off := m.RootOff
	for level := m.Depth - 1; level >= 0; level-- {
		node, err := m.loadNodePreferAppend(level, off)
		if err != nil {
			return err
		}
		m.setPathLevel(level, node, off)

		if len(node.Entries) == 0 {
			return serr.New(serr.CorruptFile, "index.BlockManager.Seek", "empty node")
		}
		n := m.nUse(level, node)
		ub := node.UpperBound(tFind, n)
		if ub > 0 {
			ub--
		}
		if ub >= len(node.Entries) {
			ub = len(node.Entries) - 1
		}
		m.idx[level] = ub
		off = node.Entries[ub].Off
	}

	if err := m.loadData(off); err != nil {
		return err
	}
	if m.Info.LastTime(m.DataBlock) < tFind {
		return m.nextBlock(0)
	}
	return nil
}

// nextBlock advances the read position by one data block, growing the
// walk up the tree as needed (spec.md §4.6).
func (m *BlockManager) nextBlock(level int) error {
	if level >= m.Path.Len() {
		return serr.New(serr.PastEof, "index.BlockManager.nextBlock", level)
	}
	node := m.Path.Nodes[level]
	n := m.nUse(level, node)
	newIdx := m.idx[level] + 1
	if newIdx >= n {
		if err := m.nextBlock(level + 1); err != nil {
			return err
		}
		parent := m.Path.Nodes[level+1]
		newOff := parent.Entries[m.idx[level+1]].Off
		fresh, err := m.loadNodePreferAppend(level, newOff)
		if err != nil {
			return err
		}
		m.setPathLevel(level, fresh, newOff)
		node = fresh
		newIdx = 0
	}
	m.idx[level] = newIdx
	if level == 0 {
		return m.loadData(node.Entries[newIdx].Off)
	}
	return nil
}

// prevBlock retreats the read position by one data block (spec.md §4.6,
// symmetric with nextBlock, wrapping to Fanout-1 on underflow into a full
// previous node per spec.md §9's resolved open question).
func (m *BlockManager) prevBlock(level int) error {
	if level >= m.Path.Len() {
		return serr.New(serr.PastSof, "index.BlockManager.prevBlock", level)
	}
	node := m.Path.Nodes[level]
	newIdx := m.idx[level] - 1
	if newIdx < 0 {
		if err := m.prevBlock(level + 1); err != nil {
			return err
		}
		parent := m.Path.Nodes[level+1]
		newOff := parent.Entries[m.idx[level+1]].Off
		fresh, err := m.loadNodePreferAppend(level, newOff)
		if err != nil {
			return err
		}
		m.setPathLevel(level, fresh, newOff)
		node = fresh
		newIdx = m.nUse(level, fresh) - 1
	}
	m.idx[level] = newIdx
	if level == 0 {
		return m.loadData(node.Entries[newIdx].Off)
	}
	return nil
}

// Next is the exported form of nextBlock for channel-dispatcher use.
func (m *BlockManager) Next() error { return m.nextBlock(0) }

// Prev is the exported form of prevBlock for channel-dispatcher use.
func (m *BlockManager) Prev() error { return m.prevBlock(0) }

// UpdateIndex is called by the writer after it modifies an append-tree
// node; if the read tree holds a node at the same disk offset, its
// contents are refreshed in place (spec.md §4.6). If Path depths differ
// from the append tree's in a way that suggests the tree grew, the read
// tree is invalidated instead.
func (m *BlockManager) UpdateIndex(level int, n *Node, off int64) {
	if level >= m.Path.Len() {
		m.Valid = false
		return
	}
	if m.Path.Offs[level] != off {
		return
	}
	cp := *n
	cp.Entries = append([]Entry(nil), n.Entries...)
	m.Path.Nodes[level] = &cp
}

// UpdateData is called by the writer after it rewrites an existing data
// block; if the reader currently holds that block, it's overwritten in
// place (spec.md §4.6).
func (m *BlockManager) UpdateData(off int64, raw []byte) {
	if m.DataOff == off && len(m.DataBlock) == len(raw) {
		copy(m.DataBlock, raw)
	}
}
