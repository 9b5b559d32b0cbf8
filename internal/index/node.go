// Package index implements the per-channel index tree (spec.md §4.5-§4.7):
// the fixed-fanout lookup node, the read and append trees built from it,
// the block-manager reader that walks the tree by time, and the append
// path that grows it and reuses blocks left behind by deleted channels.
package index

import (
	"encoding/binary"

	"github.com/cznic/s64/internal/block"
	"github.com/cznic/s64/internal/serr"
)

// Entry is one (first_time, disk_off) pair inside a lookup node.
type Entry struct {
	FirstTime int64
	Off       int64
}

// Node is an in-memory lookup block (spec.md §3, §4.5): a header plus an
// array of up to Fanout entries, strictly increasing in both time and
// offset.
type Node struct {
	Level       uint8
	ParentOff   int64
	ParentIndex uint8
	Chan        uint16
	ChanID      uint16
	Fanout      int
	Entries     []Entry
	Dirty       bool
}

// NewNode returns an empty lookup node at the given tree level (1-based;
// level 1 points at data blocks) for a channel.
func NewNode(fanout int, level uint8, ch uint16, chanID uint16) *Node {
	return &Node{Level: level, Chan: ch, ChanID: chanID, Fanout: fanout, Dirty: true}
}

// ErrFull is returned by AddEntry when the node has no room left.
var ErrFull = serr.New(serr.NoBlock, "index.Node.AddEntry", "node full")

// AddEntry appends (off, t) to the node, requiring t to be strictly
// greater than the current last entry's time (spec.md §4.5). It returns
// the new entry's index, or ErrFull if the node has no room.
func (n *Node) AddEntry(off, t int64) (int, error) {
	if len(n.Entries) >= n.Fanout {
		return 0, ErrFull
	}
	if len(n.Entries) > 0 {
		last := n.Entries[len(n.Entries)-1]
		if t <= last.FirstTime || off <= last.Off {
			return 0, serr.New(serr.BadParam, "index.Node.AddEntry", "non-increasing time or offset")
		}
	}
	n.Entries = append(n.Entries, Entry{FirstTime: t, Off: off})
	n.Dirty = true
	return len(n.Entries) - 1, nil
}

// UpperBound returns the index of the first entry, among the first nUse
// entries (nUse <= len(Entries), honoring reuse per spec.md §4.6), whose
// time is strictly greater than t. It returns nUse if no such entry
// exists.
func (n *Node) UpperBound(t int64, nUse int) int {
	if nUse > len(n.Entries) {
		nUse = len(n.Entries)
	}
	lo, hi := 0, nUse
	for lo < hi {
		mid := (lo + hi) / 2
		if n.Entries[mid].FirstTime > t {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// UpdateLastTime rewrites the time of the node's last entry (spec.md §4.5:
// "entries... are append-only except for the last entry of the last node
// in each level, whose time may be updated when that entry is rewritten").
func (n *Node) UpdateLastTime(t int64) {
	if len(n.Entries) == 0 {
		return
	}
	n.Entries[len(n.Entries)-1].FirstTime = t
	n.Dirty = true
}

// Encode serializes the node into a DLSIZE-sized buffer.
func (n *Node) Encode(dlsize int) []byte {
	buf := make([]byte, dlsize)
	hdr := block.Header{
		ParentOff:   n.ParentOff,
		Level:       n.Level,
		ParentIndex: n.ParentIndex,
		Chan:        n.Chan,
		ChanID:      n.ChanID,
		NItems:      uint32(len(n.Entries)),
	}
	hdr.Encode(buf)
	off := block.HeaderSize
	for _, e := range n.Entries {
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(e.FirstTime))
		binary.LittleEndian.PutUint64(buf[off+8:off+16], uint64(e.Off))
		off += 16
	}
	return buf
}

// DecodeNode deserializes a node from a DLSIZE-sized buffer.
func DecodeNode(buf []byte, fanout int) (*Node, error) {
	if len(buf) < block.HeaderSize {
		return nil, serr.New(serr.CorruptFile, "index.DecodeNode", "short buffer")
	}
	hdr := block.Decode(buf)
	if hdr.Level < 1 || hdr.Level > 6 {
		return nil, serr.New(serr.CorruptFile, "index.DecodeNode", "bad level")
	}
	if int(hdr.NItems) > fanout {
		return nil, serr.New(serr.CorruptFile, "index.DecodeNode", "n_items exceeds fanout")
	}
	n := &Node{
		Level:       hdr.Level,
		ParentOff:   hdr.ParentOff,
		ParentIndex: hdr.ParentIndex,
		Chan:        hdr.Chan,
		ChanID:      hdr.ChanID,
		Fanout:      fanout,
		Entries:     make([]Entry, hdr.NItems),
	}
	off := block.HeaderSize
	var prevT, prevOff int64 = -1, -1
	for i := range n.Entries {
		t := int64(binary.LittleEndian.Uint64(buf[off : off+8]))
		o := int64(binary.LittleEndian.Uint64(buf[off+8 : off+16]))
		if i > 0 && (t <= prevT || o <= prevOff) {
			return nil, serr.New(serr.CorruptFile, "index.DecodeNode", "entries not strictly increasing")
		}
		n.Entries[i] = Entry{FirstTime: t, Off: o}
		prevT, prevOff = t, o
		off += 16
	}
	return n, nil
}
