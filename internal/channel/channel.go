// Package channel implements the per-channel dispatcher (spec.md
// §4.10-§4.11): it selects the right data-block codec for a channel's
// kind, optionally wraps it with a circular write buffer, and exposes
// the uniform read/write/prev-time/edit-marker surface the file
// coordinator drives.
package channel

import (
	"github.com/cznic/s64/internal/block"
	"github.com/cznic/s64/internal/codec"
	"github.com/cznic/s64/internal/header"
	"github.com/cznic/s64/internal/index"
	"github.com/cznic/s64/internal/ring"
	"github.com/cznic/s64/internal/serr"
)

// Kind mirrors header.ChannelHeader.Kind as a typed enum (spec.md §3).
type Kind uint8

const (
	Off Kind = iota
	EventRise
	EventFall
	EventBoth
	Marker
	TextMark
	RealMark
	AdcMark
	Adc
	RealWave
)

// NoTime is the "no time" sentinel (spec.md §2).
const NoTime = codec.NoTime

// Channel is one slot's live state: its header, its read tree (reader),
// its append tree (writer), and the kind-specific codec it dispatches
// to, optionally behind a circular write buffer.
type Channel struct {
	Num    uint16
	Head   *header.ChannelHeader
	Reader *index.BlockManager
	Writer *index.AppendPath

	DBSIZE int
	DLSIZE int

	// ReadOnly blocks this channel's write path (spec.md §7's ReadOnly
	// constraint class: returned, no state change), set once by the file
	// coordinator from Options.ReadOnly when the channel is constructed.
	ReadOnly bool

	Buf *ring.WriteBuffer // nil when unbuffered

	// sink bridges the write buffer (or, unbuffered, a direct call) to
	// this channel's codec/append path.
	sink ring.Sink

	// pendingOff/pendingRaw/pendingFirst track the currently open
	// append-tree data block (spec.md §4.7): pendingRaw is nil when no
	// block is open, in which case the next write allocates a fresh one.
	// A freshly opened s64.File never reloads a partially-written last
	// block from disk; it starts each channel's first post-open write in
	// a new block (see DESIGN.md).
	pendingOff   int64
	pendingRaw   []byte
	pendingFirst int64
}

// InitWriter wires the append path's reader-notification and root-growth
// callbacks to this channel, and builds its codec/disk sink. The file
// coordinator calls this once, after constructing Reader and Writer and
// before any Write/Commit call.
func (c *Channel) InitWriter() {
	c.Writer.Reader = c.Reader
	c.Writer.LastTimeOnDisk = c.Head.LastTimeOnDisk
	c.Writer.OnRootGrow = func(off int64, depth int) {
		c.Head.RootOff = off
	}
	c.buildSink()
}

// SetKind assigns a channel's kind and payload shape, initializing its
// codec wiring. Reassigning a kind on an in-use slot is the caller's
// responsibility to gate on (spec.md §4.11's dispatcher contract: the
// coordinator holds the exclusive channel-vector lock for this).
func (c *Channel) SetKind(kind Kind, rows, cols, preTrigger uint32, tickDivide int64) error {
	if c.Head.ActiveBlocks > 0 {
		return serr.New(serr.ChannelUsed, "channel.SetKind", c.Num)
	}
	c.Head.Kind = uint8(kind)
	c.Head.Rows, c.Head.Cols, c.Head.PreTrigger = rows, cols, preTrigger
	c.Head.SampleInterval = tickDivide
	c.Head.ItemBytes = uint32(c.itemSize(kind, rows, cols))
	if c.Reader != nil {
		c.Reader.Info = c.blockInfo()
	}
	return nil
}

// RefreshBlockInfo re-derives the reader's DataBlockInfo from the
// channel header; callers use this after loading a channel header from
// disk (SetKind is for newly assigned kinds only).
func (c *Channel) RefreshBlockInfo() {
	if c.Reader != nil {
		c.Reader.Info = c.blockInfo()
	}
}

func (c *Channel) itemSize(kind Kind, rows, cols uint32) int {
	switch kind {
	case EventRise, EventFall, EventBoth:
		return 8
	case Marker:
		return codec.MarkerRecordSize
	case TextMark:
		return codec.ObjSize(codec.TextMark, rows, 1)
	case RealMark:
		return codec.ObjSize(codec.RealMark, rows, cols)
	case AdcMark:
		return codec.ObjSize(codec.AdcMark, rows, cols)
	case Adc:
		return 2
	case RealWave:
		return 4
	}
	return 0
}

// blockInfo returns the codec.DataBlockInfo implementation for this
// channel's kind, used by the BlockManager to read first/last times out
// of raw blocks without depending on codec internals.
func (c *Channel) blockInfo() index.DataBlockInfo {
	k := Kind(c.Head.Kind)
	switch k {
	case EventRise, EventFall, EventBoth:
		return codec.Event{DBSIZE: c.DBSIZE}
	case Marker:
		return codec.Marker{DBSIZE: c.DBSIZE}
	case TextMark:
		return codec.ExtMark{DBSIZE: c.DBSIZE, Kind: codec.TextMark, Rows: c.Head.Rows, Cols: 1, ObjSize: int(c.Head.ItemBytes), TickDivide: c.Head.SampleInterval}
	case RealMark:
		return codec.ExtMark{DBSIZE: c.DBSIZE, Kind: codec.RealMark, Rows: c.Head.Rows, Cols: c.Head.Cols, ObjSize: int(c.Head.ItemBytes), TickDivide: c.Head.SampleInterval}
	case AdcMark:
		return codec.ExtMark{DBSIZE: c.DBSIZE, Kind: codec.AdcMark, Rows: c.Head.Rows, Cols: c.Head.Cols, ObjSize: int(c.Head.ItemBytes), TickDivide: c.Head.SampleInterval}
	case Adc:
		return codec.Wave{DBSIZE: c.DBSIZE, Kind: codec.AdcWave, TickDivide: c.Head.SampleInterval}
	case RealWave:
		return codec.Wave{DBSIZE: c.DBSIZE, Kind: codec.RealWave, TickDivide: c.Head.SampleInterval}
	}
	return noopBlockInfo{}
}

type noopBlockInfo struct{}

func (noopBlockInfo) FirstTime([]byte) int64 { return NoTime }
func (noopBlockInfo) LastTime([]byte) int64  { return NoTime }

// SetBuffering sizes (or tears down) this channel's circular buffer
// (spec.md §4.9, §4.11).
func (c *Channel) SetBuffering(itemCount int) {
	if c.Buf == nil {
		c.Buf = ring.NewWriteBuffer(int(c.Head.ItemBytes))
		c.Buf.RawCommit = Kind(c.Head.Kind) == EventBoth
	}
	c.Buf.Resize(itemCount)
}

// MaxTime reports the latest time recorded for this channel, whether
// buffered or on disk (spec.md §4.9).
func (c *Channel) MaxTime() int64 {
	if c.Buf != nil {
		return c.Buf.MaxTime(c.sink)
	}
	return c.Head.LastTimeOnDisk
}

// IdealEventsPerSec reports this channel's buffering-size hint, read back
// by File.SetBuffering's aggregate (chan < 0) form to size each channel's
// ring from a shared byte budget (spec.md §3).
func (c *Channel) IdealEventsPerSec() float64 { return c.Head.IdealRate }

// IsSaving, NoSaveList, SaveRange, Save delegate straight to the save
// list backing this channel's write buffer (spec.md §4.9); they are
// no-ops on unbuffered channels, which always save everything.
func (c *Channel) IsSaving(t int64) bool {
	if c.Buf == nil {
		return true
	}
	return c.Buf.Saves.IsSaving(t)
}

func (c *Channel) NoSaveList(from, to int64) []int64 {
	if c.Buf == nil {
		return nil
	}
	return c.Buf.Saves.NoSaveList(from, to)
}

func (c *Channel) SaveRange(from, to int64) {
	if c.Buf == nil {
		return
	}
	c.Buf.Saves.SaveRange(from, to)
}

func (c *Channel) Save(t int64, save bool) {
	if c.Buf == nil {
		return
	}
	c.Buf.Saves.SetSave(t, save)
}

// LatestTime advances the save list's dead range, pruning transitions
// older than the oldest buffered item (spec.md §4.9).
func (c *Channel) LatestTime(t int64) {
	if c.Buf == nil {
		return
	}
	oldest := t
	if !c.Buf.Ring.Empty() {
		oldest = c.Buf.Ring.FirstTime()
	}
	c.Buf.Saves.AdvanceDeadTo(oldest, t)
}

// Delete marks the channel Off, preserving its disk blocks as allocated
// (spec.md §3's lifecycle).
func (c *Channel) Delete() {
	c.Head.PrevKind = c.Head.Kind
	c.Head.Kind = uint8(Off)
}

// Undelete restores the channel's previous kind.
func (c *Channel) Undelete() {
	c.Head.Kind = c.Head.PrevKind
}

// ResetForReuse increments the reuse generation and zeroes the active
// block count; subsequent appends consume the channel's old blocks until
// exhausted (spec.md §3, §4.7). The old, still-intact append tree becomes
// the writer's reuse cursor, positioned from its current root down, so the
// next Writes replay it instead of allocating fresh blocks.
func (c *Channel) ResetForReuse() {
	depth := index.Depth(c.Head.AllocatedBlocks, block.FANOUT(c.DLSIZE))
	c.Writer.SetReuseRoot(c.Head.RootOff, depth)
	c.Head.ReuseGen++
	c.Head.ActiveBlocks = 0
	c.Reader.Invalidate()
}

// EmptyForReuse reports whether allocated_blocks > active_blocks, i.e.
// this channel has vacated space available to a deleted channel's
// reuse walk.
func (c *Channel) EmptyForReuse() bool { return c.Head.IsReuseMode() }

// Commit flushes this channel's buffered-and-saving data through its
// codec and writes any dirty data blocks and append-tree nodes (spec.md
// §4.11). Unbuffered channels have nothing buffered to flush, so Commit
// only persists dirty append-tree nodes.
func (c *Channel) Commit() error {
	if c.Buf != nil && !c.Buf.Ring.Empty() {
		if err := c.Buf.Flush(c.Buf.Ring.Len(), c.sink); err != nil {
			return err
		}
	}
	return c.Writer.FlushAll()
}
