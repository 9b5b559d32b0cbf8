package header

import (
	"encoding/binary"
	"math"
)

// ChannelHeaderSize is the encoded size, in bytes, of a single ChannelHeader
// slot in the channel-header array (spec.md §3).
const ChannelHeaderSize = 128

// ChannelHeader is the persisted, per-channel-slot metadata stored in the
// file header area (spec.md §3). Channel kinds and flags are represented
// as plain integers here; the channel package maps them to its exported
// enums to keep this package free of a dependency on channel semantics.
type ChannelHeader struct {
	RootOff         int64 // current index-tree root offset, 0 if empty
	LastTimeOnDisk  int64
	ActiveBlocks    int64
	AllocatedBlocks int64

	ItemBytes      uint32 // payload item size (codec obj_size)
	Rows           uint32
	Cols           uint32
	PreTrigger     uint32
	SampleInterval int64 // tick_divide, for wave channels

	ReuseGen uint16
	Kind     uint8
	PrevKind uint8 // kind before delete, for undelete
	Flags    uint32

	PhysChan uint32 // opaque physical channel number

	TitleID   uint32
	UnitsID   uint32
	CommentID uint32

	IdealRate float64 // hint events/sec for buffering sizing
	Scale     float64
	Offset    float64
	YLow      float64
	YHigh     float64
}

// Encode serializes h into buf, which must be at least ChannelHeaderSize
// bytes.
func (h *ChannelHeader) Encode(buf []byte) {
	_ = buf[ChannelHeaderSize-1]
	le := binary.LittleEndian
	le.PutUint64(buf[0:8], uint64(h.RootOff))
	le.PutUint64(buf[8:16], uint64(h.LastTimeOnDisk))
	le.PutUint64(buf[16:24], uint64(h.ActiveBlocks))
	le.PutUint64(buf[24:32], uint64(h.AllocatedBlocks))
	le.PutUint32(buf[32:36], h.ItemBytes)
	le.PutUint32(buf[36:40], h.Rows)
	le.PutUint32(buf[40:44], h.Cols)
	le.PutUint32(buf[44:48], h.PreTrigger)
	le.PutUint64(buf[48:56], uint64(h.SampleInterval))
	le.PutUint16(buf[56:58], h.ReuseGen)
	buf[58] = h.Kind
	buf[59] = h.PrevKind
	le.PutUint32(buf[60:64], h.Flags)
	le.PutUint32(buf[64:68], h.PhysChan)
	le.PutUint32(buf[68:72], h.TitleID)
	le.PutUint32(buf[72:76], h.UnitsID)
	le.PutUint32(buf[76:80], h.CommentID)
	le.PutUint64(buf[80:88], math.Float64bits(h.IdealRate))
	le.PutUint64(buf[88:96], math.Float64bits(h.Scale))
	le.PutUint64(buf[96:104], math.Float64bits(h.Offset))
	le.PutUint64(buf[104:112], math.Float64bits(h.YLow))
	le.PutUint64(buf[112:120], math.Float64bits(h.YHigh))
}

// DecodeChannelHeader deserializes a ChannelHeader from buf.
func DecodeChannelHeader(buf []byte) *ChannelHeader {
	_ = buf[ChannelHeaderSize-1]
	le := binary.LittleEndian
	h := &ChannelHeader{}
	h.RootOff = int64(le.Uint64(buf[0:8]))
	h.LastTimeOnDisk = int64(le.Uint64(buf[8:16]))
	h.ActiveBlocks = int64(le.Uint64(buf[16:24]))
	h.AllocatedBlocks = int64(le.Uint64(buf[24:32]))
	h.ItemBytes = le.Uint32(buf[32:36])
	h.Rows = le.Uint32(buf[36:40])
	h.Cols = le.Uint32(buf[40:44])
	h.PreTrigger = le.Uint32(buf[44:48])
	h.SampleInterval = int64(le.Uint64(buf[48:56]))
	h.ReuseGen = le.Uint16(buf[56:58])
	h.Kind = buf[58]
	h.PrevKind = buf[59]
	h.Flags = le.Uint32(buf[60:64])
	h.PhysChan = le.Uint32(buf[64:68])
	h.TitleID = le.Uint32(buf[68:72])
	h.UnitsID = le.Uint32(buf[72:76])
	h.CommentID = le.Uint32(buf[76:80])
	h.IdealRate = math.Float64frombits(le.Uint64(buf[80:88]))
	h.Scale = math.Float64frombits(le.Uint64(buf[88:96]))
	h.Offset = math.Float64frombits(le.Uint64(buf[96:104]))
	h.YLow = math.Float64frombits(le.Uint64(buf[104:112]))
	h.YHigh = math.Float64frombits(le.Uint64(buf[112:120]))
	return h
}

// IsReuseMode reports whether allocated blocks exceed active blocks,
// meaning writes will reuse previously allocated, now-vacated space
// (spec.md §3 invariant).
func (h *ChannelHeader) IsReuseMode() bool { return h.AllocatedBlocks > h.ActiveBlocks }
