package block

import "github.com/cznic/s64/internal/serr"

// Allocator hands out fixed-size data blocks and sub-allocates lookup
// blocks from a shared DBSIZE region (spec.md §4.1). It is not safe for
// concurrent use; the caller (s64.File) serializes access under its header
// lock, per spec.md §5.
type Allocator struct {
	DBSIZE int
	DLSIZE int

	// MaxBlocks bounds the file, in DBSIZE units; 0 means unbounded.
	MaxBlocks int64

	nextBlockOff int64 // next_block_off
	nextSubOff   int64 // next_sub_off; 0 means "no partial sub-block"
}

// NewAllocator returns an Allocator whose next_block_off starts at
// startOff (the byte offset immediately following the file header area).
func NewAllocator(dbsize, dlsize int, maxBlocks int64, startOff int64) *Allocator {
	return &Allocator{DBSIZE: dbsize, DLSIZE: dlsize, MaxBlocks: maxBlocks, nextBlockOff: startOff}
}

// NextBlockOff reports the allocator's current forward-growth cursor, for
// persistence into the file header.
func (a *Allocator) NextBlockOff() int64 { return a.nextBlockOff }

// NextSubOff reports the allocator's current lookup sub-block cursor (0 if
// none is in progress), for persistence into the file header.
func (a *Allocator) NextSubOff() int64 { return a.nextSubOff }

// Restore reinitializes the allocator's cursors from a previously persisted
// file header, used when reopening a file.
func (a *Allocator) Restore(nextBlockOff, nextSubOff int64) {
	a.nextBlockOff = nextBlockOff
	a.nextSubOff = nextSubOff
}

func (a *Allocator) atMax(off int64) bool {
	return a.MaxBlocks > 0 && off/int64(a.DBSIZE) >= a.MaxBlocks
}

// AllocateData returns the offset of a freshly allocated DBSIZE block and
// advances next_block_off.
func (a *Allocator) AllocateData() (int64, error) {
	if a.atMax(a.nextBlockOff) {
		return 0, serr.New(serr.NoBlock, "Allocator.AllocateData", a.nextBlockOff)
	}
	off := a.nextBlockOff
	a.nextBlockOff += int64(a.DBSIZE)
	return off, nil
}

// AllocateLookup returns the offset of a freshly sub-allocated DLSIZE
// block, allocating a fresh DBSIZE region to sub-divide when none is in
// progress (spec.md §4.1).
func (a *Allocator) AllocateLookup() (int64, error) {
	if a.nextSubOff == 0 {
		off, err := a.AllocateData()
		if err != nil {
			return 0, err
		}
		a.nextSubOff = off
	}

	off := a.nextSubOff
	lastSlot := int64(a.DBSIZE - a.DLSIZE)
	if off&lastSlot == lastSlot {
		a.nextSubOff = 0
	} else {
		a.nextSubOff += int64(a.DLSIZE)
	}
	return off, nil
}
