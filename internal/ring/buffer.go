package ring

// Buffer is a fixed-capacity circular store of fixed-size items, each
// tagged with a time (spec.md §4.9). It provides the primitive
// operations the write/read/flush algorithm is built from; the algorithm
// itself lives in WriteBuffer below.
type Buffer struct {
	data     []byte
	times    []int64
	itemSize int
	capacity int
	head     int // logical index 0's physical slot
	count    int
}

// NewBuffer allocates a ring for up to capacity items of itemSize bytes
// each.
func NewBuffer(capacity, itemSize int) *Buffer {
	return &Buffer{
		data:     make([]byte, capacity*itemSize),
		times:    make([]int64, capacity),
		itemSize: itemSize,
		capacity: capacity,
	}
}

// Len reports how many items are currently buffered.
func (b *Buffer) Len() int { return b.count }

// Cap reports the ring's item capacity.
func (b *Buffer) Cap() int { return b.capacity }

// Empty reports whether the ring holds no items.
func (b *Buffer) Empty() bool { return b.count == 0 }

func (b *Buffer) phys(logical int) int { return (b.head + logical) % b.capacity }

// ItemAt returns the item at logical index i (0 == oldest).
func (b *Buffer) ItemAt(i int) []byte {
	p := b.phys(i)
	return b.data[p*b.itemSize : (p+1)*b.itemSize]
}

// TimeAt returns the time of the item at logical index i.
func (b *Buffer) TimeAt(i int) int64 { return b.times[b.phys(i)] }

// FirstTime returns the oldest buffered item's time, or NoTime if empty.
func (b *Buffer) FirstTime() int64 {
	if b.count == 0 {
		return NoTime
	}
	return b.TimeAt(0)
}

// LastTime returns the newest buffered item's time, or NoTime if empty.
func (b *Buffer) LastTime() int64 {
	if b.count == 0 {
		return NoTime
	}
	return b.TimeAt(b.count - 1)
}

// PushBack appends one item, assuming the caller has ensured room.
func (b *Buffer) PushBack(t int64, item []byte) {
	p := b.phys(b.count)
	copy(b.data[p*b.itemSize:(p+1)*b.itemSize], item)
	b.times[p] = t
	b.count++
}

// DropFront discards the n oldest items.
func (b *Buffer) DropFront(n int) {
	if n > b.count {
		n = b.count
	}
	b.head = (b.head + n) % b.capacity
	b.count -= n
}

// Region is one physically-contiguous span of the ring, expressed as
// logical indices [From, To).
type Region struct {
	From, To int
}

// Regions splits the logical range [from, to) into up to two physically
// contiguous spans (spec.md §4.9: "up to two because of wrap").
func (b *Buffer) Regions(from, to int) []Region {
	if from >= to {
		return nil
	}
	pFrom := b.phys(from)
	pTo := pFrom + (to - from)
	if pTo <= b.capacity {
		return []Region{{from, to}}
	}
	firstLen := b.capacity - pFrom
	return []Region{{from, from + firstLen}, {from + firstLen, to}}
}

// LowerBoundTime returns the smallest logical index whose time is >= t
// (binary search over the logical view).
func (b *Buffer) LowerBoundTime(t int64) int {
	lo, hi := 0, b.count
	for lo < hi {
		mid := (lo + hi) / 2
		if b.TimeAt(mid) < t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Resize reallocates the ring to hold n items, preserving the most
// recent min(n, Len()) items (spec.md §4.9). n is not checked: for n == 0
// it returns a zero-capacity ring that cannot hold items (WriteBuffer.Resize
// drops its ring instead of calling Resize(0)).
func (b *Buffer) Resize(n int) *Buffer {
	fresh := NewBuffer(n, b.itemSize)
	start := 0
	if b.count > n {
		start = b.count - n
	}
	for i := start; i < b.count; i++ {
		fresh.PushBack(b.TimeAt(i), b.ItemAt(i))
	}
	return fresh
}
