package ring

// Sink is the channel dispatcher's codec/disk side of a WriteBuffer: the
// ring calls back into it to submit flushed items, to read older data,
// and to learn the codec's on-disk watermark (spec.md §4.9). Using plain
// function fields (rather than an interface requiring an import of the
// codec package) keeps this package free of a dependency on codec/index
// internals.
type Sink struct {
	// Append submits up to n (time, item) pairs, already time-ordered,
	// to the codec/disk, returning how many were accepted.
	Append func(times []int64, flat []byte, n, itemSize int) (accepted int, err error)
	// ReadDisk reads items whose time is in [from, upto), up to max,
	// from committed storage.
	ReadDisk func(from, upto int64, max int) (times []int64, flat []byte, n int, err error)
	// LastTimeOnDisk reports the codec's last committed time, or
	// NoTime.
	LastTimeOnDisk func() int64
}

// WriteBuffer implements the write/read/flush algorithm of spec.md §4.9
// over a Buffer and a SaveList.
type WriteBuffer struct {
	Ring      *Buffer
	Saves     *SaveList
	ItemSize  int
	Buffering bool

	// RawCommit, when true, makes flushes ignore the save list and
	// submit every item contiguously (spec.md §4.9: "For EventBoth
	// level channels the save list is ignored... because its encoding
	// depends on every transition being preserved").
	RawCommit bool
}

// NewWriteBuffer returns a buffered writer with no backing ring
// (unbuffered) until Resize allocates one.
func NewWriteBuffer(itemSize int) *WriteBuffer {
	return &WriteBuffer{Saves: NewSaveList(), ItemSize: itemSize}
}

func (w *WriteBuffer) minMove() int {
	m := w.Ring.Cap() >> 5
	if m < 1 {
		m = 1
	}
	return m
}

// Write appends n (times[i], flat[i*itemSize:...]) items, flushing room
// as needed when the ring fills (spec.md §4.9 steps 3-5). If buffering is
// disabled, it delegates straight to sink.Append.
func (w *WriteBuffer) Write(times []int64, flat []byte, n int, sink Sink) error {
	if !w.Buffering || w.Ring == nil {
		_, err := sink.Append(times, flat, n, w.ItemSize)
		return err
	}
	for i := 0; i < n; i++ {
		if w.Ring.Len() == w.Ring.Cap() {
			toMove := w.Ring.Len() - w.Ring.Cap() + 1
			if m := w.minMove(); toMove < m {
				toMove = m
			}
			if toMove > w.Ring.Len() {
				toMove = w.Ring.Len()
			}
			if err := w.Flush(toMove, sink); err != nil {
				return err
			}
		}
		w.Ring.PushBack(times[i], flat[i*w.ItemSize:(i+1)*w.ItemSize])
	}
	if !w.Ring.Empty() {
		w.Saves.SetFirstTime(w.Ring.FirstTime())
	}
	return nil
}

// Flush submits the n oldest buffered items to sink, honoring the save
// list's saving-true subranges (or unconditionally, for RawCommit
// channels), then evicts them from the ring regardless of whether they
// were saved (spec.md §4.9 step 4).
func (w *WriteBuffer) Flush(n int, sink Sink) error {
	if n <= 0 {
		return nil
	}
	if n > w.Ring.Len() {
		n = w.Ring.Len()
	}
	if w.RawCommit {
		if err := w.submitRegions(0, n, sink); err != nil {
			return err
		}
		w.Ring.DropFront(n)
		return nil
	}

	from := w.Ring.TimeAt(0)
	upto := w.Ring.TimeAt(n-1) + 1
	stateAtFrom := w.Saves.stateBefore(from + 1)
	rFrom, rTo, ok := w.Saves.FirstSaveRange(from, upto, stateAtFrom)
	for ok {
		lo := w.Ring.LowerBoundTime(rFrom)
		hi := w.Ring.LowerBoundTime(rTo)
		if hi > n {
			hi = n
		}
		if hi > lo {
			if err := w.submitRegions(lo, hi, sink); err != nil {
				return err
			}
		}
		rFrom, rTo, ok = w.Saves.NextSaveRange(rTo, upto)
	}
	w.Ring.DropFront(n)
	return nil
}

func (w *WriteBuffer) submitRegions(lo, hi int, sink Sink) error {
	for _, reg := range w.Ring.Regions(lo, hi) {
		n := reg.To - reg.From
		times := make([]int64, n)
		for i := 0; i < n; i++ {
			times[i] = w.Ring.TimeAt(reg.From + i)
		}
		flat := make([]byte, n*w.ItemSize)
		for i := 0; i < n; i++ {
			copy(flat[i*w.ItemSize:(i+1)*w.ItemSize], w.Ring.ItemAt(reg.From+i))
		}
		if _, err := sink.Append(times, flat, n, w.ItemSize); err != nil {
			return err
		}
	}
	return nil
}

// Read copies items in [from, upto) into the returned times/flat,
// reading committed storage first and then the ring, up to max items
// (spec.md §4.9).
func (w *WriteBuffer) Read(from, upto int64, max int, sink Sink) (times []int64, flat []byte, n int, err error) {
	bufFirst := NoTime
	if w.Ring != nil && !w.Ring.Empty() {
		bufFirst = w.Ring.FirstTime()
	}

	if bufFirst == NoTime || from < bufFirst {
		diskUpto := upto
		if bufFirst != NoTime && diskUpto > bufFirst {
			diskUpto = bufFirst
		}
		dt, df, dn, derr := sink.ReadDisk(from, diskUpto, max)
		if derr != nil {
			return nil, nil, 0, derr
		}
		times = append(times, dt...)
		flat = append(flat, df...)
		n = dn
	}

	if w.Ring != nil && n < max {
		lo := w.Ring.LowerBoundTime(maxI64(from, bufFirst))
		for i := lo; i < w.Ring.Len() && n < max; i++ {
			t := w.Ring.TimeAt(i)
			if t >= upto {
				break
			}
			times = append(times, t)
			flat = append(flat, w.Ring.ItemAt(i)...)
			n++
		}
	}
	return times, flat, n, nil
}

// MaxTime returns the last time in the ring, or the codec's last-written
// time if the ring is empty (spec.md §4.9).
func (w *WriteBuffer) MaxTime(sink Sink) int64 {
	if w.Ring != nil && !w.Ring.Empty() {
		return w.Ring.LastTime()
	}
	return sink.LastTimeOnDisk()
}

// Resize reallocates the ring to n items (preserving contents), or tears
// it down (unbuffered from then on) when n == 0 (spec.md §4.9).
func (w *WriteBuffer) Resize(n int) {
	if n <= 0 {
		w.Ring = nil
		w.Buffering = false
		return
	}
	if w.Ring == nil {
		w.Ring = NewBuffer(n, w.ItemSize)
	} else {
		w.Ring = w.Ring.Resize(n)
	}
	w.Buffering = true
}

// PrevNTime tries the ring first, walking backward from upto (exclusive,
// no earlier than from), counting down max matching items; if the ring
// is exhausted before max reaches zero, it delegates to prevDisk with the
// remaining budget (spec.md §4.9: "try the ring first; if it returns with
// budget remaining, delegate to the codec").
func (w *WriteBuffer) PrevNTime(from, upto int64, max int, prevDisk func(from, upto int64, max int) (int64, error)) (int64, error) {
	remaining := max
	if w.Ring != nil && !w.Ring.Empty() {
		hi := w.Ring.LowerBoundTime(upto)
		lo := w.Ring.LowerBoundTime(from)
		for i := hi - 1; i >= lo; i-- {
			if remaining == 0 {
				return w.Ring.TimeAt(i), nil
			}
			remaining--
		}
	}
	return prevDisk(from, upto, remaining)
}

func maxI64(a, b int64) int64 {
	if b == NoTime {
		return a
	}
	if a > b {
		return a
	}
	return b
}
