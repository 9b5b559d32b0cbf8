package block

import (
	"fmt"
	"io"

	"github.com/cznic/mathutil"
	"github.com/cznic/s64/internal/serr"
)

const (
	pgBits = 12
	pgSize = 1 << pgBits
	pgMask = pgSize - 1
)

var zeroPage [pgSize]byte

var _ Filer = (*MemFiler)(nil)

// MemFiler is a memory-backed Filer, paged in pgSize chunks so that sparse
// writes (e.g. the gap left by the allocator skipping ahead) don't force a
// giant contiguous allocation. Grounded on lldb/memfiler.go.
type MemFiler struct {
	pages map[int64]*[pgSize]byte
	size  int64
}

// NewMemFiler returns a new, empty MemFiler.
func NewMemFiler() *MemFiler {
	return &MemFiler{pages: map[int64]*[pgSize]byte{}}
}

// Name implements Filer.
func (f *MemFiler) Name() string { return fmt.Sprintf("%p.memfiler", f) }

// Size implements Filer.
func (f *MemFiler) Size() int64 { return f.size }

// Close implements Filer.
func (f *MemFiler) Close() error { return nil }

// Sync implements Filer.
func (f *MemFiler) Sync() error { return nil }

// Truncate implements Filer.
func (f *MemFiler) Truncate(size int64) error {
	if size < 0 {
		return serr.New(serr.BadParam, f.Name()+":Truncate size", size)
	}
	for pg := range f.pages {
		if pg*pgSize >= size {
			delete(f.pages, pg)
		}
	}
	f.size = size
	return nil
}

// PunchHole implements Filer.
func (f *MemFiler) PunchHole(off, size int64) error {
	if off < 0 {
		return serr.New(serr.BadParam, f.Name()+":PunchHole off", off)
	}
	if size < 0 || off+size > f.size {
		return serr.New(serr.BadParam, f.Name()+":PunchHole size", size)
	}

	first := off >> pgBits
	if off&pgMask != 0 {
		first++
	}
	last := (off + size - 1) >> pgBits
	if (off+size)&pgMask != 0 {
		last--
	}
	if limit := f.size >> pgBits; last > limit {
		last = limit
	}
	for pg := first; pg <= last; pg++ {
		delete(f.pages, pg)
	}
	return nil
}

// ReadAt implements Filer.
func (f *MemFiler) ReadAt(b []byte, off int64) (n int, err error) {
	avail := f.size - off
	if avail <= 0 {
		return 0, io.EOF
	}
	pgI := off >> pgBits
	pgO := int(off & pgMask)
	rem := len(b)
	var hitEOF bool
	if int64(rem) >= avail {
		rem = int(avail)
		hitEOF = true
	}
	for rem != 0 {
		pg := f.pages[pgI]
		var src [pgSize]byte
		if pg != nil {
			src = *pg
		}
		nc := copy(b[:mathutil.Min(rem, pgSize-pgO)], src[pgO:])
		pgI++
		pgO = 0
		rem -= nc
		n += nc
		b = b[nc:]
	}
	if hitEOF {
		err = io.EOF
	}
	return n, err
}

// WriteAt implements Filer.
func (f *MemFiler) WriteAt(b []byte, off int64) (n int, err error) {
	pgI := off >> pgBits
	pgO := int(off & pgMask)
	rem := len(b)
	for rem != 0 {
		pg := f.pages[pgI]
		if pg == nil {
			pg = new([pgSize]byte)
			f.pages[pgI] = pg
		}
		nc := copy(pg[pgO:], b[:mathutil.Min(rem, pgSize-pgO)])
		pgI++
		pgO = 0
		rem -= nc
		n += nc
		b = b[nc:]
	}
	f.size = clampSize(f.size, off, n)
	return n, nil
}
