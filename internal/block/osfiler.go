package block

import (
	"os"

	"github.com/cznic/fileutil"
	"github.com/cznic/s64/internal/serr"
)

var _ Filer = (*OSFiler)(nil)

// OSFiler is an *os.File backed Filer, grounded on lldb/simplefilefiler.go
// and lldb/osfiler.go. Unlike the teacher's SimpleFileFiler it retries
// transient I/O errors per spec.md §4.2 before surfacing BadRead/BadWrite.
type OSFiler struct {
	file *os.File
	size int64
}

// NewOSFiler wraps f, an already-open file, as a Filer.
func NewOSFiler(f *os.File) (*OSFiler, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, serr.New(serr.NoFile, "NewOSFiler", err)
	}
	return &OSFiler{file: f, size: fi.Size()}, nil
}

// Name implements Filer.
func (f *OSFiler) Name() string { return f.file.Name() }

// Size implements Filer.
func (f *OSFiler) Size() int64 { return f.size }

// Close implements Filer.
func (f *OSFiler) Close() error { return f.file.Close() }

// Sync implements Filer.
func (f *OSFiler) Sync() error { return f.file.Sync() }

// Truncate implements Filer.
func (f *OSFiler) Truncate(size int64) error {
	if size < 0 {
		return serr.New(serr.BadParam, f.Name()+":Truncate size", size)
	}
	if err := f.file.Truncate(size); err != nil {
		return serr.New(serr.BadWrite, f.Name()+":Truncate", err)
	}
	f.size = size
	return nil
}

// PunchHole implements Filer, delegating to fileutil.PunchHole exactly as
// lldb/simplefilefiler.go does.
func (f *OSFiler) PunchHole(off, size int64) error {
	return fileutil.PunchHole(f.file, off, size)
}

// ReadAt implements Filer, retrying transient errors.
func (f *OSFiler) ReadAt(b []byte, off int64) (int, error) {
	return retryIO(func() (int, error) { return f.file.ReadAt(b, off) }, serr.BadRead, f.Name()+":ReadAt")
}

// WriteAt implements Filer, retrying transient errors.
func (f *OSFiler) WriteAt(b []byte, off int64) (int, error) {
	n, err := retryIO(func() (int, error) { return f.file.WriteAt(b, off) }, serr.BadWrite, f.Name()+":WriteAt")
	f.size = clampSize(f.size, off, n)
	return n, err
}
