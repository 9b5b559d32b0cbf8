package block

import (
	"github.com/cznic/mathutil"
	"github.com/cznic/s64/internal/serr"
)

// Filer is a []byte-like model of the random-access file backing the
// engine (spec.md §6: "a random-access file with a shared/exclusive
// read-write handle"). It is not safe for concurrent use; callers serialize
// access with their own mutex (spec.md §5's file mutex), the same
// requirement the teacher's lldb.Filer documents.
type Filer interface {
	// ReadAt reads len(b) bytes starting at off, retrying transient
	// errors per spec.md §4.2.
	ReadAt(b []byte, off int64) (n int, err error)

	// WriteAt writes b at off, retrying transient errors per spec.md §4.2.
	WriteAt(b []byte, off int64) (n int, err error)

	// Size reports the current file size in bytes.
	Size() int64

	// Truncate resizes the file, growing or shrinking it.
	Truncate(size int64) error

	// PunchHole deallocates the OS-level storage backing [off, off+size)
	// without changing Size(); implementations may treat this as a no-op.
	PunchHole(off, size int64) error

	// Sync flushes OS buffers.
	Sync() error

	// Close releases the underlying resource.
	Close() error

	// Name returns a caller-supplied identifying string, used only for
	// diagnostics.
	Name() string
}

const maxRetries = 100

// retryIO retries op while isRetryable says the error is transient,
// up to maxRetries times, per spec.md §4.2. onFail classifies the terminal
// error as BadRead or BadWrite.
func retryIO(op func() (int, error), onFail serr.Code, src string) (int, error) {
	var n int
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		n, err = op()
		if err == nil || !isRetryable(err) {
			break
		}
	}
	if err != nil {
		return n, serr.New(onFail, src, err)
	}
	return n, nil
}

// clampSize returns the larger of the current size and the high-water mark
// implied by writing n bytes at off, mirroring lldb/memfiler.go and
// lldb/filer.go's use of mathutil.MaxInt64 to track a growing file size.
func clampSize(size, off int64, n int) int64 {
	return mathutil.MaxInt64(size, off+int64(n))
}
