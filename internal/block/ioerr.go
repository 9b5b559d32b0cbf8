package block

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// isRetryable classifies err as a transient, platform-specific I/O error
// worth retrying (spec.md §4.2: "transient errors classified as 'network
// retryable'... name of the retryable error is platform-specific, treat as
// a policy parameter"). EINTR and EAGAIN are the two errno values every
// Unix ReadAt/WriteAt caller must be prepared to retry.
func isRetryable(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == unix.EINTR || errno == unix.EAGAIN
	}
	return false
}
