//go:build unix

package lock

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Acquire attempts to take an exclusive, non-blocking advisory lock guarding
// the store at path.
//
// On Unix systems, this uses flock(2) on the file "<path>.lock". The lock
// file is left on disk after Release; only the flock matters.
//
// The returned file handle must remain open for the duration of the lock.
func Acquire(path string) (*os.File, error) {
	f, err := os.OpenFile(PathFor(path), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("unable to open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("flock %s: %w", PathFor(path), err)
	}

	return f, nil
}

// Release drops a lock acquired via Acquire and closes the file.
func Release(f *os.File) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		f.Close()
		return fmt.Errorf("unlock %s: %w", f.Name(), err)
	}
	return f.Close()
}
