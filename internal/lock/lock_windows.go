//go:build windows

package lock

import (
	"fmt"
	"os"
)

// Acquire attempts to take an exclusive lock guarding the store at path.
//
// On Windows, this is implemented by atomically creating "<path>.lock". If
// the file already exists, the store is assumed to be in use.
//
// The returned file handle must be kept open for the duration of the lock.
func Acquire(path string) (*os.File, error) {
	f, err := os.OpenFile(PathFor(path), os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("unable to create lock file: %w", err)
	}

	return f, nil
}

// Release removes the lock file. It should be called exactly once for each
// successful Acquire.
func Release(f *os.File) error {
	name := f.Name()
	if err := f.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}
