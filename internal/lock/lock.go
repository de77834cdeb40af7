package lock

import "errors"

// Suffix is appended to a store path to name its lock file.
const Suffix = ".lock"

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("store already in use by another process")

// PathFor returns the lock file path guarding path.
func PathFor(path string) string {
	return path + Suffix
}
