package core

import "fmt"

// Storage is a persistent mapping from string keys to byte values.
//
// A missing key is never an error: Get reports it through the boolean, Remove
// and Put report whether they changed anything. Put never overwrites; remove
// the key first.
type Storage interface {
	// Get returns the value stored under key.
	Get(key string) ([]byte, bool, error)
	// Has reports whether key is present without reading its value.
	Has(key string) (bool, error)
	// Remove deletes key and reports whether it was present.
	Remove(key string) (bool, error)
	// Put stores value under key, growing the store if needed. It returns
	// false when the key already exists.
	Put(key string, value []byte) (bool, error)
	// PutWithGrowth is Put, except that with growAllowed false it only
	// reuses free space and returns false when none fits.
	PutWithGrowth(key string, value []byte, growAllowed bool) (bool, error)
	// Size is the number of bytes the store occupies on disk.
	Size() (int64, error)
	// SizeOf is the number of bytes held by free or by occupied chunks.
	SizeOf(free bool) (int64, error)
	// Close releases the store. Any later call returns ErrClosed.
	Close() error
}

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	Keys() ([]string, error)
}

var (
	_ Storage = (*StorageFile)(nil)
	_ Lister  = (*StorageFile)(nil)
	_ Storage = (*DirStorage)(nil)
	_ Lister  = (*DirStorage)(nil)
)

// OpenBackend opens a store of the named backend, BackendFile or
// BackendDirectory, at path.
func OpenBackend(backend, path string, opts ...Option) (Storage, error) {
	switch backend {
	case BackendFile, "":
		sf, err := Open(path, opts...)
		if err != nil {
			return nil, err
		}
		return sf, nil
	case BackendDirectory:
		ds, err := OpenDir(path, opts...)
		if err != nil {
			return nil, err
		}
		return ds, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
