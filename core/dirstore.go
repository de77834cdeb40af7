package core

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/0xRadioAc7iv/go-storfile/internal/lock"
)

// DirStorage is a Storage keeping one file per key inside a directory. File
// names are the query-escaped keys. There is no free space to track, so
// SizeOf(true) is always zero and growth is always allowed.
type DirStorage struct {
	mu sync.Mutex

	dir      string
	lockFile *os.File
	closed   bool
	log      *slog.Logger
}

// OpenDir opens the directory store at dir, creating the directory if
// needed. The directory is guarded by the lock file "<dir>.lock".
func OpenDir(dir string, opts ...Option) (*DirStorage, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, newError("open", dir, "", ErrIOFailure, err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, newError("open", dir, "", ErrIOFailure, err)
	}
	if !info.IsDir() {
		return nil, newError("open", dir, "", ErrIOFailure, errors.New("not a directory"))
	}

	lf, err := lock.Acquire(dir)
	if err != nil {
		return nil, newError("open", dir, "", classify(err), err)
	}

	ds := &DirStorage{dir: dir, lockFile: lf, log: o.logger.With("store", dir)}
	ds.log.Info("directory store opened")
	return ds, nil
}

// escapeKey maps key to a file name. A leading dot is escaped as well so
// that no key can name "." or ".." or a hidden file.
func escapeKey(key string) string {
	name := url.QueryEscape(key)
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}
	return name
}

func (d *DirStorage) file(op, key string) (string, error) {
	if key == "" {
		return "", newError(op, d.dir, key, ErrInvalidKey, errors.New("empty key"))
	}
	if d.closed {
		return "", newError(op, d.dir, key, ErrClosed, nil)
	}
	return filepath.Join(d.dir, escapeKey(key)), nil
}

func (d *DirStorage) Get(key string) ([]byte, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name, err := d.file("get", key)
	if err != nil {
		return nil, false, err
	}

	value, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, newError("get", d.dir, key, ErrIOFailure, err)
	}
	return value, true, nil
}

func (d *DirStorage) Has(key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name, err := d.file("has", key)
	if err != nil {
		return false, err
	}
	ok, err := isFile(name)
	if err != nil {
		return false, newError("has", d.dir, key, ErrIOFailure, err)
	}
	return ok, nil
}

func (d *DirStorage) Remove(key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name, err := d.file("remove", key)
	if err != nil {
		return false, err
	}

	err = os.Remove(name)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, newError("remove", d.dir, key, ErrIOFailure, err)
	}
	return true, nil
}

func (d *DirStorage) Put(key string, value []byte) (bool, error) {
	return d.PutWithGrowth(key, value, true)
}

// PutWithGrowth ignores growAllowed: a directory has no free space to reuse.
func (d *DirStorage) PutWithGrowth(key string, value []byte, _ bool) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name, err := d.file("put", key)
	if err != nil {
		return false, err
	}

	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, newError("put", d.dir, key, ErrIOFailure, err)
	}

	if _, err := f.Write(value); err != nil {
		f.Close()
		os.Remove(name)
		return false, newError("put", d.dir, key, ErrIOFailure, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return false, newError("put", d.dir, key, ErrIOFailure, err)
	}
	return true, nil
}

// Size is the sum of all value file sizes.
func (d *DirStorage) Size() (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, newError("size", d.dir, "", ErrClosed, nil)
	}

	entries, err := d.entries()
	if err != nil {
		return 0, newError("size", d.dir, "", ErrIOFailure, err)
	}

	var total int64
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return 0, newError("size", d.dir, "", ErrIOFailure, err)
		}
		total += info.Size()
	}
	return total, nil
}

func (d *DirStorage) SizeOf(free bool) (int64, error) {
	if free {
		d.mu.Lock()
		defer d.mu.Unlock()

		if d.closed {
			return 0, newError("size", d.dir, "", ErrClosed, nil)
		}
		return 0, nil
	}
	return d.Size()
}

// Keys returns every stored key, sorted.
func (d *DirStorage) Keys() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, newError("keys", d.dir, "", ErrClosed, nil)
	}

	entries, err := d.entries()
	if err != nil {
		return nil, newError("keys", d.dir, "", ErrIOFailure, err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		key, err := url.QueryUnescape(e.Name())
		if err != nil {
			d.log.Warn("skipping foreign file", "name", e.Name())
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (d *DirStorage) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return newError("close", d.dir, "", ErrClosed, nil)
	}
	d.closed = true

	if err := lock.Release(d.lockFile); err != nil {
		return newError("close", d.dir, "", ErrIOFailure, err)
	}
	d.log.Info("directory store closed")
	return nil
}

func (d *DirStorage) entries() ([]fs.DirEntry, error) {
	all, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}

	files := all[:0]
	for _, e := range all {
		if e.Type().IsRegular() {
			files = append(files, e)
		}
	}
	return files, nil
}

func isFile(name string) (bool, error) {
	info, err := os.Stat(name)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}
