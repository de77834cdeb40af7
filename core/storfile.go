package core

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/0xRadioAc7iv/go-storfile/internal/chunk"
	"github.com/0xRadioAc7iv/go-storfile/internal/compress"
	"github.com/0xRadioAc7iv/go-storfile/internal/lock"
	"github.com/0xRadioAc7iv/go-storfile/internal/metrics"
)

// StorageFile keeps every key and value inside one file made of contiguous
// chunks, free or occupied. The chunk index is rebuilt by scanning the file
// on Open and lives in memory until Close.
//
// All methods are safe for concurrent use; they are serialized by a single
// mutex. Another process opening the same path fails with ErrLocked.
type StorageFile struct {
	mu sync.Mutex // guards everything below

	path     string
	file     *os.File
	lockFile *os.File
	index    *chunk.Index
	first    int64 // offset of the first chunk
	length   int64 // file length
	closed   bool

	log     *slog.Logger
	level   int
	metrics *metrics.Registry
}

// Open opens the store at path, creating it if it does not exist.
//
// An empty file is initialized with a fresh header. Otherwise the whole file
// is scanned and any damage fails the open with ErrCorruptStore; there is
// no partial recovery.
func Open(path string, opts ...Option) (*StorageFile, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	lf, err := lock.Acquire(path)
	if err != nil {
		return nil, newError("open", path, "", classify(err), err)
	}

	sf, err := open(path, o)
	if err != nil {
		lock.Release(lf)
		if errors.Is(err, ErrCorruptStore) {
			o.logger.Warn("store file is corrupt", "path", path, "error", err)
		}
		return nil, err
	}
	sf.lockFile = lf

	sf.log.Info("store opened",
		"path", path,
		"size", sf.length,
		"chunks", sf.index.Len(),
		"keys", sf.index.Count(false),
	)
	sf.publishUsage()

	return sf, nil
}

func open(path string, o options) (*StorageFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, newError("open", path, "", ErrIOFailure, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, newError("open", path, "", ErrIOFailure, err)
	}

	sf := &StorageFile{
		path:    path,
		file:    f,
		log:     o.logger.With("store", path),
		level:   o.compressionLevel,
		metrics: o.metrics,
	}

	if info.Size() == 0 {
		if _, err := f.WriteAt(chunk.EncodeFileHeader(uint32(chunk.FileHeaderBytes)), 0); err != nil {
			f.Close()
			return nil, newError("open", path, "", ErrIOFailure, err)
		}
		sf.index = chunk.NewIndex()
		sf.first = int64(chunk.FileHeaderBytes)
		sf.length = int64(chunk.FileHeaderBytes)
		return sf, nil
	}

	ix, first, err := chunk.Scan(f, info.Size())
	if err != nil {
		f.Close()
		return nil, newError("open", path, "", classify(err), err)
	}

	sf.index = ix
	sf.first = first
	sf.length = info.Size()
	return sf, nil
}

// Path returns the store file path.
func (s *StorageFile) Path() string {
	return s.path
}

func (s *StorageFile) Get(key string) (value []byte, found bool, err error) {
	defer s.observe("get", time.Now(), &found, &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, newError("get", s.path, key, ErrClosed, nil)
	}

	i, ok := s.index.Find(key)
	if !ok {
		return nil, false, nil
	}
	value, err = s.readValue("get", s.index.At(i))
	if err != nil {
		s.log.Error("reading value failed", "key", key, "error", err)
		return nil, false, err
	}
	return value, true, nil
}

func (s *StorageFile) Has(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, newError("has", s.path, key, ErrClosed, nil)
	}

	_, ok := s.index.Find(key)
	return ok, nil
}

func (s *StorageFile) Put(key string, value []byte) (bool, error) {
	return s.PutWithGrowth(key, value, true)
}

// PutWithGrowth stores value under key in the first free chunk large enough
// to hold it, splitting off any remainder as a new free chunk. When no free
// chunk fits the value is appended at the end of the file, or, with
// growAllowed false, nothing is written and false is returned.
//
// The value is stored DEFLATE compressed when that makes it strictly
// smaller. An existing key is never overwritten.
func (s *StorageFile) PutWithGrowth(key string, value []byte, growAllowed bool) (stored bool, err error) {
	defer s.observe("put", time.Now(), &stored, &err)

	if err := chunk.ValidateKey(key); err != nil {
		return false, newError("put", s.path, key, classify(err), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, newError("put", s.path, key, ErrClosed, nil)
	}

	if _, ok := s.index.Find(key); ok {
		return false, nil
	}

	payload, compressed, err := compress.Best(value, s.level)
	if err != nil {
		return false, newError("put", s.path, key, ErrIOFailure, err)
	}

	encoded, err := chunk.EncodeOccupied([]byte(key), payload, compressed)
	if err != nil {
		return false, newError("put", s.path, key, classify(err), err)
	}

	if i, ok := s.index.FirstFit(len(key), int64(len(payload))); ok {
		err = s.fill(i, key, encoded, compressed)
	} else if growAllowed {
		err = s.appendChunk(key, encoded, compressed)
	} else {
		return false, nil
	}
	if err != nil {
		s.log.Error("writing value failed", "key", key, "error", err)
		return false, newError("put", s.path, key, ErrIOFailure, err)
	}

	if compressed && s.metrics != nil {
		s.metrics.CompressedValues.Inc()
	}
	s.publishUsage()
	return true, nil
}

// Remove frees the chunk holding key and merges it with a free neighbour on
// either side. The file never shrinks.
func (s *StorageFile) Remove(key string) (removed bool, err error) {
	defer s.observe("remove", time.Now(), &removed, &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, newError("remove", s.path, key, ErrClosed, nil)
	}

	i, ok := s.index.Find(key)
	if !ok {
		return false, nil
	}

	if err := s.release(i); err != nil {
		s.log.Error("freeing chunk failed", "key", key, "error", err)
		return false, newError("remove", s.path, key, ErrIOFailure, err)
	}

	s.publishUsage()
	return true, nil
}

// FirstChunk returns the offset of the first chunk, 15 for files created
// here. A file header may declare a later offset; the gap is never reused.
func (s *StorageFile) FirstChunk() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.first
}

// Size returns the length of the store file.
func (s *StorageFile) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, newError("size", s.path, "", ErrClosed, nil)
	}
	return s.length, nil
}

// SizeOf returns the total on-disk size, headers included, of all free or
// all occupied chunks. Bytes before the first chunk belong to neither, so
// SizeOf(true) + SizeOf(false) + FirstChunk() always equals Size().
func (s *StorageFile) SizeOf(free bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, newError("size", s.path, "", ErrClosed, nil)
	}
	return s.index.Sum(free), nil
}

// Keys returns every stored key in file order.
func (s *StorageFile) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, newError("keys", s.path, "", ErrClosed, nil)
	}
	return s.index.Keys(), nil
}

// Close releases the file and the process lock.
func (s *StorageFile) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return newError("close", s.path, "", ErrClosed, nil)
	}
	s.closed = true

	var errs []error
	if err := s.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := lock.Release(s.lockFile); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return newError("close", s.path, "", ErrIOFailure, err)
	}

	s.log.Info("store closed", "size", s.length)
	return nil
}

func (s *StorageFile) String() string {
	return fmt.Sprintf("StorageFile(%s)", s.path)
}

// observe records an operation once it returns. ok distinguishes hits from
// misses for operations that can legitimately find nothing.
func (s *StorageFile) observe(op string, start time.Time, ok *bool, err *error) {
	if s.metrics == nil {
		return
	}

	status := metrics.StatusOK
	switch {
	case *err != nil:
		status = metrics.StatusError
	case !*ok:
		status = metrics.StatusMiss
	}
	s.metrics.ObserveOperation(op, status, time.Since(start))
}

// publishUsage must be called with s.mu held.
func (s *StorageFile) publishUsage() {
	if s.metrics == nil {
		return
	}
	s.metrics.SetDiskUsage(s.index.Sum(true), s.index.Sum(false), s.length)
	s.metrics.SetChunks(s.index.Count(true), s.index.Count(false))
}
