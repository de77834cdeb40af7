package core

import (
	"errors"
	"fmt"

	"github.com/0xRadioAc7iv/go-storfile/internal/chunk"
	"github.com/0xRadioAc7iv/go-storfile/internal/lock"
)

// Sentinel error kinds. Every error returned by a store wraps exactly one of
// them; match with errors.Is.
var (
	ErrCorruptStore       = errors.New("store file is corrupt")
	ErrIOFailure          = errors.New("store I/O failure")
	ErrInvariantViolation = errors.New("store invariant violated")
	ErrClosed             = errors.New("store is closed")
	ErrLocked             = lock.ErrLocked
	ErrKeyTooLong         = chunk.ErrKeyTooLong
	ErrValueTooLarge      = chunk.ErrValueTooLarge
	ErrInvalidKey         = chunk.ErrInvalidKey
)

// StoreError carries the context of a failed store operation.
type StoreError struct {
	Op   string // Operation that failed (e.g. "open", "put")
	Key  string // Key involved, if any
	Path string // Store path
	Kind error  // One of the sentinel kinds above
	Err  error  // Underlying cause, may be nil
}

func (e *StoreError) Error() string {
	msg := e.Op + " " + e.Path
	if e.Key != "" {
		msg += fmt.Sprintf(" key %q", e.Key)
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil && e.Err != e.Kind {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause, so that errors.Is matches
// ErrIOFailure as well as, say, fs.ErrPermission.
func (e *StoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op, path, key string, kind, err error) *StoreError {
	return &StoreError{Op: op, Key: key, Path: path, Kind: kind, Err: err}
}

// classify picks the kind for an error coming out of the chunk layer or the
// file system.
func classify(err error) error {
	switch {
	case errors.Is(err, chunk.ErrCorrupt):
		return ErrCorruptStore
	case errors.Is(err, lock.ErrLocked):
		return ErrLocked
	case errors.Is(err, chunk.ErrKeyTooLong):
		return ErrKeyTooLong
	case errors.Is(err, chunk.ErrValueTooLarge):
		return ErrValueTooLarge
	case errors.Is(err, chunk.ErrInvalidKey):
		return ErrInvalidKey
	default:
		return ErrIOFailure
	}
}

// invariant panics with an error wrapping ErrInvariantViolation. It is only
// reached through programming errors inside this package.
func invariant(format string, args ...any) {
	panic(fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...)))
}
