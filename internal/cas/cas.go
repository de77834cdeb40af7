// Package cas stores immutable blobs in a core.Storage under the BLAKE3
// digest of their contents. Storing the same bytes twice is a no-op.
package cas

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/0xRadioAc7iv/go-storfile/core"
)

// KeyPrefix namespaces blob keys inside a shared store.
const KeyPrefix = "blake3/"

// Digest is a 32-byte BLAKE3 digest.
type Digest [32]byte

// Sum returns the digest of data.
func Sum(data []byte) Digest {
	return Digest(blake3.Sum256(data))
}

// SumReader returns the digest of everything read from r.
func SumReader(r io.Reader) (Digest, error) {
	hasher := blake3.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return Digest{}, fmt.Errorf("hashing blob: %w", err)
	}

	var d Digest
	copy(d[:], hasher.Sum(nil))
	return d, nil
}

// String returns the hex-encoded digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Key is the store key the blob lives under.
func (d Digest) Key() string {
	return KeyPrefix + d.String()
}

// ParseDigest accepts a bare 64-character hex digest or a store key
// carrying KeyPrefix.
func ParseDigest(s string) (Digest, error) {
	var d Digest

	decoded, err := hex.DecodeString(strings.TrimPrefix(s, KeyPrefix))
	if err != nil {
		return d, fmt.Errorf("parsing blob digest: %w", err)
	}
	if len(decoded) != len(d) {
		return d, fmt.Errorf("blob digest is %d bytes, want %d", len(decoded), len(d))
	}
	copy(d[:], decoded)
	return d, nil
}

// Store keeps blobs in an underlying core.Storage.
type Store struct {
	storage core.Storage
}

func New(storage core.Storage) *Store {
	return &Store{storage: storage}
}

// Put stores data and returns its digest. Data already present is not
// written again.
func (s *Store) Put(data []byte) (Digest, error) {
	d := Sum(data)

	if _, err := s.storage.Put(d.Key(), data); err != nil {
		return Digest{}, fmt.Errorf("storing blob %s: %w", d, err)
	}
	return d, nil
}

// Get returns the blob with digest d. Contents that no longer hash to d are
// reported as core.ErrCorruptStore.
func (s *Store) Get(d Digest) ([]byte, bool, error) {
	data, found, err := s.storage.Get(d.Key())
	if err != nil || !found {
		return nil, found, err
	}

	if Sum(data) != d {
		return nil, false, fmt.Errorf("blob %s: %w: contents do not match digest", d, core.ErrCorruptStore)
	}
	return data, true, nil
}

func (s *Store) Has(d Digest) (bool, error) {
	return s.storage.Has(d.Key())
}

func (s *Store) Remove(d Digest) (bool, error) {
	return s.storage.Remove(d.Key())
}
