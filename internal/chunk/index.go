package chunk

import (
	"fmt"
	"slices"
	"sort"
)

// Index is the in-memory, offset ordered list of every chunk in a store
// file, free and occupied.
//
// Lookups by key go through a key to offset map that is kept in lockstep with
// the ordered list on every mutation. Offsets of occupied chunks never move,
// so the map only changes when a chunk changes state.
//
// Index is not safe for concurrent use; the owning store serializes access.
type Index struct {
	chunks []Chunk
	keys   map[string]int64
}

func NewIndex() *Index {
	return &Index{keys: make(map[string]int64)}
}

func (ix *Index) Len() int {
	return len(ix.chunks)
}

func (ix *Index) At(i int) Chunk {
	return ix.chunks[i]
}

// Chunks returns a copy of the ordered chunk list.
func (ix *Index) Chunks() []Chunk {
	return slices.Clone(ix.chunks)
}

// Find returns the position of the occupied chunk holding key.
func (ix *Index) Find(key string) (int, bool) {
	offset, ok := ix.keys[key]
	if !ok {
		return 0, false
	}

	i := ix.search(offset)
	if i == len(ix.chunks) || ix.chunks[i].Offset != offset {
		panic(fmt.Sprintf("chunk index out of sync: key %q maps to offset %d", key, offset))
	}
	return i, true
}

// search returns the position of the first chunk at or after offset.
func (ix *Index) search(offset int64) int {
	return sort.Search(len(ix.chunks), func(i int) bool {
		return ix.chunks[i].Offset >= offset
	})
}

// FirstFit returns the position of the first free chunk, in file order, able
// to hold an occupied chunk with the given key and payload lengths.
func (ix *Index) FirstFit(keyLen int, payloadLen int64) (int, bool) {
	for i, c := range ix.chunks {
		if c.Free && c.Capacity(keyLen) >= payloadLen {
			return i, true
		}
	}
	return 0, false
}

// Append adds c after the last chunk.
func (ix *Index) Append(c Chunk) {
	ix.chunks = append(ix.chunks, c)
	ix.track(c)
}

// Splice replaces the chunks at positions [i, j) with cs.
func (ix *Index) Splice(i, j int, cs ...Chunk) {
	for _, old := range ix.chunks[i:j] {
		ix.untrack(old)
	}
	ix.chunks = slices.Replace(ix.chunks, i, j, cs...)
	for _, c := range cs {
		ix.track(c)
	}
}

// Sum adds up the on-disk size of all free or all occupied chunks.
func (ix *Index) Sum(free bool) int64 {
	var total int64
	for _, c := range ix.chunks {
		if c.Free == free {
			total += c.Size()
		}
	}
	return total
}

// Count returns the number of free or occupied chunks.
func (ix *Index) Count(free bool) int {
	n := 0
	for _, c := range ix.chunks {
		if c.Free == free {
			n++
		}
	}
	return n
}

// Keys returns every stored key in file order.
func (ix *Index) Keys() []string {
	keys := make([]string, 0, len(ix.keys))
	for _, c := range ix.chunks {
		if !c.Free {
			keys = append(keys, c.Key)
		}
	}
	return keys
}

// Check verifies the structural invariants of the chunk chain: chunks are
// contiguous from first to end, no two neighbours are both free and keys are
// unique.
func (ix *Index) Check(first, end int64) error {
	cursor := first
	seen := make(map[string]struct{}, len(ix.keys))

	for i, c := range ix.chunks {
		if c.Offset != cursor {
			return fmt.Errorf("%w: chunk %d starts at %d, expected %d", ErrCorrupt, i, c.Offset, cursor)
		}
		if c.Next <= c.Offset {
			return fmt.Errorf("%w: chunk %d is empty", ErrCorrupt, i)
		}
		if c.Free && i > 0 && ix.chunks[i-1].Free {
			return fmt.Errorf("%w: adjacent free chunks at %d and %d", ErrCorrupt, ix.chunks[i-1].Offset, c.Offset)
		}
		if !c.Free {
			if _, dup := seen[c.Key]; dup {
				return fmt.Errorf("%w: duplicate key %q at offset %d", ErrCorrupt, c.Key, c.Offset)
			}
			seen[c.Key] = struct{}{}
			if off, ok := ix.keys[c.Key]; !ok || off != c.Offset {
				return fmt.Errorf("%w: key map out of sync for %q", ErrCorrupt, c.Key)
			}
		}
		cursor = c.Next
	}

	if cursor != end {
		return fmt.Errorf("%w: chunks end at %d, file ends at %d", ErrCorrupt, cursor, end)
	}
	if len(seen) != len(ix.keys) {
		return fmt.Errorf("%w: key map holds %d keys, chunks hold %d", ErrCorrupt, len(ix.keys), len(seen))
	}
	return nil
}

func (ix *Index) track(c Chunk) {
	if !c.Free {
		ix.keys[c.Key] = c.Offset
	}
}

func (ix *Index) untrack(c Chunk) {
	if !c.Free {
		delete(ix.keys, c.Key)
	}
}
