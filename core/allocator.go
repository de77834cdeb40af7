package core

import (
	"github.com/0xRadioAc7iv/go-storfile/internal/chunk"
)

// fill writes an encoded occupied chunk into the free chunk at position i.
//
// Whatever is left of the free chunk becomes a free chunk of its own, or is
// folded into the following chunk when that one is free too. The remainder
// header goes to disk before the occupied chunk: if the process dies in
// between, the original free header still spans the whole region and the
// stray header sits inside free space.
//
// Must be called with s.mu held.
func (s *StorageFile) fill(i int, key string, encoded []byte, compressed bool) error {
	target := s.index.At(i)
	size := int64(len(encoded))

	if !target.Free {
		invariant("allocating key %q into occupied chunk %v", key, target)
	}
	if target.Size() < size {
		invariant("allocating %d bytes for key %q into %v", size, key, target)
	}

	occupied := chunk.Chunk{
		Offset:     target.Offset,
		Next:       target.Offset + size,
		Key:        key,
		Compressed: compressed,
	}
	replaced := []chunk.Chunk{occupied}
	j := i + 1

	if occupied.Next < target.Next {
		rest := chunk.Chunk{Offset: occupied.Next, Next: target.Next, Free: true}
		if j < s.index.Len() && s.index.At(j).Free {
			rest.Next = s.index.At(j).Next
			j++
		}

		if err := s.writeFree(rest); err != nil {
			return err
		}
		replaced = append(replaced, rest)
	}

	if _, err := s.file.WriteAt(encoded, occupied.Offset); err != nil {
		return err
	}

	s.index.Splice(i, j, replaced...)
	return nil
}

// appendChunk writes an encoded occupied chunk at the end of the file.
//
// Must be called with s.mu held.
func (s *StorageFile) appendChunk(key string, encoded []byte, compressed bool) error {
	offset := s.length

	if _, err := s.file.WriteAt(encoded, offset); err != nil {
		// Drop a partial tail so the file still scans.
		if terr := s.file.Truncate(offset); terr != nil {
			s.log.Error("truncating partial append failed", "offset", offset, "error", terr)
		}
		return err
	}

	s.index.Append(chunk.Chunk{
		Offset:     offset,
		Next:       offset + int64(len(encoded)),
		Key:        key,
		Compressed: compressed,
	})
	s.length += int64(len(encoded))
	return nil
}

// release frees the occupied chunk at position i. A free predecessor and a
// free successor are absorbed, so the result is a single free chunk
// described by one header at the start of the merged range.
//
// Must be called with s.mu held.
func (s *StorageFile) release(i int) error {
	c := s.index.At(i)
	if c.Free {
		invariant("releasing free chunk %v", c)
	}

	merged := chunk.Chunk{Offset: c.Offset, Next: c.Next, Free: true}
	start, end := i, i+1

	if i > 0 {
		if prev := s.index.At(i - 1); prev.Free {
			merged.Offset = prev.Offset
			start--
		}
	}
	if i+1 < s.index.Len() {
		if next := s.index.At(i + 1); next.Free {
			merged.Next = next.Next
			end++
		}
	}

	if err := s.writeFree(merged); err != nil {
		return err
	}

	s.index.Splice(start, end, merged)
	return nil
}

func (s *StorageFile) writeFree(c chunk.Chunk) error {
	hdr, err := chunk.EncodeFree(c.Size())
	if err != nil {
		invariant("encoding free chunk %v: %v", c, err)
	}
	_, err = s.file.WriteAt(hdr, c.Offset)
	return err
}
