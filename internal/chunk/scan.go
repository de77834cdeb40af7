package chunk

import (
	"fmt"
	"io"
)

// Scan validates the file header and walks every chunk from the first chunk
// offset to size, building the index. Any decoding failure aborts the scan;
// there is no partial recovery.
//
// It returns the first chunk offset alongside the index.
func Scan(r io.ReaderAt, size int64) (*Index, int64, error) {
	first, err := DecodeFileHeader(r, size)
	if err != nil {
		return nil, 0, err
	}

	ix := NewIndex()

	for cursor := first; cursor < size; {
		c, err := Decode(r, cursor, size)
		if err != nil {
			return nil, 0, err
		}

		if c.Free && ix.Len() > 0 && ix.At(ix.Len()-1).Free {
			return nil, 0, fmt.Errorf("%w: adjacent free chunks at offset %d", ErrCorrupt, cursor)
		}
		if !c.Free {
			if _, dup := ix.Find(c.Key); dup {
				return nil, 0, fmt.Errorf("%w: duplicate key %q at offset %d", ErrCorrupt, c.Key, cursor)
			}
		}
		ix.Append(c)
		cursor = c.Next
	}

	return ix, first, nil
}
