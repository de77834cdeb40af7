package core

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/0xRadioAc7iv/go-storfile/internal/chunk"
	"github.com/0xRadioAc7iv/go-storfile/internal/compress"
)

// ChunkInfo describes one chunk of a store file.
type ChunkInfo struct {
	Offset      int64
	Next        int64
	Free        bool
	Key         string
	Compressed  bool
	HeaderSize  int64
	PayloadSize int64
}

// Size is the number of bytes the chunk spans, header included.
func (c ChunkInfo) Size() int64 {
	return c.Next - c.Offset
}

func toInfo(c chunk.Chunk) ChunkInfo {
	return ChunkInfo{
		Offset:      c.Offset,
		Next:        c.Next,
		Free:        c.Free,
		Key:         c.Key,
		Compressed:  c.Compressed,
		HeaderSize:  c.HeaderSize(),
		PayloadSize: c.PayloadSize(),
	}
}

// Chunks returns every chunk of the store in file order.
func (s *StorageFile) Chunks() ([]ChunkInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, newError("chunks", s.path, "", ErrClosed, nil)
	}

	chunks := s.index.Chunks()
	infos := make([]ChunkInfo, len(chunks))
	for i, c := range chunks {
		infos[i] = toInfo(c)
	}
	return infos, nil
}

// Check verifies the in-memory chunk chain and that the file on disk, scanned
// afresh, still describes exactly the same chunks.
func (s *StorageFile) Check() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return newError("check", s.path, "", ErrClosed, nil)
	}

	if err := s.index.Check(s.first, s.length); err != nil {
		return newError("check", s.path, "", ErrInvariantViolation, err)
	}

	disk, _, err := chunk.Scan(s.file, s.length)
	if err != nil {
		return newError("check", s.path, "", classify(err), err)
	}
	if disk.Len() != s.index.Len() {
		return newError("check", s.path, "", ErrInvariantViolation,
			fmt.Errorf("disk holds %d chunks, index holds %d", disk.Len(), s.index.Len()))
	}
	for i := 0; i < disk.Len(); i++ {
		if d, m := disk.At(i), s.index.At(i); d != m {
			return newError("check", s.path, "", ErrInvariantViolation,
				fmt.Errorf("chunk %d: disk %v, index %v", i, d, m))
		}
	}
	return nil
}

// Dump writes a human readable listing of the file header, every chunk and
// the space totals to w. With showValues set, occupied chunks also print
// their (inflated) value, quoted.
func (s *StorageFile) Dump(w io.Writer, showValues bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return newError("dump", s.path, "", ErrClosed, nil)
	}

	fmt.Fprintf(w, "file: %s\nsize: %d\nfirst chunk: %d\n\n", s.path, s.length, s.first)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OFFSET\tNEXT\tSIZE\tSTATE\tKEY\tPAYLOAD\tVALUE")

	for i := 0; i < s.index.Len(); i++ {
		c := s.index.At(i)
		if c.Free {
			fmt.Fprintf(tw, "%d\t%d\t%d\tfree\t\t\t\n", c.Offset, c.Next, c.Size())
			continue
		}

		state := "used"
		if c.Compressed {
			state = "deflated"
		}

		value := ""
		if showValues {
			v, err := s.readValue("dump", c)
			if err != nil {
				return err
			}
			value = strconv.Quote(string(v))
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%q\t%d\t%s\n", c.Offset, c.Next, c.Size(), state, c.Key, c.PayloadSize(), value)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\nkeys: %d  used: %d bytes in %d chunks  free: %d bytes in %d chunks\n",
		s.index.Count(false),
		s.index.Sum(false), s.index.Count(false),
		s.index.Sum(true), s.index.Count(true),
	)
	return err
}

// readValue must be called with s.mu held.
func (s *StorageFile) readValue(op string, c chunk.Chunk) ([]byte, error) {
	payload := make([]byte, c.PayloadSize())
	if _, err := s.file.ReadAt(payload, c.PayloadOffset()); err != nil {
		return nil, newError(op, s.path, c.Key, ErrIOFailure, err)
	}
	if !c.Compressed {
		return payload, nil
	}

	value, err := compress.Inflate(payload)
	if err != nil {
		return nil, newError(op, s.path, c.Key, ErrCorruptStore, err)
	}
	return value, nil
}
