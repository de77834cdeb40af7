package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
)

// DefaultLevel trades CPU for the smallest output; values are written once
// and read many times.
const DefaultLevel = flate.BestCompression

// ErrIncompressible is returned by Deflate when the compressed output is not
// strictly smaller than the input. Callers store the raw bytes instead.
var ErrIncompressible = errors.New("data is incompressible")

var writers sync.Map // level -> *sync.Pool of *flate.Writer

// ValidLevel reports whether level is accepted by Deflate.
func ValidLevel(level int) bool {
	return level >= flate.HuffmanOnly && level <= flate.BestCompression
}

// Deflate compresses data into a raw DEFLATE stream (no zlib or gzip
// framing).
func Deflate(data []byte, level int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrIncompressible
	}

	w, err := getWriter(level)
	if err != nil {
		return nil, err
	}
	defer putWriter(level, w)

	var buf bytes.Buffer
	buf.Grow(len(data))
	w.Reset(&buf)

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}

	if buf.Len() >= len(data) {
		return nil, ErrIncompressible
	}
	return buf.Bytes(), nil
}

// Inflate decompresses a raw DEFLATE stream produced by Deflate.
func Inflate(compressed []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	return out, nil
}

// Best returns the bytes to store for data: the DEFLATE form when it is
// strictly smaller, data itself otherwise. The boolean reports which one was
// chosen.
func Best(data []byte, level int) ([]byte, bool, error) {
	compressed, err := Deflate(data, level)
	if err != nil {
		if errors.Is(err, ErrIncompressible) {
			return data, false, nil
		}
		return nil, false, err
	}
	return compressed, true, nil
}

func getWriter(level int) (*flate.Writer, error) {
	if !ValidLevel(level) {
		return nil, fmt.Errorf("deflate: invalid compression level %d", level)
	}

	pool, _ := writers.LoadOrStore(level, &sync.Pool{})
	if w, ok := pool.(*sync.Pool).Get().(*flate.Writer); ok {
		return w, nil
	}

	w, err := flate.NewWriter(io.Discard, level)
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	return w, nil
}

func putWriter(level int, w *flate.Writer) {
	if pool, ok := writers.Load(level); ok {
		pool.(*sync.Pool).Put(w)
	}
}
