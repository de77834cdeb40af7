package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// Flag byte values. A chunk header always starts with one flag byte.
const (
	FlagLargeFree  byte = 0x01 // free block, followed by a 4 byte span length
	FlagCompressed byte = 0x02 // occupied block whose value is raw DEFLATE data
	FlagSmallFree  byte = 0x80 // free block, low 7 bits are the span length

	// Bits that are never valid unless FlagSmallFree is set.
	reservedFlags = ^(FlagLargeFree | FlagCompressed | FlagSmallFree)
)

// Flags (1) + ValueSize (4) + KeySize (2)
const OccupiedHeaderFixedBytes = 7

// Flags (1) + FreeSpan (4)
const LargeFreeHeaderBytes = 5

// Flags (1), span packed into the flag byte
const SmallFreeHeaderBytes = 1

// MaxSmallFreeSpan is the largest free span the small free header can describe.
const MaxSmallFreeSpan = 0x7F

const (
	MaxKeyBytes   = math.MaxUint16
	MaxValueBytes = math.MaxUint32
)

var (
	ErrCorrupt       = errors.New("corrupt chunk")
	ErrKeyTooLong    = fmt.Errorf("key longer than %d bytes", MaxKeyBytes)
	ErrValueTooLarge = fmt.Errorf("value longer than %d bytes", uint64(MaxValueBytes))
	ErrInvalidKey    = errors.New("key is not valid UTF-8")
)

// Chunk describes one header+payload unit of the file body.
//
// Offset is where the header starts and Next is where the following chunk
// starts (or the file length for the last chunk). Key and Compressed are only
// meaningful for occupied chunks.
type Chunk struct {
	Offset     int64
	Next       int64
	Free       bool
	Key        string
	Compressed bool
}

// Size is the number of bytes the chunk spans on disk, header included.
func (c Chunk) Size() int64 {
	return c.Next - c.Offset
}

// HeaderSize is the number of header bytes in front of the payload.
func (c Chunk) HeaderSize() int64 {
	if !c.Free {
		return OccupiedHeaderFixedBytes + int64(len(c.Key))
	}
	if c.Size()-SmallFreeHeaderBytes <= MaxSmallFreeSpan {
		return SmallFreeHeaderBytes
	}
	return LargeFreeHeaderBytes
}

// PayloadOffset is the file offset of the first value byte.
func (c Chunk) PayloadOffset() int64 {
	return c.Offset + c.HeaderSize()
}

// PayloadSize is the number of stored value bytes (compressed size when
// Compressed is set).
func (c Chunk) PayloadSize() int64 {
	return c.Next - c.PayloadOffset()
}

// Capacity returns how many value bytes would fit in this chunk if it were
// rewritten as an occupied chunk holding a key of keyLen bytes.
func (c Chunk) Capacity(keyLen int) int64 {
	return c.Size() - OccupiedHeaderFixedBytes - int64(keyLen)
}

func (c Chunk) String() string {
	if c.Free {
		return fmt.Sprintf("free[%d,%d)", c.Offset, c.Next)
	}
	return fmt.Sprintf("%q[%d,%d) compressed=%t", c.Key, c.Offset, c.Next, c.Compressed)
}

// OccupiedSize is the on-disk size of an occupied chunk.
func OccupiedSize(keyLen int, payloadLen int64) int64 {
	return OccupiedHeaderFixedBytes + int64(keyLen) + payloadLen
}

// ValidateKey checks that key can be stored in an occupied chunk header.
func ValidateKey(key string) error {
	if len(key) > MaxKeyBytes {
		return ErrKeyTooLong
	}
	if !utf8.ValidString(key) {
		return ErrInvalidKey
	}
	return nil
}

// EncodeOccupied serializes an occupied chunk.
//
// The chunk is encoded as:
//
//	<flags:uint8><value_len:uint32><key_len:uint16><key><value>
//
// All integer fields are big-endian.
func EncodeOccupied(key, payload []byte, compressed bool) ([]byte, error) {
	if len(key) > MaxKeyBytes {
		return nil, ErrKeyTooLong
	}
	if uint64(len(payload)) > MaxValueBytes {
		return nil, ErrValueTooLarge
	}

	var flags byte
	if compressed {
		flags = FlagCompressed
	}

	buf := make([]byte, OccupiedHeaderFixedBytes+len(key)+len(payload))
	buf[0] = flags
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(payload)))
	binary.BigEndian.PutUint16(buf[5:7], uint16(len(key)))
	copy(buf[OccupiedHeaderFixedBytes:], key)
	copy(buf[OccupiedHeaderFixedBytes+len(key):], payload)

	return buf, nil
}

// EncodeFree returns the header for a free region spanning size bytes,
// header included. Regions whose span fits in 7 bits use the one byte
// header, everything else uses the five byte header.
func EncodeFree(size int64) ([]byte, error) {
	if size < SmallFreeHeaderBytes {
		return nil, fmt.Errorf("free region of %d bytes cannot hold a header", size)
	}

	span := size - SmallFreeHeaderBytes
	if span <= MaxSmallFreeSpan {
		return []byte{FlagSmallFree | byte(span)}, nil
	}

	span = size - LargeFreeHeaderBytes
	if span > math.MaxUint32 {
		return nil, fmt.Errorf("free region of %d bytes is too large", size)
	}

	buf := make([]byte, LargeFreeHeaderBytes)
	buf[0] = FlagLargeFree
	binary.BigEndian.PutUint32(buf[1:], uint32(span))
	return buf, nil
}

// Decode reads the chunk header at offset. limit is the file length; a chunk
// whose header or payload would extend past it is corrupt.
//
// Short reads inside the file are reported as ErrCorrupt. Any other read
// error is returned unchanged so that callers can tell I/O failures from
// damaged data.
func Decode(r io.ReaderAt, offset, limit int64) (Chunk, error) {
	if offset < 0 || offset >= limit {
		return Chunk{}, corruptf(offset, "chunk offset outside file of %d bytes", limit)
	}

	sr := io.NewSectionReader(r, offset, limit-offset)

	var flags uint8
	if err := binary.Read(sr, binary.BigEndian, &flags); err != nil {
		return Chunk{}, readErr(offset, "flags", err)
	}

	c := Chunk{Offset: offset}

	if flags&FlagSmallFree != 0 {
		c.Free = true
		c.Next = offset + SmallFreeHeaderBytes + int64(flags&MaxSmallFreeSpan)
		return c, checkNext(c, limit)
	}

	if flags&reservedFlags != 0 {
		return Chunk{}, corruptf(offset, "reserved flag bits set: %#02x", flags)
	}

	var size uint32
	if err := binary.Read(sr, binary.BigEndian, &size); err != nil {
		return Chunk{}, readErr(offset, "size", err)
	}

	if flags&FlagLargeFree != 0 {
		if flags&FlagCompressed != 0 {
			return Chunk{}, corruptf(offset, "free chunk flagged compressed")
		}
		c.Free = true
		c.Next = offset + LargeFreeHeaderBytes + int64(size)
		return c, checkNext(c, limit)
	}

	var keySize uint16
	if err := binary.Read(sr, binary.BigEndian, &keySize); err != nil {
		return Chunk{}, readErr(offset, "key size", err)
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(sr, key); err != nil {
		return Chunk{}, readErr(offset, "key", err)
	}
	if !utf8.Valid(key) {
		return Chunk{}, corruptf(offset, "key is not valid UTF-8")
	}

	c.Key = string(key)
	c.Compressed = flags&FlagCompressed != 0
	c.Next = offset + OccupiedSize(int(keySize), int64(size))

	return c, checkNext(c, limit)
}

func checkNext(c Chunk, limit int64) error {
	if c.Next > limit {
		return corruptf(c.Offset, "chunk ends at %d past end of file %d", c.Next, limit)
	}
	return nil
}

func readErr(offset int64, field string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return corruptf(offset, "truncated %s", field)
	}
	return fmt.Errorf("reading chunk %s at offset %d: %w", field, offset, err)
}

func corruptf(offset int64, format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrCorrupt, offset, fmt.Sprintf(format, args...))
}
