package chunk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Signature is the magic prefix of every store file.
//
//	0x89        detects 7-bit stripping
//	STOR00      human readable
//	\r\n        detects DOS to UNIX line ending conversion
//	0x1A        DOS end of file
//	\n          detects UNIX to DOS line ending conversion
var Signature = [11]byte{0x89, 'S', 'T', 'O', 'R', '0', '0', 0x0D, 0x0A, 0x1A, 0x0A}

// Signature (11) + FirstChunkOffset (4)
const FileHeaderBytes = len(Signature) + 4

// EncodeFileHeader returns the signature followed by the big-endian offset
// of the first chunk.
func EncodeFileHeader(firstChunk uint32) []byte {
	buf := make([]byte, FileHeaderBytes)
	copy(buf, Signature[:])
	binary.BigEndian.PutUint32(buf[len(Signature):], firstChunk)
	return buf
}

// DecodeFileHeader validates the signature and returns the offset of the
// first chunk.
func DecodeFileHeader(r io.ReaderAt, size int64) (int64, error) {
	if size < int64(FileHeaderBytes) {
		return 0, fmt.Errorf("%w: file of %d bytes is shorter than the header", ErrCorrupt, size)
	}

	buf := make([]byte, FileHeaderBytes)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return 0, readErr(0, "file header", err)
	}

	if !bytes.Equal(buf[:len(Signature)], Signature[:]) {
		return 0, fmt.Errorf("%w: not a store file or signature damaged", ErrCorrupt)
	}

	first := int64(binary.BigEndian.Uint32(buf[len(Signature):]))
	if first < int64(FileHeaderBytes) || first > size {
		return 0, fmt.Errorf("%w: first chunk offset %d outside [%d,%d]", ErrCorrupt, first, FileHeaderBytes, size)
	}

	return first, nil
}
