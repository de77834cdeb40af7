package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Command names understood by the server.
const (
	CmdPing      = "ping"
	CmdGet       = "get"
	CmdPut       = "put"
	CmdPutNoGrow = "putnogrow"
	CmdHas       = "has"
	CmdRemove    = "remove"
	CmdSize      = "size"
	CmdSizeFree  = "sizefree"
	CmdSizeUsed  = "sizeused"
	CmdCount     = "count"
	CmdList      = "list"
	CmdBlobPut   = "blobput"
	CmdBlobGet   = "blobget"
	CmdHelp      = "help"
)

// MaxFrameBytes bounds the key plus value length a decoder accepts, so a
// corrupt or hostile length prefix cannot make the server allocate
// gigabytes.
const MaxFrameBytes = 64 << 20

var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// Command represents a decoded client command received by the server.
//
// A Command consists of a command name, an optional key and an optional
// binary value. The meaning of Key and Val depends on the command.
type Command struct {
	Name string // Command name (e.g. "get", "put", "remove")
	Key  string // Key argument (may be empty)
	Val  []byte // Value argument (may be empty)
}

// EncodeCommand serializes a client command into its wire format.
//
// The command is encoded as:
//
//	<cmd_len:uint8><key_len:uint32><val_len:uint32><cmd><key><val>
//
// All integer fields are encoded using big-endian byte order.
// The command name length is limited to 255 bytes.
func EncodeCommand(cmd, key string, val []byte) ([]byte, error) {
	if len(cmd) > math.MaxUint8 {
		return nil, fmt.Errorf("command name of %d bytes exceeds 255", len(cmd))
	}
	if int64(len(key))+int64(len(val)) > MaxFrameBytes {
		return nil, ErrFrameTooLarge
	}

	buf := &bytes.Buffer{}
	buf.Grow(9 + len(cmd) + len(key) + len(val))

	buf.WriteByte(uint8(len(cmd)))
	if err := binary.Write(buf, binary.BigEndian, uint32(len(key))); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.BigEndian, uint32(len(val))); err != nil {
		return nil, err
	}

	buf.WriteString(cmd)
	buf.WriteString(key)
	buf.Write(val)

	return buf.Bytes(), nil
}

// DecodeCommand reads and decodes one command from r.
//
// It first reads the length-prefixed header fields, then reads the
// command name, key, and value payloads in sequence.
//
// DecodeCommand blocks until the full command has been read or an
// error occurs.
func DecodeCommand(r io.Reader) (*Command, error) {
	var cmdLen uint8
	var keyLen uint32
	var valLen uint32

	// Read lengths
	if err := binary.Read(r, binary.BigEndian, &cmdLen); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &keyLen); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &valLen); err != nil {
		return nil, err
	}

	if int64(keyLen)+int64(valLen) > MaxFrameBytes {
		return nil, ErrFrameTooLarge
	}

	// Read payload
	cmdB := make([]byte, cmdLen)
	keyB := make([]byte, keyLen)
	valB := make([]byte, valLen)

	if _, err := io.ReadFull(r, cmdB); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, keyB); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, valB); err != nil {
		return nil, err
	}

	return &Command{
		Name: string(cmdB),
		Key:  string(keyB),
		Val:  valB,
	}, nil
}
