package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Status tells the client how to read a response body.
type Status uint8

const (
	StatusOK       Status = iota // body holds the result
	StatusNotFound               // key absent, body empty
	StatusFalse                  // operation did not apply (key exists, no room), body empty
	StatusError                  // body holds the error text
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusFalse:
		return "false"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Response is one server reply.
type Response struct {
	Status Status
	Body   []byte
}

// EncodeResponse serializes a response as
//
//	<status:uint8><body_len:uint32><body>
func EncodeResponse(status Status, body []byte) ([]byte, error) {
	if len(body) > MaxFrameBytes {
		return nil, ErrFrameTooLarge
	}

	buf := &bytes.Buffer{}
	buf.Grow(5 + len(body))

	buf.WriteByte(uint8(status))
	if err := binary.Write(buf, binary.BigEndian, uint32(len(body))); err != nil {
		return nil, err
	}

	buf.Write(body)

	return buf.Bytes(), nil
}

// DecodeResponse reads one response from r.
func DecodeResponse(r io.Reader) (*Response, error) {
	var status uint8
	var bodyLen uint32

	if err := binary.Read(r, binary.BigEndian, &status); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &bodyLen); err != nil {
		return nil, err
	}
	if bodyLen > MaxFrameBytes {
		return nil, ErrFrameTooLarge
	}
	if Status(status) > StatusError {
		return nil, fmt.Errorf("unknown response status %d", status)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	return &Response{Status: Status(status), Body: body}, nil
}
