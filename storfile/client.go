package storfile

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/0xRadioAc7iv/go-storfile/internal/cas"
	"github.com/0xRadioAc7iv/go-storfile/internal/protocol"
)

// ServerError is returned when the server answers a command with an error.
type ServerError struct {
	Command string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("storfile: %s: %s", e.Command, e.Message)
}

var ErrUnexpectedStatus = errors.New("storfile: unexpected response status")

// Client holds one connection to a server. Requests are serialized, so a
// Client may be shared between goroutines.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	timeout time.Duration
}

func Connect(opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	addr := net.JoinHostPort(o.host, strconv.Itoa(o.port))

	conn, err := net.DialTimeout("tcp", addr, o.timeout)
	if err != nil {
		return nil, err
	}

	return &Client{conn: conn, timeout: o.timeout}, nil
}

func (c *Client) Ping() error {
	_, err := c.expect(protocol.CmdPing, "", nil, protocol.StatusOK)
	return err
}

// Get returns the value under key. A missing key is reported by found, not
// by an error.
func (c *Client) Get(key string) (value []byte, found bool, err error) {
	return c.lookup(protocol.CmdGet, key)
}

// Put stores value under key. It returns false when the key already exists.
func (c *Client) Put(key string, value []byte) (bool, error) {
	return c.flag(protocol.CmdPut, key, value)
}

// PutNoGrow is Put restricted to free space already inside the store.
func (c *Client) PutNoGrow(key string, value []byte) (bool, error) {
	return c.flag(protocol.CmdPutNoGrow, key, value)
}

func (c *Client) Has(key string) (bool, error) {
	return c.flag(protocol.CmdHas, key, nil)
}

func (c *Client) Remove(key string) (bool, error) {
	resp, err := c.expect(protocol.CmdRemove, key, nil, protocol.StatusOK, protocol.StatusNotFound)
	if err != nil {
		return false, err
	}
	return resp.Status == protocol.StatusOK, nil
}

// Size returns the store's total size in bytes.
func (c *Client) Size() (int64, error) {
	return c.number(protocol.CmdSize)
}

// SizeOf returns the bytes held by free or by occupied chunks.
func (c *Client) SizeOf(free bool) (int64, error) {
	if free {
		return c.number(protocol.CmdSizeFree)
	}
	return c.number(protocol.CmdSizeUsed)
}

func (c *Client) Count() (int64, error) {
	return c.number(protocol.CmdCount)
}

func (c *Client) List() ([]string, error) {
	resp, err := c.expect(protocol.CmdList, "", nil, protocol.StatusOK, protocol.StatusNotFound)
	if err != nil {
		return nil, err
	}
	if resp.Status == protocol.StatusNotFound {
		return nil, nil
	}
	return strings.Split(string(resp.Body), "\n"), nil
}

// BlobPut stores data under its content digest and returns the digest.
func (c *Client) BlobPut(data []byte) (cas.Digest, error) {
	resp, err := c.expect(protocol.CmdBlobPut, "", data, protocol.StatusOK)
	if err != nil {
		return cas.Digest{}, err
	}
	return cas.ParseDigest(string(resp.Body))
}

func (c *Client) BlobGet(d cas.Digest) ([]byte, bool, error) {
	return c.lookup(protocol.CmdBlobGet, d.String())
}

// Execute sends an arbitrary command and returns the raw response, so the
// CLI can pass through what the user typed.
func (c *Client) Execute(cmd, key string, value []byte) (*protocol.Response, error) {
	return c.roundTrip(cmd, key, value)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) lookup(cmd, key string) ([]byte, bool, error) {
	resp, err := c.expect(cmd, key, nil, protocol.StatusOK, protocol.StatusNotFound)
	if err != nil {
		return nil, false, err
	}
	if resp.Status == protocol.StatusNotFound {
		return nil, false, nil
	}
	return resp.Body, true, nil
}

func (c *Client) flag(cmd, key string, value []byte) (bool, error) {
	resp, err := c.expect(cmd, key, value, protocol.StatusOK, protocol.StatusFalse)
	if err != nil {
		return false, err
	}
	return resp.Status == protocol.StatusOK, nil
}

func (c *Client) number(cmd string) (int64, error) {
	resp, err := c.expect(cmd, "", nil, protocol.StatusOK)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(resp.Body), 10, 64)
}

// expect performs a round trip and fails unless the status is one of want.
func (c *Client) expect(cmd, key string, value []byte, want ...protocol.Status) (*protocol.Response, error) {
	resp, err := c.roundTrip(cmd, key, value)
	if err != nil {
		return nil, err
	}
	if resp.Status == protocol.StatusError {
		return nil, &ServerError{Command: cmd, Message: string(resp.Body)}
	}
	for _, s := range want {
		if resp.Status == s {
			return resp, nil
		}
	}
	return nil, fmt.Errorf("%w: %s answered %s", ErrUnexpectedStatus, cmd, resp.Status)
}

func (c *Client) roundTrip(cmd, key string, value []byte) (*protocol.Response, error) {
	payload, err := protocol.EncodeCommand(cmd, key, value)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, err
		}
	}

	if _, err := c.conn.Write(payload); err != nil {
		return nil, err
	}

	return protocol.DecodeResponse(c.conn)
}
