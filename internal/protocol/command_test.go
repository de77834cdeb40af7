package protocol_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/0xRadioAc7iv/go-storfile/internal/protocol"
)

func TestEncodeDecodeCommand(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
		key  string
		val  []byte
	}{
		{"PUT command", protocol.CmdPut, "foo", []byte("bar")},
		{"GET command", protocol.CmdGet, "hello", nil},
		{"COUNT command", protocol.CmdCount, "", nil},
		{"empty key and value", protocol.CmdPing, "", nil},
		{"value with spaces", protocol.CmdPut, "city", []byte("new york")},
		{"unicode key", protocol.CmdPut, "emoji🚀", []byte("🔥")},
		{"binary value", protocol.CmdBlobPut, "", []byte{0x00, 0xff, 0x00, 0x7f}},
		{"large value", protocol.CmdPut, "big", make([]byte, 1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := net.Pipe()
			defer client.Close()
			defer server.Close()

			payload, err := protocol.EncodeCommand(tt.cmd, tt.key, tt.val)
			if err != nil {
				t.Fatalf("EncodeCommand failed: %v", err)
			}

			go func() {
				_, _ = client.Write(payload)
			}()

			cmd, err := protocol.DecodeCommand(server)
			if err != nil {
				t.Fatalf("DecodeCommand failed: %v", err)
			}

			if cmd.Name != tt.cmd {
				t.Errorf("Name mismatch: got %q, want %q", cmd.Name, tt.cmd)
			}
			if cmd.Key != tt.key {
				t.Errorf("Key mismatch: got %q, want %q", cmd.Key, tt.key)
			}
			if !bytes.Equal(cmd.Val, tt.val) {
				t.Errorf("Val mismatch: got %v, want %v", cmd.Val, tt.val)
			}
		})
	}
}

func TestEncodedCommandByteLayout(t *testing.T) {
	payload, err := protocol.EncodeCommand("get", "k", []byte("vv"))
	if err != nil {
		t.Fatalf("EncodeCommand failed: %v", err)
	}

	want := []byte{3, 0, 0, 0, 1, 0, 0, 0, 2, 'g', 'e', 't', 'k', 'v', 'v'}
	if !bytes.Equal(payload, want) {
		t.Fatalf("layout mismatch:\n got %v\nwant %v", payload, want)
	}
}

func TestEncodeCommand_RejectsLongName(t *testing.T) {
	if _, err := protocol.EncodeCommand(string(make([]byte, 256)), "", nil); err == nil {
		t.Fatal("expected error for 256 byte command name")
	}
}

func TestDecodeCommand_TruncatedPayload(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload, err := protocol.EncodeCommand(protocol.CmdPut, "key", []byte("value"))
	if err != nil {
		t.Fatalf("EncodeCommand failed: %v", err)
	}

	// Write only part of the payload
	go func() {
		_, _ = client.Write(payload[:len(payload)/2])
		client.Close()
	}()

	if _, err := protocol.DecodeCommand(server); err == nil {
		t.Fatalf("expected error on truncated payload, got nil")
	}
}

func TestDecodeCommand_RejectsOversizedFrame(t *testing.T) {
	header := []byte{3, 0, 0, 0, 0, 0, 0, 0, 0}
	binary.BigEndian.PutUint32(header[5:], protocol.MaxFrameBytes+1)

	_, err := protocol.DecodeCommand(bytes.NewReader(header))
	if !errors.Is(err, protocol.ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestDecodeCommand_BlocksUntilComplete(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload, err := protocol.EncodeCommand(protocol.CmdGet, "foo", nil)
	if err != nil {
		t.Fatalf("EncodeCommand failed: %v", err)
	}

	done := make(chan struct{})

	go func() {
		_, _ = protocol.DecodeCommand(server)
		close(done)
	}()

	// Ensure decoder is blocked
	select {
	case <-done:
		t.Fatal("DecodeCommand returned early")
	case <-time.After(50 * time.Millisecond):
	}

	_, _ = client.Write(payload)

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("DecodeCommand did not return after full payload")
	}
}
