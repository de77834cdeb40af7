package chunk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeOccupied(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		payload    []byte
		compressed bool
	}{
		{"plain value", "language", []byte("go"), false},
		{"compressed flag", "zipped", []byte{0x01, 0x02, 0x03}, true},
		{"empty key", "", []byte("anonymous"), false},
		{"empty value", "nothing", nil, false},
		{"unicode key", "こんにちは", []byte("世界"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := EncodeOccupied([]byte(tt.key), tt.payload, tt.compressed)
			if err != nil {
				t.Fatalf("EncodeOccupied failed: %v", err)
			}

			c, err := Decode(bytes.NewReader(encoded), 0, int64(len(encoded)))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			if c.Free {
				t.Fatal("decoded chunk is free")
			}
			if c.Key != tt.key {
				t.Errorf("Key mismatch: got %q, want %q", c.Key, tt.key)
			}
			if c.Compressed != tt.compressed {
				t.Errorf("Compressed mismatch: got %v, want %v", c.Compressed, tt.compressed)
			}
			if c.Next != int64(len(encoded)) {
				t.Errorf("Next mismatch: got %d, want %d", c.Next, len(encoded))
			}
			if got := encoded[c.PayloadOffset():c.Next]; !bytes.Equal(got, tt.payload) {
				t.Errorf("payload mismatch: got %v, want %v", got, tt.payload)
			}
			if c.PayloadSize() != int64(len(tt.payload)) {
				t.Errorf("PayloadSize mismatch: got %d, want %d", c.PayloadSize(), len(tt.payload))
			}
		})
	}
}

func TestEncodedOccupiedByteLayout(t *testing.T) {
	encoded, err := EncodeOccupied([]byte("a"), []byte("bc"), true)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	// Expected bytes structure:
	// uint8  flags
	// uint32 value size
	// uint16 key size
	// []byte key
	// []byte value
	want := []byte{FlagCompressed, 0, 0, 0, 2, 0, 1, 'a', 'b', 'c'}
	if !bytes.Equal(encoded, want) {
		t.Fatalf("layout mismatch:\n got %v\nwant %v", encoded, want)
	}
}

func TestEncodeFree(t *testing.T) {
	tests := []struct {
		name string
		size int64
		want []byte
	}{
		{"one byte region", 1, []byte{0x80}},
		{"small region", 10, []byte{0x80 | 9}},
		{"largest small region", 128, []byte{0xFF}},
		{"smallest large region", 129, []byte{FlagLargeFree, 0, 0, 0, 124}},
		{"big region", 70000, func() []byte {
			b := []byte{FlagLargeFree, 0, 0, 0, 0}
			binary.BigEndian.PutUint32(b[1:], 70000-5)
			return b
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeFree(tt.size)
			if err != nil {
				t.Fatalf("EncodeFree(%d) failed: %v", tt.size, err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("EncodeFree(%d) = %v, want %v", tt.size, got, tt.want)
			}

			region := make([]byte, tt.size)
			copy(region, got)

			c, err := Decode(bytes.NewReader(region), 0, tt.size)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !c.Free || c.Next != tt.size {
				t.Fatalf("decoded %v, want free chunk ending at %d", c, tt.size)
			}
			if c.HeaderSize() != int64(len(got)) {
				t.Errorf("HeaderSize() = %d, want %d", c.HeaderSize(), len(got))
			}
		})
	}

	if _, err := EncodeFree(0); err == nil {
		t.Error("EncodeFree(0) should fail")
	}
}

func TestDecodeAtOffset(t *testing.T) {
	first, _ := EncodeOccupied([]byte("k1"), []byte("v1"), false)
	second, _ := EncodeOccupied([]byte("k2"), []byte("value-2"), false)
	file := append(append([]byte{}, first...), second...)

	c, err := Decode(bytes.NewReader(file), int64(len(first)), int64(len(file)))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if c.Key != "k2" || c.Offset != int64(len(first)) || c.Next != int64(len(file)) {
		t.Fatalf("unexpected chunk %v", c)
	}
}

func TestDecodeErrorsOnTruncatedData(t *testing.T) {
	encoded, _ := EncodeOccupied([]byte("abc"), []byte("xy"), false)

	for i := 1; i < len(encoded); i++ {
		_, err := Decode(bytes.NewReader(encoded[:i]), 0, int64(i))
		if !errors.Is(err, ErrCorrupt) {
			t.Fatalf("expected ErrCorrupt when decoding truncated data of length %d, got %v", i, err)
		}
	}

	large, _ := EncodeFree(500)
	for i := 1; i < len(large); i++ {
		_, err := Decode(bytes.NewReader(large[:i]), 0, int64(i))
		if !errors.Is(err, ErrCorrupt) {
			t.Fatalf("expected ErrCorrupt for truncated free header of length %d, got %v", i, err)
		}
	}
}

func TestDecodeRejectsReservedFlags(t *testing.T) {
	for _, flags := range []byte{0x04, 0x08, 0x10, 0x20, 0x40, 0x03} {
		data := []byte{flags, 0, 0, 0, 0, 0, 0}
		_, err := Decode(bytes.NewReader(data), 0, int64(len(data)))
		if !errors.Is(err, ErrCorrupt) {
			t.Errorf("flags %#02x: expected ErrCorrupt, got %v", flags, err)
		}
	}
}

func TestDecodeRejectsChunkPastEnd(t *testing.T) {
	encoded, _ := EncodeOccupied([]byte("k"), []byte("value"), false)
	// Claim a longer value than the file holds.
	binary.BigEndian.PutUint32(encoded[1:5], 1000)

	_, err := Decode(bytes.NewReader(encoded), 0, int64(len(encoded)))
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}

	small := []byte{0x80 | 20, 0, 0}
	if _, err := Decode(bytes.NewReader(small), 0, int64(len(small))); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for small free block past end, got %v", err)
	}
}

func TestDecodeRejectsInvalidUTF8Key(t *testing.T) {
	encoded, _ := EncodeOccupied([]byte{0xff, 0xfe}, []byte("v"), false)
	if _, err := Decode(bytes.NewReader(encoded), 0, int64(len(encoded))); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestValidateKey(t *testing.T) {
	if err := ValidateKey("fine"); err != nil {
		t.Errorf("ValidateKey(fine) = %v", err)
	}
	if err := ValidateKey(strings.Repeat("k", MaxKeyBytes+1)); !errors.Is(err, ErrKeyTooLong) {
		t.Errorf("expected ErrKeyTooLong, got %v", err)
	}
	if err := ValidateKey(string([]byte{0xc3, 0x28})); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := EncodeOccupied(make([]byte, MaxKeyBytes+1), nil, false); !errors.Is(err, ErrKeyTooLong) {
		t.Errorf("expected ErrKeyTooLong from EncodeOccupied, got %v", err)
	}
}

func TestCapacity(t *testing.T) {
	c := Chunk{Offset: 100, Next: 200, Free: true}
	if got := c.Capacity(3); got != 100-7-3 {
		t.Fatalf("Capacity(3) = %d, want %d", got, 100-7-3)
	}
	if got := OccupiedSize(3, 90); got != 100 {
		t.Fatalf("OccupiedSize(3, 90) = %d, want 100", got)
	}
}
