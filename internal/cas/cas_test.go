package cas

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xRadioAc7iv/go-storfile/core"
)

func newStore(t *testing.T) (*Store, core.Storage) {
	t.Helper()

	sf, err := core.Open(filepath.Join(t.TempDir(), "blobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sf.Close() })

	return New(sf), sf
}

func TestPutGet(t *testing.T) {
	s, _ := newStore(t)
	data := []byte("content addressed")

	d, err := s.Put(data)
	require.NoError(t, err)
	assert.Equal(t, Sum(data), d)

	got, found, err := s.Get(d)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, data, got)
}

func TestPutIsIdempotent(t *testing.T) {
	s, storage := newStore(t)
	data := bytes.Repeat([]byte("blob"), 100)

	d1, err := s.Put(data)
	require.NoError(t, err)
	size, err := storage.Size()
	require.NoError(t, err)

	d2, err := s.Put(data)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	again, err := storage.Size()
	require.NoError(t, err)
	assert.Equal(t, size, again)
}

func TestGetDetectsMismatch(t *testing.T) {
	s, storage := newStore(t)

	d := Sum([]byte("expected"))
	ok, err := storage.Put(d.Key(), []byte("something else"))
	require.NoError(t, err)
	require.True(t, ok)

	_, _, err = s.Get(d)
	assert.True(t, errors.Is(err, core.ErrCorruptStore))
}

func TestHasRemove(t *testing.T) {
	s, _ := newStore(t)

	d, err := s.Put([]byte("x"))
	require.NoError(t, err)

	has, err := s.Has(d)
	require.NoError(t, err)
	assert.True(t, has)

	removed, err := s.Remove(d)
	require.NoError(t, err)
	assert.True(t, removed)

	_, found, err := s.Get(d)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDigestFormatting(t *testing.T) {
	d := Sum(nil)

	assert.Len(t, d.String(), 64)
	assert.True(t, strings.HasPrefix(d.Key(), KeyPrefix))

	parsed, err := ParseDigest(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)

	parsed, err = ParseDigest(d.Key())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)

	_, err = ParseDigest("abc")
	assert.Error(t, err)
	_, err = ParseDigest(strings.Repeat("zz", 32))
	assert.Error(t, err)
}

func TestSumReader(t *testing.T) {
	data := bytes.Repeat([]byte("streamed "), 10000)

	d, err := SumReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, Sum(data), d)
}
