package core_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xRadioAc7iv/go-storfile/core"
)

func openDir(t *testing.T, dir string) *core.DirStorage {
	t.Helper()

	ds, err := core.OpenDir(dir)
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })
	return ds
}

func TestDirStorageFileNames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "values")
	ds := openDir(t, dir)

	mustPut(t, ds, "hash/md5/543fa543226", []byte("testing"))
	mustPut(t, ds, "..", []byte("dots"))
	mustPut(t, ds, "a b", []byte("space"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"hash%2Fmd5%2F543fa543226", "%2E.", "a+b"}, names)

	keys, err := ds.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"..", "a b", "hash/md5/543fa543226"}, keys)

	got, found, err := ds.Get("..")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("dots"), got)
}

func TestDirStorageSizes(t *testing.T) {
	ds := openDir(t, filepath.Join(t.TempDir(), "values"))

	mustPut(t, ds, "a", []byte("12345"))
	mustPut(t, ds, "b", []byte("123"))

	size, err := ds.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)

	used, err := ds.SizeOf(false)
	require.NoError(t, err)
	assert.Equal(t, size, used)

	free, err := ds.SizeOf(true)
	require.NoError(t, err)
	assert.Zero(t, free)
}

func TestDirStorageIgnoresGrowth(t *testing.T) {
	ds := openDir(t, filepath.Join(t.TempDir(), "values"))

	ok, err := ds.PutWithGrowth("k", []byte("v"), false)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDirStorageRejectsEmptyKey(t *testing.T) {
	ds := openDir(t, filepath.Join(t.TempDir(), "values"))

	_, err := ds.Put("", []byte("v"))
	assert.ErrorIs(t, err, core.ErrInvalidKey)
}

func TestDirStorageIsExclusive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "values")
	openDir(t, dir)

	_, err := core.OpenDir(dir)
	assert.ErrorIs(t, err, core.ErrLocked)
}

func TestDirStorageRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	_, err := core.OpenDir(path)
	assert.ErrorIs(t, err, core.ErrIOFailure)
}
