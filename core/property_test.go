package core

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/0xRadioAc7iv/go-storfile/internal/chunk"
)

// op is one step of a generated workload, decoded from a single integer so
// that gopter can shrink workloads element by element.
type op struct {
	kind  int // 0 put, 1 put without growth, 2 remove, 3 get
	key   string
	value []byte
}

func decodeOp(n int) op {
	o := op{
		kind: n % 4,
		key:  fmt.Sprintf("key-%d", (n/4)%12),
	}

	size := (n / 48) % 400
	if (n/7)%3 == 0 {
		o.value = bytes.Repeat([]byte{byte(n)}, size)
	} else {
		var seed [32]byte
		seed[0], seed[1], seed[2] = byte(n), byte(n>>8), byte(n>>16)
		o.value = make([]byte, size)
		rand.NewChaCha8(seed).Read(o.value)
	}
	return o
}

// checkStore verifies the structural invariants and the disk accounting of
// sf and compares its contents against model.
func checkStore(sf *StorageFile, model map[string][]byte) error {
	if err := sf.Check(); err != nil {
		return err
	}

	size, _ := sf.Size()
	free, _ := sf.SizeOf(true)
	used, _ := sf.SizeOf(false)
	if free+used+sf.first != size {
		return fmt.Errorf("space accounting: free %d + used %d + first %d != size %d", free, used, sf.first, size)
	}

	keys, _ := sf.Keys()
	if len(keys) != len(model) {
		return fmt.Errorf("store holds %d keys, model %d", len(keys), len(model))
	}
	for k, want := range model {
		got, found, err := sf.Get(k)
		if err != nil || !found || !bytes.Equal(got, want) {
			return fmt.Errorf("get %q: found=%v err=%v", k, found, err)
		}
	}
	return nil
}

func TestStorageFileMatchesModel(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)
	dir := t.TempDir()
	run := 0

	properties.Property("random workloads agree with a map and survive reopen", prop.ForAll(
		func(ops []int) string {
			run++
			path := filepath.Join(dir, fmt.Sprintf("model-%d.db", run))

			sf, err := Open(path)
			if err != nil {
				return err.Error()
			}
			defer func() {
				if sf != nil {
					sf.Close()
				}
			}()

			model := map[string][]byte{}
			lastSize := int64(chunk.FileHeaderBytes)

			for step, n := range ops {
				o := decodeOp(n)
				_, present := model[o.key]

				switch o.kind {
				case 0:
					ok, err := sf.Put(o.key, o.value)
					if err != nil || ok == present {
						return fmt.Sprintf("step %d: put %q ok=%v err=%v present=%v", step, o.key, ok, err, present)
					}
					if ok {
						model[o.key] = o.value
					}

				case 1:
					before, _ := sf.Size()
					ok, err := sf.PutWithGrowth(o.key, o.value, false)
					if err != nil || (present && ok) {
						return fmt.Sprintf("step %d: put without growth %q ok=%v err=%v", step, o.key, ok, err)
					}
					if ok {
						model[o.key] = o.value
					}
					if after, _ := sf.Size(); after != before {
						return fmt.Sprintf("step %d: put without growth grew file %d -> %d", step, before, after)
					}

				case 2:
					ok, err := sf.Remove(o.key)
					if err != nil || ok != present {
						return fmt.Sprintf("step %d: remove %q ok=%v err=%v present=%v", step, o.key, ok, err, present)
					}
					delete(model, o.key)

				case 3:
					got, found, err := sf.Get(o.key)
					if err != nil || found != present || (found && !bytes.Equal(got, model[o.key])) {
						return fmt.Sprintf("step %d: get %q found=%v err=%v", step, o.key, found, err)
					}
				}

				size, _ := sf.Size()
				if size < lastSize {
					return fmt.Sprintf("step %d: file shrank %d -> %d", step, lastSize, size)
				}
				lastSize = size
			}

			if err := checkStore(sf, model); err != nil {
				return "before reopen: " + err.Error()
			}

			if err := sf.Close(); err != nil {
				return err.Error()
			}
			sf, err = Open(path)
			if err != nil {
				return "reopen: " + err.Error()
			}
			if size, _ := sf.Size(); size != lastSize {
				return fmt.Sprintf("reopened size %d, want %d", size, lastSize)
			}
			if err := checkStore(sf, model); err != nil {
				return "after reopen: " + err.Error()
			}
			return ""
		},
		gen.SliceOf(gen.IntRange(0, 1<<20)),
	))

	properties.TestingRun(t)
}

func TestFreeEncodingRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("any freed region decodes to exactly its own span", prop.ForAll(
		func(size int64) bool {
			hdr, err := chunk.EncodeFree(size)
			if err != nil {
				return false
			}
			region := make([]byte, size)
			copy(region, hdr)

			c, err := chunk.Decode(bytes.NewReader(region), 0, size)
			return err == nil && c.Free && c.Next == size
		},
		gen.Int64Range(1, 1<<18),
	))

	properties.TestingRun(t)
}
