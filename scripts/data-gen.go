/*
	Churn load generator: concurrent workers put, remove and re-put keys so the
	store accumulates and reuses free chunks. Run against a live server.
*/

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/0xRadioAc7iv/go-storfile/internal/config"
	"github.com/0xRadioAc7iv/go-storfile/internal/utils"
	"github.com/0xRadioAc7iv/go-storfile/storfile"
)

const (
	// Fixed universe
	totalKeys   = 100
	totalValues = 100

	// Per-cycle behavior
	keysPerCycleWrite  = 20
	keysPerCycleDelete = 10

	progressEvery = 500
)

func main() {
	flagSet := pflag.NewFlagSet("data-gen", pflag.ContinueOnError)
	host := flagSet.String("host", config.DefaultHost, "storfile server host")
	port := flagSet.Int("port", config.DefaultPort, "storfile server port")
	concurrency := flagSet.Int("workers", 6, "concurrent connections")
	cycles := flagSet.Int("cycles", 5000, "cycles per worker")
	pause := flagSet.Duration("pause", 10*time.Millisecond, "sleep between cycles")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := utils.ContextWithShutdownSignals(context.Background())
	defer stop()

	start := time.Now()
	logger.Info("starting churn-heavy load generator", "workers", *concurrency, "cycles", *cycles)

	keys := makeKeys(totalKeys)
	values := makeValues(totalValues)

	g, ctx := errgroup.WithContext(ctx)
	for id := range *concurrency {
		g.Go(func() error {
			client, err := storfile.Connect(storfile.WithHost(*host), storfile.WithPort(*port))
			if err != nil {
				return fmt.Errorf("worker %d: %w", id, err)
			}
			defer client.Close()

			return runWorker(ctx, logger.With("worker", id), client, *cycles, *pause, keys, values)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("load failed", "error", err)
		os.Exit(1)
	}
	logger.Info("load finished", "elapsed", time.Since(start))
}

func runWorker(ctx context.Context, logger *slog.Logger, client *storfile.Client, cycles int, pause time.Duration, keys []string, values [][]byte) error {
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))

	for cycle := 1; cycle <= cycles; cycle++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Write phase. Keys already present are left alone.
		for range keysPerCycleWrite {
			if _, err := client.Put(keys[rng.IntN(len(keys))], values[rng.IntN(len(values))]); err != nil {
				return fmt.Errorf("put: %w", err)
			}
		}

		// Delete phase, leaving free chunks behind.
		for range keysPerCycleDelete {
			if _, err := client.Remove(keys[rng.IntN(len(keys))]); err != nil {
				return fmt.Errorf("remove: %w", err)
			}
		}

		// Refill phase, only into existing free space.
		for range keysPerCycleWrite / 2 {
			if _, err := client.PutNoGrow(keys[rng.IntN(len(keys))], values[rng.IntN(len(values))]); err != nil {
				return fmt.Errorf("putnogrow: %w", err)
			}
		}

		if cycle%progressEvery == 0 {
			size, err := client.Size()
			if err != nil {
				return fmt.Errorf("size: %w", err)
			}
			logger.Info("progress", "cycles", cycle, "store_size", size)
		}

		if pause > 0 {
			time.Sleep(pause)
		}
	}
	return nil
}

func makeKeys(n int) []string {
	keys := make([]string, n)
	for i := range n {
		keys[i] = fmt.Sprintf("key-%03d", i)
	}
	return keys
}

// makeValues varies lengths so freed chunks split and merge, and mixes
// repetitive values that compress with ones that do not.
func makeValues(n int) [][]byte {
	values := make([][]byte, n)
	for i := range n {
		if i%2 == 0 {
			values[i] = bytes.Repeat([]byte(fmt.Sprintf("value-%03d-", i)), 1+i%17)
		} else {
			v := make([]byte, 16+i*7)
			var seed [32]byte
			seed[0] = byte(i)
			rand.NewChaCha8(seed).Read(v)
			values[i] = v
		}
	}
	return values
}
