// storfile serves a single-file key/value store over TCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/0xRadioAc7iv/go-storfile/core"
	"github.com/0xRadioAc7iv/go-storfile/internal/metrics"
	"github.com/0xRadioAc7iv/go-storfile/internal/server"
	"github.com/0xRadioAc7iv/go-storfile/internal/utils"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := utils.ParseServerFlags("storfile", args, os.Stderr)
	if err != nil {
		return err
	}

	logger, err := utils.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	registry := metrics.DefaultRegistry()

	store, err := core.OpenBackend(cfg.Store.Backend, cfg.Store.Path,
		core.WithLogger(logger),
		core.WithCompressionLevel(cfg.Store.CompressionLevel),
		core.WithMetrics(registry),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("closing store", "error", err)
		}
	}()

	ctx, stop := utils.ContextWithShutdownSignals(context.Background())
	defer stop()

	ln, err := server.Listen(cfg.Server.Host, cfg.Server.Port, cfg.Server.HuntPort)
	if err != nil {
		return fmt.Errorf("listening: %w", err)
	}

	var metricsLn net.Listener
	if cfg.Metrics.Addr != "" {
		metricsLn, err = net.Listen("tcp", cfg.Metrics.Addr)
		if err != nil {
			ln.Close()
			return fmt.Errorf("listening for metrics: %w", err)
		}
	}

	handler := server.NewHandler(store, registry, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(ctx, ln, handler.ServeConn, logger)
	})
	if metricsLn != nil {
		g.Go(func() error {
			return server.ServeMetrics(ctx, metricsLn, registry, logger)
		})
	}

	logger.Info("press Ctrl+C to exit")
	return g.Wait()
}
