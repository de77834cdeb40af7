package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
)

// maxPortProbes bounds how far Listen walks upwards looking for a free port.
const maxPortProbes = 100

// ConnHandler serves one client connection until it returns. ctx is
// cancelled when the server shuts down.
type ConnHandler func(ctx context.Context, conn net.Conn)

// Listen opens a TCP listener on host:port. When hunt is set and the port is
// taken, the following ports are tried in turn.
func Listen(host string, port int, hunt bool) (net.Listener, error) {
	for probe := 0; ; probe++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(port+probe)))
		if err == nil {
			return ln, nil
		}
		if !hunt || !errors.Is(err, syscall.EADDRINUSE) || probe+1 >= maxPortProbes {
			return nil, err
		}
	}
}

// Serve accepts connections on ln and hands each one to handler in its own
// goroutine. It returns once ctx is cancelled and every handler has
// returned; open connections are closed on shutdown.
func Serve(ctx context.Context, ln net.Listener, handler ConnHandler, logger *slog.Logger) error {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		conns = make(map[net.Conn]struct{})
	)

	// When ctx is cancelled, close listener and connections
	stop := context.AfterFunc(ctx, func() {
		ln.Close()

		mu.Lock()
		for c := range conns {
			c.Close()
		}
		mu.Unlock()
	})
	defer stop()

	logger.Info("server listening", "addr", ln.Addr().String())

	// Accept Loop
	for {
		conn, err := ln.Accept()
		if err != nil {
			// When ln.Close() is called, Accept() returns an error.
			// This is how we break out of the loop cleanly.
			if ctx.Err() != nil {
				wg.Wait()
				logger.Info("server stopped")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				wg.Wait()
				return err
			}
			logger.Warn("error accepting connection", "error", err)
			continue
		}

		mu.Lock()
		if ctx.Err() != nil {
			mu.Unlock()
			conn.Close()
			continue
		}
		conns[conn] = struct{}{}
		mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				mu.Lock()
				delete(conns, conn)
				mu.Unlock()
				conn.Close()
			}()

			handler(ctx, conn)
		}()
	}
}
