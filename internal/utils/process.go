package utils

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ContextWithShutdownSignals returns a context that is cancelled on the first
// interrupt (Ctrl+C) or termination signal (SIGTERM). Call stop to release
// the signal handler.
func ContextWithShutdownSignals(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
