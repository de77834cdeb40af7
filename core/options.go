package core

import (
	"io"
	"log/slog"

	"github.com/0xRadioAc7iv/go-storfile/internal/compress"
	"github.com/0xRadioAc7iv/go-storfile/internal/metrics"
)

type options struct {
	logger           *slog.Logger
	compressionLevel int
	metrics          *metrics.Registry
}

// Option configures a store at open time.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		compressionLevel: compress.DefaultLevel,
	}
}

// WithLogger sets the logger. Stores are silent by default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCompressionLevel sets the DEFLATE level used for new values. Levels
// outside the valid range fall back to the default; flate.NoCompression
// stores every value raw.
func WithCompressionLevel(level int) Option {
	return func(o *options) {
		if compress.ValidLevel(level) {
			o.compressionLevel = level
		}
	}
}

// WithMetrics records operations and disk usage into r.
func WithMetrics(r *metrics.Registry) Option {
	return func(o *options) {
		o.metrics = r
	}
}
