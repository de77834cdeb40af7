package storfile

import (
	"time"

	"github.com/0xRadioAc7iv/go-storfile/internal/config"
)

type options struct {
	host    string
	port    int
	timeout time.Duration
}

func defaultOptions() options {
	return options{
		host:    config.DefaultHost,
		port:    config.DefaultPort,
		timeout: config.DefaultTimeout,
	}
}

type Option func(*options)

func WithHost(host string) Option {
	return func(o *options) {
		o.host = host
	}
}

func WithPort(port int) Option {
	return func(o *options) {
		o.port = port
	}
}

// WithTimeout bounds dialing and each request round trip. Zero disables the
// deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}
