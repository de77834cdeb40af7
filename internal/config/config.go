// Package config loads storfile configuration from a YAML file.
//
// Every field has a default, so a missing file or an empty one yields a
// working configuration. Command-line flags are applied on top by the
// commands themselves.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/0xRadioAc7iv/go-storfile/core"
	"github.com/0xRadioAc7iv/go-storfile/internal/compress"
)

// EnvConfigPath names the environment variable holding the config file path
// when --config is not given.
const EnvConfigPath = "STORFILE_CONFIG"

const (
	DefaultHost    = "127.0.0.1"
	DefaultPort    = 9999
	DefaultTimeout = 5 * time.Second
)

type Config struct {
	// Store configures the storage engine.
	Store StoreConfig `yaml:"store"`

	// Server configures the TCP command server.
	Server ServerConfig `yaml:"server"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log"`

	// Client configures how the CLI and client library dial the server.
	Client ClientConfig `yaml:"client"`
}

type StoreConfig struct {
	// Path is the store file, or the directory for the dir backend.
	// Default: ./store.db
	Path string `yaml:"path"`

	// Backend selects the storage implementation: "file" or "dir".
	// Default: file
	Backend string `yaml:"backend"`

	// CompressionLevel is the DEFLATE level for new values, -2 to 9.
	// 0 disables compression. Default: 9
	CompressionLevel int `yaml:"compression_level"`
}

type ServerConfig struct {
	// Host is the interface the server binds to.
	// Default: 127.0.0.1
	Host string `yaml:"host"`

	// Port is the first port tried.
	// Default: 9999
	Port int `yaml:"port"`

	// HuntPort moves on to the next port while the configured one is taken.
	// Default: true
	HuntPort bool `yaml:"hunt_port"`
}

type MetricsConfig struct {
	// Addr is the host:port serving /metrics. Empty disables the endpoint.
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Format is "text" or "json".
	// Default: text
	Format string `yaml:"format"`
}

type ClientConfig struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Path:             core.DefaultStoreFileName,
			Backend:          core.BackendFile,
			CompressionLevel: compress.DefaultLevel,
		},
		Server: ServerConfig{
			Host:     DefaultHost,
			Port:     DefaultPort,
			HuntPort: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Client: ClientConfig{
			Host:    DefaultHost,
			Port:    DefaultPort,
			Timeout: DefaultTimeout,
		},
	}
}

// Load reads the file named by path, or by STORFILE_CONFIG when path is
// empty. With neither set it returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults and validates the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every field holds a usable value.
func (c *Config) Validate() error {
	var errs []error

	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path must not be empty"))
	}
	if c.Store.Backend != core.BackendFile && c.Store.Backend != core.BackendDirectory {
		errs = append(errs, fmt.Errorf("store.backend %q must be %q or %q", c.Store.Backend, core.BackendFile, core.BackendDirectory))
	}
	if !compress.ValidLevel(c.Store.CompressionLevel) {
		errs = append(errs, fmt.Errorf("store.compression_level %d out of range", c.Store.CompressionLevel))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Client.Port < 1 || c.Client.Port > 65535 {
		errs = append(errs, fmt.Errorf("client.port %d out of range", c.Client.Port))
	}
	if c.Client.Timeout < 0 {
		errs = append(errs, errors.New("client.timeout must not be negative"))
	}
	if c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			errs = append(errs, fmt.Errorf("metrics.addr: %w", err))
		}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}

	return errors.Join(errs...)
}

// ServerAddr is the host:port the server binds to first.
func (c *Config) ServerAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
