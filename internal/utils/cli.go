package utils

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/0xRadioAc7iv/go-storfile/internal/config"
)

// ParseServerFlags loads the configuration named by --config (or
// STORFILE_CONFIG) and applies every flag given on the command line on top
// of it. It returns pflag.ErrHelp after printing usage for -h.
func ParseServerFlags(name string, args []string, stderr io.Writer) (*config.Config, error) {
	def := config.Default()

	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)

	configPath := flagSet.String("config", "", "path to a YAML config file (default $"+config.EnvConfigPath+")")
	path := flagSet.String("path", def.Store.Path, "store file, or directory for the dir backend")
	backend := flagSet.String("backend", def.Store.Backend, "storage backend: file or dir")
	level := flagSet.Int("compression-level", def.Store.CompressionLevel, "DEFLATE level for new values, 0 disables compression")
	host := flagSet.String("host", def.Server.Host, "interface for the TCP server")
	port := flagSet.Int("port", def.Server.Port, "port for the TCP server")
	hunt := flagSet.Bool("hunt-port", def.Server.HuntPort, "try the following ports while the configured one is taken")
	metricsAddr := flagSet.String("metrics-addr", def.Metrics.Addr, "host:port for the Prometheus endpoint, empty disables it")
	logLevel := flagSet.String("log-level", def.Log.Level, "debug, info, warn or error")
	logFormat := flagSet.String("log-format", def.Log.Format, "text or json")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if flagSet.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	flagSet.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "path":
			cfg.Store.Path = *path
		case "backend":
			cfg.Store.Backend = *backend
		case "compression-level":
			cfg.Store.CompressionLevel = *level
		case "host":
			cfg.Server.Host = *host
		case "port":
			cfg.Server.Port = *port
		case "hunt-port":
			cfg.Server.HuntPort = *hunt
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseClientFlags is ParseServerFlags for tools that dial a running server.
// Positional arguments are returned for the caller to interpret.
func ParseClientFlags(name string, args []string, stderr io.Writer) (*config.Config, []string, error) {
	def := config.Default()

	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)

	configPath := flagSet.String("config", "", "path to a YAML config file (default $"+config.EnvConfigPath+")")
	host := flagSet.String("host", def.Client.Host, "storfile server host")
	port := flagSet.IntP("port", "p", def.Client.Port, "storfile server port")
	timeout := flagSet.Duration("timeout", def.Client.Timeout, "dial and request timeout")

	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, nil, err
	}

	flagSet.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "host":
			cfg.Client.Host = *host
		case "port":
			cfg.Client.Port = *port
		case "timeout":
			cfg.Client.Timeout = *timeout
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, flagSet.Args(), nil
}
