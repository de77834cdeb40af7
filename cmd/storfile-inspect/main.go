// storfile-inspect prints the chunk layout of a store file and optionally
// verifies it. The store must not be open in a server at the same time.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/0xRadioAc7iv/go-storfile/core"
	"github.com/0xRadioAc7iv/go-storfile/internal/utils"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("storfile-inspect", pflag.ContinueOnError)
	flagSet.SetOutput(os.Stderr)
	flagSet.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: storfile-inspect [flags] <store-file>")
		flagSet.PrintDefaults()
	}

	check := flagSet.Bool("check", false, "verify the in-memory index against the file and exit non-zero on mismatch")
	values := flagSet.BoolP("values", "v", false, "print stored values")
	logLevel := flagSet.String("log-level", "warn", "debug, info, warn or error")

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return errors.New("expected exactly one store file")
	}
	path := flagSet.Arg(0)

	// Open would create an empty store at a mistyped path.
	if !utils.PathExists(path) {
		return fmt.Errorf("%s: no such file", path)
	}

	logger, err := utils.NewLogger(os.Stderr, *logLevel, "text")
	if err != nil {
		return err
	}

	store, err := core.Open(path, core.WithLogger(logger))
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Dump(stdout, *values); err != nil {
		return err
	}

	if *check {
		if err := store.Check(); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "check: ok")
	}
	return nil
}
