// storfile-cli is an interactive shell for a storfile server. Arguments after
// the flags are run as a single command instead.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/pflag"

	"github.com/0xRadioAc7iv/go-storfile/internal/protocol"
	"github.com/0xRadioAc7iv/go-storfile/internal/utils"
	"github.com/0xRadioAc7iv/go-storfile/storfile"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	cfg, rest, err := utils.ParseClientFlags("storfile-cli", args, os.Stderr)
	if err != nil {
		return err
	}

	client, err := storfile.Connect(
		storfile.WithHost(cfg.Client.Host),
		storfile.WithPort(cfg.Client.Port),
		storfile.WithTimeout(cfg.Client.Timeout),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	if len(rest) > 0 {
		return execute(client, shellquote.Join(rest...), stdout)
	}

	fmt.Fprintf(stdout, "Connected to %s:%d\n", cfg.Client.Host, cfg.Client.Port)
	fmt.Fprintln(stdout, "Type commands. 'help' for information or 'exit' to quit.")

	reader := bufio.NewReader(stdin)

	for {
		fmt.Fprint(stdout, "> ")

		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}

		line = strings.TrimSpace(line)

		if line == "" {
			continue
		}

		if line == "exit" {
			return nil
		}

		if err := execute(client, line, stdout); err != nil {
			var parseErr *parseError
			if errors.As(err, &parseErr) {
				fmt.Fprintln(stdout, err)
				continue
			}
			return err
		}
	}
}

type parseError struct{ err error }

func (e *parseError) Error() string { return "parse error: " + e.err.Error() }
func (e *parseError) Unwrap() error { return e.err }

func execute(client *storfile.Client, line string, stdout io.Writer) error {
	cmd, key, value, err := utils.SplitStringIntoCommandAndArguments(line)
	if err != nil {
		return &parseError{err}
	}

	resp, err := client.Execute(cmd, key, value)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, format(resp))
	return nil
}

func format(resp *protocol.Response) string {
	switch resp.Status {
	case protocol.StatusOK:
		if len(resp.Body) == 0 {
			return "ok"
		}
		return string(resp.Body)
	case protocol.StatusNotFound:
		return "nil"
	case protocol.StatusFalse:
		return "false"
	default:
		return "error: " + string(resp.Body)
	}
}
