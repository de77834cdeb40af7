package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/0xRadioAc7iv/go-storfile/internal/protocol"
)

var ErrEmptyCommand = errors.New("empty command")

// arity is the number of arguments each command takes after its name.
var arity = map[string]int{
	protocol.CmdPing:      0,
	protocol.CmdGet:       1,
	protocol.CmdPut:       2,
	protocol.CmdPutNoGrow: 2,
	protocol.CmdHas:       1,
	protocol.CmdRemove:    1,
	protocol.CmdSize:      0,
	protocol.CmdSizeFree:  0,
	protocol.CmdSizeUsed:  0,
	protocol.CmdCount:     0,
	protocol.CmdList:      0,
	protocol.CmdBlobPut:   1,
	protocol.CmdBlobGet:   1,
	protocol.CmdHelp:      0,
}

// SplitStringIntoCommandAndArguments splits a line typed at the CLI with
// shell quoting rules, so `put "my key" 'a value'` keeps spaces inside
// quotes. The command name is lowercased. BLOBPUT's single argument is the
// value; every other command's first argument is the key.
func SplitStringIntoCommandAndArguments(line string) (cmd, key string, value []byte, err error) {
	words, err := shellquote.Split(line)
	if err != nil {
		return "", "", nil, err
	}
	if len(words) == 0 {
		return "", "", nil, ErrEmptyCommand
	}

	cmd = strings.ToLower(words[0])
	args := words[1:]

	want, known := arity[cmd]
	if !known {
		// Let the server answer unknown commands.
		want = len(args)
	}
	if len(args) != want {
		return "", "", nil, fmt.Errorf("%s takes %d argument(s), got %d", cmd, want, len(args))
	}

	switch {
	case cmd == protocol.CmdBlobPut:
		value = []byte(args[0])
	case len(args) >= 2:
		key, value = args[0], []byte(args[1])
	case len(args) == 1:
		key = args[0]
	}
	return cmd, key, value, nil
}
