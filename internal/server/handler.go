package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/0xRadioAc7iv/go-storfile/core"
	"github.com/0xRadioAc7iv/go-storfile/internal/cas"
	"github.com/0xRadioAc7iv/go-storfile/internal/metrics"
	"github.com/0xRadioAc7iv/go-storfile/internal/protocol"
)

const helpText = `
Available Commands:

PING
  Check if the server is alive.
  Response: PONG

PUT <key> <value>
  Store a value under a new key. Existing keys are never overwritten.
  Response: ok | false (key exists)

PUTNOGROW <key> <value>
  Like PUT, but only reuses free space inside the store.
  Response: ok | false (key exists or no room)

GET <key>
  Retrieve the value associated with the key.
  Response: value | nil

HAS <key>
  Check if a key exists.
  Response: true | false

REMOVE <key>
  Delete the key and free its space.
  Response: ok | nil

SIZE | SIZEFREE | SIZEUSED
  Bytes on disk: total, in free chunks, in occupied chunks.
  Response: integer

COUNT
  Return the total number of keys stored.
  Response: integer

LIST
  List all stored keys.
  Response: list of keys | nil

BLOBPUT <value>
  Store a value under the BLAKE3 digest of its contents.
  Response: digest

BLOBGET <digest>
  Retrieve a value stored with BLOBPUT.
  Response: value | nil

HELP
  Show this help message.

EXIT (cli only)
  Close the client connection.
`

// Handler executes protocol commands against a store.
type Handler struct {
	store   core.Storage
	blobs   *cas.Store
	metrics *metrics.Registry
	log     *slog.Logger
}

// NewHandler returns a Handler serving store. registry may be nil.
func NewHandler(store core.Storage, registry *metrics.Registry, logger *slog.Logger) *Handler {
	return &Handler{
		store:   store,
		blobs:   cas.New(store),
		metrics: registry,
		log:     logger,
	}
}

// ServeConn reads commands from conn and answers each one in order until the
// client disconnects or ctx is cancelled.
func (h *Handler) ServeConn(ctx context.Context, conn net.Conn) {
	log := h.log.With("remote", conn.RemoteAddr().String())
	log.Debug("client connected")

	if h.metrics != nil {
		h.metrics.ConnectionsActive.Inc()
		defer h.metrics.ConnectionsActive.Dec()
	}

	for ctx.Err() == nil {
		command, err := protocol.DecodeCommand(conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				log.Debug("client disconnected")
			} else {
				log.Warn("dropping client", "error", err)
			}
			return
		}

		resp := h.Execute(command)

		encoded, err := protocol.EncodeResponse(resp.Status, resp.Body)
		if err != nil {
			log.Error("encoding response", "command", command.Name, "error", err)
			encoded, _ = protocol.EncodeResponse(protocol.StatusError, []byte(err.Error()))
		}
		if _, err := conn.Write(encoded); err != nil {
			log.Debug("client disconnected", "error", err)
			return
		}
	}
}

// Execute runs one command and returns its response.
func (h *Handler) Execute(command *protocol.Command) protocol.Response {
	name := strings.ToLower(command.Name)
	resp := h.execute(name, command)

	if resp.Status == protocol.StatusError {
		h.log.Warn("command failed", "command", name, "key", command.Key, "error", string(resp.Body))
	}
	if h.metrics != nil {
		h.metrics.RecordCommand(name, resp.Status.String())
	}
	return resp
}

func (h *Handler) execute(name string, command *protocol.Command) protocol.Response {
	switch name {
	case protocol.CmdPing:
		return ok([]byte("PONG"))
	case protocol.CmdGet:
		return found(h.store.Get(command.Key))
	case protocol.CmdPut:
		return applied(h.store.Put(command.Key, command.Val))
	case protocol.CmdPutNoGrow:
		return applied(h.store.PutWithGrowth(command.Key, command.Val, false))
	case protocol.CmdHas:
		return applied(h.store.Has(command.Key))
	case protocol.CmdRemove:
		removed, err := h.store.Remove(command.Key)
		return found(nil, removed, err)
	case protocol.CmdSize:
		return number(h.store.Size())
	case protocol.CmdSizeFree:
		return number(h.store.SizeOf(true))
	case protocol.CmdSizeUsed:
		return number(h.store.SizeOf(false))
	case protocol.CmdCount:
		keys, err := h.keys()
		return number(int64(len(keys)), err)
	case protocol.CmdList:
		return h.list()
	case protocol.CmdBlobPut:
		d, err := h.blobs.Put(command.Val)
		if err != nil {
			return failure(err)
		}
		return ok([]byte(d.String()))
	case protocol.CmdBlobGet:
		d, err := cas.ParseDigest(command.Key)
		if err != nil {
			return failure(err)
		}
		return found(h.blobs.Get(d))
	case protocol.CmdHelp:
		return ok([]byte(strings.TrimSpace(helpText)))
	default:
		return protocol.Response{Status: protocol.StatusError, Body: []byte("invalid command " + strconv.Quote(name))}
	}
}

func (h *Handler) keys() ([]string, error) {
	lister, ok := h.store.(core.Lister)
	if !ok {
		return nil, errors.New("store cannot list keys")
	}
	return lister.Keys()
}

func (h *Handler) list() protocol.Response {
	keys, err := h.keys()
	if err != nil {
		return failure(err)
	}
	if len(keys) == 0 {
		return protocol.Response{Status: protocol.StatusNotFound}
	}
	return ok([]byte(strings.Join(keys, "\n")))
}

func ok(body []byte) protocol.Response {
	return protocol.Response{Status: protocol.StatusOK, Body: body}
}

func failure(err error) protocol.Response {
	return protocol.Response{Status: protocol.StatusError, Body: []byte(err.Error())}
}

func found(value []byte, present bool, err error) protocol.Response {
	switch {
	case err != nil:
		return failure(err)
	case !present:
		return protocol.Response{Status: protocol.StatusNotFound}
	default:
		return ok(value)
	}
}

func applied(done bool, err error) protocol.Response {
	switch {
	case err != nil:
		return failure(err)
	case !done:
		return protocol.Response{Status: protocol.StatusFalse}
	default:
		return ok(nil)
	}
}

func number(n int64, err error) protocol.Response {
	if err != nil {
		return failure(err)
	}
	return ok([]byte(strconv.FormatInt(n, 10)))
}
