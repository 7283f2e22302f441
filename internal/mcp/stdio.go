package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"linear-mcp/internal/jsonrpc"
)

// MaxMessageSize bounds a single newline-delimited message.
const MaxMessageSize = 4 << 20

// StdioTransport serves newline-delimited JSON-RPC over a reader and
// writer pair. Requests run concurrently; responses may be written out of
// order.
type StdioTransport struct {
	handler *Handler
	logger  zerolog.Logger
}

// NewStdioTransport creates a stdio transport for handler.
func NewStdioTransport(handler *Handler, logger zerolog.Logger) *StdioTransport {
	return &StdioTransport{
		handler: handler,
		logger:  logger.With().Str("component", "stdio_transport").Logger(),
	}
}

// Serve reads messages from in until EOF or until ctx is done, then waits
// for in-flight requests to finish.
func (t *StdioTransport) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := &lineWriter{out: out}
	lines := make(chan inbound)
	readErr := make(chan error, 1)

	go func() {
		readErr <- readMessages(in, MaxMessageSize, func(msg inbound) bool {
			select {
			case lines <- msg:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	t.logger.Info().Msg("Serving MCP on stdio")
	for {
		select {
		case <-ctx.Done():
			t.logger.Info().Msg("Stdio transport stopping")
			return nil
		case err := <-readErr:
			if err != nil {
				t.logger.Error().Err(err).Msg("Failed to read from stdin")
				return err
			}
			t.logger.Info().Msg("Stdin closed")
			return nil
		case line := <-lines:
			if line.tooLong {
				t.logger.Warn().Int("limit", MaxMessageSize).Msg("Dropped oversized message")
				t.write(w, jsonrpc.NewErrorResponse(nil, jsonrpc.NewError(jsonrpc.InvalidRequest, "Message too large", nil)))
				continue
			}

			msg, err := jsonrpc.ParseMessage(line.data)
			if err != nil {
				t.logger.Debug().Err(err).Msg("Rejected malformed message")
				var rpcErr *jsonrpc.Error
				if !errors.As(err, &rpcErr) {
					rpcErr = jsonrpc.NewError(jsonrpc.ParseError, "Parse error", nil)
				}
				t.write(w, jsonrpc.NewErrorResponse(nil, rpcErr))
				continue
			}

			if _, ok := msg.(*jsonrpc.Request); !ok {
				// notifications are cheap and cancellation must not queue
				t.handler.Handle(ctx, msg)
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				if resp := t.handler.Handle(ctx, msg); resp != nil {
					t.write(w, resp)
				}
			}()
		}
	}
}

func (t *StdioTransport) write(w *lineWriter, resp *jsonrpc.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		t.logger.Error().Err(err).Interface("id", resp.ID).Msg("Failed to encode response")
		data, _ = json.Marshal(jsonrpc.NewErrorResponse(resp.ID, jsonrpc.NewError(jsonrpc.InternalError, "Internal error", nil)))
	}
	if err := w.writeLine(data); err != nil {
		t.logger.Error().Err(err).Msg("Failed to write response")
	}
}

// inbound is one message read from the input. Oversized messages carry no
// data.
type inbound struct {
	data    []byte
	tooLong bool
}

// readMessages splits r into newline-delimited messages and passes each
// non-blank one to emit until emit returns false. A message longer than
// limit is discarded up to its newline and reported with tooLong set.
func readMessages(r io.Reader, limit int, emit func(inbound) bool) error {
	br := bufio.NewReaderSize(r, 64*1024)
	var line []byte
	tooLong := false

	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			line = append(line, chunk...)
			if len(line) > limit {
				tooLong, line = true, nil
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}

		if tooLong {
			if !emit(inbound{tooLong: true}) {
				return nil
			}
		} else if msg := bytes.TrimSpace(line); len(msg) > 0 {
			if !emit(inbound{data: append([]byte(nil), msg...)}) {
				return nil
			}
		}
		line, tooLong = line[:0], false

		if err != nil {
			return nil
		}
	}
}

type lineWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func (w *lineWriter) writeLine(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.out.Write(data); err != nil {
		return err
	}
	_, err := w.out.Write([]byte{'\n'})
	return err
}
