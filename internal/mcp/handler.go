package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"

	"linear-mcp/internal/jsonrpc"
	"linear-mcp/internal/tools"
)

// ToolProvider lists and executes tools. *tools.Registry implements it.
type ToolProvider interface {
	Definitions() []tools.Definition
	Call(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error)
}

// CodeInternalError is the failure kind reported for tool errors that carry
// no kind of their own.
const CodeInternalError = "internal_error"

type scopeKey struct{}

// WithScope returns a context whose request IDs are tracked separately from
// other scopes, so that two HTTP sessions may reuse the same IDs.
func WithScope(ctx context.Context, scope string) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

func scopeFrom(ctx context.Context) string {
	scope, _ := ctx.Value(scopeKey{}).(string)
	return scope
}

// Handler dispatches MCP requests. It holds no per-client state other than
// the cancel functions of in-flight tool calls.
type Handler struct {
	tools        ToolProvider
	info         Implementation
	instructions string
	logger       zerolog.Logger

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

// NewHandler creates a new MCP handler.
func NewHandler(provider ToolProvider, info Implementation, instructions string, logger zerolog.Logger) *Handler {
	return &Handler{
		tools:        provider,
		info:         info,
		instructions: instructions,
		logger:       logger.With().Str("component", "mcp_handler").Logger(),
		inflight:     make(map[string]context.CancelFunc),
	}
}

// HandleBytes parses and handles one raw message. It returns nil when no
// response is due.
func (h *Handler) HandleBytes(ctx context.Context, data []byte) *jsonrpc.Response {
	msg, err := jsonrpc.ParseMessage(data)
	if err != nil {
		var rpcErr *jsonrpc.Error
		if !errors.As(err, &rpcErr) {
			rpcErr = jsonrpc.NewError(jsonrpc.ParseError, err.Error(), nil)
		}
		return jsonrpc.NewErrorResponse(nil, rpcErr)
	}
	return h.Handle(ctx, msg)
}

// Handle handles a parsed message. Notifications and responses yield nil.
func (h *Handler) Handle(ctx context.Context, msg any) *jsonrpc.Response {
	switch m := msg.(type) {
	case *jsonrpc.Request:
		return h.handleRequest(ctx, m)
	case *jsonrpc.Notification:
		h.handleNotification(ctx, m)
	case *jsonrpc.Response:
		h.logger.Debug().Interface("id", m.ID).Msg("Ignoring client response")
	}
	return nil
}

func (h *Handler) handleRequest(ctx context.Context, req *jsonrpc.Request) (resp *jsonrpc.Response) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().
				Interface("panic", r).
				Str("method", req.Method).
				Bytes("stack", debug.Stack()).
				Msg("Recovered from panic while handling request")
			resp = jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.InternalError, "Internal error", nil))
		}
	}()

	h.logger.Debug().
		Interface("id", req.ID).
		Str("method", req.Method).
		Msg("Handling request")

	switch req.Method {
	case MethodInitialize:
		return h.initialize(req)
	case MethodPing:
		return jsonrpc.NewResponse(req.ID, struct{}{})
	case MethodToolsList:
		return jsonrpc.NewResponse(req.ID, map[string]any{"tools": h.tools.Definitions()})
	case MethodToolsCall:
		return h.callTool(ctx, req)
	default:
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.MethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil))
	}
}

func (h *Handler) initialize(req *jsonrpc.Request) *jsonrpc.Response {
	var params InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.InvalidParams, "Invalid initialize params", err.Error()))
		}
	}

	h.logger.Info().
		Str("client_name", params.ClientInfo.Name).
		Str("client_version", params.ClientInfo.Version).
		Str("protocol_version", params.ProtocolVersion).
		Msg("Client initializing")

	return jsonrpc.NewResponse(req.ID, InitializeResult{
		ProtocolVersion: NegotiateVersion(params.ProtocolVersion),
		Capabilities:    ServerCapabilities{Tools: &ToolsCapability{ListChanged: false}},
		ServerInfo:      h.info,
		Instructions:    h.instructions,
	})
}

// NegotiateVersion returns requested if it is supported, otherwise the
// latest supported version.
func NegotiateVersion(requested string) string {
	for _, v := range SupportedProtocolVersions {
		if v == requested {
			return v
		}
	}
	return LatestProtocolVersion
}

func (h *Handler) callTool(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.InvalidParams, "tools/call requires a tool name", nil))
	}

	ctx, done, ok := h.track(ctx, req.ID)
	if !ok {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.InvalidRequest, fmt.Sprintf("Request ID %v is already in flight", req.ID), nil))
	}
	defer done()

	out, err := h.tools.Call(ctx, params.Name, params.Arguments)
	if err != nil {
		var toolErr *tools.Error
		if errors.As(err, &toolErr) && toolErr.Code == tools.CodeToolNotFound {
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.InvalidParams, toolErr.Message, nil))
		}
		return jsonrpc.NewResponse(req.ID, ErrorResult(err))
	}

	return jsonrpc.NewResponse(req.ID, CallToolResult{
		Content:           []Content{{Type: "text", Text: string(out)}},
		StructuredContent: json.RawMessage(out),
	})
}

// Failure is the structured content of a failed tool call.
type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ErrorResult converts a tool error into an isError result.
func ErrorResult(err error) CallToolResult {
	failure := Failure{Kind: CodeInternalError, Message: err.Error()}
	var toolErr *tools.Error
	if errors.As(err, &toolErr) {
		failure = Failure{Kind: toolErr.Code, Message: toolErr.Message}
	}
	return CallToolResult{
		Content:           []Content{{Type: "text", Text: fmt.Sprintf("%s: %s", failure.Kind, failure.Message)}},
		StructuredContent: failure,
		IsError:           true,
	}
}

func (h *Handler) handleNotification(ctx context.Context, n *jsonrpc.Notification) {
	switch n.Method {
	case NotificationInitialized:
		h.logger.Debug().Msg("Client initialized")
	case NotificationCancelled:
		var params CancelledParams
		if err := json.Unmarshal(n.Params, &params); err != nil || params.RequestID == nil {
			h.logger.Debug().Msg("Ignoring malformed cancellation")
			return
		}
		if h.cancel(ctx, params.RequestID) {
			h.logger.Info().
				Interface("request_id", params.RequestID).
				Str("reason", params.Reason).
				Msg("Request cancelled by client")
		}
	default:
		h.logger.Debug().Str("method", n.Method).Msg("Ignoring notification")
	}
}

// inflightKey keeps the ID's type so that "1" and 1 stay distinct.
func inflightKey(ctx context.Context, id any) string {
	return fmt.Sprintf("%s/%T:%v", scopeFrom(ctx), id, id)
}

// track registers a cancellable context for an in-flight request. It
// reports false when the ID is already in flight in the same scope.
func (h *Handler) track(ctx context.Context, id any) (context.Context, func(), bool) {
	key := inflightKey(ctx, id)

	h.mu.Lock()
	if _, busy := h.inflight[key]; busy {
		h.mu.Unlock()
		return ctx, nil, false
	}
	ctx, cancel := context.WithCancel(ctx)
	h.inflight[key] = cancel
	h.mu.Unlock()

	return ctx, func() {
		h.mu.Lock()
		delete(h.inflight, key)
		h.mu.Unlock()
		cancel()
	}, true
}

func (h *Handler) cancel(ctx context.Context, id any) bool {
	key := inflightKey(ctx, id)

	h.mu.Lock()
	cancel, ok := h.inflight[key]
	h.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}
