package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// maxMessageBytes bounds a single JSON-RPC request body.
const maxMessageBytes = 1 << 20

// ErrUnsupportedMethod is returned by Serve for verbs other than GET and POST.
var ErrUnsupportedMethod = errors.New("unsupported method")

// discoveryRequest answers GET so the endpoint can be browsed.
var discoveryRequest = json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)

// MessageHandler processes one JSON-RPC message. *server.MCPServer implements it.
type MessageHandler interface {
	HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage
}

// Endpoint binds a MessageHandler to HTTP.
type Endpoint struct {
	handler MessageHandler
	logger  *zap.Logger
}

// NewEndpoint creates an Endpoint.
func NewEndpoint(handler MessageHandler, logger *zap.Logger) *Endpoint {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Endpoint{handler: handler, logger: logger}
}

// Serve handles one request. POST bodies are JSON-RPC messages; the reply is
// written as JSON, or 202 with no body for notifications. GET lists tools.
func (e *Endpoint) Serve(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var message json.RawMessage
	switch r.Method {
	case http.MethodGet:
		message = discoveryRequest
	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes))
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}
		message = body
	default:
		return ErrUnsupportedMethod
	}

	response := e.handler.HandleMessage(ctx, message)
	if response == nil {
		w.WriteHeader(http.StatusAccepted)
		return nil
	}
	raw, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(raw); err != nil {
		e.logger.Debug("write agent response failed", zap.Error(err))
	}
	return nil
}
