package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"linear-mcp/internal/tools"
)

// ToolProvider lists and executes tools.
type ToolProvider interface {
	Definitions() []tools.Definition
	Call(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error)
}

// ToolRegistryWrapper records execution metrics around a ToolProvider.
type ToolRegistryWrapper struct {
	ToolProvider
	metrics *Metrics
}

// NewToolRegistryWrapper wraps provider.
func NewToolRegistryWrapper(provider ToolProvider, metrics *Metrics) *ToolRegistryWrapper {
	return &ToolRegistryWrapper{
		ToolProvider: provider,
		metrics:      metrics,
	}
}

// Call executes the tool and records its outcome: "success" or the
// failure kind.
func (w *ToolRegistryWrapper) Call(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	start := time.Now()
	result, err := w.ToolProvider.Call(ctx, name, args)

	status := "success"
	if err != nil {
		status = "error"
		var toolErr *tools.Error
		if errors.As(err, &toolErr) {
			status = toolErr.Code
		}
	}
	w.metrics.RecordToolExecution(name, status, time.Since(start))

	return result, err
}
