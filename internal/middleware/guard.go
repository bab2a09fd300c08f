package middleware

import (
	"context"
	"fmt"

	"github.com/soyeahso/agentroute/internal/domain"
	"github.com/soyeahso/agentroute/internal/hooks"
	"github.com/soyeahso/agentroute/internal/logging"
)

// ToolErrorMessage renders the model-visible diagnostic for a failed tool call.
func ToolErrorMessage(err error) string {
	return fmt.Sprintf("Tool error: Please check your input and try again. (%s)", err)
}

// ToolErrorGuard turns every tool failure, returned error or panic, into a
// Tool message answering the failed call, so the conversation continues and
// the model can correct itself. It keeps no state between calls and never
// retries.
type ToolErrorGuard struct {
	log   *logging.Logger
	hooks *hooks.Manager
}

// NewToolErrorGuard creates a guard. hooks may be nil.
func NewToolErrorGuard(log *logging.Logger, h *hooks.Manager) *ToolErrorGuard {
	return &ToolErrorGuard{log: log.Sub("middleware.guard"), hooks: h}
}

func (g *ToolErrorGuard) WrapToolCall(ctx context.Context, req ToolRequest, next ToolHandler) (msg domain.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			msg, err = g.absorb(ctx, req, fmt.Errorf("panic: %v", r)), nil
		}
	}()

	msg, err = next(ctx, req)
	if err != nil {
		return g.absorb(ctx, req, err), nil
	}
	return msg, nil
}

func (g *ToolErrorGuard) absorb(ctx context.Context, req ToolRequest, cause error) domain.Message {
	g.log.Warn().
		Err(cause).
		Str("tool", req.Call.Name).
		Str("callId", req.Call.ID).
		Str("thread", string(req.Thread)).
		Msg("tool call failed")
	g.hooks.Emit(ctx, hooks.EventToolFailed, map[string]any{
		"tool":   req.Call.Name,
		"callId": req.Call.ID,
		"error":  cause.Error(),
	})
	return domain.ToolResult(req.Call.ID, ToolErrorMessage(cause))
}
