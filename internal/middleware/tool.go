package middleware

import (
	"context"

	"github.com/soyeahso/agentroute/internal/domain"
)

// ToolRequest is one tool invocation travelling down the tool chain.
type ToolRequest struct {
	Call    domain.ToolCall
	Context domain.RunContext
	Thread  domain.ThreadID
}

// ToolHandler performs (or delegates) a tool call and returns the Tool
// message answering it.
type ToolHandler func(ctx context.Context, req ToolRequest) (domain.Message, error)

// ToolMiddleware intercepts a tool call.
type ToolMiddleware interface {
	WrapToolCall(ctx context.Context, req ToolRequest, next ToolHandler) (domain.Message, error)
}

// ToolMiddlewareFunc adapts a function to ToolMiddleware.
type ToolMiddlewareFunc func(ctx context.Context, req ToolRequest, next ToolHandler) (domain.Message, error)

func (f ToolMiddlewareFunc) WrapToolCall(ctx context.Context, req ToolRequest, next ToolHandler) (domain.Message, error) {
	return f(ctx, req, next)
}

// ChainTool wraps final with mws (first in list = outermost wrapper).
func ChainTool(final ToolHandler, mws ...ToolMiddleware) ToolHandler {
	h := final
	for i := len(mws) - 1; i >= 0; i-- {
		mw := mws[i]
		if mw == nil {
			continue
		}
		next := h
		h = func(ctx context.Context, req ToolRequest) (domain.Message, error) {
			return mw.WrapToolCall(ctx, req, next)
		}
	}
	return h
}
