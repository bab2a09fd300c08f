// Package middleware composes ordered interceptor chains around model calls
// and tool calls. The first middleware in a list is the outermost wrapper:
// it sees the request first and the response last.
package middleware

import (
	"context"

	"github.com/soyeahso/agentroute/internal/domain"
	"github.com/soyeahso/agentroute/internal/llm"
)

// ModelRequest is one model invocation travelling down the chain. It is a
// value: stages derive modified copies instead of mutating the one they got.
type ModelRequest struct {
	Messages []domain.Message
	Model    string // backend name in the registry
	Params   llm.Params
	System   string
	Tools    []llm.ToolDefinition
	Context  domain.RunContext
	Thread   domain.ThreadID

	// ResponseFormat, when set, asks for a JSON reply matching its schema.
	ResponseFormat *llm.ResponseFormat
}

// WithModel returns a copy of r targeting a different backend. Every other
// field, including the message slice, is carried over unchanged.
func (r ModelRequest) WithModel(name string) ModelRequest {
	r.Model = name
	return r
}

// WithMessages returns a copy of r carrying msgs.
func (r ModelRequest) WithMessages(msgs []domain.Message) ModelRequest {
	r.Messages = msgs
	return r
}

// Override returns a copy of r whose params are p, with any zero field of p
// falling back to r's current value.
func (r ModelRequest) Override(p llm.Params) ModelRequest {
	r.Params = p.Merge(r.Params)
	return r
}

// ModelResponse is what a model call yields back up the chain.
type ModelResponse struct {
	Message domain.Message
}

// ModelHandler performs (or delegates) a model call.
type ModelHandler func(ctx context.Context, req ModelRequest) (ModelResponse, error)

// ModelMiddleware intercepts a model call. Implementations may rewrite req
// before calling next, rewrite the response after, or not call next at all.
type ModelMiddleware interface {
	WrapModelCall(ctx context.Context, req ModelRequest, next ModelHandler) (ModelResponse, error)
}

// ModelMiddlewareFunc adapts a function to ModelMiddleware.
type ModelMiddlewareFunc func(ctx context.Context, req ModelRequest, next ModelHandler) (ModelResponse, error)

func (f ModelMiddlewareFunc) WrapModelCall(ctx context.Context, req ModelRequest, next ModelHandler) (ModelResponse, error) {
	return f(ctx, req, next)
}

// ChainModel wraps final with mws (first in list = outermost wrapper).
// Nil entries are skipped.
func ChainModel(final ModelHandler, mws ...ModelMiddleware) ModelHandler {
	h := final
	for i := len(mws) - 1; i >= 0; i-- {
		mw := mws[i]
		if mw == nil {
			continue
		}
		next := h
		h = func(ctx context.Context, req ModelRequest) (ModelResponse, error) {
			return mw.WrapModelCall(ctx, req, next)
		}
	}
	return h
}
