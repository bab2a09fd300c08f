package routing

import (
	"context"
	"fmt"

	"github.com/soyeahso/agentroute/internal/domain"
	"github.com/soyeahso/agentroute/internal/hooks"
	"github.com/soyeahso/agentroute/internal/llm"
	"github.com/soyeahso/agentroute/internal/logging"
	"github.com/soyeahso/agentroute/internal/middleware"
)

// ErrUnknownBackend is returned when a routing target is not a registered
// backend. It is a configuration error and never falls back.
var ErrUnknownBackend = llm.ErrUnknownBackend

// TextSource records which strategy LatestUserText used.
type TextSource string

const (
	SourceHuman        TextSource = "human"         // last Human message
	SourceLastContent  TextSource = "last_content"  // content of the last message
	SourceEmptyContent TextSource = "empty_content" // last message has no content
	SourceNone         TextSource = "none"          // empty sequence
)

// LatestUserText returns the text the classifier should judge: the most
// recent Human message, else the last message's content, else "".
func LatestUserText(msgs []domain.Message) (string, TextSource) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleHuman {
			return msgs[i].Content, SourceHuman
		}
	}
	if len(msgs) == 0 {
		return "", SourceNone
	}
	if last := msgs[len(msgs)-1]; last.Content != "" {
		return last.Content, SourceLastContent
	}
	return "", SourceEmptyContent
}

// LabelClassifier labels user text. *Classifier satisfies it.
type LabelClassifier interface {
	Classify(ctx context.Context, text string) (Label, error)
}

// BackendSet reports which backend names exist. *llm.Registry satisfies it.
type BackendSet interface {
	Has(name string) bool
}

// ModelRouter is a model middleware that sends simple requests to a fast
// backend and complex ones to a strong backend. It changes only the target
// backend of the request; messages and params pass through untouched.
type ModelRouter struct {
	classifier LabelClassifier
	table      map[Label]string
	backends   BackendSet
	hooks      *hooks.Manager
	log        *logging.Logger
}

// NewModelRouter creates a router. Both targets must exist in backends.
// h may be nil.
func NewModelRouter(classifier LabelClassifier, simpleBackend, complexBackend string, backends BackendSet, h *hooks.Manager, log *logging.Logger) (*ModelRouter, error) {
	for _, name := range []string{simpleBackend, complexBackend} {
		if !backends.Has(name) {
			return nil, fmt.Errorf("routing target: %w: %q", ErrUnknownBackend, name)
		}
	}
	return &ModelRouter{
		classifier: classifier,
		table:      map[Label]string{Simple: simpleBackend, Complex: complexBackend},
		backends:   backends,
		hooks:      h,
		log:        log.Sub("routing"),
	}, nil
}

// Target returns the backend a label routes to.
func (r *ModelRouter) Target(label Label) string {
	return r.table[label]
}

// Route classifies req and returns the backend it should be sent to.
func (r *ModelRouter) Route(ctx context.Context, req middleware.ModelRequest) (Label, string, error) {
	text, source := LatestUserText(req.Messages)
	if source != SourceHuman {
		r.log.Warn().
			Str("source", string(source)).
			Str("thread", string(req.Thread)).
			Msg("no human message in request, classifying fallback text")
	}

	label, err := r.classifier.Classify(ctx, text)
	if err != nil {
		return "", "", err
	}

	backend, ok := r.table[label]
	if !ok || !r.backends.Has(backend) {
		return label, "", fmt.Errorf("route %s: %w: %q", label, ErrUnknownBackend, backend)
	}
	return label, backend, nil
}

func (r *ModelRouter) WrapModelCall(ctx context.Context, req middleware.ModelRequest, next middleware.ModelHandler) (middleware.ModelResponse, error) {
	label, backend, err := r.Route(ctx, req)
	if err != nil {
		return middleware.ModelResponse{}, err
	}

	r.log.Info().
		Str("label", string(label)).
		Str("backend", backend).
		Str("thread", string(req.Thread)).
		Msg("routed model call")
	r.hooks.Emit(ctx, hooks.EventModelRouted, map[string]any{
		"label":   string(label),
		"backend": backend,
		"thread":  string(req.Thread),
	})

	return next(ctx, req.WithModel(backend))
}
