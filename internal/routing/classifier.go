// Package routing decides, per model call, which backend should serve it:
// a classifier labels the latest user text as simple or complex and the
// router rewrites the request's target backend accordingly.
package routing

import (
	"context"
	"fmt"
	"strings"

	"github.com/soyeahso/agentroute/internal/domain"
	"github.com/soyeahso/agentroute/internal/llm"
	"github.com/soyeahso/agentroute/internal/logging"
)

// Label is the complexity class of a user request.
type Label string

const (
	Simple  Label = "simple"
	Complex Label = "complex"
)

// DefaultClassifierMaxTokens caps the classifier reply.
const DefaultClassifierMaxTokens = 64

// ClassifierPrompt is the fixed system instruction sent with every
// classification request.
const ClassifierPrompt = "你是问题复杂度分类器。根据用户问题判断复杂度：\n" +
	"- simple：单一事实/常识问答、简单翻译/润色、很短的直接回答、无需多步推理或设计。\n" +
	"- complex：需要多步推理、方案设计/架构、长文写作、复杂代码/调试、严谨数学推导、对比权衡。\n" +
	"只输出：simple 或 complex。"

var (
	simpleKeywords  = []string{"simple", "简单"}
	complexKeywords = []string{"complex", "复杂"}
)

// ClassificationError reports that the classifier backend itself failed.
type ClassificationError struct {
	Backend string
	Err     error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify via %s: %v", e.Backend, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// Completer sends a completion to a named backend. *llm.Registry satisfies it.
type Completer interface {
	Complete(ctx context.Context, backend string, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// ParseLabel maps a classifier reply to a Label. The reply is lower-cased and
// trimmed, then searched for the keywords of each label. A reply naming
// exactly one label yields it; anything else yields Complex.
func ParseLabel(reply string) Label {
	label, _ := parseLabel(reply)
	return label
}

// parseLabel also reports whether the reply was unambiguous.
func parseLabel(reply string) (Label, bool) {
	text := strings.ToLower(strings.TrimSpace(reply))
	isSimple := containsAny(text, simpleKeywords)
	isComplex := containsAny(text, complexKeywords)
	switch {
	case isSimple && !isComplex:
		return Simple, true
	case isComplex && !isSimple:
		return Complex, true
	default:
		return Complex, false
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Classifier labels user text by asking a low-cost backend.
type Classifier struct {
	llm       Completer
	backend   string
	maxTokens int
	log       *logging.Logger
}

// NewClassifier creates a Classifier that queries backend. maxTokens <= 0
// means DefaultClassifierMaxTokens.
func NewClassifier(completer Completer, backend string, maxTokens int, log *logging.Logger) *Classifier {
	if maxTokens <= 0 {
		maxTokens = DefaultClassifierMaxTokens
	}
	return &Classifier{
		llm:       completer,
		backend:   backend,
		maxTokens: maxTokens,
		log:       log.Sub("routing.classifier"),
	}
}

// Backend returns the backend name the classifier queries.
func (c *Classifier) Backend() string { return c.backend }

// Classify returns the complexity label for text. Endpoint failures are
// returned as *ClassificationError and are not retried.
func (c *Classifier) Classify(ctx context.Context, text string) (Label, error) {
	resp, err := c.llm.Complete(ctx, c.backend, llm.CompletionRequest{
		System:   ClassifierPrompt,
		Messages: []domain.Message{domain.Human(text)},
		Params:   llm.Params{MaxTokens: c.maxTokens},
	})
	if err != nil {
		return "", &ClassificationError{Backend: c.backend, Err: err}
	}

	label, clear := parseLabel(resp.Message.Content)
	if !clear {
		c.log.Debug().
			Str("reply", resp.Message.Content).
			Msg("ambiguous classifier reply, defaulting to complex")
	}
	return label, nil
}
