package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/soyeahso/agentroute/internal/config"
	"github.com/soyeahso/agentroute/internal/domain"
	"github.com/soyeahso/agentroute/internal/hooks"
	"github.com/soyeahso/agentroute/internal/llm"
	"github.com/soyeahso/agentroute/internal/logging"
)

// Trigger kinds for history compaction.
const (
	TriggerMessages = "messages"
	TriggerTokens   = "tokens"
)

// Completer sends a completion to a named backend. *llm.Registry satisfies it.
type Completer interface {
	Complete(ctx context.Context, backend string, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// MessageCounter estimates the token size of a message sequence.
// *tokens.Counter satisfies it.
type MessageCounter interface {
	CountMessages(msgs []domain.Message) (int, error)
}

// Summarizer compacts long histories before they reach the model. Once the
// request reaches the trigger, everything but the last Keep messages is
// replaced by a single System message holding a summary. Only the request
// passed downstream is rewritten; stored thread state is untouched.
type Summarizer struct {
	cfg     config.SummarizationConfig
	llm     Completer
	counter MessageCounter
	hooks   *hooks.Manager
	log     *logging.Logger
}

// NewSummarizer creates a Summarizer. counter is only needed for the tokens
// trigger kind; h may be nil.
func NewSummarizer(cfg config.SummarizationConfig, completer Completer, counter MessageCounter, h *hooks.Manager, log *logging.Logger) (*Summarizer, error) {
	switch cfg.TriggerKind {
	case "", TriggerMessages:
		cfg.TriggerKind = TriggerMessages
	case TriggerTokens:
		if counter == nil {
			return nil, fmt.Errorf("summarizer: tokens trigger requires a token counter")
		}
	default:
		return nil, fmt.Errorf("summarizer: unknown trigger kind %q", cfg.TriggerKind)
	}
	if cfg.Trigger <= 0 {
		return nil, fmt.Errorf("summarizer: trigger must be positive")
	}
	if cfg.Keep < 0 {
		return nil, fmt.Errorf("summarizer: keep must not be negative")
	}
	if !strings.Contains(cfg.Prompt, "{messages}") {
		return nil, fmt.Errorf("summarizer: prompt must contain {messages}")
	}
	return &Summarizer{
		cfg:     cfg,
		llm:     completer,
		counter: counter,
		hooks:   h,
		log:     log.Sub("middleware.summarize"),
	}, nil
}

func (s *Summarizer) WrapModelCall(ctx context.Context, req ModelRequest, next ModelHandler) (ModelResponse, error) {
	hit, err := s.triggered(req.Messages)
	if err != nil {
		return ModelResponse{}, err
	}
	if !hit {
		return next(ctx, req)
	}

	cut := CutPoint(req.Messages, s.cfg.Keep)
	if cut == 0 {
		return next(ctx, req)
	}
	older, kept := req.Messages[:cut], req.Messages[cut:]

	summary, err := s.summarize(ctx, older)
	if err != nil {
		return ModelResponse{}, fmt.Errorf("summarize history: %w", err)
	}

	msgs := make([]domain.Message, 0, len(kept)+1)
	msgs = append(msgs, domain.System(s.cfg.Prefix+summary))
	msgs = append(msgs, kept...)

	s.log.Debug().
		Str("thread", string(req.Thread)).
		Int("summarized", len(older)).
		Int("kept", len(kept)).
		Msg("compacted history")
	s.hooks.Emit(ctx, hooks.EventSummarized, map[string]any{
		"thread":     string(req.Thread),
		"summarized": len(older),
		"kept":       len(kept),
	})

	return next(ctx, req.WithMessages(msgs))
}

func (s *Summarizer) triggered(msgs []domain.Message) (bool, error) {
	if s.cfg.TriggerKind == TriggerTokens {
		n, err := s.counter.CountMessages(msgs)
		if err != nil {
			return false, fmt.Errorf("count tokens: %w", err)
		}
		return n >= s.cfg.Trigger, nil
	}
	return len(msgs) >= s.cfg.Trigger, nil
}

func (s *Summarizer) summarize(ctx context.Context, older []domain.Message) (string, error) {
	prompt := strings.ReplaceAll(s.cfg.Prompt, "{messages}", FormatTranscript(older))
	resp, err := s.llm.Complete(ctx, s.cfg.Backend, llm.CompletionRequest{
		Messages: []domain.Message{domain.Human(prompt)},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Message.Content), nil
}

// CutPoint returns the index splitting msgs into a prefix to summarize and
// the last keep messages to retain. The cut moves earlier while it would
// leave a Tool message separated from the AI message that requested it.
func CutPoint(msgs []domain.Message, keep int) int {
	cut := len(msgs) - keep
	if cut <= 0 {
		return 0
	}
	for cut > 0 && cut < len(msgs) && msgs[cut].Role == domain.RoleTool {
		cut--
	}
	return cut
}

// FormatTranscript renders messages as plain "role: content" lines for a
// summarization prompt.
func FormatTranscript(msgs []domain.Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(m.Role))
		if m.Role == domain.RoleTool && m.ToolCallID != "" {
			fmt.Fprintf(&b, "(%s)", m.ToolCallID)
		}
		b.WriteString(": ")
		b.WriteString(m.Content)
		for _, tc := range m.ToolCalls {
			fmt.Fprintf(&b, " [call %s %s]", tc.Name, tc.ArgsJSON())
		}
	}
	return b.String()
}
