// Package agent runs the conversation loop: it sends each turn through the
// model middleware chain, dispatches tool calls through the tool middleware
// chain and persists the turn to a checkpointer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/agentroute/internal/config"
	"github.com/soyeahso/agentroute/internal/domain"
	"github.com/soyeahso/agentroute/internal/hooks"
	"github.com/soyeahso/agentroute/internal/llm"
	"github.com/soyeahso/agentroute/internal/logging"
	"github.com/soyeahso/agentroute/internal/middleware"
	"github.com/soyeahso/agentroute/internal/tools"
)

// defaultMaxToolIterations limits how many tool call rounds a turn can perform.
const defaultMaxToolIterations = 5

// ErrToolIterations is returned when a turn is still requesting tools after
// the iteration limit. The turn is not persisted.
var ErrToolIterations = errors.New("tool iteration limit reached")

// ErrStructuredOutput is returned when a turn run with a response format
// ends in a reply that is not valid JSON. The turn is not persisted.
var ErrStructuredOutput = errors.New("structured reply is not valid JSON")

// RunnerConfig configures the agent runner.
type RunnerConfig struct {
	AgentID           string
	DefaultBackend    string
	SystemPrompt      string
	MaxToolIterations int
	ParallelTools     bool
}

// RunnerConfigFrom extracts the runner settings from the full configuration.
func RunnerConfigFrom(cfg config.Config) RunnerConfig {
	return RunnerConfig{
		AgentID:           cfg.Agent.ID,
		DefaultBackend:    cfg.Agent.DefaultBackend,
		SystemPrompt:      cfg.Agent.SystemPrompt,
		MaxToolIterations: cfg.Agent.MaxToolIterations,
		ParallelTools:     cfg.Agent.ParallelTools,
	}
}

// RunResult is the outcome of one turn.
type RunResult struct {
	Response string           `json:"response"`
	Thread   domain.ThreadID  `json:"thread"`
	Message  domain.Message   `json:"message"`  // final AI message
	Messages []domain.Message `json:"messages"` // everything the turn appended
	Model    string           `json:"model,omitempty"`
	Backend  string           `json:"backend,omitempty"`
	Usage    domain.Usage     `json:"usage"`
	Rounds   int              `json:"rounds"`
	Duration time.Duration    `json:"duration"`

	// Structured is the decoded reply when the runner has a response format.
	Structured any `json:"structured,omitempty"`
}

// Completer sends a completion to a named backend. *llm.Registry satisfies it.
type Completer interface {
	Complete(ctx context.Context, backend string, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// StreamCompleter is a Completer that can also deliver text deltas as they
// are generated. *llm.Registry satisfies it.
type StreamCompleter interface {
	Completer
	Stream(ctx context.Context, backend string, req llm.CompletionRequest, onDelta func(string)) (*llm.CompletionResponse, error)
}

// Option customizes a Runner.
type Option func(*Runner)

// WithModelMiddleware appends model middleware; the first one added is the
// outermost.
func WithModelMiddleware(mws ...middleware.ModelMiddleware) Option {
	return func(r *Runner) { r.modelMW = append(r.modelMW, mws...) }
}

// WithToolMiddleware appends tool middleware; the first one added is the
// outermost.
func WithToolMiddleware(mws ...middleware.ToolMiddleware) Option {
	return func(r *Runner) { r.toolMW = append(r.toolMW, mws...) }
}

// WithTools sets the tools offered to the model.
func WithTools(reg *tools.Registry) Option {
	return func(r *Runner) { r.tools = reg }
}

// WithCheckpointer sets the thread store. Without one, every turn starts
// from an empty history.
func WithCheckpointer(cp Checkpointer) Option {
	return func(r *Runner) { r.checkpoints = cp }
}

// WithHooks attaches a hook manager.
func WithHooks(h *hooks.Manager) Option {
	return func(r *Runner) { r.hooks = h }
}

// WithResponseFormat makes every turn ask for a JSON reply matching rf and
// decode it into RunResult.Structured.
func WithResponseFormat(rf *llm.ResponseFormat) Option {
	return func(r *Runner) { r.format = rf }
}

// Runner is the conversation loop.
type Runner struct {
	cfg         RunnerConfig
	backends    Completer
	tools       *tools.Registry
	checkpoints Checkpointer
	modelMW     []middleware.ModelMiddleware
	toolMW      []middleware.ToolMiddleware
	hooks       *hooks.Manager
	format      *llm.ResponseFormat
	log         *logging.Logger

	modelChain middleware.ModelHandler
	toolChain  middleware.ToolHandler
}

// NewRunner creates a runner that resolves backends through backends.
func NewRunner(cfg RunnerConfig, backends Completer, log *logging.Logger, opts ...Option) *Runner {
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = defaultMaxToolIterations
	}
	if cfg.AgentID == "" {
		cfg.AgentID = "default"
	}
	r := &Runner{
		cfg:      cfg,
		backends: backends,
		log:      log.Sub("agent." + cfg.AgentID),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tools == nil {
		r.tools = tools.NewRegistry()
	}
	r.modelChain = middleware.ChainModel(r.callModel, r.modelMW...)
	r.toolChain = middleware.ChainTool(r.callTool, r.toolMW...)
	return r
}

// Invoke runs one turn on thread: it appends the user's message, loops
// model calls and tool rounds until the model answers without tool calls,
// then persists every new message.
func (r *Runner) Invoke(ctx context.Context, thread domain.ThreadID, userText string, rc domain.RunContext) (*RunResult, error) {
	start := time.Now()

	var history []domain.Message
	if r.checkpoints != nil {
		var err error
		history, err = r.checkpoints.Load(ctx, thread)
		if err != nil {
			return nil, fmt.Errorf("load thread %s: %w", thread, err)
		}
	}

	r.log.Info().
		Str("thread", string(thread)).
		Str("user", rc.UserID).
		Int("historyLen", len(history)).
		Msg("processing message")
	r.hooks.Emit(ctx, hooks.EventTurnStart, map[string]any{
		"thread": string(thread),
		"user":   rc.UserID,
	})

	defs := r.tools.Definitions()
	system := BuildSystemPrompt(PromptConfig{Base: r.cfg.SystemPrompt, Tools: defs})
	added := []domain.Message{domain.Human(userText)}

	var (
		final *domain.Message
		usage domain.Usage
		round int
	)
	for round = 1; round <= r.cfg.MaxToolIterations; round++ {
		msgs := make([]domain.Message, 0, len(history)+len(added))
		msgs = append(msgs, history...)
		msgs = append(msgs, added...)

		resp, err := r.modelChain(ctx, middleware.ModelRequest{
			Messages: msgs,
			Model:    r.cfg.DefaultBackend,
			System:   system,
			Tools:    defs,
			Context:  rc,
			Thread:   thread,

			ResponseFormat: r.format,
		})
		if err != nil {
			return nil, fmt.Errorf("model call: %w", err)
		}

		ai := resp.Message
		ai.ToolCalls = assignCallIDs(ai.ToolCalls)
		added = append(added, ai)
		if ai.Metadata != nil {
			usage = usage.Add(ai.Metadata.Usage)
		}

		if len(ai.ToolCalls) == 0 {
			final = &ai
			break
		}

		r.log.Info().Int("toolCalls", len(ai.ToolCalls)).Int("round", round).Msg("executing tool calls")
		results, err := r.runTools(ctx, thread, rc, ai.ToolCalls)
		if err != nil {
			return nil, err
		}
		added = append(added, results...)
	}

	if final == nil {
		r.log.Warn().Str("thread", string(thread)).Int("limit", r.cfg.MaxToolIterations).Msg("tool iteration limit reached")
		return nil, fmt.Errorf("%w (%d rounds)", ErrToolIterations, r.cfg.MaxToolIterations)
	}

	var structured any
	if r.format != nil {
		v, err := llm.DecodeStructured(final.Content)
		if err != nil {
			r.log.Warn().Err(err).Str("thread", string(thread)).Str("format", r.format.Name).Msg("structured reply rejected")
			return nil, fmt.Errorf("%w: %v", ErrStructuredOutput, err)
		}
		structured = v
	}

	if r.checkpoints != nil {
		if err := r.checkpoints.Append(ctx, thread, added); err != nil {
			return nil, fmt.Errorf("save thread %s: %w", thread, err)
		}
	}

	result := &RunResult{
		Response: final.Content,
		Thread:   thread,
		Message:  *final,
		Messages: added,
		Usage:    usage,
		Rounds:   round,
		Duration: time.Since(start),

		Structured: structured,
	}
	if final.Metadata != nil {
		result.Model = final.Metadata.ModelName
		result.Backend = final.Metadata.Backend
	}

	r.log.Info().
		Str("thread", string(thread)).
		Str("backend", result.Backend).
		Str("model", result.Model).
		Int("inputTokens", usage.InputTokens).
		Int("outputTokens", usage.OutputTokens).
		Dur("duration", result.Duration).
		Msg("response generated")
	r.hooks.EmitAsync(ctx, hooks.EventTurnEnd, map[string]any{
		"thread":   string(thread),
		"backend":  result.Backend,
		"model":    result.Model,
		"messages": len(added),
		"duration": result.Duration,
	})

	return result, nil
}

type deltaKey struct{}

// InvokeStream is Invoke with incremental output: onDelta receives the
// model's text as it is generated, for every model call of the turn.
func (r *Runner) InvokeStream(ctx context.Context, thread domain.ThreadID, userText string, rc domain.RunContext, onDelta func(string)) (*RunResult, error) {
	if onDelta != nil {
		ctx = context.WithValue(ctx, deltaKey{}, onDelta)
	}
	return r.Invoke(ctx, thread, userText, rc)
}

// callModel is the innermost model handler: it sends the request to the
// backend it names, streaming when the turn was started by InvokeStream.
func (r *Runner) callModel(ctx context.Context, req middleware.ModelRequest) (middleware.ModelResponse, error) {
	creq := llm.CompletionRequest{
		System:         req.System,
		Messages:       req.Messages,
		Tools:          req.Tools,
		ResponseFormat: req.ResponseFormat,
		Params:         req.Params,
	}

	var (
		resp *llm.CompletionResponse
		err  error
	)
	onDelta, streaming := ctx.Value(deltaKey{}).(func(string))
	sc, canStream := r.backends.(StreamCompleter)
	switch {
	case streaming && canStream:
		resp, err = sc.Stream(ctx, req.Model, creq, onDelta)
	case streaming:
		resp, err = r.backends.Complete(ctx, req.Model, creq)
		if err == nil && resp.Message.Content != "" {
			onDelta(resp.Message.Content)
		}
	default:
		resp, err = r.backends.Complete(ctx, req.Model, creq)
	}
	if err != nil {
		return middleware.ModelResponse{}, err
	}
	return middleware.ModelResponse{Message: resp.Message}, nil
}

// callTool is the innermost tool handler.
func (r *Runner) callTool(ctx context.Context, req middleware.ToolRequest) (domain.Message, error) {
	r.log.Debug().Str("tool", req.Call.Name).Str("callId", req.Call.ID).Msg("executing tool")
	out, err := r.tools.Invoke(ctx, req.Call.Name, req.Call.Args, req.Context)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.ToolResult(req.Call.ID, out), nil
}

// runTools sends each call through the tool chain and returns the results in
// call order.
func (r *Runner) runTools(ctx context.Context, thread domain.ThreadID, rc domain.RunContext, calls []domain.ToolCall) ([]domain.Message, error) {
	results := make([]domain.Message, len(calls))
	errs := make([]error, len(calls))

	run := func(i int) {
		req := middleware.ToolRequest{Call: calls[i], Context: rc, Thread: thread}
		results[i], errs[i] = r.toolChain(ctx, req)
	}

	if r.cfg.ParallelTools && len(calls) > 1 {
		var wg sync.WaitGroup
		for i := range calls {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				run(i)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range calls {
			run(i)
		}
	}

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("tool %s (%s): %w", calls[i].Name, calls[i].ID, err)
		}
	}
	return results, nil
}

// assignCallIDs returns calls with every empty or repeated id replaced, so
// each id in a turn is answered exactly once.
func assignCallIDs(calls []domain.ToolCall) []domain.ToolCall {
	if len(calls) == 0 {
		return calls
	}
	out := make([]domain.ToolCall, len(calls))
	seen := make(map[string]bool, len(calls))
	for i, c := range calls {
		if c.ID == "" || seen[c.ID] {
			c.ID = "call_" + uuid.New().String()
		}
		seen[c.ID] = true
		out[i] = c
	}
	return out
}
