package cli

import (
	"context"
	"fmt"

	"github.com/soyeahso/agentroute/internal/agent"
	"github.com/soyeahso/agentroute/internal/config"
	"github.com/soyeahso/agentroute/internal/hooks"
	"github.com/soyeahso/agentroute/internal/llm"
	"github.com/soyeahso/agentroute/internal/logging"
	"github.com/soyeahso/agentroute/internal/middleware"
	"github.com/soyeahso/agentroute/internal/routing"
	"github.com/soyeahso/agentroute/internal/store"
	"github.com/soyeahso/agentroute/internal/tokens"
	"github.com/soyeahso/agentroute/internal/tools"
)

// appOptions are per-invocation switches layered over the config file.
type appOptions struct {
	NoRoute  bool
	NoTools  bool
	NoMemory bool
	Format   string // builtin response format name or schema file
}

// app holds everything a command needs to run turns.
type app struct {
	cfg         config.Config
	backends    *llm.Registry
	classifier  *routing.Classifier
	router      *routing.ModelRouter
	summarizer  *middleware.Summarizer
	guard       *middleware.ToolErrorGuard
	tools       *tools.Registry
	checkpoints agent.Checkpointer
	hooks       *hooks.Manager
	format      *llm.ResponseFormat
	db          *store.DB
	log         *logging.Logger
}

// newApp wires backends, middleware, tools and the checkpoint store from cfg.
func newApp(cfg config.Config, p config.Paths, opts appOptions, log *logging.Logger) (*app, error) {
	if issues := config.Validate(&cfg); len(issues) > 0 {
		return nil, &config.ConfigError{Message: fmt.Sprintf("%d validation issue(s), first: %s", len(issues), issues[0])}
	}

	a := &app{
		cfg:      cfg,
		backends: llm.NewRegistryFromConfig(cfg, log),
		hooks:    hooks.NewManager(log),
		log:      log,
	}

	if cfg.Routing.Classifier != "" {
		a.classifier = routing.NewClassifier(a.backends, cfg.Routing.Classifier, cfg.Routing.ClassifierMaxTokens, log)
	}
	if cfg.Routing.Enabled && !opts.NoRoute {
		router, err := routing.NewModelRouter(a.classifier, cfg.Routing.Simple, cfg.Routing.Complex, a.backends, a.hooks, log)
		if err != nil {
			return nil, err
		}
		a.router = router
	}

	if cfg.Summarization.Enabled {
		s, err := middleware.NewSummarizer(cfg.Summarization, a.backends, tokens.NewCounter(), a.hooks, log)
		if err != nil {
			return nil, err
		}
		a.summarizer = s
	}

	if cfg.Agent.GuardTools {
		a.guard = middleware.NewToolErrorGuard(log, a.hooks)
	}

	a.tools = tools.NewRegistry()
	if !opts.NoTools {
		a.tools = tools.NewRegistry(tools.Builtin()...)
	}
	if opts.Format != "" {
		f, err := tools.ResolveFormat(opts.Format)
		if err != nil {
			return nil, err
		}
		a.format = f
	}

	if !opts.NoMemory {
		if err := a.openCheckpoints(p); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *app) openCheckpoints(p config.Paths) error {
	switch a.cfg.Checkpoint.Store {
	case "none":
		return nil
	case "memory":
		a.checkpoints = agent.NewMemoryCheckpointer()
		return nil
	default:
		path := a.cfg.Checkpoint.Path
		if path == "" {
			path = p.Checkpoints
		}
		db, err := store.Open(path, a.log)
		if err != nil {
			return fmt.Errorf("opening checkpoint store: %w", err)
		}
		a.db = db
		a.checkpoints = store.NewSQLiteCheckpointer(db)
		return nil
	}
}

// runner builds the conversation loop. The router is the outermost model
// middleware so it classifies the full history before summarization
// compacts it.
func (a *app) runner() *agent.Runner {
	opts := []agent.Option{
		agent.WithTools(a.tools),
		agent.WithHooks(a.hooks),
	}
	if a.router != nil {
		opts = append(opts, agent.WithModelMiddleware(a.router))
	}
	if a.summarizer != nil {
		opts = append(opts, agent.WithModelMiddleware(a.summarizer))
	}
	if a.guard != nil {
		opts = append(opts, agent.WithToolMiddleware(a.guard))
	}
	if a.checkpoints != nil {
		opts = append(opts, agent.WithCheckpointer(a.checkpoints))
	}
	if a.format != nil {
		opts = append(opts, agent.WithResponseFormat(a.format))
	}
	return agent.NewRunner(agent.RunnerConfigFrom(a.cfg), a.backends, a.log, opts...)
}

// classify runs the classifier alone and reports where the router would send
// the text.
func (a *app) classify(ctx context.Context, text string) (routing.Label, string, error) {
	if a.router == nil {
		return "", "", fmt.Errorf("routing is disabled (routing.enabled=false)")
	}
	label, err := a.classifier.Classify(ctx, text)
	if err != nil {
		return "", "", err
	}
	return label, a.router.Target(label), nil
}

// Close waits for background hook dispatches and releases the checkpoint
// store.
func (a *app) Close() error {
	a.hooks.Wait()
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
