package llm

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/soyeahso/agentroute/internal/config"
	"github.com/soyeahso/agentroute/internal/domain"
	"github.com/soyeahso/agentroute/internal/logging"
)

// Backend is a named, selectable completion endpoint: a client, the model
// identifier it serves and its default generation parameters.
type Backend struct {
	Name   string
	Client Client
	Model  string
	Params Params
}

// Registry holds the backends the router and the conversation loop select
// from. Lookups never fall back: an unknown name is an error.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
	log      *logging.Logger
}

// NewRegistry creates an empty backend registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		backends: make(map[string]Backend),
		log:      log.Sub("llm.registry"),
	}
}

// Register adds or replaces a backend.
func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.Name] = b
	r.log.Debug().Str("backend", b.Name).Str("model", b.Model).Msg("registered backend")
}

// Resolve returns the backend with the given name.
func (r *Registry) Resolve(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	if !ok {
		return Backend{}, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return b, nil
}

// Has reports whether a backend is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.backends[name]
	return ok
}

// List returns all registered backend names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for n := range r.backends {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Complete resolves backend and sends req to it. The backend's model and
// default params fill whatever req leaves unset, and the returned AI message
// is stamped with the serving backend and model.
func (r *Registry) Complete(ctx context.Context, backend string, req CompletionRequest) (*CompletionResponse, error) {
	b, req, err := r.prepare(backend, req)
	if err != nil {
		return nil, err
	}
	resp, err := b.Client.Complete(ctx, req)
	if err != nil {
		r.log.Warn().Err(err).Str("backend", backend).Str("model", req.Model).Msg("completion failed")
		return nil, err
	}
	return r.finish(backend, req, resp), nil
}

// Stream is Complete with incremental output: onDelta receives each text
// delta as it arrives, and the assembled response is returned at the end.
// A backend whose client cannot stream is completed normally and its whole
// reply is handed to onDelta at once.
func (r *Registry) Stream(ctx context.Context, backend string, req CompletionRequest, onDelta func(string)) (*CompletionResponse, error) {
	b, req, err := r.prepare(backend, req)
	if err != nil {
		return nil, err
	}

	streamer, ok := b.Client.(Streamer)
	if !ok {
		resp, err := b.Client.Complete(ctx, req)
		if err != nil {
			r.log.Warn().Err(err).Str("backend", backend).Str("model", req.Model).Msg("completion failed")
			return nil, err
		}
		if resp.Message.Content != "" {
			onDelta(resp.Message.Content)
		}
		return r.finish(backend, req, resp), nil
	}

	events, err := streamer.Stream(ctx, req)
	if err != nil {
		r.log.Warn().Err(err).Str("backend", backend).Str("model", req.Model).Msg("stream failed")
		return nil, err
	}
	var resp *CompletionResponse
	for ev := range events {
		switch ev.Type {
		case StreamDelta:
			onDelta(ev.Content)
		case StreamDone:
			resp = ev.Response
		case StreamError:
			r.log.Warn().Err(ev.Err).Str("backend", backend).Str("model", req.Model).Msg("stream failed")
			return nil, ev.Err
		}
	}
	if resp == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, &ProviderError{Provider: b.Client.Name(), Message: "stream ended without a response"}
	}
	return r.finish(backend, req, resp), nil
}

// prepare resolves backend and fills req from its defaults.
func (r *Registry) prepare(backend string, req CompletionRequest) (Backend, CompletionRequest, error) {
	b, err := r.Resolve(backend)
	if err != nil {
		return Backend{}, req, err
	}
	if req.Model == "" {
		req.Model = b.Model
	}
	req.Params = req.Params.Merge(b.Params)
	return b, req, nil
}

// finish stamps resp's message with the serving backend and model.
func (r *Registry) finish(backend string, req CompletionRequest, resp *CompletionResponse) *CompletionResponse {
	model := resp.Model
	if model == "" {
		model = req.Model
	}
	resp.Message.Metadata = &domain.ResponseMetadata{
		ModelName:    model,
		Backend:      backend,
		FinishReason: resp.FinishReason,
		Usage:        resp.Usage,
	}
	r.log.Debug().
		Str("backend", backend).
		Str("model", model).
		Int("inputTokens", resp.Usage.InputTokens).
		Int("outputTokens", resp.Usage.OutputTokens).
		Dur("duration", resp.Duration).
		Msg("completion finished")
	return resp
}

// NewRegistryFromConfig builds a Registry with one OpenAI-compatible client
// per configured backend. Backends sharing an endpoint share a client.
func NewRegistryFromConfig(cfg config.Config, log *logging.Logger) *Registry {
	reg := NewRegistry(log)
	clients := make(map[string]Client)

	for _, name := range sortedBackendNames(cfg.Backends) {
		bc := cfg.Backends[name]
		baseURL := bc.BaseURL
		if baseURL == "" {
			baseURL = cfg.Provider.BaseURL
		}
		apiKey := bc.APIKey
		if apiKey == "" {
			apiKey = cfg.Provider.APIKey
		}

		key := baseURL + "\x00" + apiKey
		client, ok := clients[key]
		if !ok {
			client = NewOpenAIClient(OpenAIOptions{Name: "siliconflow", BaseURL: baseURL, APIKey: apiKey}, log)
			clients[key] = client
		}

		reg.Register(Backend{
			Name:   name,
			Client: client,
			Model:  bc.Model,
			Params: Params{
				Temperature: bc.Temperature,
				MaxTokens:   bc.MaxTokens,
				Timeout:     time.Duration(bc.TimeoutSeconds) * time.Second,
			},
		})
	}
	return reg
}

func sortedBackendNames(m map[string]config.BackendConfig) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
