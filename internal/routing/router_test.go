package routing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agentroute/internal/domain"
	"github.com/soyeahso/agentroute/internal/hooks"
	"github.com/soyeahso/agentroute/internal/llm"
	"github.com/soyeahso/agentroute/internal/middleware"
)

type fixedClassifier struct {
	label Label
	err   error
	texts []string
}

func (f *fixedClassifier) Classify(_ context.Context, text string) (Label, error) {
	f.texts = append(f.texts, text)
	return f.label, f.err
}

type nameSet map[string]bool

func (s nameSet) Has(name string) bool { return s[name] }

func floatPtr(f float64) *float64 { return &f }

func TestLatestUserText(t *testing.T) {
	tests := []struct {
		name   string
		msgs   []domain.Message
		want   string
		source TextSource
	}{
		{"empty", nil, "", SourceNone},
		{"last human wins", []domain.Message{
			domain.Human("first"), domain.AI("reply"), domain.Human("second"), domain.AI("again"),
		}, "second", SourceHuman},
		{"no human uses last content", []domain.Message{
			domain.System("sys"), domain.AI("assistant said"),
		}, "assistant said", SourceLastContent},
		{"empty last content yields empty text", []domain.Message{
			domain.System("sys"),
			domain.AI("", domain.ToolCall{ID: "c1", Name: "get_user_location"}),
		}, "", SourceEmptyContent},
		{"only a tool-calling ai message", []domain.Message{
			domain.AI("", domain.ToolCall{ID: "x", Name: "x"}),
		}, "", SourceEmptyContent},
		{"tool result with content", []domain.Message{
			domain.ToolResult("c1", "北京"),
		}, "北京", SourceLastContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, src := LatestUserText(tt.msgs)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.source, src)
		})
	}
}

func TestNewModelRouterRejectsUnknownBackend(t *testing.T) {
	_, err := NewModelRouter(&fixedClassifier{}, "deepseek", "gpt-missing", nameSet{"deepseek": true}, nil, silentLog())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownBackend)
	assert.Contains(t, err.Error(), "gpt-missing")
}

func TestModelRouterChangesOnlyModel(t *testing.T) {
	fc := &fixedClassifier{label: Simple}
	r, err := NewModelRouter(fc, "deepseek", "glm", nameSet{"deepseek": true, "glm": true}, nil, silentLog())
	require.NoError(t, err)

	req := middleware.ModelRequest{
		Messages: []domain.Message{domain.System("s"), domain.Human("hello"), domain.AI("hi"), domain.Human("translate 猫")},
		Model:    "glm",
		Params:   llm.Params{Temperature: floatPtr(0.9), MaxTokens: 10000},
		System:   "你是一个人工智能助手",
		Context:  domain.RunContext{UserID: "1"},
		Thread:   "thread-1",
	}
	before := domain.CloneMessages(req.Messages)

	var got middleware.ModelRequest
	_, err = r.WrapModelCall(context.Background(), req, func(_ context.Context, in middleware.ModelRequest) (middleware.ModelResponse, error) {
		got = in
		return middleware.ModelResponse{Message: domain.AI("ok")}, nil
	})
	require.NoError(t, err)

	assert.Equal(t, "deepseek", got.Model)
	assert.Equal(t, before, got.Messages)
	assert.Equal(t, before, req.Messages)
	got.Model = req.Model
	assert.Equal(t, req, got)
	assert.Equal(t, []string{"translate 猫"}, fc.texts)
}

func TestModelRouterReturnsResponseUnchanged(t *testing.T) {
	r, err := NewModelRouter(&fixedClassifier{label: Complex}, "deepseek", "glm", nameSet{"deepseek": true, "glm": true}, nil, silentLog())
	require.NoError(t, err)

	want := middleware.ModelResponse{Message: domain.AI("answer", domain.ToolCall{ID: "c", Name: "t"})}
	got, err := r.WrapModelCall(context.Background(), middleware.ModelRequest{Messages: []domain.Message{domain.Human("q")}},
		func(context.Context, middleware.ModelRequest) (middleware.ModelResponse, error) { return want, nil })
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestModelRouterClassificationErrorPropagates(t *testing.T) {
	boom := &ClassificationError{Backend: "qwen3-32b", Err: errors.New("timeout")}
	r, err := NewModelRouter(&fixedClassifier{err: boom}, "deepseek", "glm", nameSet{"deepseek": true, "glm": true}, nil, silentLog())
	require.NoError(t, err)

	called := false
	_, err = r.WrapModelCall(context.Background(), middleware.ModelRequest{Messages: []domain.Message{domain.Human("q")}},
		func(context.Context, middleware.ModelRequest) (middleware.ModelResponse, error) {
			called = true
			return middleware.ModelResponse{}, nil
		})
	var ce *ClassificationError
	require.ErrorAs(t, err, &ce)
	assert.False(t, called)
}

func TestModelRouterBackendRemovedAfterConstruction(t *testing.T) {
	set := nameSet{"deepseek": true, "glm": true}
	r, err := NewModelRouter(&fixedClassifier{label: Simple}, "deepseek", "glm", set, nil, silentLog())
	require.NoError(t, err)

	delete(set, "deepseek")
	_, err = r.WrapModelCall(context.Background(), middleware.ModelRequest{Messages: []domain.Message{domain.Human("q")}},
		func(context.Context, middleware.ModelRequest) (middleware.ModelResponse, error) {
			t.Fatal("next must not be called")
			return middleware.ModelResponse{}, nil
		})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestModelRouterEmitsHook(t *testing.T) {
	h := hooks.NewManager(silentLog())
	var got hooks.Payload
	h.On(hooks.EventModelRouted, "test", func(_ context.Context, p hooks.Payload) error {
		got = p
		return nil
	})

	r, err := NewModelRouter(&fixedClassifier{label: Complex}, "deepseek", "glm", nameSet{"deepseek": true, "glm": true}, h, silentLog())
	require.NoError(t, err)
	_, err = r.WrapModelCall(context.Background(), middleware.ModelRequest{Messages: []domain.Message{domain.Human("q")}, Thread: "t9"},
		func(context.Context, middleware.ModelRequest) (middleware.ModelResponse, error) {
			return middleware.ModelResponse{}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, "complex", got.Data["label"])
	assert.Equal(t, "glm", got.Data["backend"])
	assert.Equal(t, "t9", got.Data["thread"])
}

// --- end-to-end through a backend registry ---

// newScenarioRegistry registers a classifier backend that answers like a
// small model would, plus the fast and strong backends.
func newScenarioRegistry(t *testing.T) *llm.Registry {
	t.Helper()
	reg := llm.NewRegistry(silentLog())

	reg.Register(llm.Backend{Name: "qwen3-32b", Model: "Qwen/Qwen3-32B", Client: &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			assert.Equal(t, ClassifierPrompt, req.System)
			text := req.Messages[len(req.Messages)-1].Content
			if strings.Contains(text, "设计") {
				return &llm.CompletionResponse{Message: domain.AI("complex")}, nil
			}
			return &llm.CompletionResponse{Message: domain.AI("simple")}, nil
		},
	}})
	for name, model := range map[string]string{
		"deepseek": "deepseek-ai/DeepSeek-V3.2-Exp",
		"glm":      "Pro/zai-org/GLM-4.7",
	} {
		reg.Register(llm.Backend{Name: name, Model: model, Client: &llm.MockClient{ProviderName: "mock"}})
	}
	return reg
}

func completeVia(reg *llm.Registry) middleware.ModelHandler {
	return func(ctx context.Context, req middleware.ModelRequest) (middleware.ModelResponse, error) {
		resp, err := reg.Complete(ctx, req.Model, llm.CompletionRequest{Messages: req.Messages, Params: req.Params})
		if err != nil {
			return middleware.ModelResponse{}, err
		}
		return middleware.ModelResponse{Message: resp.Message}, nil
	}
}

func TestRoutingScenarios(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantModel string
	}{
		{"short factual comparison", "1.9 和1.11 哪个数字大？", "deepseek-ai/DeepSeek-V3.2-Exp"},
		{"system design", "请用langchain 1.x 设计一个简单的问答系统，用户可以向系统咨询某地的天气信息，包括天气工具调用。", "Pro/zai-org/GLM-4.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newScenarioRegistry(t)
			classifier := NewClassifier(reg, "qwen3-32b", 64, silentLog())
			router, err := NewModelRouter(classifier, "deepseek", "glm", reg, nil, silentLog())
			require.NoError(t, err)

			h := middleware.ChainModel(completeVia(reg), router)
			resp, err := h(context.Background(), middleware.ModelRequest{
				Messages: []domain.Message{domain.Human(tt.text)},
				Model:    "glm",
			})
			require.NoError(t, err)
			require.NotNil(t, resp.Message.Metadata)
			assert.Equal(t, tt.wantModel, resp.Message.Metadata.ModelName)
		})
	}
}
