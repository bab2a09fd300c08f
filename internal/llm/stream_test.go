package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agentroute/internal/domain"
)

// newStreamServer answers every request with the given chunks as
// server-sent events and records the decoded request body in sent.
func newStreamServer(t *testing.T, sent *map[string]any, chunks ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(sent))
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func collect(t *testing.T, events <-chan StreamEvent) (deltas []string, done *CompletionResponse) {
	t.Helper()
	for ev := range events {
		switch ev.Type {
		case StreamDelta:
			deltas = append(deltas, ev.Content)
		case StreamDone:
			done = ev.Response
		case StreamError:
			t.Fatalf("unexpected stream error: %v", ev.Err)
		}
	}
	return deltas, done
}

func TestOpenAIClientStream(t *testing.T) {
	var sent map[string]any
	srv := newStreamServer(t, &sent,
		`{"id":"c1","object":"chat.completion.chunk","model":"deepseek-ai/DeepSeek-V3.2-Exp","choices":[{"index":0,"delta":{"role":"assistant","content":"巴黎"}}]}`,
		`{"id":"c1","object":"chat.completion.chunk","model":"deepseek-ai/DeepSeek-V3.2-Exp","choices":[{"index":0,"delta":{"content":"是法国的首都。"}}]}`,
		`{"id":"c1","object":"chat.completion.chunk","model":"deepseek-ai/DeepSeek-V3.2-Exp","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		`{"id":"c1","object":"chat.completion.chunk","model":"deepseek-ai/DeepSeek-V3.2-Exp","choices":[],"usage":{"prompt_tokens":9,"completion_tokens":6,"total_tokens":15}}`,
	)

	c := NewOpenAIClient(OpenAIOptions{Name: "siliconflow", BaseURL: srv.URL, APIKey: "sk-test"}, silentLog())
	events, err := c.Stream(context.Background(), CompletionRequest{
		Model:    "deepseek-ai/DeepSeek-V3.2-Exp",
		Messages: []domain.Message{domain.Human("法国的首都是哪里？")},
	})
	require.NoError(t, err)
	deltas, resp := collect(t, events)

	assert.Equal(t, []string{"巴黎", "是法国的首都。"}, deltas)
	require.NotNil(t, resp)
	assert.Equal(t, "巴黎是法国的首都。", resp.Message.Content)
	assert.Equal(t, domain.RoleAI, resp.Message.Role)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, domain.Usage{InputTokens: 9, OutputTokens: 6}, resp.Usage)
	assert.Equal(t, "deepseek-ai/DeepSeek-V3.2-Exp", resp.Model)

	assert.Equal(t, true, sent["stream"])
	opts, ok := sent["stream_options"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, opts["include_usage"])
}

func TestOpenAIClientStreamToolCalls(t *testing.T) {
	var sent map[string]any
	srv := newStreamServer(t, &sent,
		`{"id":"c2","model":"Pro/zai-org/GLM-4.7","choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"compare_two_numbers","arguments":"{\"a\":"}}]}}]}`,
		`{"id":"c2","model":"Pro/zai-org/GLM-4.7","choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"call_2","type":"function","function":{"name":"get_user_location","arguments":""}}]}}]}`,
		`{"id":"c2","model":"Pro/zai-org/GLM-4.7","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":" 3, \"b\": 5}"}}]}}]}`,
		`{"id":"c2","model":"Pro/zai-org/GLM-4.7","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
	)

	c := NewOpenAIClient(OpenAIOptions{BaseURL: srv.URL, APIKey: "sk-test"}, silentLog())
	events, err := c.Stream(context.Background(), CompletionRequest{
		Model:    "Pro/zai-org/GLM-4.7",
		Messages: []domain.Message{domain.Human("compare 3 and 5")},
		Tools:    []ToolDefinition{{Name: "compare_two_numbers"}, {Name: "get_user_location"}},
	})
	require.NoError(t, err)
	deltas, resp := collect(t, events)

	assert.Empty(t, deltas)
	require.NotNil(t, resp)
	assert.Equal(t, "tool_calls", resp.FinishReason)
	calls := resp.Message.ToolCalls
	require.Len(t, calls, 2)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "compare_two_numbers", calls[0].Name)
	assert.EqualValues(t, 3, calls[0].Args["a"])
	assert.EqualValues(t, 5, calls[0].Args["b"])
	assert.Equal(t, "call_2", calls[1].ID)
	assert.Equal(t, map[string]any{}, calls[1].Args)
	assert.Len(t, sent["tools"], 2)
}

func TestOpenAIClientStreamAPIError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ map[string]any) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid api key", "type": "auth"}}`))
	})

	c := NewOpenAIClient(OpenAIOptions{Name: "siliconflow", BaseURL: srv.URL, APIKey: "sk-test"}, silentLog())
	_, err := c.Stream(context.Background(), CompletionRequest{Model: "m", Messages: []domain.Message{domain.Human("x")}})

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusUnauthorized, pe.Code)
}

func TestMergeCallWithoutIndex(t *testing.T) {
	var acc streamAccumulator
	acc.mergeCall(openAIToolCall("call_a", "f", `{"x":`))
	acc.mergeCall(openAIToolCall("", "", `1}`))
	acc.mergeCall(openAIToolCall("call_b", "g", `{}`))

	resp := acc.response("m")
	require.Len(t, resp.Message.ToolCalls, 2)
	assert.EqualValues(t, 1, resp.Message.ToolCalls[0].Args["x"])
	assert.Equal(t, "g", resp.Message.ToolCalls[1].Name)
	assert.Equal(t, "m", resp.Model)
}

func openAIToolCall(id, name, args string) openai.ToolCall {
	return openai.ToolCall{ID: id, Function: openai.FunctionCall{Name: name, Arguments: args}}
}

// --- Registry streaming ---

// plainClient implements Client but not Streamer.
type plainClient struct{ text string }

func (p plainClient) Name() string { return "plain" }

func (p plainClient) Complete(context.Context, CompletionRequest) (*CompletionResponse, error) {
	return &CompletionResponse{Message: domain.AI(p.text)}, nil
}

func TestRegistryStream(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register(Backend{Name: "glm", Model: "Pro/zai-org/GLM-4.7", Client: &MockClient{
		CompleteFunc: func(context.Context, CompletionRequest) (*CompletionResponse, error) {
			return &CompletionResponse{Message: domain.AI("你好世界"), Usage: domain.Usage{InputTokens: 3, OutputTokens: 2}}, nil
		},
		StreamChunks: []string{"你好", "世界"},
	}})

	var deltas []string
	resp, err := reg.Stream(context.Background(), "glm", CompletionRequest{}, func(s string) { deltas = append(deltas, s) })
	require.NoError(t, err)

	assert.Equal(t, []string{"你好", "世界"}, deltas)
	assert.Equal(t, "你好世界", resp.Message.Content)
	require.NotNil(t, resp.Message.Metadata)
	assert.Equal(t, "glm", resp.Message.Metadata.Backend)
	assert.Equal(t, "Pro/zai-org/GLM-4.7", resp.Message.Metadata.ModelName)
	assert.Equal(t, 2, resp.Message.Metadata.Usage.OutputTokens)
}

func TestRegistryStreamFallsBackToComplete(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register(Backend{Name: "deepseek", Model: "deepseek-ai/DeepSeek-V3.2-Exp", Client: plainClient{text: "whole reply"}})

	var deltas []string
	resp, err := reg.Stream(context.Background(), "deepseek", CompletionRequest{}, func(s string) { deltas = append(deltas, s) })
	require.NoError(t, err)

	assert.Equal(t, []string{"whole reply"}, deltas)
	assert.Equal(t, "deepseek", resp.Message.Metadata.Backend)
}

func TestRegistryStreamError(t *testing.T) {
	events := make(chan StreamEvent, 2)
	events <- StreamEvent{Type: StreamDelta, Content: "partial"}
	events <- StreamEvent{Type: StreamError, Err: &ProviderError{Provider: "x", Message: "connection reset"}}
	close(events)

	reg := NewRegistry(silentLog())
	reg.Register(Backend{Name: "glm", Client: chanStreamer{events: events}})

	_, err := reg.Stream(context.Background(), "glm", CompletionRequest{}, func(string) {})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "connection reset", pe.Message)

	_, err = reg.Stream(context.Background(), "missing", CompletionRequest{}, func(string) {})
	assert.True(t, errors.Is(err, ErrUnknownBackend))
}

func TestRegistryStreamWithoutDone(t *testing.T) {
	events := make(chan StreamEvent)
	close(events)

	reg := NewRegistry(silentLog())
	reg.Register(Backend{Name: "glm", Client: chanStreamer{events: events}})

	_, err := reg.Stream(context.Background(), "glm", CompletionRequest{}, func(string) {})
	assert.ErrorContains(t, err, "without a response")
}

// chanStreamer streams a prepared channel.
type chanStreamer struct {
	plainClient
	events chan StreamEvent
}

func (c chanStreamer) Stream(context.Context, CompletionRequest) (<-chan StreamEvent, error) {
	return c.events, nil
}
