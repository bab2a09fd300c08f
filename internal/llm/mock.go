package llm

import (
	"context"

	"github.com/soyeahso/agentroute/internal/domain"
)

// MockClient is a test double for Client and Streamer.
type MockClient struct {
	ProviderName string
	CompleteFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// StreamChunks, when set, splits a streamed reply into these deltas.
	// Otherwise Stream delivers the whole reply as one delta.
	StreamChunks []string
}

func (m *MockClient) Name() string { return m.ProviderName }

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &CompletionResponse{
		Message: domain.AI("mock response"),
		Model:   req.Model,
	}, nil
}

// Stream replays Complete's result as stream events.
func (m *MockClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	resp, err := m.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	chunks := m.StreamChunks
	if chunks == nil && resp.Message.Content != "" {
		chunks = []string{resp.Message.Content}
	}

	ch := make(chan StreamEvent, len(chunks)+1)
	for _, c := range chunks {
		ch <- StreamEvent{Type: StreamDelta, Content: c}
	}
	ch <- StreamEvent{Type: StreamDone, Response: resp}
	close(ch)
	return ch, nil
}
