package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agentroute/internal/domain"
	"github.com/soyeahso/agentroute/internal/llm"
	"github.com/soyeahso/agentroute/internal/logging"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

type replyCompleter struct {
	reply   string
	err     error
	backend string
	req     llm.CompletionRequest
	calls   int
}

func (c *replyCompleter) Complete(_ context.Context, backend string, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	c.calls++
	c.backend = backend
	c.req = req
	if c.err != nil {
		return nil, c.err
	}
	return &llm.CompletionResponse{Message: domain.AI(c.reply)}, nil
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		reply string
		want  Label
	}{
		{"simple", Simple},
		{"  SIMPLE\n", Simple},
		{"Simple.", Simple},
		{"这个问题很简单", Simple},
		{"complex", Complex},
		{"Complex", Complex},
		{"这是复杂问题", Complex},
		{"", Complex},
		{"I don't know", Complex},
		{"simple or complex", Complex},
		{"简单，但也有点复杂", Complex},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLabel(tt.reply))
		})
	}
}

func TestClassifierSendsFixedInstruction(t *testing.T) {
	rc := &replyCompleter{reply: "simple"}
	c := NewClassifier(rc, "qwen3-32b", 0, silentLog())

	label, err := c.Classify(context.Background(), "1.9 和1.11 哪个数字大？")
	require.NoError(t, err)
	assert.Equal(t, Simple, label)

	assert.Equal(t, "qwen3-32b", rc.backend)
	assert.Equal(t, ClassifierPrompt, rc.req.System)
	require.Len(t, rc.req.Messages, 1)
	assert.Equal(t, domain.RoleHuman, rc.req.Messages[0].Role)
	assert.Equal(t, "1.9 和1.11 哪个数字大？", rc.req.Messages[0].Content)
	assert.Equal(t, DefaultClassifierMaxTokens, rc.req.Params.MaxTokens)
	assert.Empty(t, rc.req.Tools)
}

func TestClassifierMaxTokens(t *testing.T) {
	rc := &replyCompleter{reply: "complex"}
	c := NewClassifier(rc, "qwen3-32b", 16, silentLog())
	_, err := c.Classify(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 16, rc.req.Params.MaxTokens)
	assert.Equal(t, "qwen3-32b", c.Backend())
}

func TestClassifierAmbiguousDefaultsToComplex(t *testing.T) {
	c := NewClassifier(&replyCompleter{reply: "hmm, hard to say"}, "q", 0, silentLog())
	label, err := c.Classify(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, Complex, label)
}

func TestClassifierErrorPropagates(t *testing.T) {
	cause := &llm.ProviderError{Provider: "siliconflow", Message: "unavailable", Code: 503}
	rc := &replyCompleter{err: cause}
	c := NewClassifier(rc, "qwen3-32b", 0, silentLog())

	_, err := c.Classify(context.Background(), "hi")
	require.Error(t, err)

	var ce *ClassificationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "qwen3-32b", ce.Backend)

	var pe *llm.ProviderError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, rc.calls, "no retry")
}
