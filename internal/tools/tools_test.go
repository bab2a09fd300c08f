package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agentroute/internal/domain"
	"github.com/soyeahso/agentroute/internal/llm"
)

func TestRegistryDefinitionsSorted(t *testing.T) {
	r := NewRegistry(Builtin()...)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"compare_two_numbers", "get_reviews", "get_user_location"}, r.Names())

	defs := r.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "compare_two_numbers", defs[0].Name)
	assert.NotEmpty(t, defs[0].Description)
	assert.Equal(t, "object", defs[0].Parameters["type"])
}

func TestRegistryInvokeUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Invoke(context.Background(), "nope", nil, domain.RunContext{})
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestRegistryInvokeRawArgs(t *testing.T) {
	r := NewRegistry(CompareTwoNumbers())
	_, err := r.Invoke(context.Background(), "compare_two_numbers",
		map[string]any{llm.RawArgsKey: `{"a": 1,`}, domain.RunContext{})

	var ae *ArgumentError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "compare_two_numbers", ae.Tool)
	assert.Contains(t, err.Error(), "not a JSON object")
}

func TestRegistryReplace(t *testing.T) {
	r := NewRegistry(GetUserLocation())
	r.Register(&Func{ToolName: "get_user_location", Fn: func(context.Context, domain.RunContext, map[string]any) (string, error) {
		return "深圳", nil
	}})
	out, err := r.Invoke(context.Background(), "get_user_location", nil, domain.RunContext{})
	require.NoError(t, err)
	assert.Equal(t, "深圳", out)
}

func TestCompareTwoNumbers(t *testing.T) {
	r := NewRegistry(CompareTwoNumbers())
	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"greater", map[string]any{"a": 1.9, "b": 1.11}, "1"},
		{"less", map[string]any{"a": 1.11, "b": 1.9}, "-1"},
		{"equal", map[string]any{"a": 2.0, "b": 2}, "0"},
		{"numeric strings", map[string]any{"a": "3", "b": " 2.5 "}, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Invoke(context.Background(), "compare_two_numbers", tt.args, domain.RunContext{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCompareTwoNumbersBadArgs(t *testing.T) {
	r := NewRegistry(CompareTwoNumbers())
	tests := []struct {
		name string
		args map[string]any
		arg  string
	}{
		{"missing b", map[string]any{"a": 1.0}, "b"},
		{"not a number", map[string]any{"a": "one", "b": 2.0}, "a"},
		{"wrong type", map[string]any{"a": 1.0, "b": []any{2}}, "b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Invoke(context.Background(), "compare_two_numbers", tt.args, domain.RunContext{})
			var ae *ArgumentError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tt.arg, ae.Arg)
		})
	}
}

func TestGetUserLocation(t *testing.T) {
	r := NewRegistry(GetUserLocation())

	out, err := r.Invoke(context.Background(), "get_user_location", nil, domain.RunContext{UserID: "1"})
	require.NoError(t, err)
	assert.Equal(t, "北京", out)

	out, err = r.Invoke(context.Background(), "get_user_location", nil, domain.RunContext{UserID: "2"})
	require.NoError(t, err)
	assert.Equal(t, "上海", out)
}

func TestGetReviews(t *testing.T) {
	r := NewRegistry(GetReviews())

	out, err := r.Invoke(context.Background(), "get_reviews", map[string]any{"positive": true}, domain.RunContext{})
	require.NoError(t, err)
	var reviews []string
	require.NoError(t, json.Unmarshal([]byte(out), &reviews))
	assert.Len(t, reviews, 4)

	out, err = r.Invoke(context.Background(), "get_reviews", map[string]any{"positive": "false"}, domain.RunContext{})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &reviews))
	assert.Len(t, reviews, 1)

	_, err = r.Invoke(context.Background(), "get_reviews", map[string]any{"positive": 1.0}, domain.RunContext{})
	var ae *ArgumentError
	assert.ErrorAs(t, err, &ae)
}

func TestArgumentErrorMessage(t *testing.T) {
	assert.Equal(t, `compare_two_numbers: argument "a" is required`,
		(&ArgumentError{Tool: "compare_two_numbers", Arg: "a", Reason: "is required"}).Error())
	assert.Equal(t, "t: bad", (&ArgumentError{Tool: "t", Reason: "bad"}).Error())
}
