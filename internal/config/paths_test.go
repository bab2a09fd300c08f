package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePaths_EnvOverride(t *testing.T) {
	base := t.TempDir()
	t.Setenv("AGENTROUTE_HOME", base)

	p, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, base, p.Base)
	assert.Equal(t, filepath.Join(base, "config.yaml"), p.Config)
	assert.Equal(t, filepath.Join(base, "data", "checkpoints.sqlite"), p.Checkpoints)
}

func TestEnsureDirs(t *testing.T) {
	t.Setenv("AGENTROUTE_HOME", filepath.Join(t.TempDir(), "home"))
	p, err := ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, p.EnsureDirs())

	for _, d := range []string{p.Base, p.Data, p.Logs} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"single segment", "routing", []string{"routing"}, false},
		{"nested", "backends.glm.model", []string{"backends", "glm", "model"}, false},
		{"empty", "", nil, true},
		{"empty segment", "routing..simple", nil, true},
		{"trailing dot", "routing.", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr {
				var ce *ConfigError
				assert.ErrorAs(t, err, &ce)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValuePathHelpers(t *testing.T) {
	root := map[string]any{
		"routing": map[string]any{"simple": "deepseek"},
		"flat":    "value",
	}

	v, ok := GetValueAtPath(root, []string{"routing", "simple"})
	require.True(t, ok)
	assert.Equal(t, "deepseek", v)

	_, ok = GetValueAtPath(root, []string{"flat", "deeper"})
	assert.False(t, ok)

	SetValueAtPath(root, []string{"flat", "deeper"}, 1)
	v, ok = GetValueAtPath(root, []string{"flat", "deeper"})
	require.True(t, ok)
	assert.Equal(t, 1, v)
}
