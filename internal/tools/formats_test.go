package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinFormats(t *testing.T) {
	assert.Equal(t, []string{"compare_result", "dev_process_list", "movie"}, FormatNames())

	cr := CompareResult()
	assert.True(t, cr.Strict)
	assert.Equal(t, "object", cr.Schema["type"])
	assert.Equal(t, []string{"num1", "num2", "result"}, cr.Schema["required"])
	props := cr.Schema["properties"].(map[string]any)
	assert.Equal(t, "integer", props["result"].(map[string]any)["type"])

	movie := Movie()
	assert.Equal(t, []string{"title", "year", "director", "rating"}, movie.Schema["required"])

	steps := DevProcessList().Schema["properties"].(map[string]any)["steps"].(map[string]any)
	assert.Equal(t, "array", steps["type"])
}

func TestResolveFormat(t *testing.T) {
	f, err := ResolveFormat("movie")
	require.NoError(t, err)
	assert.Equal(t, "movie", f.Name)

	dir := t.TempDir()
	path := filepath.Join(dir, "weather_report.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"type": "object",
		"description": "天气预报",
		"properties": {"city": {"type": "string"}, "temperature": {"type": "number"}},
		"required": ["city", "temperature"]
	}`), 0o600))

	f, err = ResolveFormat(path)
	require.NoError(t, err)
	assert.Equal(t, "weather_report", f.Name)
	assert.Equal(t, "天气预报", f.Description)
	assert.False(t, f.Strict)
	assert.Equal(t, []any{"city", "temperature"}, f.Schema["required"])
}

func TestResolveFormatErrors(t *testing.T) {
	_, err := ResolveFormat("no_such_format")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compare_result")

	dir := t.TempDir()
	notJSON := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(notJSON, []byte(`{`), 0o600))
	_, err = ResolveFormat(notJSON)
	assert.ErrorContains(t, err, "parse schema")

	array := filepath.Join(dir, "list.json")
	require.NoError(t, os.WriteFile(array, []byte(`{"type": "array", "items": {"type": "string"}}`), 0o600))
	_, err = ResolveFormat(array)
	assert.ErrorContains(t, err, "root type must be")
}
