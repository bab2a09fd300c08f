package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/soyeahso/agentroute/internal/llm"
)

// CompareResult asks for the outcome of comparing two numbers.
func CompareResult() llm.ResponseFormat {
	return llm.ResponseFormat{
		Name:        "compare_result",
		Description: "两个数字的比较结果",
		Strict:      true,
		Schema: object(map[string]any{
			"num1":   map[string]any{"type": "number", "description": "第一个数字"},
			"num2":   map[string]any{"type": "number", "description": "第二个数字"},
			"result": map[string]any{"type": "integer", "enum": []int{1, -1, 0}, "description": "比较结果，1 表示 num1 大于 num2，-1 表示 num1 小于 num2，0 表示相等"},
		}, "num1", "num2", "result"),
	}
}

// Movie asks for a film's basic facts.
func Movie() llm.ResponseFormat {
	return llm.ResponseFormat{
		Name:        "movie",
		Description: "电影的相关信息",
		Strict:      true,
		Schema: object(map[string]any{
			"title":    map[string]any{"type": "string", "description": "电影名称"},
			"year":     map[string]any{"type": "integer", "description": "电影上映时间"},
			"director": map[string]any{"type": "string", "description": "电影的导演"},
			"rating":   map[string]any{"type": "number", "description": "电影的豆瓣评分"},
		}, "title", "year", "director", "rating"),
	}
}

// DevProcessList asks for the ordered steps of a development process. The
// list is wrapped in an object because endpoints require an object root.
func DevProcessList() llm.ResponseFormat {
	return llm.ResponseFormat{
		Name:        "dev_process_list",
		Description: "软件开发流程的步骤列表",
		Strict:      true,
		Schema: object(map[string]any{
			"steps": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "按顺序排列的步骤",
			},
		}, "steps"),
	}
}

// BuiltinFormats returns the named response formats, keyed by name.
func BuiltinFormats() map[string]llm.ResponseFormat {
	out := make(map[string]llm.ResponseFormat)
	for _, f := range []llm.ResponseFormat{CompareResult(), Movie(), DevProcessList()} {
		out[f.Name] = f
	}
	return out
}

// FormatNames returns the builtin format names, sorted.
func FormatNames() []string {
	names := make([]string, 0, 3)
	for n := range BuiltinFormats() {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// ResolveFormat returns the builtin format called ref, or reads ref as a
// JSON Schema file and names the format after the file.
func ResolveFormat(ref string) (*llm.ResponseFormat, error) {
	if f, ok := BuiltinFormats()[ref]; ok {
		return &f, nil
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("response format %q is neither builtin (%s) nor a readable schema file: %w",
			ref, strings.Join(FormatNames(), ", "), err)
	}
	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", ref, err)
	}
	if t, _ := schema["type"].(string); t != "object" {
		return nil, fmt.Errorf("schema %s: root type must be \"object\"", ref)
	}
	name := strings.TrimSuffix(filepath.Base(ref), filepath.Ext(ref))
	desc, _ := schema["description"].(string)
	return &llm.ResponseFormat{Name: name, Description: desc, Schema: schema}, nil
}

func object(props map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}
