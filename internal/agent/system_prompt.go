package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/agentroute/internal/llm"
)

// PromptConfig controls system prompt generation.
type PromptConfig struct {
	Base  string // deployment prompt, e.g. "你是一个人工智能助手"
	Tools []llm.ToolDefinition
	Date  time.Time // zero means today
}

// BuildSystemPrompt constructs the system prompt sent with every model call.
// Tool schemas travel as native tool definitions; the prompt only names them.
func BuildSystemPrompt(cfg PromptConfig) string {
	var b strings.Builder

	if cfg.Base != "" {
		b.WriteString(strings.TrimSpace(cfg.Base))
		b.WriteString("\n\n")
	}

	date := cfg.Date
	if date.IsZero() {
		date = time.Now()
	}
	fmt.Fprintf(&b, "Current date: %s\n", date.Format("2006-01-02"))

	if len(cfg.Tools) > 0 {
		b.WriteString("\nAvailable tools:\n")
		for _, t := range cfg.Tools {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		}
		b.WriteString("\nIf a tool reports an error, correct the arguments and try again.\n")
	}

	return b.String()
}
