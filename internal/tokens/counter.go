// Package tokens approximates token counts for the summarization trigger.
// The backends are not OpenAI models, so counts use the cl100k_base encoding
// as an estimate rather than an exact figure.
package tokens

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/soyeahso/agentroute/internal/domain"
)

// Per-message overhead for chat formatted input.
const (
	tokensPerMessage  = 3
	tokensPerRole     = 1
	tokensPerToolCall = 3
	replyPriming      = 3
)

// Counter counts tokens with a lazily loaded tiktoken codec.
type Counter struct {
	encoding tokenizer.Encoding

	once  sync.Once
	codec tokenizer.Codec
	err   error
}

// NewCounter returns a Counter using cl100k_base.
func NewCounter() *Counter {
	return &Counter{encoding: tokenizer.Cl100kBase}
}

// NewCounterForEncoding returns a Counter using the given encoding.
func NewCounterForEncoding(enc tokenizer.Encoding) *Counter {
	return &Counter{encoding: enc}
}

func (c *Counter) getCodec() (tokenizer.Codec, error) {
	c.once.Do(func() {
		c.codec, c.err = tokenizer.Get(c.encoding)
		if c.err != nil {
			c.err = fmt.Errorf("failed to get tokenizer encoding: %w", c.err)
		}
	})
	return c.codec, c.err
}

// Count returns the number of tokens in s.
func (c *Counter) Count(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	codec, err := c.getCodec()
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(s)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// CountMessages returns the estimated prompt size of msgs, including the
// per-message framing and tool call payloads.
func (c *Counter) CountMessages(msgs []domain.Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}
	total := replyPriming
	for _, m := range msgs {
		total += tokensPerMessage + tokensPerRole
		n, err := c.Count(m.Content)
		if err != nil {
			return 0, err
		}
		total += n
		for _, tc := range m.ToolCalls {
			name, err := c.Count(tc.Name)
			if err != nil {
				return 0, err
			}
			args, err := c.Count(tc.ArgsJSON())
			if err != nil {
				return 0, err
			}
			total += name + args + tokensPerToolCall
		}
	}
	return total, nil
}
