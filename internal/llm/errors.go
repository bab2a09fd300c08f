package llm

import (
	"errors"
	"fmt"
)

// ErrUnknownBackend is returned when a backend name is not in the registry.
// It signals a configuration mistake and is never recovered from silently.
var ErrUnknownBackend = errors.New("unknown backend")

// ProviderError is returned when a completion endpoint fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status code (401, 429, 500, etc.)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}
