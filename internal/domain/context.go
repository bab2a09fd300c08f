package domain

// ThreadID identifies a conversation for checkpointing and isolation.
type ThreadID string

// RunContext is the per-invocation context handed to tools. Its fields are
// declared per deployment.
type RunContext struct {
	UserID string `json:"userId"`
}
