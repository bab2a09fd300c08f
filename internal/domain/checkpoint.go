package domain

import "time"

// ThreadInfo summarizes one stored thread.
type ThreadInfo struct {
	ID           ThreadID  `json:"id"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Checkpoint records one append to a thread: after Step appends the thread
// held MessageCount messages.
type Checkpoint struct {
	ID           string    `json:"id"`
	ThreadID     ThreadID  `json:"threadId"`
	Step         int       `json:"step"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
}
