package agent

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/agentroute/internal/domain"
)

// Checkpointer persists thread state between turns. Threads are isolated:
// appends to one thread are never visible through another.
type Checkpointer interface {
	// Load returns a thread's messages in insertion order. An unknown thread
	// has no messages and is not an error.
	Load(ctx context.Context, thread domain.ThreadID) ([]domain.Message, error)

	// Append adds msgs to the end of a thread and records a checkpoint.
	Append(ctx context.Context, thread domain.ThreadID, msgs []domain.Message) error

	// Threads lists stored threads, most recently updated first.
	Threads(ctx context.Context) ([]domain.ThreadInfo, error)

	// Checkpoints lists a thread's checkpoints, oldest first.
	Checkpoints(ctx context.Context, thread domain.ThreadID) ([]domain.Checkpoint, error)
}

type memoryThread struct {
	messages    []domain.Message
	checkpoints []domain.Checkpoint
	createdAt   time.Time
	updatedAt   time.Time
}

// MemoryCheckpointer is an in-memory Checkpointer.
type MemoryCheckpointer struct {
	mu      sync.RWMutex
	threads map[domain.ThreadID]*memoryThread
}

// NewMemoryCheckpointer creates an in-memory checkpointer.
func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{threads: make(map[domain.ThreadID]*memoryThread)}
}

func (m *MemoryCheckpointer) Load(_ context.Context, thread domain.ThreadID) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.threads[thread]
	if !ok {
		return nil, nil
	}
	return domain.CloneMessages(t.messages), nil
}

func (m *MemoryCheckpointer) Append(_ context.Context, thread domain.ThreadID, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	t, ok := m.threads[thread]
	if !ok {
		t = &memoryThread{createdAt: now}
		m.threads[thread] = t
	}
	for _, msg := range msgs {
		if msg.Timestamp.IsZero() {
			msg.Timestamp = now
		}
		t.messages = append(t.messages, msg)
	}
	t.updatedAt = now
	t.checkpoints = append(t.checkpoints, domain.Checkpoint{
		ID:           uuid.New().String(),
		ThreadID:     thread,
		Step:         len(t.checkpoints) + 1,
		MessageCount: len(t.messages),
		CreatedAt:    now,
	})
	return nil
}

func (m *MemoryCheckpointer) Threads(_ context.Context) ([]domain.ThreadInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]domain.ThreadInfo, 0, len(m.threads))
	for id, t := range m.threads {
		infos = append(infos, domain.ThreadInfo{
			ID:           id,
			MessageCount: len(t.messages),
			CreatedAt:    t.createdAt,
			UpdatedAt:    t.updatedAt,
		})
	}
	slices.SortFunc(infos, func(a, b domain.ThreadInfo) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return infos, nil
}

func (m *MemoryCheckpointer) Checkpoints(_ context.Context, thread domain.ThreadID) ([]domain.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.threads[thread]
	if !ok {
		return nil, nil
	}
	return slices.Clone(t.checkpoints), nil
}

// Delete removes a thread.
func (m *MemoryCheckpointer) Delete(_ context.Context, thread domain.ThreadID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, thread)
	return nil
}

// ThreadDeleter is implemented by checkpointers that can drop a thread.
type ThreadDeleter interface {
	Delete(ctx context.Context, thread domain.ThreadID) error
}
