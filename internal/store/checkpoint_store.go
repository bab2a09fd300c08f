package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/agentroute/internal/domain"
)

// SQLiteCheckpointer implements agent.Checkpointer backed by SQLite.
type SQLiteCheckpointer struct {
	db *DB
}

// NewSQLiteCheckpointer creates a checkpointer using the given database.
func NewSQLiteCheckpointer(db *DB) *SQLiteCheckpointer {
	return &SQLiteCheckpointer{db: db}
}

// Load returns a thread's messages in insertion order.
func (s *SQLiteCheckpointer) Load(ctx context.Context, thread domain.ThreadID) ([]domain.Message, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT role, content, tool_calls, tool_call_id, metadata, timestamp
		 FROM messages WHERE thread_id = ? ORDER BY seq ASC`, string(thread),
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var (
			m                   domain.Message
			role, ts            string
			toolCalls, metadata sql.NullString
		)
		if err := rows.Scan(&role, &m.Content, &toolCalls, &m.ToolCallID, &metadata, &ts); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Role = domain.Role(role)
		m.Timestamp = parseTime(ts)
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("decoding tool calls: %w", err)
			}
		}
		if metadata.Valid && metadata.String != "" {
			m.Metadata = &domain.ResponseMetadata{}
			if err := json.Unmarshal([]byte(metadata.String), m.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata: %w", err)
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Append adds msgs to the end of a thread and records a checkpoint, in one
// transaction.
func (s *SQLiteCheckpointer) Append(ctx context.Context, thread domain.ThreadID, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO threads (id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		string(thread), now, now,
	); err != nil {
		return fmt.Errorf("upserting thread: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE thread_id = ?`, string(thread),
	).Scan(&count); err != nil {
		return fmt.Errorf("counting messages: %w", err)
	}

	for i, m := range msgs {
		var toolCalls, metadata sql.NullString
		if len(m.ToolCalls) > 0 {
			data, err := json.Marshal(m.ToolCalls)
			if err != nil {
				return fmt.Errorf("encoding tool calls: %w", err)
			}
			toolCalls = sql.NullString{String: string(data), Valid: true}
		}
		if m.Metadata != nil {
			data, err := json.Marshal(m.Metadata)
			if err != nil {
				return fmt.Errorf("encoding metadata: %w", err)
			}
			metadata = sql.NullString{String: string(data), Valid: true}
		}
		ts := m.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (thread_id, seq, role, content, tool_calls, tool_call_id, metadata, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(thread), count+i, string(m.Role), m.Content, toolCalls, m.ToolCallID, metadata, formatTime(ts),
		); err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
	}

	var step int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(step), 0) FROM checkpoints WHERE thread_id = ?`, string(thread),
	).Scan(&step); err != nil {
		return fmt.Errorf("reading checkpoint step: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO checkpoints (id, thread_id, step, message_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), string(thread), step+1, count+len(msgs), now,
	); err != nil {
		return fmt.Errorf("inserting checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	s.db.log.Debug().Str("thread", string(thread)).Int("added", len(msgs)).Int("step", step+1).Msg("checkpoint saved")
	return nil
}

// Threads lists stored threads, most recently updated first.
func (s *SQLiteCheckpointer) Threads(ctx context.Context) ([]domain.ThreadInfo, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT t.id, t.created_at, t.updated_at,
		        (SELECT COUNT(*) FROM messages m WHERE m.thread_id = t.id)
		 FROM threads t ORDER BY t.updated_at DESC, t.id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying threads: %w", err)
	}
	defer rows.Close()

	var infos []domain.ThreadInfo
	for rows.Next() {
		var (
			info                 domain.ThreadInfo
			id, created, updated string
		)
		if err := rows.Scan(&id, &created, &updated, &info.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		info.ID = domain.ThreadID(id)
		info.CreatedAt = parseTime(created)
		info.UpdatedAt = parseTime(updated)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Checkpoints lists a thread's checkpoints, oldest first.
func (s *SQLiteCheckpointer) Checkpoints(ctx context.Context, thread domain.ThreadID) ([]domain.Checkpoint, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, step, message_count, created_at
		 FROM checkpoints WHERE thread_id = ? ORDER BY step ASC`, string(thread),
	)
	if err != nil {
		return nil, fmt.Errorf("querying checkpoints: %w", err)
	}
	defer rows.Close()

	var cps []domain.Checkpoint
	for rows.Next() {
		cp := domain.Checkpoint{ThreadID: thread}
		var created string
		if err := rows.Scan(&cp.ID, &cp.Step, &cp.MessageCount, &created); err != nil {
			return nil, fmt.Errorf("scanning checkpoint: %w", err)
		}
		cp.CreatedAt = parseTime(created)
		cps = append(cps, cp)
	}
	return cps, rows.Err()
}

// Delete removes a thread with its messages and checkpoints.
func (s *SQLiteCheckpointer) Delete(ctx context.Context, thread domain.ThreadID) error {
	if _, err := s.db.sql.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, string(thread)); err != nil {
		return fmt.Errorf("deleting thread: %w", err)
	}
	return nil
}
