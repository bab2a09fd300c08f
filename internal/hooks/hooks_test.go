package hooks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agentroute/internal/logging"
)

func testManager() *Manager {
	return NewManager(logging.New(nil, "silent"))
}

func nop(context.Context, Payload) error { return nil }

func TestManager_On_And_Emit(t *testing.T) {
	m := testManager()

	var got Payload
	m.On(EventTurnStart, "test", func(_ context.Context, p Payload) error {
		got = p
		return nil
	})

	m.Emit(context.Background(), EventTurnStart, map[string]any{"thread": "t1"})
	assert.Equal(t, EventTurnStart, got.Event)
	assert.Equal(t, "t1", got.Data["thread"])
}

func TestManager_Emit_SubscriptionOrder(t *testing.T) {
	m := testManager()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		m.On(EventModelRouted, name, func(_ context.Context, _ Payload) error {
			order = append(order, name)
			return nil
		})
	}

	m.Emit(context.Background(), EventModelRouted, nil)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestManager_Emit_OtherEventsUntouched(t *testing.T) {
	m := testManager()

	var called bool
	m.On(EventSummarized, "test", func(_ context.Context, _ Payload) error {
		called = true
		return nil
	})

	m.Emit(context.Background(), EventTurnEnd, nil)
	assert.False(t, called)
}

func TestManager_Emit_HandlerErrorAndPanic(t *testing.T) {
	m := testManager()

	var lastCalled bool
	m.On(EventToolFailed, "failing", func(_ context.Context, _ Payload) error {
		return errors.New("handler broke")
	})
	m.On(EventToolFailed, "panicking", func(_ context.Context, _ Payload) error {
		panic("boom")
	})
	m.On(EventToolFailed, "last", func(_ context.Context, _ Payload) error {
		lastCalled = true
		return nil
	})

	assert.NotPanics(t, func() { m.Emit(context.Background(), EventToolFailed, nil) })
	assert.True(t, lastCalled)
}

func TestManager_NilIsNoop(t *testing.T) {
	var m *Manager
	assert.NotPanics(t, func() {
		m.On(EventTurnEnd, "x", nop)
		m.Emit(context.Background(), EventTurnEnd, nil)
		m.EmitAsync(context.Background(), EventTurnEnd, nil)
		m.Wait()
		assert.Zero(t, m.Off(EventTurnEnd, "x"))
	})
}

func TestManager_Off(t *testing.T) {
	m := testManager()

	var calls int
	m.On(EventSummarized, "removable", func(_ context.Context, _ Payload) error {
		calls++
		return nil
	})

	m.Emit(context.Background(), EventSummarized, nil)
	assert.Equal(t, 1, calls)

	assert.Equal(t, 1, m.Off(EventSummarized, "removable"))
	m.Emit(context.Background(), EventSummarized, nil)
	assert.Equal(t, 1, calls)

	assert.Zero(t, m.Off(EventSummarized, "removable"))
}

func TestManager_Off_KeepsOthers(t *testing.T) {
	m := testManager()

	var kept int
	m.On(EventTurnStart, "remove-me", nop)
	m.On(EventTurnStart, "keep-me", func(_ context.Context, _ Payload) error {
		kept++
		return nil
	})
	m.On(EventTurnStart, "remove-me", nop)

	assert.Equal(t, 2, m.Off(EventTurnStart, "remove-me"))
	m.Emit(context.Background(), EventTurnStart, nil)
	assert.Equal(t, 1, kept)
}

func TestManager_Off_DuringAsyncDispatch(t *testing.T) {
	m := testManager()

	release := make(chan struct{})
	var ran atomic.Int32
	m.On(EventTurnEnd, "slow", func(_ context.Context, _ Payload) error {
		<-release
		ran.Add(1)
		return nil
	})
	m.On(EventTurnEnd, "after", func(_ context.Context, _ Payload) error {
		ran.Add(1)
		return nil
	})

	m.EmitAsync(context.Background(), EventTurnEnd, nil)
	m.Off(EventTurnEnd, "after")
	close(release)
	m.Wait()

	assert.Equal(t, int32(2), ran.Load(), "a dispatch in flight keeps the subscribers it started with")
}

func TestManager_EmitAsync_Wait(t *testing.T) {
	m := testManager()

	var order []string
	for _, name := range []string{"async1", "async2"} {
		m.On(EventTurnEnd, name, func(_ context.Context, _ Payload) error {
			time.Sleep(10 * time.Millisecond)
			order = append(order, name)
			return nil
		})
	}

	m.EmitAsync(context.Background(), EventTurnEnd, nil)

	done := make(chan struct{})
	go func() { m.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handlers did not complete in time")
	}

	assert.Equal(t, []string{"async1", "async2"}, order)
}

func TestManager_EmitAsync_IgnoresCancellation(t *testing.T) {
	m := testManager()

	type key struct{}
	var gotErr error
	var gotValue any
	m.On(EventTurnEnd, "test", func(ctx context.Context, _ Payload) error {
		gotErr = ctx.Err()
		gotValue = ctx.Value(key{})
		return nil
	})

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, "v"))
	cancel()
	m.EmitAsync(ctx, EventTurnEnd, nil)
	m.Wait()

	assert.NoError(t, gotErr)
	assert.Equal(t, "v", gotValue)
}

func TestAllEvents(t *testing.T) {
	require.Len(t, AllEvents, 5)
	assert.Contains(t, AllEvents, EventModelRouted)
	assert.Contains(t, AllEvents, EventToolFailed)
}
