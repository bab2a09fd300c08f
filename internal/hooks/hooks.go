// Package hooks lets observers subscribe to conversation lifecycle events:
// turn boundaries, routing decisions, absorbed tool failures and history
// compaction.
package hooks

import (
	"context"
	"slices"
	"sync"

	"github.com/soyeahso/agentroute/internal/logging"
)

// Event names a point in the conversation lifecycle.
type Event string

const (
	EventTurnStart   Event = "turn_start"
	EventTurnEnd     Event = "turn_end"
	EventModelRouted Event = "model_routed"
	EventToolFailed  Event = "tool_failed"
	EventSummarized  Event = "summarized"
)

// AllEvents lists every event a Manager can dispatch.
var AllEvents = []Event{
	EventTurnStart,
	EventTurnEnd,
	EventModelRouted,
	EventToolFailed,
	EventSummarized,
}

// Payload is what a subscriber receives.
type Payload struct {
	Event Event          `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler observes one event. A returned error is logged and never reaches
// the code that emitted the event.
type Handler func(ctx context.Context, p Payload) error

type subscriber struct {
	name string
	fn   Handler
}

// Manager routes lifecycle events to subscribers. Every method on a nil
// *Manager is a no-op, so components hold one unconditionally.
type Manager struct {
	mu      sync.RWMutex
	subs    map[Event][]subscriber
	pending sync.WaitGroup
	log     *logging.Logger
}

// NewManager returns a Manager with no subscribers.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		subs: make(map[Event][]subscriber),
		log:  log.Sub("hooks"),
	}
}

// On subscribes fn to event under name. Subscribers of one event run in the
// order they subscribed.
func (m *Manager) On(event Event, name string, fn Handler) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.subs[event] = append(m.subs[event], subscriber{name: name, fn: fn})
	m.mu.Unlock()
	m.log.Debug().Str("event", string(event)).Str("handler", name).Msg("hook registered")
}

// Off unsubscribes every handler of event registered under name and returns
// how many were removed.
func (m *Manager) Off(event Event, name string) int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.subs[event])
	kept := slices.DeleteFunc(slices.Clone(m.subs[event]), func(s subscriber) bool { return s.name == name })
	if len(kept) == 0 {
		delete(m.subs, event)
	} else {
		m.subs[event] = kept
	}
	removed := before - len(kept)
	if removed > 0 {
		m.log.Debug().Str("event", string(event)).Str("handler", name).Int("removed", removed).Msg("hook removed")
	}
	return removed
}

// Emit runs the subscribers of event on the calling goroutine.
func (m *Manager) Emit(ctx context.Context, event Event, data map[string]any) {
	p := Payload{Event: event, Data: data}
	for _, s := range m.subscribers(event) {
		m.call(ctx, s, p)
	}
}

// EmitAsync runs the subscribers of event in order on a background goroutine
// and returns at once. The handlers see ctx's values but not its
// cancellation. Wait blocks until they are done.
func (m *Manager) EmitAsync(ctx context.Context, event Event, data map[string]any) {
	subs := m.subscribers(event)
	if len(subs) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	p := Payload{Event: event, Data: data}

	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		for _, s := range subs {
			m.call(ctx, s, p)
		}
	}()
}

// Wait blocks until every EmitAsync dispatch started so far has finished.
func (m *Manager) Wait() {
	if m == nil {
		return
	}
	m.pending.Wait()
}

func (m *Manager) subscribers(event Event) []subscriber {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.subs[event])
}

// call runs one subscriber. Errors and panics are logged and swallowed.
func (m *Manager) call(ctx context.Context, s subscriber, p Payload) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().
				Str("event", string(p.Event)).
				Str("handler", s.name).
				Interface("panic", r).
				Msg("hook handler panicked")
		}
	}()
	if err := s.fn(ctx, p); err != nil {
		m.log.Warn().
			Err(err).
			Str("event", string(p.Event)).
			Str("handler", s.name).
			Msg("hook handler error")
	}
}
