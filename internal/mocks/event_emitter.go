package mocks

import (
	"context"
	"sync"

	"github.com/atelierhq/design-api/internal/events"
)

// MockEventEmitter implements events.EventEmitter and records every
// emitted event.
type MockEventEmitter struct {
	// EmitEventFn allows test cases to override the emit behavior
	EmitEventFn func(ctx context.Context, event *events.TaskRequestEvent) error

	// Err is returned unconditionally when set
	Err error

	mu     sync.Mutex
	events []*events.TaskRequestEvent
}

// EmitEvent implements events.EventEmitter.
func (m *MockEventEmitter) EmitEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	if m.EmitEventFn != nil {
		return m.EmitEventFn(ctx, event)
	}
	if m.Err != nil {
		return m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns the emitted events in order.
func (m *MockEventEmitter) Events() []*events.TaskRequestEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*events.TaskRequestEvent, len(m.events))
	copy(out, m.events)
	return out
}
