package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/aimd54/forum-progression/internal/relay"
)

// MockBroadcaster records relay events in memory.
type MockBroadcaster struct {
	Err error

	mu     sync.Mutex
	events []relay.Event
	signal chan struct{}
}

// NewMockBroadcaster creates a new mock broadcaster
func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{signal: make(chan struct{}, 64)}
}

func (m *MockBroadcaster) Broadcast(_ context.Context, event *relay.Event) error {
	m.mu.Lock()
	m.events = append(m.events, *event)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return m.Err
}

// Events returns a copy of the recorded events.
func (m *MockBroadcaster) Events() []relay.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]relay.Event, len(m.events))
	copy(out, m.events)
	return out
}

// WaitFor blocks until n events were recorded or the timeout elapses.
func (m *MockBroadcaster) WaitFor(n int, timeout time.Duration) []relay.Event {
	deadline := time.After(timeout)
	for {
		if ev := m.Events(); len(ev) >= n {
			return ev
		}
		select {
		case <-m.signal:
		case <-deadline:
			return m.Events()
		}
	}
}
