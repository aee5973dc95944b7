package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultHistory is how many events the monitor keeps.
const DefaultHistory = 50

const (
	sinkTimeout  = 5 * time.Second
	journalQueue = 256
)

// Monitor keeps the newest events first, capped at its history size, and
// journals every event to a Sink. A new event opens the monitor.
//
// Journal writes run on the monitor's own goroutine, so Record never waits on
// the sink. Close stops it after the queued writes are done.
type Monitor struct {
	limit int
	sink  Sink
	loc   *time.Location

	mu      sync.Mutex
	events  []Event
	open    bool
	closed  bool
	journal chan Event
	done    chan struct{}
}

// NewMonitor creates a closed, empty monitor. A non-positive limit uses
// DefaultHistory; a nil sink discards.
func NewMonitor(limit int, sink Sink) *Monitor {
	if limit <= 0 {
		limit = DefaultHistory
	}
	if sink == nil {
		sink = NopSink{}
	}
	m := &Monitor{
		limit:   limit,
		sink:    sink,
		loc:     time.Local,
		journal: make(chan Event, journalQueue),
		done:    make(chan struct{}),
	}
	go m.writeJournal()
	return m
}

// Attach subscribes the monitor to c and returns the unsubscribe function.
func (m *Monitor) Attach(c *Client) func() {
	return c.Subscribe(m.Record)
}

// Record prepends e to the history and queues it for the journal. When the
// journal falls behind, the event is kept in the history and not journaled.
func (m *Monitor) Record(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]Event, 0, min(len(m.events)+1, m.limit))
	events = append(events, e)
	events = append(events, m.events[:min(len(m.events), m.limit-1)]...)
	m.events = events
	m.open = true

	if m.closed {
		return
	}
	select {
	case m.journal <- e:
	default:
		slog.Warn("journal queue full, event not journaled", "event_id", e.ID)
	}
}

func (m *Monitor) writeJournal() {
	defer close(m.done)
	for e := range m.journal {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		if err := m.sink.Record(ctx, e); err != nil {
			slog.Warn("journal write failed", "event_id", e.ID, "error", err)
		}
		cancel()
	}
}

// Close flushes queued journal writes and stops the journal goroutine.
// Events recorded afterwards are kept in the history only.
func (m *Monitor) Close() {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.journal)
	}
	m.mu.Unlock()
	<-m.done
}

// Events returns the history, newest first.
func (m *Monitor) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event{}, m.events...)
}

// IsOpen reports whether the monitor panel is shown.
func (m *Monitor) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Toggle flips the panel and returns the new state.
func (m *Monitor) Toggle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = !m.open
	return m.open
}

// Lines renders the history, newest first.
func (m *Monitor) Lines() []string {
	events := m.Events()
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = e.Line(m.loc)
	}
	return lines
}
