package acquisition

import (
	"sync"
	"time"

	"detectreview/internal/model"
	"detectreview/internal/service/source"
)

// Event is what one loop iteration publishes: either a capturable result or
// the error that prevented one.
type Event struct {
	Seq        int
	Source     source.Kind
	Result     *model.DetectionResult
	Capturable bool
	Err        error
	At         time.Time
}

// Mailbox is a single-slot handoff from the loop worker to its consumer.
// A newer event overwrites one that was not taken yet.
type Mailbox struct {
	mu     sync.Mutex
	event  *Event
	drops  uint64
	notify chan struct{}
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{notify: make(chan struct{}, 1)}
}

// Put stores ev, replacing any unconsumed event, and wakes the consumer.
func (m *Mailbox) Put(ev Event) {
	m.mu.Lock()
	if m.event != nil {
		m.drops++
	}
	m.event = &ev
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Take removes and returns the pending event, if any.
func (m *Mailbox) Take() (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.event == nil {
		return Event{}, false
	}
	ev := *m.event
	m.event = nil
	return ev, true
}

// Ready is signalled after a Put. A signal may be stale; Take reports
// whether anything is actually pending.
func (m *Mailbox) Ready() <-chan struct{} {
	return m.notify
}

// Drops counts events overwritten before they were taken.
func (m *Mailbox) Drops() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}
