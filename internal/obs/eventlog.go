package obs

import (
	"sync"
	"time"

	"github.com/eapache/queue"
)

// Event is a single diagnostic entry recorded by EventLog: a state
// transition, a steal, a rejection, a panic. It exists so that a
// running pool can be inspected (e.g. by a CLI --events flag) without
// needing a full metrics backend wired up.
type Event struct {
	At     time.Time
	Kind   string
	Detail string
	Worker int
}

// EventLog is a bounded, thread-safe ring of the most recent Events.
// It is backed by github.com/eapache/queue, whose ring-buffer growth
// already amortizes push cost; EventLog adds the bound by evicting the
// oldest entry once capacity is reached.
type EventLog struct {
	mu       sync.Mutex
	q        *queue.Queue
	capacity int
}

// NewEventLog returns an EventLog that retains at most capacity
// entries, evicting the oldest on overflow. capacity <= 0 defaults to
// 256.
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = 256
	}
	return &EventLog{
		q:        queue.New(),
		capacity: capacity,
	}
}

// Record appends an event, evicting the oldest entry if the log is at
// capacity.
func (l *EventLog) Record(kind, detail string, worker int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.q.Add(Event{At: time.Now(), Kind: kind, Detail: detail, Worker: worker})
	for l.q.Length() > l.capacity {
		l.q.Remove()
	}
}

// Snapshot returns a copy of the events currently retained, oldest
// first.
func (l *EventLog) Snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, 0, l.q.Length())
	for i := 0; i < l.q.Length(); i++ {
		out = append(out, l.q.Get(i).(Event))
	}
	return out
}

// Len reports the number of events currently retained.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.Length()
}
