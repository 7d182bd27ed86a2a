package jobs

import (
	"sync"
	"time"
)

// EventType classifies messages emitted during a batch run.
type EventType string

const (
	EventTypeJobStarted     EventType = "job_started"
	EventTypeJobSucceeded   EventType = "job_succeeded"
	EventTypeJobFailed      EventType = "job_failed"
	EventTypeLog            EventType = "log"
	EventTypeBatchCompleted EventType = "batch_completed"
	EventTypeBatchCancelled EventType = "batch_cancelled"
)

// Event is a sequenced payload consumed by UI subscribers. Per-job events
// carry the job identity; terminal batch events carry the success and
// failure tallies so a run summary is derivable from the stream alone.
type Event struct {
	Seq        int64     `json:"seq"`
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"type"`
	JobID      string    `json:"jobId,omitempty"`
	VideoPath  string    `json:"videoPath,omitempty"`
	Message    string    `json:"message,omitempty"`
	OutputPath string    `json:"outputPath,omitempty"`
	Command    string    `json:"command,omitempty"`
	Args       []string  `json:"args,omitempty"`
	ExitCode   int       `json:"exitCode,omitempty"`
	Stderr     string    `json:"stderr,omitempty"`
	Succeeded  int       `json:"succeeded,omitempty"`
	Failed     int       `json:"failed,omitempty"`
}

// Reporter receives batch events in emission order. Implementations must
// not influence the runner's control flow.
type Reporter interface {
	Publish(event Event) Event
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(event Event) Event

// Publish calls the wrapped function.
func (f ReporterFunc) Publish(event Event) Event {
	return f(event)
}

// EventBus stores recent events and provides incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}
