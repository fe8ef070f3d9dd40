// Package progress carries live pipeline updates from an ingestion job to the
// client watching it. A Stream has a producer half, driven by the pipeline,
// and a consumer half, drained by the transport handler. Exactly one terminal
// event (complete or error) ends every stream.
package progress

import (
	"context"
	"sync"
	"time"
)

// EventType discriminates stream events.
type EventType string

const (
	// EventProgress marks entry into a pipeline stage. Incremental model
	// output rides on progress events in the Chunk field.
	EventProgress EventType = "progress"
	// EventComplete carries the final ingestion result.
	EventComplete EventType = "complete"
	// EventError reports a fatal pipeline failure.
	EventError EventType = "error"
)

// Event is a single update on a progress stream.
type Event struct {
	Type    EventType `json:"type"`
	Stage   string    `json:"stage,omitempty"`
	Percent int       `json:"percent,omitempty"`
	Chunk   string    `json:"chunk,omitempty"`
	Result  any       `json:"result,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// Stream is a single-job progress channel. Producer methods (Progress, Chunk,
// Complete, Fail) must be called from one goroutine; the consumer drains with
// Next from another.
type Stream struct {
	events chan Event
	done   chan struct{}

	closeOnce sync.Once

	mu       sync.Mutex
	highest  int
	terminal bool
}

// NewStream creates a stream with the given event buffer.
func NewStream(buffer int) *Stream {
	if buffer <= 0 {
		buffer = 1
	}
	return &Stream{
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

// Progress reports entry into a stage at the given percent.
func (s *Stream) Progress(stage string, percent int) {
	s.emit(Event{Type: EventProgress, Stage: stage, Percent: percent})
}

// Chunk forwards an incremental piece of model output produced during stage.
func (s *Stream) Chunk(stage string, percent int, chunk string) {
	s.emit(Event{Type: EventProgress, Stage: stage, Percent: percent, Chunk: chunk})
}

// Complete ends the stream successfully with the final result.
func (s *Stream) Complete(result any) {
	s.finish(Event{Type: EventComplete, Percent: 100, Result: result})
}

// Fail ends the stream with a fatal error description.
func (s *Stream) Fail(detail string) {
	s.finish(Event{Type: EventError, Detail: detail})
}

// Close releases the consumer side. Producer calls after Close become no-ops
// instead of blocking on an abandoned stream.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Next returns the next event, blocking up to watchdog. When the producer
// stalls past the watchdog, a terminal timeout error event is synthesized.
// The second return is false once the stream is exhausted or ctx is done.
func (s *Stream) Next(ctx context.Context, watchdog time.Duration) (Event, bool) {
	timer := time.NewTimer(watchdog)
	defer timer.Stop()

	select {
	case ev, ok := <-s.events:
		if !ok {
			return Event{}, false
		}
		return ev, true
	case <-timer.C:
		s.Close()
		return Event{Type: EventError, Detail: "Processing timeout"}, true
	case <-ctx.Done():
		s.Close()
		return Event{}, false
	}
}

func (s *Stream) emit(ev Event) {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	// Percents never go backwards even when a stage reuses an earlier
	// checkpoint value.
	if ev.Percent < s.highest {
		ev.Percent = s.highest
	} else {
		s.highest = ev.Percent
	}
	s.mu.Unlock()

	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Stream) finish(ev Event) {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.terminal = true
	if ev.Percent < s.highest {
		ev.Percent = s.highest
	}
	s.mu.Unlock()

	select {
	case s.events <- ev:
	case <-s.done:
	}
	close(s.events)
}
