package core

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// EventSink serializes protocol Events as newline-delimited JSON onto w,
// flushing after every write. It is NOT internally synchronized: callers
// that share one EventSink across goroutines must serialize their own
// writes (the supervisor loop is single-threaded per attempt, so this is
// normally a non-issue within one Run).
type EventSink struct {
	w   io.Writer
	enc *json.Encoder
}

func NewEventSink(w io.Writer) *EventSink {
	return &EventSink{w: w, enc: json.NewEncoder(w)}
}

func (s *EventSink) emit(id, event string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	if err := s.enc.Encode(Event{ID: id, Event: event, Payload: raw}); err != nil {
		return err
	}
	if f, ok := s.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Error emits the single `error` event admission/parse failures produce
// instead of the started/.../finished sequence.
func (s *EventSink) Error(id, code, message string) error {
	return s.emit(id, "error", map[string]interface{}{
		"code":    code,
		"message": message,
	})
}

// Emit writes an arbitrary named event — used by callers (the workflow
// server) whose event vocabulary isn't one of StreamSink's fixed callbacks.
func (s *EventSink) Emit(id, event string, payload interface{}) error {
	return s.emit(id, event, payload)
}

// StreamSink is the AttemptSink used by `run` and `serve` (stream
// mode): every supervisor callback becomes one protocol Event on the wire.
type StreamSink struct {
	events *EventSink
	mu     sync.Mutex
}

func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{events: NewEventSink(w)}
}

func (s *StreamSink) Started(id string, payload map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.emit(id, "started", payload)
}

func (s *StreamSink) Output(id string, chunk Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.emit(id, chunk.Stream.EventName(), map[string]interface{}{
		"data": lossyUTF8(chunk.Data),
	})
}

func (s *StreamSink) Truncated(id string, maxBytes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.emit(id, "output_truncated", map[string]interface{}{
		"max_output_bytes": maxBytes,
	})
}

func (s *StreamSink) Error(id, code, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.Error(id, code, message)
}

func (s *StreamSink) Finished(id string, status FinalStatus, nextActionHint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.emit(id, "finished", map[string]interface{}{
		"exit_code":        status.ExitCode,
		"timed_out":        status.TimedOut,
		"duration_ms":      status.DurationMs,
		"next_action_hint": nextActionHint,
	})
}

// CollectSink is the AttemptSink used wherever a caller wants a single
// CollectedRun back instead of an event stream (mcp-serve tools/call,
// workflow-serve steps, and every attempt the Retry Controller drives).
// It never emits output_truncated: truncation is recorded silently on
// CollectedRun.Truncated — collect mode drops that event.
type CollectSink struct {
	stdout    []byte
	stderr    []byte
	truncated bool
}

func NewCollectSink() *CollectSink {
	return &CollectSink{}
}

func (c *CollectSink) Started(id string, payload map[string]interface{}) error { return nil }

func (c *CollectSink) Output(id string, chunk Chunk) error {
	switch chunk.Stream {
	case Stdout:
		c.stdout = append(c.stdout, chunk.Data...)
	case Stderr:
		c.stderr = append(c.stderr, chunk.Data...)
	}
	return nil
}

func (c *CollectSink) Truncated(id string, maxBytes int) error {
	c.truncated = true
	return nil
}

func (c *CollectSink) Finished(id string, status FinalStatus, nextActionHint string) error {
	return nil
}

// Result assembles the CollectedRun after Run has returned. attempts is
// stamped by the caller (the Retry Controller knows the attempt count; a
// bare single-shot caller passes 1).
func (c *CollectSink) Result(status FinalStatus, attempts int) CollectedRun {
	return CollectedRun{
		Final:     status,
		Stdout:    lossyUTF8(c.stdout),
		Stderr:    lossyUTF8(c.stderr),
		Truncated: c.truncated,
		Attempts:  attempts,
	}
}
