package core

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// Tap is the Observability side-channel (C8): a JSON-line telemetry feed,
// distinct from both the protocol event stream (C7) and the zerolog
// diagnostic log. It exists so a supervising process (the Retry Controller,
// a workflow runner) can watch attempt-level lifecycle without parsing the
// protocol stream.
type Tap struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTap writes to stderr by default, matching the diagnostic log's
// destination; ObservabilityJSONLogs in BridgeConfig gates whether callers
// wire a Tap in at all.
func NewTap(w io.Writer) *Tap {
	if w == nil {
		w = os.Stderr
	}
	return &Tap{w: w}
}

func (t *Tap) emit(event string, payload map[string]interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record := map[string]interface{}{
		"ts_ms":   time.Now().UnixMilli(),
		"event":   event,
		"payload": payload,
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return
	}
	raw = append(raw, '\n')
	_, _ = t.w.Write(raw)
}

func (t *Tap) AttemptStarted(id string, attempt, maxAttempts int) {
	t.emit("attempt_started", map[string]interface{}{
		"id": id, "attempt": attempt, "max_attempts": maxAttempts,
	})
}

func (t *Tap) AttemptFinished(id string, attempt int, status FinalStatus) {
	t.emit("attempt_finished", map[string]interface{}{
		"id": id, "attempt": attempt,
		"exit_code": status.ExitCode, "timed_out": status.TimedOut, "duration_ms": status.DurationMs,
	})
}

func (t *Tap) RetryScheduled(id string, attempt int, backoffMs int) {
	t.emit("retry_scheduled", map[string]interface{}{
		"id": id, "next_attempt": attempt + 1, "backoff_ms": backoffMs,
	})
}

func (t *Tap) AttemptError(id string, attempt int, err error) {
	t.emit("attempt_error", map[string]interface{}{
		"id": id, "attempt": attempt, "error": err.Error(),
	})
}
