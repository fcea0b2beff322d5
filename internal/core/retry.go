package core

import "time"

// runAttempt is the single-attempt executor the retry loop drives; a
// package-level var so tests can substitute a fake attempt without a real
// ssh child process.
var runAttempt = Run

// RunCollectWithRetry is the Retry Controller (C6). It always drives C5 in
// collect mode: stream-mode callers (`run`, `serve`) never
// retry, since retrying a partially-emitted event stream has no sane
// semantics. Only collect-mode callers (`mcp-serve` tools/call,
// `workflow-serve` steps) go through here.
//
// max_attempts = max_retries + 1. Backoff between attempts is linear:
// base_backoff_ms * attempt_number.
func RunCollectWithRetry(id string, cfg *BridgeConfig, r *Resolved, args []string, tap *Tap, onSpawn func(pid int)) (CollectedRun, error) {
	maxAttempts := cfg.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastStatus FinalStatus
	var lastSink *CollectSink
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if tap != nil {
			tap.AttemptStarted(id, attempt, maxAttempts)
		}

		sink := NewCollectSink()
		status, err := runAttempt(id, r, cfg.SSHConfig, args, sink, onSpawn)
		lastStatus, lastSink, lastErr = status, sink, err

		if err != nil {
			if tap != nil {
				tap.AttemptError(id, attempt, err)
			}
		} else if tap != nil {
			tap.AttemptFinished(id, attempt, status)
		}

		succeeded := err == nil && status.Succeeded()
		if succeeded || attempt == maxAttempts {
			run := sink.Result(status, attempt)
			return run, err
		}

		backoff := cfg.RetryBackoffMs * attempt
		if tap != nil {
			tap.RetryScheduled(id, attempt, backoff)
		}
		time.Sleep(time.Duration(backoff) * time.Millisecond)
	}

	// Unreachable: the loop above always returns by its last iteration.
	return lastSink.Result(lastStatus, maxAttempts), lastErr
}
