package core

import (
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	readBlockSize  = 4096
	chunkChanCap   = 64
	tickInterval   = 100 * time.Millisecond
	killAfterGrace = 5 * time.Second
)

// AttemptSink receives the supervisor's protocol-level callbacks as an
// attempt progresses. Stream mode and collect mode are two implementations
// of the same interface running over the identical supervisor algorithm.
type AttemptSink interface {
	Started(id string, payload map[string]interface{}) error
	Output(id string, chunk Chunk) error
	Truncated(id string, maxBytes int) error
	Finished(id string, status FinalStatus, nextActionHint string) error
}

// Run executes one attempt end to end: synthesize the remote command (C2),
// spawn the ssh child (C3), multiplex its output through sink while
// enforcing the deadline (C4+C5), and report FinalStatus. onSpawn, if not
// nil, is called with the child's PID right after it starts — the hook the
// session ledger uses to record an in-flight attempt.
func Run(id string, r *Resolved, ssh SSHConfig, args []string, sink AttemptSink, onSpawn func(pid int)) (FinalStatus, error) {
	remoteCommand := BuildRemoteCommand(r.Policy, args, r.EffectiveTimeoutSec)

	if err := sink.Started(id, map[string]interface{}{
		"target":           r.Target,
		"tool":             r.Policy.Command,
		"timeout_sec":      r.EffectiveTimeoutSec,
		"max_output_bytes": r.EffectiveMaxBytes,
	}); err != nil {
		return FinalStatus{}, err
	}
	LogSSHCommand(id, []string{"ssh", r.Target, remoteCommand})

	cmd, stdout, stderr, err := spawnSSH(ssh, r.Target, remoteCommand)
	if err != nil {
		return FinalStatus{}, err
	}
	if onSpawn != nil && cmd.Process != nil {
		onSpawn(cmd.Process.Pid)
	}

	status, err := supervise(cmd, stdout, stderr, r.EffectiveTimeoutSec, r.EffectiveMaxBytes, id, sink)
	if err != nil {
		return status, err
	}

	nextActionHint := "analyze output and schedule next tool"
	if status.TimedOut {
		nextActionHint = "reduce scope or increase timeout"
	}
	if err := sink.Finished(id, status, nextActionHint); err != nil {
		return status, err
	}
	return status, nil
}

// supervise is the hard kernel (C4 Output Multiplexer + C5 Supervisor Loop):
// a single goroutine cooperatively multiplexes chunk arrival, a 100ms tick,
// and process exit, admitting output up to maxBytes and enforcing the
// deadline.
func supervise(cmd *exec.Cmd, stdout, stderr io.ReadCloser, timeoutSec, maxBytes int, id string, sink AttemptSink) (FinalStatus, error) {
	chunkCh := make(chan Chunk, chunkChanCap)

	var wg sync.WaitGroup
	var readerErrsMu sync.Mutex
	var readerErrs []error
	wg.Add(2)
	go readPipe(stdout, Stdout, chunkCh, &wg, &readerErrsMu, &readerErrs)
	go readPipe(stderr, Stderr, chunkCh, &wg, &readerErrsMu, &readerErrs)
	go func() {
		wg.Wait()
		close(chunkCh)
	}()

	// doneCh fires once when the background Wait() completes — this is the
	// Go stand-in for a non-blocking try_wait(): the tick arm polls it with
	// a non-blocking select instead of blocking on Wait() directly.
	doneCh := make(chan struct{}, 1)
	var waitErr error
	go func() {
		waitErr = cmd.Wait()
		doneCh <- struct{}{}
	}()

	started := time.Now()
	deadline := started.Add(time.Duration(timeoutSec) * time.Second)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var written int
	var truncated bool
	var timedOut bool
	processDone := false
	var exitCode *int32

	ch := chunkCh
	for !processDone || ch != nil {
		select {
		case chunk, ok := <-ch:
			if !ok {
				ch = nil
				continue
			}
			if written < maxBytes {
				remaining := maxBytes - written
				data := chunk.Data
				crossedCap := len(data) > remaining
				if crossedCap {
					data = data[:remaining]
				}
				written += len(data)
				if len(data) > 0 {
					if err := sink.Output(id, Chunk{Stream: chunk.Stream, Data: data}); err != nil {
						return FinalStatus{}, err
					}
				}
				if crossedCap && !truncated {
					truncated = true
					if err := sink.Truncated(id, maxBytes); err != nil {
						return FinalStatus{}, err
					}
				}
			} else if !truncated {
				truncated = true
				if err := sink.Truncated(id, maxBytes); err != nil {
					return FinalStatus{}, err
				}
			}

		case <-ticker.C:
			if processDone {
				continue
			}
			select {
			case <-doneCh:
				processDone = true
				exitCode = processExitCode(cmd)
			default:
				if time.Now().After(deadline) {
					timedOut = true
					exitCode = terminateAndWait(cmd, doneCh)
					processDone = true
				}
			}
		}
	}

	readerErrsMu.Lock()
	errs := readerErrs
	readerErrsMu.Unlock()

	status := FinalStatus{
		ExitCode:   exitCode,
		TimedOut:   timedOut,
		DurationMs: time.Since(started).Milliseconds(),
	}

	if len(errs) > 0 {
		return status, NewExecError("pipe read failed: %v", errs[0])
	}
	if waitErr != nil {
		if _, ok := waitErr.(*exec.ExitError); !ok {
			return status, NewExecError("wait failed: %v", waitErr)
		}
	}
	return status, nil
}

// terminateAndWait signals the child's process group (SIGTERM, then SIGKILL
// after killAfterGrace if it hasn't exited), blocks until the background
// Wait() completes, and returns the resulting exit code. This is the local
// deadline enforcer that backs up the remote `timeout` wrapper from C2.
func terminateAndWait(cmd *exec.Cmd, doneCh <-chan struct{}) *int32 {
	if cmd.Process != nil {
		_ = terminateGroup(cmd.Process.Pid)
	}
	select {
	case <-doneCh:
	case <-time.After(killAfterGrace):
		if cmd.Process != nil {
			_ = killGroup(cmd.Process.Pid)
		}
		<-doneCh
	}
	return processExitCode(cmd)
}

func processExitCode(cmd *exec.Cmd) *int32 {
	if cmd.ProcessState == nil {
		return nil
	}
	code := int32(cmd.ProcessState.ExitCode())
	return &code
}

// readPipe reads one of the child's pipes in fixed-size blocks, submitting
// each as a Chunk into the shared channel, preserving within-stream order.
func readPipe(r io.ReadCloser, stream StreamKind, out chan<- Chunk, wg *sync.WaitGroup, mu *sync.Mutex, errs *[]error) {
	defer wg.Done()
	defer r.Close()

	buf := make([]byte, readBlockSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			out <- Chunk{Stream: stream, Data: data}
		}
		if err != nil {
			if err != io.EOF {
				mu.Lock()
				*errs = append(*errs, fmt.Errorf("%s: %w", stream, err))
				mu.Unlock()
			}
			return
		}
	}
}

// lossyUTF8 decodes chunk bytes with replacement at invalid-sequence
// boundaries. Chunks are not buffered across events to re-align split
// codepoints: the byte cap is authoritative, not the codepoint boundary.
func lossyUTF8(data []byte) string {
	return strings.ToValidUTF8(string(data), "�")
}
