package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFakeAttempt(t *testing.T, exitCodes []int32) {
	t.Helper()
	original := runAttempt
	call := 0
	runAttempt = func(id string, r *Resolved, ssh SSHConfig, args []string, sink AttemptSink, onSpawn func(int)) (FinalStatus, error) {
		code := exitCodes[call]
		call++
		_ = sink.Output(id, Chunk{Stream: Stdout, Data: []byte("out")})
		return FinalStatus{ExitCode: &code, DurationMs: 1}, nil
	}
	t.Cleanup(func() { runAttempt = original })
}

func TestRunCollectWithRetry_RetryThenSuccess(t *testing.T) {
	withFakeAttempt(t, []int32{2, 0})

	cfg := &BridgeConfig{MaxRetries: 1, RetryBackoffMs: 1}
	resolved := &Resolved{Policy: ToolPolicy{Command: "nmap"}, EffectiveTimeoutSec: 5, EffectiveMaxBytes: 1024}

	started := time.Now()
	run, err := RunCollectWithRetry("wf:0", cfg, resolved, nil, nil, nil)
	require.NoError(t, err)
	elapsed := time.Since(started)

	assert.Equal(t, 2, run.Attempts)
	require.NotNil(t, run.Final.ExitCode)
	assert.EqualValues(t, 0, *run.Final.ExitCode)
	assert.GreaterOrEqual(t, elapsed, time.Millisecond)
}

func TestRunCollectWithRetry_ExhaustsAttemptsOnPersistentFailure(t *testing.T) {
	withFakeAttempt(t, []int32{1, 1})

	cfg := &BridgeConfig{MaxRetries: 1, RetryBackoffMs: 1}
	resolved := &Resolved{Policy: ToolPolicy{Command: "nmap"}, EffectiveTimeoutSec: 5, EffectiveMaxBytes: 1024}

	run, err := RunCollectWithRetry("wf:1", cfg, resolved, nil, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, run.Attempts)
	require.NotNil(t, run.Final.ExitCode)
	assert.EqualValues(t, 1, *run.Final.ExitCode)
}

func TestRunCollectWithRetry_NoRetriesConfigured(t *testing.T) {
	withFakeAttempt(t, []int32{0})

	cfg := &BridgeConfig{MaxRetries: 0, RetryBackoffMs: 750}
	resolved := &Resolved{Policy: ToolPolicy{Command: "nmap"}, EffectiveTimeoutSec: 5, EffectiveMaxBytes: 1024}

	run, err := RunCollectWithRetry("wf:2", cfg, resolved, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Attempts)
}
