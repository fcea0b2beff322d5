package core

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervise_HappyPath(t *testing.T) {
	cmd := exec.Command("sh", "-c", "printf hello")
	setProcessGroup(cmd)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	stderr, err := cmd.StderrPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	sink := NewCollectSink()
	status, err := supervise(cmd, stdout, stderr, 5, 1024, "t1", sink)
	require.NoError(t, err)

	assert.False(t, status.TimedOut)
	require.NotNil(t, status.ExitCode)
	assert.EqualValues(t, 0, *status.ExitCode)
	assert.Equal(t, "hello", sink.Result(status, 1).Stdout)
}

func TestSupervise_Timeout(t *testing.T) {
	cmd := exec.Command("sh", "-c", "sleep 5")
	setProcessGroup(cmd)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	stderr, err := cmd.StderrPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	sink := NewCollectSink()
	started := time.Now()
	status, err := supervise(cmd, stdout, stderr, 1, 1024, "t2", sink)
	require.NoError(t, err)
	elapsed := time.Since(started)

	assert.True(t, status.TimedOut)
	assert.Less(t, elapsed, 3*time.Second)
}

func TestSupervise_Truncation(t *testing.T) {
	cmd := exec.Command("sh", "-c", "printf '%0.sa' $(seq 1 100)")
	setProcessGroup(cmd)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	stderr, err := cmd.StderrPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	sink := NewCollectSink()
	status, err := supervise(cmd, stdout, stderr, 5, 10, "t3", sink)
	require.NoError(t, err)

	run := sink.Result(status, 1)
	assert.True(t, run.Truncated)
	assert.Len(t, run.Stdout, 10)
}

func TestLossyUTF8_ReplacesInvalidBytes(t *testing.T) {
	out := lossyUTF8([]byte{'h', 'i', 0xff})
	assert.Contains(t, out, "hi")
	assert.NotEqual(t, "hi\xff", out)
}

// orderSink records the sequence of callbacks it receives, to check the
// started/output/finished ordering invariant independent of the Stream vs.
// Collect sink implementations. supervise itself only calls Output and
// Truncated; the test calls Started and Finished around it, as Run does.
type orderSink struct {
	events []string
}

func (o *orderSink) Started(id string, payload map[string]interface{}) error {
	o.events = append(o.events, "started")
	return nil
}
func (o *orderSink) Output(id string, chunk Chunk) error {
	o.events = append(o.events, chunk.Stream.EventName())
	return nil
}
func (o *orderSink) Truncated(id string, maxBytes int) error {
	o.events = append(o.events, "output_truncated")
	return nil
}
func (o *orderSink) Finished(id string, status FinalStatus, nextActionHint string) error {
	o.events = append(o.events, "finished")
	return nil
}

func TestSupervisorSequence_StartedPrecedesOutputPrecedesFinished(t *testing.T) {
	cmd := exec.Command("sh", "-c", "printf hello")
	setProcessGroup(cmd)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	stderr, err := cmd.StderrPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	sink := &orderSink{}
	require.NoError(t, sink.Started("t4", nil))
	status, err := supervise(cmd, stdout, stderr, 5, 1024, "t4", sink)
	require.NoError(t, err)
	require.NoError(t, sink.Finished("t4", status, ""))

	require.Equal(t, []string{"started", "stdout_chunk", "finished"}, sink.events)
}
