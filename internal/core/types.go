// Package core implements the execution engine: request validation, remote
// command synthesis, SSH child-process supervision, and the event stream
// that reports a run's progress back to a caller.
package core

import (
	"github.com/go-playground/validator/v10"
)

// validate is shared across request types; go-playground/validator caches
// struct metadata internally so a single instance is cheap to reuse.
var validate = validator.New()

// ToolPolicy is the immutable, per-tool allow-list entry.
type ToolPolicy struct {
	// Command is the absolute path to the tool binary on the remote host.
	Command string `json:"command"`

	// DefaultArgs are always prepended to the caller-supplied arguments.
	DefaultArgs []string `json:"default_args,omitempty"`

	// MaxArgs bounds the caller-supplied argument count.
	MaxArgs int `json:"max_args"`
}

// SSHConfig carries the SSH transport parameters shared by every run. Its
// fields are flattened onto BridgeConfig's top level (ssh_-prefixed keys),
// not nested under an "ssh" object, so it is embedded anonymously below.
type SSHConfig struct {
	ConnectTimeoutSec     int  `json:"ssh_connect_timeout_sec"`
	ServerAliveInterval   int  `json:"ssh_server_alive_interval_sec"`
	ServerAliveCountMax   int  `json:"ssh_server_alive_count_max"`
	StrictHostKeyChecking bool `json:"ssh_strict_host_key_checking"`
}

// BridgeConfig is the immutable, process-wide configuration.
type BridgeConfig struct {
	DefaultTimeoutSec int `json:"default_timeout_sec"`
	MaxTimeoutSec     int `json:"max_timeout_sec"`
	MaxOutputBytes    int `json:"max_output_bytes"`
	SSHConfig             // embedded: flattens ssh_* keys onto this object

	MaxRetries            int                   `json:"max_retries"`
	RetryBackoffMs        int                   `json:"retry_backoff_ms"`
	ObservabilityJSONLogs bool                  `json:"observability_json_logs"`
	Tools                 map[string]ToolPolicy `json:"tools"`
}

// RunRequest is a single per-invocation value.
type RunRequest struct {
	ID             string   `json:"id,omitempty"`
	Host           string   `json:"host" validate:"required"`
	User           string   `json:"user,omitempty"`
	Tool           string   `json:"tool" validate:"required"`
	Args           []string `json:"args,omitempty"`
	TimeoutSec     *int     `json:"timeout_sec,omitempty" validate:"omitempty,min=1"`
	MaxOutputBytes *int     `json:"max_output_bytes,omitempty" validate:"omitempty,min=1"`
}

// Validate checks struct-level constraints on the request.
func (r *RunRequest) Validate() error {
	return validate.Struct(r)
}

// WorkflowStep is one step of a WorkflowRequest.
type WorkflowStep struct {
	Tool           string   `json:"tool" validate:"required"`
	Args           []string `json:"args,omitempty"`
	TimeoutSec     *int     `json:"timeout_sec,omitempty" validate:"omitempty,min=1"`
	MaxOutputBytes *int     `json:"max_output_bytes,omitempty" validate:"omitempty,min=1"`
}

// WorkflowRequest is an ordered sequence of tool invocations against one host.
type WorkflowRequest struct {
	ID          string         `json:"id,omitempty"`
	Host        string         `json:"host" validate:"required"`
	User        string         `json:"user,omitempty"`
	StopOnError *bool          `json:"stop_on_error,omitempty"`
	Steps       []WorkflowStep `json:"steps" validate:"required,dive"`
}

// Validate checks struct-level constraints on the request.
func (w *WorkflowRequest) Validate() error {
	return validate.Struct(w)
}

// StopOnErrorOrDefault returns the effective stop-on-error flag (default true).
func (w *WorkflowRequest) StopOnErrorOrDefault() bool {
	if w.StopOnError == nil {
		return true
	}
	return *w.StopOnError
}

// StreamKind tags a Chunk's origin pipe.
type StreamKind int

const (
	// Stdout identifies a chunk read from the child's standard output.
	Stdout StreamKind = iota
	// Stderr identifies a chunk read from the child's standard error.
	Stderr
)

// String implements fmt.Stringer.
func (s StreamKind) String() string {
	if s == Stdout {
		return "stdout"
	}
	return "stderr"
}

// EventName returns the stream-specific chunk event tag.
func (s StreamKind) EventName() string {
	if s == Stdout {
		return "stdout_chunk"
	}
	return "stderr_chunk"
}

// Chunk is a tagged slice of bytes read from one of the child's pipes.
type Chunk struct {
	Stream StreamKind
	Data   []byte
}

// Event is one line of the protocol-level event stream (C7).
type Event struct {
	ID      string      `json:"id"`
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// FinalStatus summarizes how a single attempt ended.
type FinalStatus struct {
	ExitCode   *int32 `json:"exit_code"`
	TimedOut   bool   `json:"timed_out"`
	DurationMs int64  `json:"duration_ms"`
}

// Succeeded reports whether the attempt should be considered a success for
// retry-decision purposes: it exited zero and did not time out.
func (f FinalStatus) Succeeded() bool {
	return !f.TimedOut && f.ExitCode != nil && *f.ExitCode == 0
}

// CollectedRun is the result of running in collect mode, possibly after
// retries.
type CollectedRun struct {
	Final     FinalStatus `json:"final_status"`
	Stdout    string      `json:"stdout"`
	Stderr    string      `json:"stderr"`
	Truncated bool        `json:"truncated"`
	Attempts  int         `json:"attempts"`
}
