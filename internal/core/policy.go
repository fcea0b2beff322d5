package core

// Resolved is the outcome of resolving a RunRequest against a BridgeConfig:
// everything the remote-command builder and SSH invocation need, with
// defaults and overrides already applied.
type Resolved struct {
	Policy         ToolPolicy
	EffectiveTimeoutSec int
	EffectiveMaxBytes   int
	Target              string
}

// Resolve validates a request against policy and computes its effective
// runtime bounds (C1 — Policy Resolver). It never spawns a process.
func Resolve(cfg *BridgeConfig, req *RunRequest) (*Resolved, error) {
	policy, ok := cfg.Tools[req.Tool]
	if !ok {
		return nil, NewPolicyError("tool %q is not allow-listed", req.Tool)
	}

	maxArgs := policy.MaxArgs
	if maxArgs <= 0 {
		maxArgs = 16
	}
	if len(req.Args) > maxArgs {
		return nil, NewPolicyError("tool %q accepts at most %d args, got %d", req.Tool, maxArgs, len(req.Args))
	}

	timeout := cfg.DefaultTimeoutSec
	if req.TimeoutSec != nil {
		timeout = *req.TimeoutSec
	}
	if cfg.MaxTimeoutSec > 0 && timeout > cfg.MaxTimeoutSec {
		timeout = cfg.MaxTimeoutSec
	}

	maxBytes := cfg.MaxOutputBytes
	if req.MaxOutputBytes != nil {
		maxBytes = *req.MaxOutputBytes
	}

	user := req.User
	if user == "" {
		if resolved := lookupSSHConfigUser(req.Host); resolved != "" {
			user = resolved
		}
	}

	return &Resolved{
		Policy:              policy,
		EffectiveTimeoutSec: timeout,
		EffectiveMaxBytes:   maxBytes,
		Target:              formatTarget(user, req.Host),
	}, nil
}

// ResolveStep resolves one WorkflowStep against the workflow's host/user and
// the step's own overrides.
func ResolveStep(cfg *BridgeConfig, wf *WorkflowRequest, step WorkflowStep) (*Resolved, error) {
	req := &RunRequest{
		Host:           wf.Host,
		User:           wf.User,
		Tool:           step.Tool,
		Args:           step.Args,
		TimeoutSec:     step.TimeoutSec,
		MaxOutputBytes: step.MaxOutputBytes,
	}
	return Resolve(cfg, req)
}

func formatTarget(user, host string) string {
	if user != "" {
		return user + "@" + host
	}
	return host
}
