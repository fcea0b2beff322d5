package core

import (
	"fmt"
	"io"
	"os/exec"
)

// buildSSHArgs constructs the argument vector for the external ssh client
// (C3). No shell is interposed locally: the remote command string (already
// built by BuildRemoteCommand) is passed as ssh's single trailing argument.
func buildSSHArgs(ssh SSHConfig, target, remoteCommand string) []string {
	return []string{
		"-o", "BatchMode=yes",
		"-o", fmt.Sprintf("ConnectTimeout=%d", ssh.ConnectTimeoutSec),
		"-o", fmt.Sprintf("ServerAliveInterval=%d", ssh.ServerAliveInterval),
		"-o", fmt.Sprintf("ServerAliveCountMax=%d", ssh.ServerAliveCountMax),
		"-o", fmt.Sprintf("StrictHostKeyChecking=%s", strictHostKeyValue(ssh.StrictHostKeyChecking)),
		target,
		remoteCommand,
	}
}

func strictHostKeyValue(strict bool) string {
	if strict {
		return "yes"
	}
	return "no"
}

// spawnSSH starts the ssh child process with its stdout/stderr piped and
// stdin unused. The returned pipes are valid only if err is nil.
func spawnSSH(ssh SSHConfig, target, remoteCommand string) (cmd *exec.Cmd, stdout, stderr io.ReadCloser, err error) {
	argv := buildSSHArgs(ssh, target, remoteCommand)
	cmd = exec.Command("ssh", argv...)
	setProcessGroup(cmd)

	stdout, err = cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, NewExecError("failed to create stdout pipe: %v", err)
	}
	stderr, err = cmd.StderrPipe()
	if err != nil {
		return nil, nil, nil, NewExecError("failed to create stderr pipe: %v", err)
	}

	if err = cmd.Start(); err != nil {
		return nil, nil, nil, NewExecError("failed to start ssh: %v", err)
	}
	return cmd, stdout, stderr, nil
}
