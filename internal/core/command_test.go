package core

import (
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRemoteCommand(t *testing.T) {
	policy := ToolPolicy{Command: "/usr/bin/nmap", DefaultArgs: []string{"-oN", "-"}}
	got := BuildRemoteCommand(policy, []string{"-p", "80", "10.0.0.1"}, 30)

	want := "timeout --signal=TERM --kill-after=5s 30s '/usr/bin/nmap' '-oN' '-' '-p' '80' '10.0.0.1'"
	assert.Equal(t, want, got)
}

func TestShellQuote_RoundTrip(t *testing.T) {
	tokens := []string{
		"plain",
		"has space",
		"it's got a quote",
		`back\slash`,
		"$(rm -rf /)",
		"",
	}

	for _, tok := range tokens {
		t.Run(tok, func(t *testing.T) {
			quoted := shellQuote(tok)
			out, err := exec.Command("sh", "-c", "echo "+quoted).Output()
			require.NoError(t, err)
			assert.Equal(t, tok, strings.TrimSuffix(string(out), "\n"))
		})
	}
}
