package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *BridgeConfig {
	return &BridgeConfig{
		DefaultTimeoutSec: 30,
		MaxTimeoutSec:     300,
		MaxOutputBytes:    131072,
		Tools: map[string]ToolPolicy{
			"nmap": {Command: "/usr/bin/nmap", MaxArgs: 2},
		},
	}
}

func TestResolve_AdmissionReject(t *testing.T) {
	cfg := testConfig()
	req := &RunRequest{Host: "h", Tool: "telnet"}

	_, err := Resolve(cfg, req)
	require.Error(t, err)

	var bErr *BridgeError
	require.ErrorAs(t, err, &bErr)
	assert.Equal(t, CodePolicy, bErr.Code)
}

func TestResolve_ArgOverflow(t *testing.T) {
	cfg := testConfig()
	req := &RunRequest{Host: "h", Tool: "nmap", Args: []string{"-p", "80", "scan"}}

	_, err := Resolve(cfg, req)
	require.Error(t, err)
	var bErr *BridgeError
	require.ErrorAs(t, err, &bErr)
	assert.Equal(t, CodePolicy, bErr.Code)
}

func TestResolve_EffectiveTimeoutClampedToCeiling(t *testing.T) {
	cfg := testConfig()
	over := 1000
	req := &RunRequest{Host: "h", Tool: "nmap", TimeoutSec: &over}

	resolved, err := Resolve(cfg, req)
	require.NoError(t, err)
	assert.Equal(t, cfg.MaxTimeoutSec, resolved.EffectiveTimeoutSec)
}

func TestResolve_EffectiveTimeoutDefaultsWhenUnset(t *testing.T) {
	cfg := testConfig()
	req := &RunRequest{Host: "h", Tool: "nmap"}

	resolved, err := Resolve(cfg, req)
	require.NoError(t, err)
	assert.Equal(t, cfg.DefaultTimeoutSec, resolved.EffectiveTimeoutSec)
}

func TestResolve_TargetWithAndWithoutUser(t *testing.T) {
	cfg := testConfig()

	withUser, err := Resolve(cfg, &RunRequest{Host: "h", User: "op", Tool: "nmap"})
	require.NoError(t, err)
	assert.Equal(t, "op@h", withUser.Target)

	withoutUser, err := Resolve(cfg, &RunRequest{Host: "h", Tool: "nmap"})
	require.NoError(t, err)
	assert.Equal(t, "h", withoutUser.Target)
}

func TestRunRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     RunRequest
		wantErr bool
	}{
		{name: "missing host", req: RunRequest{Tool: "nmap"}, wantErr: true},
		{name: "missing tool", req: RunRequest{Host: "h"}, wantErr: true},
		{name: "valid", req: RunRequest{Host: "h", Tool: "nmap"}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
