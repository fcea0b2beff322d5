// Package store loads the bridge's configuration file and tracks in-flight
// attempts, using the XDG Base Directory Specification the same way the
// tunnel config stores typically do.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/nullhost/toolbridge/internal/core"
)

// defaultConfig mirrors the field values a fresh install ships with; it is
// the base that a config file's contents are layered on top of.
func defaultConfig() *core.BridgeConfig {
	return &core.BridgeConfig{
		DefaultTimeoutSec: 30,
		MaxTimeoutSec:     300,
		MaxOutputBytes:    131072,
		SSHConfig: core.SSHConfig{
			ConnectTimeoutSec:     10,
			ServerAliveInterval:   15,
			ServerAliveCountMax:   2,
			StrictHostKeyChecking: true,
		},
		MaxRetries:            1,
		RetryBackoffMs:        750,
		ObservabilityJSONLogs: true,
		Tools: map[string]core.ToolPolicy{
			"nmap":   {Command: "/usr/bin/nmap", MaxArgs: 12},
			"nikto":  {Command: "/usr/bin/nikto", MaxArgs: 12},
			"sqlmap": {Command: "/usr/bin/sqlmap", MaxArgs: 12},
		},
	}
}

// ConfigPath resolves the file LoadConfig reads from: explicitPath if given,
// else $XDG_CONFIG_HOME/toolbridge/config.json, else
// ~/.config/toolbridge/config.json (or the Windows %AppData% equivalent).
func ConfigPath(explicitPath string) (string, error) {
	if explicitPath != "" {
		return explicitPath, nil
	}

	var configDir string
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("cannot determine Windows config directory")
		}
		configDir = filepath.Join(appData, "toolbridge")
	default:
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			xdgConfigHome = filepath.Join(homeDir, ".config")
		}
		configDir = filepath.Join(xdgConfigHome, "toolbridge")
	}

	return filepath.Join(configDir, "config.json"), nil
}

// LoadConfig reads the bridge config from explicitPath (or the XDG default
// location if empty), layering file contents on top of built-in defaults.
// A missing or unreadable file is not an error: the built-in defaults (no
// allow-listed tools beyond the three shipped ones) are returned as-is. A
// file that is read but does not parse is an error. This store is
// read-only — the bridge never writes its own config back.
func LoadConfig(explicitPath string) (*core.BridgeConfig, error) {
	path, err := ConfigPath(explicitPath)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, nil
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}
