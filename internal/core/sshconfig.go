// Package core — SSH config lookups used to fill in defaults the caller
// omitted, the way the `ssh` client itself would.
package core

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// sshConfigHost is the subset of ~/.ssh/config host block this bridge cares
// about: enough to default a missing RunRequest.User, nothing about port
// forwarding (a fuller ssh_config parser would also handle LocalForward /
// RemoteForward / DynamicForward directives; this bridge never forwards
// ports, so that part of the grammar is dropped).
type sshConfigHost struct {
	User string
}

var (
	sshConfigOnce  sync.Once
	sshConfigHosts map[string]sshConfigHost
)

// lookupSSHConfigUser returns the User directive configured for hostAlias in
// ~/.ssh/config, or "" if the file is absent, unreadable, or has no match.
func lookupSSHConfigUser(hostAlias string) string {
	sshConfigOnce.Do(loadSSHConfig)
	if host, ok := sshConfigHosts[hostAlias]; ok {
		return host.User
	}
	for pattern, host := range sshConfigHosts {
		if matchesHostPattern(hostAlias, pattern) {
			return host.User
		}
	}
	return ""
}

func loadSSHConfig() {
	sshConfigHosts = make(map[string]sshConfigHost)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return
	}

	file, err := os.Open(filepath.Join(homeDir, ".ssh", "config"))
	if err != nil {
		return
	}
	defer file.Close()

	var currentAliases []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(strings.ToLower(line), "host ") {
			currentAliases = strings.Fields(strings.TrimSpace(line[5:]))
			for _, alias := range currentAliases {
				if _, exists := sshConfigHosts[alias]; !exists {
					sshConfigHosts[alias] = sshConfigHost{}
				}
			}
			continue
		}

		if len(currentAliases) == 0 {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		if strings.ToLower(parts[0]) != "user" {
			continue
		}
		user := strings.Join(parts[1:], " ")
		for _, alias := range currentAliases {
			sshConfigHosts[alias] = sshConfigHost{User: user}
		}
	}
}

// matchesHostPattern implements the simple wildcard matching ssh_config
// uses for Host patterns (only the common "*.suffix" case and literal "*").
func matchesHostPattern(host, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(host, pattern[1:])
	}
	return host == pattern
}
