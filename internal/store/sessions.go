package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/nullhost/toolbridge/internal/core"
)

// SessionEntry is one in-flight attempt: the child ssh PID the supervisor
// spawned, so a crashed bridge process can be told which children it left
// behind instead of silently orphaning them.
type SessionEntry struct {
	PID     int    `json:"pid"`
	Tool    string `json:"tool"`
	Target  string `json:"target"`
	Started string `json:"started"`
}

type sessionData struct {
	Sessions map[string]SessionEntry `json:"sessions"`
}

// SessionLedger tracks in-flight attempts in an XDG-state-compliant file,
// using the same atomic write pattern and liveness check as a PID file,
// but recording ssh-attempt sessions instead of tunnel processes and
// warning on stale crash-recovery entries rather than cleaning them up
// silently.
type SessionLedger struct {
	mu       sync.Mutex
	filePath string
}

func NewSessionLedger() (*SessionLedger, error) {
	path, err := sessionPath()
	if err != nil {
		return nil, err
	}
	return &SessionLedger{filePath: path}, nil
}

func sessionPath() (string, error) {
	var stateDir string
	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			return "", fmt.Errorf("cannot determine Windows state directory")
		}
		stateDir = filepath.Join(localAppData, "toolbridge")
	default:
		xdgStateHome := os.Getenv("XDG_STATE_HOME")
		if xdgStateHome == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			xdgStateHome = filepath.Join(homeDir, ".local", "state")
		}
		stateDir = filepath.Join(xdgStateHome, "toolbridge")
	}

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}
	return filepath.Join(stateDir, "sessions.json"), nil
}

func (l *SessionLedger) load() (*sessionData, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &sessionData{Sessions: make(map[string]SessionEntry)}, nil
		}
		return nil, fmt.Errorf("failed to read session ledger: %w", err)
	}
	var sd sessionData
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, fmt.Errorf("failed to parse session ledger: %w", err)
	}
	if sd.Sessions == nil {
		sd.Sessions = make(map[string]SessionEntry)
	}
	return &sd, nil
}

func (l *SessionLedger) save(sd *sessionData) error {
	if len(sd.Sessions) == 0 {
		if err := os.Remove(l.filePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove empty session ledger: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(sd, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session ledger: %w", err)
	}

	tempFile := l.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write session ledger: %w", err)
	}
	if err := os.Rename(tempFile, l.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to save session ledger: %w", err)
	}
	return nil
}

// Record adds an entry for a newly started attempt.
func (l *SessionLedger) Record(id string, pid int, tool, target string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	sd, err := l.load()
	if err != nil {
		return err
	}
	sd.Sessions[id] = SessionEntry{
		PID:     pid,
		Tool:    tool,
		Target:  target,
		Started: time.Now().UTC().Format(time.RFC3339),
	}
	return l.save(sd)
}

// Release removes an attempt's entry once the supervisor has reported it
// finished, win or lose.
func (l *SessionLedger) Release(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	sd, err := l.load()
	if err != nil {
		return err
	}
	delete(sd.Sessions, id)
	return l.save(sd)
}

// WarnStale calls warn for every ledger entry
// whose PID is no longer running — evidence the previous bridge process
// crashed mid-attempt, leaving an orphaned or already-reaped ssh child
// behind. This never silently
// deletes: it reports via warn and leaves the ledger entry for an operator
// to inspect, then returns the count found.
func (l *SessionLedger) WarnStale(warn func(id string, entry SessionEntry)) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sd, err := l.load()
	if err != nil {
		return 0, err
	}

	stale := 0
	for id, entry := range sd.Sessions {
		if !isProcessRunning(entry.PID) {
			stale++
			if warn != nil {
				warn(id, entry)
			}
		}
	}
	return stale, nil
}

func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil
}

// WarnStaleOnStartup loads the ledger and logs a core.Logger warning for
// every stale entry it finds — the crash-recovery check a bridge process
// runs once at startup.
func WarnStaleOnStartup(ledger *SessionLedger) {
	_, _ = ledger.WarnStale(func(id string, entry SessionEntry) {
		core.Warn("stale session %s: pid %d (%s @ %s) did not exit cleanly", id, entry.PID, entry.Tool, entry.Target)
	})
}
