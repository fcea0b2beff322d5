package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nullhost/toolbridge/internal/core"
	"github.com/nullhost/toolbridge/internal/store"
)

const previewRunes = 240

func newWorkflowServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "workflow-serve",
		Short: "Workflow server: one WorkflowRequest per input line, ordered step events per output line",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadBridgeConfig()
			if err != nil {
				return err
			}
			ledger := openSessionLedger()
			var tap *core.Tap
			if cfg.ObservabilityJSONLogs {
				tap = core.NewTap(os.Stderr)
			}
			sink := core.NewEventSink(os.Stdout)

			scanner := bufio.NewScanner(os.Stdin)
			scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
			for scanner.Scan() {
				line := scanner.Bytes()
				if len(bytes.TrimSpace(line)) == 0 {
					continue
				}
				handleWorkflowLine(cfg, ledger, tap, sink, line)
			}
			return scanner.Err()
		},
	}
}

func handleWorkflowLine(cfg *core.BridgeConfig, ledger *store.SessionLedger, tap *core.Tap, sink *core.EventSink, line []byte) {
	var wf core.WorkflowRequest
	if err := json.Unmarshal(line, &wf); err != nil {
		_ = sink.Error("unknown", core.CodeParse, err.Error())
		return
	}
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}
	if err := wf.Validate(); err != nil {
		_ = sink.Error(wf.ID, core.CodeParse, err.Error())
		return
	}

	_ = sink.Emit(wf.ID, "workflow_started", map[string]interface{}{
		"step_count": len(wf.Steps),
	})

	if len(wf.Steps) == 0 {
		_ = sink.Emit(wf.ID, "workflow_finished", map[string]interface{}{"state": "empty"})
		return
	}

	var lastPayload map[string]interface{}
	stopOnError := wf.StopOnErrorOrDefault()

	for index, step := range wf.Steps {
		_ = sink.Emit(wf.ID, "step_started", map[string]interface{}{
			"index": index,
			"tool":  step.Tool,
		})

		stepID := fmt.Sprintf("%s:%d", wf.ID, index)
		failed := false

		resolved, err := core.ResolveStep(cfg, &wf, step)
		if err != nil {
			lastPayload = map[string]interface{}{"index": index, "error": err.Error()}
			_ = sink.Emit(wf.ID, "step_failed", lastPayload)
			failed = true
		} else {
			onSpawn := func(pid int) {
				if ledger != nil {
					_ = ledger.Record(stepID, pid, step.Tool, resolved.Target)
				}
			}
			collected, runErr := core.RunCollectWithRetry(stepID, cfg, resolved, step.Args, tap, onSpawn)
			if ledger != nil {
				_ = ledger.Release(stepID)
			}
			if runErr != nil {
				lastPayload = map[string]interface{}{"index": index, "error": runErr.Error()}
				_ = sink.Emit(wf.ID, "step_failed", lastPayload)
				failed = true
			} else {
				exitNonZero := collected.Final.ExitCode == nil || *collected.Final.ExitCode != 0
				failed = collected.Final.TimedOut || exitNonZero
				lastPayload = map[string]interface{}{
					"index":          index,
					"exit_code":      collected.Final.ExitCode,
					"timed_out":      collected.Final.TimedOut,
					"duration_ms":    collected.Final.DurationMs,
					"truncated":      collected.Truncated,
					"attempts":       collected.Attempts,
					"stdout_preview": firstRunes(collected.Stdout, previewRunes),
					"stderr_preview": firstRunes(collected.Stderr, previewRunes),
				}
				_ = sink.Emit(wf.ID, "step_finished", lastPayload)
			}
		}

		if failed && stopOnError {
			break
		}
	}

	_ = sink.Emit(wf.ID, "workflow_finished", lastPayload)
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
