package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nullhost/toolbridge/internal/core"
	"github.com/nullhost/toolbridge/internal/store"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "JSON-lines stream server: one RunRequest per input line, events per output line",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadBridgeConfig()
			if err != nil {
				return err
			}
			ledger := openSessionLedger()
			sink := core.NewStreamSink(os.Stdout)

			scanner := bufio.NewScanner(os.Stdin)
			scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
			for scanner.Scan() {
				line := scanner.Bytes()
				if len(bytes.TrimSpace(line)) == 0 {
					continue
				}
				handleStreamLine(cfg, ledger, sink, line)
			}
			return scanner.Err()
		},
	}
}

func handleStreamLine(cfg *core.BridgeConfig, ledger *store.SessionLedger, sink *core.StreamSink, line []byte) {
	var req core.RunRequest
	if err := json.Unmarshal(line, &req); err != nil {
		_ = sink.Error("unknown", core.CodeParse, err.Error())
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if err := req.Validate(); err != nil {
		_ = sink.Error(req.ID, core.CodeParse, err.Error())
		return
	}

	resolved, err := core.Resolve(cfg, &req)
	if err != nil {
		_ = sink.Error(req.ID, core.CodePolicy, err.Error())
		return
	}

	onSpawn := func(pid int) {
		if ledger != nil {
			_ = ledger.Record(req.ID, pid, req.Tool, resolved.Target)
		}
	}

	_, runErr := core.Run(req.ID, resolved, cfg.SSHConfig, req.Args, sink, onSpawn)
	if ledger != nil {
		_ = ledger.Release(req.ID)
	}
	if runErr != nil {
		_ = sink.Error(req.ID, core.CodeExec, runErr.Error())
	}
}
