package main

import (
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nullhost/toolbridge/internal/core"
)

func newRunCommand() *cobra.Command {
	var (
		host           string
		user           string
		tool           string
		args           []string
		timeoutSec     int
		maxOutputBytes int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single whitelisted tool against a host, streaming events to stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadBridgeConfig()
			if err != nil {
				return err
			}

			req := &core.RunRequest{
				ID:   uuid.NewString(),
				Host: host,
				User: user,
				Tool: tool,
				Args: args,
			}
			if cmd.Flags().Changed("timeout-sec") {
				req.TimeoutSec = &timeoutSec
			}
			if cmd.Flags().Changed("max-output-bytes") {
				req.MaxOutputBytes = &maxOutputBytes
			}

			sink := core.NewStreamSink(os.Stdout)

			if err := req.Validate(); err != nil {
				return sink.Error(req.ID, core.CodeParse, err.Error())
			}

			resolved, err := core.Resolve(cfg, req)
			if err != nil {
				return sink.Error(req.ID, core.CodePolicy, err.Error())
			}

			ledger := openSessionLedger()
			onSpawn := func(pid int) {
				if ledger != nil {
					_ = ledger.Record(req.ID, pid, tool, resolved.Target)
				}
			}

			_, runErr := core.Run(req.ID, resolved, cfg.SSHConfig, req.Args, sink, onSpawn)
			if ledger != nil {
				_ = ledger.Release(req.ID)
			}
			if runErr != nil {
				return sink.Error(req.ID, core.CodeExec, runErr.Error())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "target host")
	cmd.Flags().StringVar(&user, "user", "", "remote user (falls back to ~/.ssh/config, then the ssh client's own default)")
	cmd.Flags().StringVar(&tool, "tool", "", "allow-listed tool name")
	cmd.Flags().StringArrayVar(&args, "args", nil, "argument passed to the tool (repeatable)")
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 0, "per-run timeout override in seconds")
	cmd.Flags().IntVar(&maxOutputBytes, "max-output-bytes", 0, "per-run output cap override in bytes")
	_ = cmd.MarkFlagRequired("host")
	_ = cmd.MarkFlagRequired("tool")

	return cmd
}
