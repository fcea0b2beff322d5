package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nullhost/toolbridge/internal/core"
	"github.com/nullhost/toolbridge/internal/store"
)

var (
	configPath string
	debugLog   bool
)

var rootCmd = &cobra.Command{
	Use:   "toolbridge",
	Short: "Remote-tool execution bridge",
	Long: `toolbridge accepts structured requests naming a whitelisted command,
relays them to a remote host over SSH, and reports the remote process's
output as a sequence of JSON events while enforcing timeout, output-cap,
and argument-count bounds.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(func() {
		core.InitLogger(debugLog)
	})

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json (default: XDG config dir)")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "enable debug-level diagnostic logging")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMCPServeCommand())
	rootCmd.AddCommand(newWorkflowServeCommand())
	rootCmd.AddCommand(newPrintSchemaCommand())
}

// Execute runs the root command, exiting non-zero on a fatal setup error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadBridgeConfig() (*core.BridgeConfig, error) {
	cfg, err := store.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func openSessionLedger() *store.SessionLedger {
	ledger, err := store.NewSessionLedger()
	if err != nil {
		core.Warn("session ledger unavailable: %v", err)
		return nil
	}
	store.WarnStaleOnStartup(ledger)
	return ledger
}
