package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// schemaDoc is the static request/event shape summary `print-schema` emits.
// The canonical event set is the stream-server vocabulary; mcp-serve
// additionally reports failures through its own JSON-RPC error channel,
// noted separately rather than folded into "events".
var schemaDoc = map[string]interface{}{
	"requests": map[string]interface{}{
		"RunRequest": map[string]interface{}{
			"id":               "string, optional",
			"host":             "string, required",
			"user":             "string, optional",
			"tool":             "string, required",
			"args":             "array of string, optional",
			"timeout_sec":      "integer >= 1, optional",
			"max_output_bytes": "integer >= 1, optional",
		},
		"WorkflowRequest": map[string]interface{}{
			"id":            "string, optional",
			"host":          "string, required",
			"user":          "string, optional",
			"stop_on_error": "boolean, optional, default true",
			"steps": []string{
				"tool: string, required",
				"args: array of string, optional",
				"timeout_sec: integer >= 1, optional",
				"max_output_bytes: integer >= 1, optional",
			},
		},
	},
	"events": []string{
		"started", "stdout_chunk", "stderr_chunk", "output_truncated", "finished", "error",
	},
	"workflow_events": []string{
		"workflow_started", "step_started", "step_finished", "step_failed", "workflow_finished",
	},
	"notes": []string{
		"mcp-serve reports failures through its own JSON-RPC error channel (-32700, -32601, -32602, -32000), not the `error` event above",
	},
}

func newPrintSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "print-schema",
		Short: "Print the request/event shape summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(schemaDoc); err != nil {
				return fmt.Errorf("encoding schema: %w", err)
			}
			return nil
		},
	}
}
