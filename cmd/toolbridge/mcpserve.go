package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nullhost/toolbridge/internal/core"
	"github.com/nullhost/toolbridge/internal/store"
)

const (
	rpcParseError     = -32700
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
	rpcExecError      = -32000
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type toolCallArguments struct {
	Host           string   `json:"host"`
	User           string   `json:"user,omitempty"`
	Args           []string `json:"args,omitempty"`
	TimeoutSec     *int     `json:"timeout_sec,omitempty"`
	MaxOutputBytes *int     `json:"max_output_bytes,omitempty"`
}

func newMCPServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-serve",
		Short: "JSON-RPC 2.0 server exposing initialize, tools/list, tools/call over line-delimited frames",
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

			enc := json.NewEncoder(os.Stdout)
			scanner := bufio.NewScanner(os.Stdin)
			scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
			for scanner.Scan() {
				line := scanner.Bytes()
				if len(bytes.TrimSpace(line)) == 0 {
					continue
				}
				resp := handleRPCLine(cfg, ledger, tap, line)
				_ = enc.Encode(resp)
			}
			return scanner.Err()
		},
	}
}

func handleRPCLine(cfg *core.BridgeConfig, ledger *store.SessionLedger, tap *core.Tap, line []byte) rpcResponse {
	var req rpcRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: rpcParseError, Message: err.Error()}}
	}

	switch req.Method {
	case "initialize":
		return rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}},
			"serverInfo":      map[string]interface{}{"name": "toolbridge", "version": "1.0.0"},
		}}

	case "tools/list":
		return rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{
			"tools": listToolInfos(cfg),
		}}

	case "tools/call":
		return handleToolsCall(cfg, ledger, tap, req)

	default:
		return rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{
			Code: rpcMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method),
		}}
	}
}

func listToolInfos(cfg *core.BridgeConfig) []map[string]interface{} {
	names := make([]string, 0, len(cfg.Tools))
	for name := range cfg.Tools {
		names = append(names, name)
	}
	sort.Strings(names)

	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"host":             map[string]interface{}{"type": "string"},
			"user":             map[string]interface{}{"type": "string"},
			"args":             map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			"timeout_sec":      map[string]interface{}{"type": "integer", "minimum": 1},
			"max_output_bytes": map[string]interface{}{"type": "integer", "minimum": 1024},
		},
		"required": []string{"host"},
	}

	tools := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		tools = append(tools, map[string]interface{}{
			"name":        name,
			"description": fmt.Sprintf("run %s against a host over the configured SSH transport", name),
			"inputSchema": schema,
		})
	}
	return tools
}

func handleToolsCall(cfg *core.BridgeConfig, ledger *store.SessionLedger, tap *core.Tap, req rpcRequest) rpcResponse {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: rpcInvalidParams, Message: err.Error()}}
	}

	var callArgs toolCallArguments
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &callArgs); err != nil {
			return rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: rpcInvalidParams, Message: err.Error()}}
		}
	}

	runReq := &core.RunRequest{
		ID:             uuid.NewString(),
		Host:           callArgs.Host,
		User:           callArgs.User,
		Tool:           params.Name,
		Args:           callArgs.Args,
		TimeoutSec:     callArgs.TimeoutSec,
		MaxOutputBytes: callArgs.MaxOutputBytes,
	}
	if err := runReq.Validate(); err != nil {
		return rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: rpcInvalidParams, Message: err.Error()}}
	}

	resolved, err := core.Resolve(cfg, runReq)
	if err != nil {
		return rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: rpcExecError, Message: err.Error()}}
	}

	onSpawn := func(pid int) {
		if ledger != nil {
			_ = ledger.Record(runReq.ID, pid, runReq.Tool, resolved.Target)
		}
	}

	collected, err := core.RunCollectWithRetry(runReq.ID, cfg, resolved, runReq.Args, tap, onSpawn)
	if ledger != nil {
		_ = ledger.Release(runReq.ID)
	}
	if err != nil {
		return rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: rpcExecError, Message: err.Error()}}
	}

	exitNonZero := collected.Final.ExitCode == nil || *collected.Final.ExitCode != 0
	isError := exitNonZero || collected.Final.TimedOut

	summary := fmt.Sprintf("exit_code=%v timed_out=%v duration_ms=%d attempts=%d",
		exitCodeOrNil(collected.Final.ExitCode), collected.Final.TimedOut, collected.Final.DurationMs, collected.Attempts)

	return rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": summary},
			{"type": "text", "text": collected.Stdout},
			{"type": "text", "text": collected.Stderr},
		},
		"isError":     isError,
		"exit_code":   collected.Final.ExitCode,
		"timed_out":   collected.Final.TimedOut,
		"duration_ms": collected.Final.DurationMs,
		"truncated":   collected.Truncated,
		"attempts":    collected.Attempts,
	}}
}

func exitCodeOrNil(code *int32) interface{} {
	if code == nil {
		return nil
	}
	return *code
}
