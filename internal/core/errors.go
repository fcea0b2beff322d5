package core

import "fmt"

// Error codes used in the "error" event payload and the JSON-RPC execution
// failure path.
const (
	CodePolicy = "E_POLICY"
	CodeParse  = "E_PARSE"
	CodeExec   = "E_EXEC"
)

// BridgeError carries a stable error code alongside a human-readable
// message, so callers at the protocol boundary (stream server, JSON-RPC
// server) can surface {code, message} without string-sniffing.
type BridgeError struct {
	Code    string
	Message string
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewPolicyError builds an E_POLICY admission failure.
func NewPolicyError(format string, args ...interface{}) *BridgeError {
	return &BridgeError{Code: CodePolicy, Message: fmt.Sprintf(format, args...)}
}

// NewExecError builds an E_EXEC execution failure.
func NewExecError(format string, args ...interface{}) *BridgeError {
	return &BridgeError{Code: CodeExec, Message: fmt.Sprintf(format, args...)}
}
