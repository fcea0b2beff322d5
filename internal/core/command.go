package core

import (
	"fmt"
	"strconv"
	"strings"
)

// BuildRemoteCommand composes the single POSIX-shell string run on the
// remote host: the tool's command and arguments, generically quoted, and
// wrapped in a deadline enforcer so the remote side self-limits even if the
// local supervisor's connection to it is unresponsive (C2).
func BuildRemoteCommand(policy ToolPolicy, args []string, timeoutSec int) string {
	tokens := make([]string, 0, 1+len(policy.DefaultArgs)+len(args))
	tokens = append(tokens, policy.Command)
	tokens = append(tokens, policy.DefaultArgs...)
	tokens = append(tokens, args...)

	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = shellQuote(tok)
	}

	return fmt.Sprintf("timeout --signal=TERM --kill-after=5s %ss %s",
		strconv.Itoa(timeoutSec), strings.Join(quoted, " "))
}

// shellQuote wraps a token in single quotes for POSIX shells, escaping any
// embedded single quote as '\''. An empty token quotes as ''.
func shellQuote(token string) string {
	if token == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(token, "'", `'\''`) + "'"
}
