package retry

import (
	"strings"

	"github.com/trc8004/m2m-go/pkg/errdefs"
)

// Class tags an error as retryable or fatal.
type Class int

const (
	// Fatal errors are surfaced immediately without further attempts.
	Fatal Class = iota
	// Retryable errors are transient and eligible for re-attempt.
	Retryable
)

// Keywords indicating a transient network or RPC failure. Only consulted
// for errors that carry no structured SDK code.
var retryableKeywords = []string{
	"timeout",
	"connection",
	"network",
	"unavailable",
	"refused",
	"rpc",
	"node",
	"gateway",
}

// Classify decides whether err is worth retrying.
//
// Structured codes win over message text: Network errors are retryable,
// Configuration/Validation/Authentication/Storage errors are fatal, and
// Contract errors are fatal unless the underlying cause reads as
// transient. Opaque errors fall back to the keyword heuristic.
func Classify(err error) Class {
	if err == nil {
		return Fatal
	}

	switch errdefs.CodeOf(err) {
	case errdefs.CodeNetwork:
		return Retryable
	case errdefs.CodeConfiguration, errdefs.CodeValidation, errdefs.CodeAuthentication, errdefs.CodeStorage:
		return Fatal
	case errdefs.CodeContract:
		// A contract call that died on transport is transient; a revert
		// or malformed invocation is not.
		return classifyMessage(err.Error())
	default:
		return classifyMessage(err.Error())
	}
}

func classifyMessage(msg string) Class {
	lowered := strings.ToLower(msg)
	for _, keyword := range retryableKeywords {
		if strings.Contains(lowered, keyword) {
			return Retryable
		}
	}
	return Fatal
}
