// Package chain shapes and submits TRC-8004 contract calls.
//
// The call shaper decides, per operation, between the legacy parameter
// layout and the extended layout introduced by the second contract
// generation. Invocations are immutable once shaped and are handed to an
// Invoker for submission.
package chain

import (
	"context"
	"encoding/json"
)

// ContractName identifies one of the three registry contracts.
type ContractName string

const (
	ContractIdentity   ContractName = "identity"
	ContractValidation ContractName = "validation"
	ContractReputation ContractName = "reputation"
)

// Invocation is a fully shaped contract call: operation, target contract,
// and the chosen parameter tuple. Never mutated after shaping.
type Invocation struct {
	Contract ContractName
	Method   string
	Params   []any
}

// Invoker submits shaped invocations to the ledger.
type Invoker interface {
	// Submit builds, signs, and broadcasts a state-changing call and
	// returns the transaction ID.
	Submit(ctx context.Context, inv Invocation) (string, error)

	// Call executes a view/pure function without gas and returns the raw
	// node response.
	Call(ctx context.Context, inv Invocation) (json.RawMessage, error)
}
