package chain

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/trc8004/m2m-go/pkg/crypto"
	"github.com/trc8004/m2m-go/pkg/errdefs"
)

// ZeroHash is the 32-zero-byte sentinel: a hash field left unset by the
// caller is submitted as ZeroHash and the contract computes the value
// itself. Must be reproduced exactly.
var ZeroHash = crypto.ZeroHash

// OpName identifies a shaped operation in the registry.
type OpName string

const (
	OpGiveFeedback       OpName = "giveFeedback"
	OpAppendResponse     OpName = "appendResponse"
	OpCompleteValidation OpName = "completeValidation"
	OpRejectValidation   OpName = "rejectValidation"
)

// Descriptor declares both wire layouts of an operation. The extended
// layout appends optional trailing fields to the legacy one; both are
// accepted by the deployed contracts.
type Descriptor struct {
	Contract       ContractName
	Method         string
	LegacyFields   []string
	ExtendedFields []string
}

// operations is the operation registry, resolved at compile time rather
// than by runtime name lookup.
var operations = map[OpName]Descriptor{
	OpGiveFeedback: {
		Contract:     ContractReputation,
		Method:       "giveFeedback",
		LegacyFields: []string{"agentId", "feedbackText", "sentiment"},
		ExtendedFields: []string{
			"agentId", "feedbackText", "sentiment",
			"value", "valueDecimals", "tag1", "tag2", "endpoint", "feedbackURI", "feedbackHash",
		},
	},
	OpAppendResponse: {
		Contract:     ContractReputation,
		Method:       "appendResponse",
		LegacyFields: []string{"agentId", "feedbackIndex", "responseText"},
		ExtendedFields: []string{
			"agentId", "feedbackIndex", "responseText",
			"clientAddress", "responseURI", "responseHash",
		},
	},
	OpCompleteValidation: {
		Contract:     ContractValidation,
		Method:       "completeValidation",
		LegacyFields: []string{"requestId", "resultURI", "resultHash"},
		ExtendedFields: []string{
			"requestId", "resultURI", "resultHash",
			"tag", "responseCode",
		},
	},
	OpRejectValidation: {
		Contract:     ContractValidation,
		Method:       "rejectValidation",
		LegacyFields: []string{"requestId", "resultURI", "reasonHash"},
		ExtendedFields: []string{
			"requestId", "resultURI", "reasonHash",
			"tag", "responseCode",
		},
	},
}

// Operation returns the descriptor for a registered operation.
func Operation(name OpName) (Descriptor, bool) {
	desc, ok := operations[name]
	return desc, ok
}

// FeedbackParams is the caller's argument set for giveFeedback. The
// fields past Sentiment belong to the extended layout and default to
// their zero values.
type FeedbackParams struct {
	AgentID   uint64
	Text      string
	Sentiment Sentiment

	Value         *big.Int
	ValueDecimals uint8
	Tag1          string
	Tag2          string
	Endpoint      string
	FeedbackURI   string
	FeedbackHash  [32]byte
}

func (p FeedbackParams) extended() bool {
	return (p.Value != nil && p.Value.Sign() != 0) ||
		p.ValueDecimals != 0 ||
		p.Tag1 != "" || p.Tag2 != "" ||
		p.Endpoint != "" ||
		p.FeedbackURI != "" ||
		p.FeedbackHash != ZeroHash
}

// ShapeGiveFeedback selects the giveFeedback wire layout. Any extended
// field set away from its default forces the full extended tuple, with
// defaulted fields included in the fixed order; otherwise the legacy
// 3-field tuple is used.
func ShapeGiveFeedback(p FeedbackParams) Invocation {
	desc := operations[OpGiveFeedback]

	if !p.extended() {
		return Invocation{
			Contract: desc.Contract,
			Method:   desc.Method,
			Params:   []any{p.AgentID, p.Text, p.Sentiment},
		}
	}

	value := p.Value
	if value == nil {
		value = new(big.Int)
	}
	return Invocation{
		Contract: desc.Contract,
		Method:   desc.Method,
		Params: []any{
			p.AgentID, p.Text, p.Sentiment,
			value, p.ValueDecimals, p.Tag1, p.Tag2, p.Endpoint, p.FeedbackURI, p.FeedbackHash,
		},
	}
}

// ResponseParams is the caller's argument set for appendResponse.
type ResponseParams struct {
	AgentID       uint64
	FeedbackIndex uint64
	Text          string

	ClientAddress Address
	ResponseURI   string
	ResponseHash  [32]byte
}

func (p ResponseParams) extended() bool {
	return p.ClientAddress != "" || p.ResponseURI != "" || p.ResponseHash != ZeroHash
}

// ShapeAppendResponse selects the appendResponse wire layout.
func ShapeAppendResponse(p ResponseParams) Invocation {
	desc := operations[OpAppendResponse]

	if !p.extended() {
		return Invocation{
			Contract: desc.Contract,
			Method:   desc.Method,
			Params:   []any{p.AgentID, p.FeedbackIndex, p.Text},
		}
	}
	return Invocation{
		Contract: desc.Contract,
		Method:   desc.Method,
		Params: []any{
			p.AgentID, p.FeedbackIndex, p.Text,
			p.ClientAddress, p.ResponseURI, p.ResponseHash,
		},
	}
}

// ValidationResultParams is the caller's argument set for
// completeValidation and rejectValidation, which share field lists.
type ValidationResultParams struct {
	RequestID  [32]byte
	ResultURI  string
	ResultHash [32]byte

	Tag          string
	ResponseCode uint16
}

func (p ValidationResultParams) extended() bool {
	return p.Tag != "" || p.ResponseCode != 0
}

// ShapeCompleteValidation selects the completeValidation wire layout.
func ShapeCompleteValidation(p ValidationResultParams) Invocation {
	return shapeValidationResult(operations[OpCompleteValidation], p)
}

// ShapeRejectValidation selects the rejectValidation wire layout.
func ShapeRejectValidation(p ValidationResultParams) Invocation {
	return shapeValidationResult(operations[OpRejectValidation], p)
}

func shapeValidationResult(desc Descriptor, p ValidationResultParams) Invocation {
	if !p.extended() {
		return Invocation{
			Contract: desc.Contract,
			Method:   desc.Method,
			Params:   []any{p.RequestID, p.ResultURI, p.ResultHash},
		}
	}
	return Invocation{
		Contract: desc.Contract,
		Method:   desc.Method,
		Params: []any{
			p.RequestID, p.ResultURI, p.ResultHash,
			p.Tag, p.ResponseCode,
		},
	}
}

// ParseRequestID decodes a bytes32 request ID from its hex form.
func ParseRequestID(s string) ([32]byte, error) {
	var out [32]byte
	cleaned := strings.TrimPrefix(strings.ToLower(s), "0x")
	raw, err := hex.DecodeString(cleaned)
	if err != nil {
		return out, errdefs.NewValidation("request ID is not valid hex", s)
	}
	if len(raw) != 32 {
		return out, errdefs.NewValidation("request ID must be 32 bytes", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// ParseHash32 decodes a 32-byte hash from hex; the empty string maps to
// the zero-hash sentinel.
func ParseHash32(s string) ([32]byte, error) {
	if s == "" {
		return ZeroHash, nil
	}
	return ParseRequestID(s)
}
