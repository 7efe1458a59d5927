package chain

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/trc8004/m2m-go/pkg/errdefs"
)

// Contract method helpers. Signatures mirror the deployed registries:
// EnhancedIdentityRegistry, ValidationRegistry, ReputationRegistry.

// RegisterAgent calls IdentityRegistry.register(string uri, bytes32 metadataHash).
func (c *Client) RegisterAgent(ctx context.Context, tokenURI string, metadataHash [32]byte) (string, error) {
	return c.Submit(ctx, Invocation{
		Contract: ContractIdentity,
		Method:   "register",
		Params:   []any{tokenURI, metadataHash},
	})
}

// SetAgentWallet calls IdentityRegistry.setAgentWallet(uint256 agentId, address wallet).
func (c *Client) SetAgentWallet(ctx context.Context, agentID uint64, wallet Address) (string, error) {
	return c.Submit(ctx, Invocation{
		Contract: ContractIdentity,
		Method:   "setAgentWallet",
		Params:   []any{agentID, wallet},
	})
}

// AgentExists calls IdentityRegistry.exists(uint256 tokenId).
func (c *Client) AgentExists(ctx context.Context, agentID uint64) (bool, error) {
	values, err := c.callAndUnpack(ctx, Invocation{
		Contract: ContractIdentity,
		Method:   "exists",
		Params:   []any{agentID},
	}, "bool")
	if err != nil {
		return false, err
	}
	exists, _ := values[0].(bool)
	return exists, nil
}

// OwnerOf calls IdentityRegistry.ownerOf(uint256 tokenId).
func (c *Client) OwnerOf(ctx context.Context, agentID uint64) (Address, error) {
	values, err := c.callAndUnpack(ctx, Invocation{
		Contract: ContractIdentity,
		Method:   "ownerOf",
		Params:   []any{agentID},
	}, "address")
	if err != nil {
		return "", err
	}
	return addressValue(values[0])
}

// TokenURI calls IdentityRegistry.tokenURI(uint256 tokenId).
func (c *Client) TokenURI(ctx context.Context, agentID uint64) (string, error) {
	values, err := c.callAndUnpack(ctx, Invocation{
		Contract: ContractIdentity,
		Method:   "tokenURI",
		Params:   []any{agentID},
	}, "string")
	if err != nil {
		return "", err
	}
	uri, _ := values[0].(string)
	return uri, nil
}

// AgentWalletOf calls IdentityRegistry.agentWalletOf(uint256 tokenId).
func (c *Client) AgentWalletOf(ctx context.Context, agentID uint64) (Address, error) {
	values, err := c.callAndUnpack(ctx, Invocation{
		Contract: ContractIdentity,
		Method:   "agentWalletOf",
		Params:   []any{agentID},
	}, "address")
	if err != nil {
		return "", err
	}
	return addressValue(values[0])
}

// TotalAgents calls IdentityRegistry.totalAgents().
func (c *Client) TotalAgents(ctx context.Context) (uint64, error) {
	values, err := c.callAndUnpack(ctx, Invocation{
		Contract: ContractIdentity,
		Method:   "totalAgents",
	}, "uint256")
	if err != nil {
		return 0, err
	}
	return uintValue(values[0]), nil
}

// ValidationRequest calls ValidationRegistry.validationRequest(uint256, address, string, bytes32).
func (c *Client) ValidationRequest(ctx context.Context, agentID uint64, validator Address, requestURI string, requestDataHash [32]byte) (string, error) {
	return c.Submit(ctx, Invocation{
		Contract: ContractValidation,
		Method:   "validationRequest",
		Params:   []any{agentID, validator, requestURI, requestDataHash},
	})
}

// CompleteValidation submits the shaped completeValidation call.
func (c *Client) CompleteValidation(ctx context.Context, p ValidationResultParams) (string, error) {
	return c.Submit(ctx, ShapeCompleteValidation(p))
}

// RejectValidation submits the shaped rejectValidation call.
func (c *Client) RejectValidation(ctx context.Context, p ValidationResultParams) (string, error) {
	return c.Submit(ctx, ShapeRejectValidation(p))
}

// CancelValidation calls ValidationRegistry.cancelRequest(bytes32 requestId).
func (c *Client) CancelValidation(ctx context.Context, requestID [32]byte) (string, error) {
	return c.Submit(ctx, Invocation{
		Contract: ContractValidation,
		Method:   "cancelRequest",
		Params:   []any{requestID},
	})
}

// GetValidationRequest calls ValidationRegistry.getRequest(bytes32) and
// returns the raw node response.
func (c *Client) GetValidationRequest(ctx context.Context, requestID [32]byte) (json.RawMessage, error) {
	return c.Call(ctx, Invocation{
		Contract: ContractValidation,
		Method:   "getRequest",
		Params:   []any{requestID},
	})
}

// GetAgentValidationRequests calls ValidationRegistry.getAgentRequests(uint256 agentId)
// and returns the request IDs recorded for the agent.
func (c *Client) GetAgentValidationRequests(ctx context.Context, agentID uint64) ([][32]byte, error) {
	values, err := c.callAndUnpack(ctx, Invocation{
		Contract: ContractValidation,
		Method:   "getAgentRequests",
		Params:   []any{agentID},
	}, "bytes32[]")
	if err != nil {
		return nil, err
	}
	ids, _ := values[0].([][32]byte)
	return ids, nil
}

// ValidationSummary mirrors ValidationRegistry.getSummaryForAgent.
type ValidationSummary struct {
	Total     uint64
	Pending   uint64
	Completed uint64
	Rejected  uint64
	Cancelled uint64
}

// GetValidationSummary calls ValidationRegistry.getSummaryForAgent(uint256 agentId).
func (c *Client) GetValidationSummary(ctx context.Context, agentID uint64) (ValidationSummary, error) {
	values, err := c.callAndUnpack(ctx, Invocation{
		Contract: ContractValidation,
		Method:   "getSummaryForAgent",
		Params:   []any{agentID},
	}, "uint256", "uint256", "uint256", "uint256", "uint256")
	if err != nil {
		return ValidationSummary{}, err
	}
	return ValidationSummary{
		Total:     uintValue(values[0]),
		Pending:   uintValue(values[1]),
		Completed: uintValue(values[2]),
		Rejected:  uintValue(values[3]),
		Cancelled: uintValue(values[4]),
	}, nil
}

// GiveFeedback submits the shaped giveFeedback call.
func (c *Client) GiveFeedback(ctx context.Context, p FeedbackParams) (string, error) {
	return c.Submit(ctx, ShapeGiveFeedback(p))
}

// RevokeFeedback calls ReputationRegistry.revokeFeedback(uint256 agentId, uint256 feedbackIndex).
func (c *Client) RevokeFeedback(ctx context.Context, agentID, feedbackIndex uint64) (string, error) {
	return c.Submit(ctx, Invocation{
		Contract: ContractReputation,
		Method:   "revokeFeedback",
		Params:   []any{agentID, feedbackIndex},
	})
}

// AppendResponse submits the shaped appendResponse call.
func (c *Client) AppendResponse(ctx context.Context, p ResponseParams) (string, error) {
	return c.Submit(ctx, ShapeAppendResponse(p))
}

// GetFeedback calls ReputationRegistry.getFeedback(uint256, uint256) and
// returns the raw node response.
func (c *Client) GetFeedback(ctx context.Context, agentID, feedbackIndex uint64) (json.RawMessage, error) {
	return c.Call(ctx, Invocation{
		Contract: ContractReputation,
		Method:   "getFeedback",
		Params:   []any{agentID, feedbackIndex},
	})
}

// GetFeedbackCount calls ReputationRegistry.getFeedbackCount(uint256 agentId).
func (c *Client) GetFeedbackCount(ctx context.Context, agentID uint64) (uint64, error) {
	values, err := c.callAndUnpack(ctx, Invocation{
		Contract: ContractReputation,
		Method:   "getFeedbackCount",
		Params:   []any{agentID},
	}, "uint256")
	if err != nil {
		return 0, err
	}
	return uintValue(values[0]), nil
}

// FeedbackSummary mirrors ReputationRegistry.getSummary.
type FeedbackSummary struct {
	Total    uint64
	Active   uint64
	Revoked  uint64
	Positive uint64
	Neutral  uint64
	Negative uint64
}

// GetFeedbackSummary calls ReputationRegistry.getSummary(uint256 agentId).
func (c *Client) GetFeedbackSummary(ctx context.Context, agentID uint64) (FeedbackSummary, error) {
	values, err := c.callAndUnpack(ctx, Invocation{
		Contract: ContractReputation,
		Method:   "getSummary",
		Params:   []any{agentID},
	}, "uint256", "uint256", "uint256", "uint256", "uint256", "uint256")
	if err != nil {
		return FeedbackSummary{}, err
	}
	return FeedbackSummary{
		Total:    uintValue(values[0]),
		Active:   uintValue(values[1]),
		Revoked:  uintValue(values[2]),
		Positive: uintValue(values[3]),
		Neutral:  uintValue(values[4]),
		Negative: uintValue(values[5]),
	}, nil
}

// callAndUnpack runs a constant call and ABI-decodes its first result
// block into the given types.
func (c *Client) callAndUnpack(ctx context.Context, inv Invocation, typeNames ...string) ([]any, error) {
	raw, err := c.Call(ctx, inv)
	if err != nil {
		return nil, err
	}

	var resp triggerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errdefs.NewContract("malformed constant call response", err)
	}
	if len(resp.ConstantResult) == 0 {
		return nil, errdefs.NewContract(fmt.Sprintf("constant call %s returned no result", inv.Method), nil)
	}

	data, err := hex.DecodeString(strings.TrimPrefix(resp.ConstantResult[0], "0x"))
	if err != nil {
		return nil, errdefs.NewContract("constant result is not valid hex", err)
	}

	args := make(abi.Arguments, 0, len(typeNames))
	for _, name := range typeNames {
		abiType, err := abi.NewType(name, "", nil)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve ABI type %s: %w", name, err)
		}
		args = append(args, abi.Argument{Type: abiType})
	}

	values, err := args.Unpack(data)
	if err != nil {
		return nil, errdefs.NewContract(fmt.Sprintf("failed to decode %s result", inv.Method), err)
	}
	return values, nil
}

func uintValue(v any) uint64 {
	if n, ok := v.(*big.Int); ok {
		return n.Uint64()
	}
	return 0
}

func addressValue(v any) (Address, error) {
	account, ok := v.(common.Address)
	if !ok {
		return "", errdefs.NewContract(fmt.Sprintf("expected address result, got %T", v), nil)
	}
	var b [20]byte
	copy(b[:], account.Bytes())
	return EncodeAddress(b), nil
}
