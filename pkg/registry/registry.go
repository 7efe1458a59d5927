// Package registry is the SDK entry point. It fronts three systems with
// one interface: TRON contracts for writes, the backend API for fast
// reads, and IPFS for metadata content. The chain stays the source of
// truth; the backend is a cache.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/trc8004/m2m-go/pkg/api"
	"github.com/trc8004/m2m-go/pkg/chain"
	"github.com/trc8004/m2m-go/pkg/config"
	"github.com/trc8004/m2m-go/pkg/crypto"
	"github.com/trc8004/m2m-go/pkg/errdefs"
	"github.com/trc8004/m2m-go/pkg/ipfs"
	"github.com/trc8004/m2m-go/pkg/logging"
	"github.com/trc8004/m2m-go/pkg/models"
	"github.com/trc8004/m2m-go/pkg/retry"
)

// Registry is the unified agent registry client.
type Registry struct {
	Chain   *chain.Client
	API     *api.Client
	Storage *ipfs.Client

	logger *logging.ColoredLogger
}

// New builds a registry client from configuration. A nil logger
// discards output.
func New(cfg *config.Config, logger *logging.ColoredLogger) (*Registry, error) {
	if cfg == nil {
		return nil, errdefs.NewConfiguration("config is required")
	}
	if logger == nil {
		logger = &logging.ColoredLogger{Logger: zap.NewNop()}
	}

	policy := retry.Policy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		BaseDelay:       cfg.Retry.BaseDelay,
		MaxDelay:        cfg.Retry.MaxDelay,
		ExponentialBase: cfg.Retry.ExponentialBase,
		Jitter:          cfg.Retry.Jitter,
	}

	chainClient, err := chain.NewClient(chain.Config{
		Network:           cfg.Chain.Network,
		RPCURL:            cfg.Chain.RPCURL,
		PrivateKey:        cfg.Chain.PrivateKey,
		IdentityAddress:   chain.Address(cfg.Chain.IdentityAddress),
		ValidationAddress: chain.Address(cfg.Chain.ValidationAddress),
		ReputationAddress: chain.Address(cfg.Chain.ReputationAddress),
		FeeLimit:          cfg.Chain.FeeLimit,
		Timeout:           cfg.Chain.Timeout,
		RetryPolicy:       policy,
	}, logger.Logger)
	if err != nil {
		return nil, err
	}

	apiClient, err := api.NewClient(api.Config{
		BaseURL:           cfg.API.BaseURL,
		APIKey:            cfg.API.APIKey,
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		RetryPolicy:       policy,
	}, logger.Logger)
	if err != nil {
		return nil, err
	}

	storageClient := ipfs.NewClient(ipfs.Config{
		UploadEndpoint: cfg.Storage.UploadEndpoint,
		GatewayURL:     cfg.Storage.GatewayURL,
		Gateways:       cfg.Storage.Gateways,
		Timeout:        cfg.Storage.Timeout,
		RetryPolicy:    policy,
	}, logger.Logger)

	logger.ComponentInfo(logging.ComponentRegistry, "agent registry initialized",
		zap.String("network", cfg.Chain.Network))

	return &Registry{
		Chain:   chainClient,
		API:     apiClient,
		Storage: storageClient,
		logger:  logger,
	}, nil
}

// RegisterResult reports a completed registration.
type RegisterResult struct {
	TxID         string
	TokenURI     string
	MetadataHash string
}

// RegisterAgent registers a new agent on-chain: the metadata document is
// uploaded through the backend's pinning endpoint, its canonical hash is
// computed, and IdentityRegistry.register anchors both. The agent ID is
// minted on confirmation; resolve it with ResolveAgentID.
func (r *Registry) RegisterAgent(ctx context.Context, meta models.AgentMetadata) (*RegisterResult, error) {
	if meta.Name == "" {
		return nil, errdefs.NewValidation("agent name is required", nil)
	}
	if meta.Description == "" {
		return nil, errdefs.NewValidation("agent description is required", nil)
	}
	if meta.Version == "" {
		meta.Version = "1.0.0"
	}
	// Nil collections marshal as null; the anchored document always
	// carries empty arrays.
	if meta.Skills == nil {
		meta.Skills = []models.Skill{}
	}
	if meta.Endpoints == nil {
		meta.Endpoints = []models.Endpoint{}
	}
	if meta.Tags == nil {
		meta.Tags = []string{}
	}

	tokenURI, err := r.API.UploadToIPFS(ctx, meta)
	if err != nil {
		return nil, err
	}

	metadataHash, err := crypto.ComputeDocumentHashBytes(meta)
	if err != nil {
		return nil, err
	}

	txID, err := r.Chain.RegisterAgent(ctx, tokenURI, metadataHash)
	if err != nil {
		return nil, err
	}

	r.logger.ComponentInfo(logging.ComponentRegistry, "agent registration submitted",
		zap.String("txid", txID),
		zap.String("token_uri", tokenURI))

	return &RegisterResult{
		TxID:         txID,
		TokenURI:     tokenURI,
		MetadataHash: crypto.NormalizeHash(fmt.Sprintf("%x", metadataHash)),
	}, nil
}

// ResolveAgentID polls the transaction receipt until the registration
// confirms, then extracts the minted agent ID and asks the backend to
// index it. Sync failures are non-critical.
func (r *Registry) ResolveAgentID(ctx context.Context, txID string) (uint64, error) {
	const pollInterval = 3 * time.Second
	const maxPolls = 20

	for i := 0; i < maxPolls; i++ {
		info, err := r.Chain.GetTransactionInfo(ctx, txID)
		if err == nil {
			agentID, ok := chain.ParseAgentRegisteredEvent(info, r.logger.Logger)
			if !ok {
				return 0, errdefs.NewContract("confirmed transaction carried no AgentRegistered event", nil)
			}
			if _, err := r.API.SyncAgent(ctx, agentID); err != nil {
				r.logger.ComponentWarn(logging.ComponentRegistry, "backend sync failed",
					zap.Uint64("agent_id", agentID), zap.Error(err))
			}
			return agentID, nil
		}
		if errdefs.CodeOf(err) != errdefs.CodeContract {
			return 0, err
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	return 0, errdefs.NewContract(fmt.Sprintf("transaction %s did not confirm in time", txID), nil)
}

// SetAgentWallet delegates a wallet address for an agent. Owner only.
func (r *Registry) SetAgentWallet(ctx context.Context, agentID uint64, wallet string) (string, error) {
	addr := chain.Address(wallet)
	if _, err := addr.Bytes(); err != nil {
		return "", err
	}
	return r.Chain.SetAgentWallet(ctx, agentID, addr)
}

// SubmitValidation opens a validation request for an agent. When
// requestData is non-nil its canonical hash anchors the request; nil
// submits the zero-hash sentinel and the contract computes it.
func (r *Registry) SubmitValidation(ctx context.Context, agentID uint64, validator, requestURI string, requestData any) (string, error) {
	addr := chain.Address(validator)
	if _, err := addr.Bytes(); err != nil {
		return "", err
	}

	hash := chain.ZeroHash
	if requestData != nil {
		var err error
		hash, err = crypto.ComputeDocumentHashBytes(requestData)
		if err != nil {
			return "", err
		}
	}

	return r.Chain.ValidationRequest(ctx, agentID, addr, requestURI, hash)
}

// ValidationResult is the validator's resolution of a request. Tag and
// ResponseCode belong to the extended call layout.
type ValidationResult struct {
	RequestID  string
	ResultURI  string
	ResultData any

	Tag          string
	ResponseCode uint16
}

func (r *Registry) validationParams(v ValidationResult) (chain.ValidationResultParams, error) {
	requestID, err := chain.ParseRequestID(v.RequestID)
	if err != nil {
		return chain.ValidationResultParams{}, err
	}

	hash := chain.ZeroHash
	if v.ResultData != nil {
		hash, err = crypto.ComputeDocumentHashBytes(v.ResultData)
		if err != nil {
			return chain.ValidationResultParams{}, err
		}
	}

	return chain.ValidationResultParams{
		RequestID:    requestID,
		ResultURI:    v.ResultURI,
		ResultHash:   hash,
		Tag:          v.Tag,
		ResponseCode: v.ResponseCode,
	}, nil
}

// CompleteValidation resolves a request successfully. Validators only.
func (r *Registry) CompleteValidation(ctx context.Context, v ValidationResult) (string, error) {
	params, err := r.validationParams(v)
	if err != nil {
		return "", err
	}
	return r.Chain.CompleteValidation(ctx, params)
}

// RejectValidation resolves a request as failed. Validators only. An
// empty result URI is accepted; rejections need not carry evidence.
func (r *Registry) RejectValidation(ctx context.Context, v ValidationResult) (string, error) {
	params, err := r.validationParams(v)
	if err != nil {
		return "", err
	}
	return r.Chain.RejectValidation(ctx, params)
}

// CancelValidation withdraws a pending request. Requesters only.
func (r *Registry) CancelValidation(ctx context.Context, requestID string) (string, error) {
	id, err := chain.ParseRequestID(requestID)
	if err != nil {
		return "", err
	}
	return r.Chain.CancelValidation(ctx, id)
}

// FeedbackInput is the caller's feedback submission. Everything past
// Sentiment belongs to the extended call layout; FeedbackData, when
// non-nil, is hashed canonically into the feedback hash field.
type FeedbackInput struct {
	AgentID   uint64
	Text      string
	Sentiment string

	Value         *big.Int
	ValueDecimals uint8
	Tag1          string
	Tag2          string
	Endpoint      string
	FeedbackURI   string
	FeedbackData  any
}

// GiveFeedback submits sentiment feedback for an agent.
func (r *Registry) GiveFeedback(ctx context.Context, in FeedbackInput) (string, error) {
	sentiment, err := chain.ParseSentiment(in.Sentiment)
	if err != nil {
		return "", err
	}

	hash := chain.ZeroHash
	if in.FeedbackData != nil {
		hash, err = crypto.ComputeDocumentHashBytes(in.FeedbackData)
		if err != nil {
			return "", err
		}
	}

	return r.Chain.GiveFeedback(ctx, chain.FeedbackParams{
		AgentID:       in.AgentID,
		Text:          in.Text,
		Sentiment:     sentiment,
		Value:         in.Value,
		ValueDecimals: in.ValueDecimals,
		Tag1:          in.Tag1,
		Tag2:          in.Tag2,
		Endpoint:      in.Endpoint,
		FeedbackURI:   in.FeedbackURI,
		FeedbackHash:  hash,
	})
}

// RevokeFeedback withdraws previously submitted feedback. Authors only.
func (r *Registry) RevokeFeedback(ctx context.Context, agentID, feedbackIndex uint64) (string, error) {
	return r.Chain.RevokeFeedback(ctx, agentID, feedbackIndex)
}

// ResponseInput is an agent owner's reply to feedback. ClientAddress,
// ResponseURI and ResponseData belong to the extended call layout.
type ResponseInput struct {
	AgentID       uint64
	FeedbackIndex uint64
	Text          string

	ClientAddress string
	ResponseURI   string
	ResponseData  any
}

// RespondToFeedback appends an owner response to a feedback thread.
func (r *Registry) RespondToFeedback(ctx context.Context, in ResponseInput) (string, error) {
	if in.ClientAddress != "" {
		if _, err := chain.Address(in.ClientAddress).Bytes(); err != nil {
			return "", err
		}
	}

	hash := chain.ZeroHash
	if in.ResponseData != nil {
		var err error
		hash, err = crypto.ComputeDocumentHashBytes(in.ResponseData)
		if err != nil {
			return "", err
		}
	}

	return r.Chain.AppendResponse(ctx, chain.ResponseParams{
		AgentID:       in.AgentID,
		FeedbackIndex: in.FeedbackIndex,
		Text:          in.Text,
		ClientAddress: chain.Address(in.ClientAddress),
		ResponseURI:   in.ResponseURI,
		ResponseHash:  hash,
	})
}

// GetAgent returns an agent profile from the backend cache.
func (r *Registry) GetAgent(ctx context.Context, agentID uint64) (*models.Agent, error) {
	return r.API.GetAgent(ctx, agentID)
}

// SearchAgents queries the backend with filters.
func (r *Registry) SearchAgents(ctx context.Context, filter models.SearchFilter) (*models.SearchResult, error) {
	return r.API.SearchAgents(ctx, filter)
}

// GetAgentReputation returns the backend's sentiment breakdown.
func (r *Registry) GetAgentReputation(ctx context.Context, agentID uint64) (*models.ReputationStats, error) {
	return r.API.GetReputation(ctx, agentID)
}

// GetAgentValidations returns the backend's validation history.
func (r *Registry) GetAgentValidations(ctx context.Context, agentID uint64) ([]models.Validation, error) {
	return r.API.GetValidations(ctx, agentID, 0)
}

// GetStats returns global registry counters.
func (r *Registry) GetStats(ctx context.Context) (*models.RegistryStats, error) {
	return r.API.GetStats(ctx)
}

// VerifyAgentExists checks existence on-chain, bypassing the cache.
func (r *Registry) VerifyAgentExists(ctx context.Context, agentID uint64) (bool, error) {
	return r.Chain.AgentExists(ctx, agentID)
}

// VerifyOwnership returns the on-chain owner address, bypassing the cache.
func (r *Registry) VerifyOwnership(ctx context.Context, agentID uint64) (string, error) {
	owner, err := r.Chain.OwnerOf(ctx, agentID)
	return string(owner), err
}

// VerifyContent loads a document by URI and checks its hash against an
// expected digest. The stored bytes are hashed as-is, and JSON content
// is additionally canonicalized and re-hashed; either digest matching
// verifies, so documents anchored before canonicalization and documents
// reformatted in storage both pass.
func (r *Registry) VerifyContent(ctx context.Context, uri, expectedHash string) (bool, error) {
	data, err := r.Storage.Load(ctx, uri)
	if err != nil {
		return false, err
	}

	want := crypto.NormalizeHash(expectedHash)
	if crypto.NormalizeHash(crypto.Keccak256Hex(data)) == want {
		return true, nil
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, nil
	}
	digest, err := crypto.ComputeDocumentHash(doc)
	if err != nil {
		return false, err
	}
	return crypto.NormalizeHash(digest) == want, nil
}
