package chain

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/trc8004/m2m-go/pkg/errdefs"
	"github.com/trc8004/m2m-go/pkg/retry"
)

// NetworkURLs maps network names to their full-node HTTP API endpoints.
var NetworkURLs = map[string]string{
	"mainnet": "https://api.trongrid.io",
	"shasta":  "https://api.shasta.trongrid.io",
	"nile":    "https://nile.trongrid.io",
}

// defaultFeeLimit is the per-transaction energy budget in sun.
const defaultFeeLimit = 100_000_000

// Config holds configuration for the chain client.
type Config struct {
	// Network selects a known node endpoint ("mainnet", "shasta", "nile").
	Network string

	// RPCURL overrides the network endpoint when set.
	RPCURL string

	// PrivateKey is the hex secp256k1 key for write operations. Read-only
	// clients may leave it empty.
	PrivateKey string

	// Contract addresses, base58.
	IdentityAddress   Address
	ValidationAddress Address
	ReputationAddress Address

	// FeeLimit caps transaction fees in sun. Zero means the default.
	FeeLimit int64

	// Timeout is the per-request transport timeout.
	// If zero, defaults to 30 seconds.
	Timeout time.Duration

	// RetryPolicy governs submission and call attempts.
	// Zero value means retry.DefaultPolicy.
	RetryPolicy retry.Policy
}

// Client submits shaped invocations to the TRON full-node HTTP API.
type Client struct {
	baseURL    string
	key        *ecdsa.PrivateKey
	owner      Address
	addresses  map[ContractName]Address
	feeLimit   int64
	httpClient *http.Client
	policy     retry.Policy
	logger     *zap.Logger
}

// NewClient creates a chain client for the configured network.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL := cfg.RPCURL
	if baseURL == "" {
		baseURL = NetworkURLs[cfg.Network]
	}
	if baseURL == "" {
		return nil, errdefs.NewConfiguration(fmt.Sprintf("unknown network: %s", cfg.Network))
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	feeLimit := cfg.FeeLimit
	if feeLimit == 0 {
		feeLimit = defaultFeeLimit
	}
	policy := cfg.RetryPolicy
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		addresses: map[ContractName]Address{
			ContractIdentity:   cfg.IdentityAddress,
			ContractValidation: cfg.ValidationAddress,
			ContractReputation: cfg.ReputationAddress,
		},
		feeLimit:   feeLimit,
		httpClient: &http.Client{Timeout: timeout},
		policy:     policy,
		logger:     logger,
	}

	if cfg.PrivateKey != "" {
		key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, errdefs.NewConfiguration(fmt.Sprintf("invalid private key: %v", err))
		}
		c.key = key
		account := ethcrypto.PubkeyToAddress(key.PublicKey)
		var b [20]byte
		copy(b[:], account.Bytes())
		c.owner = EncodeAddress(b)
	}

	logger.Info("chain client initialized",
		zap.String("endpoint", c.baseURL),
		zap.Bool("signing", c.key != nil))

	return c, nil
}

// Owner returns the signing address, empty for read-only clients.
func (c *Client) Owner() Address {
	return c.owner
}

func (c *Client) contractAddress(name ContractName) (Address, error) {
	addr := c.addresses[name]
	if addr == "" {
		return "", errdefs.NewConfiguration(fmt.Sprintf("no address configured for %s contract", name))
	}
	return addr, nil
}

// triggerResponse is the node's reply to trigger endpoints.
type triggerResponse struct {
	Result struct {
		Result  bool   `json:"result"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"result"`
	Transaction    json.RawMessage `json:"transaction"`
	ConstantResult []string        `json:"constant_result"`
}

// Submit builds, signs, and broadcasts a contract call transaction.
// Transport failures are retried under the client's policy; node
// rejections surface as fatal contract errors.
func (c *Client) Submit(ctx context.Context, inv Invocation) (string, error) {
	if c.key == nil {
		return "", errdefs.NewConfiguration("private key required for write operations")
	}

	address, err := c.contractAddress(inv.Contract)
	if err != nil {
		return "", err
	}

	selector, parameter, err := encodeInvocation(inv)
	if err != nil {
		return "", err
	}

	txID, err := retry.Do(ctx, c.policy, c.logger, string(inv.Contract)+"."+inv.Method, func(ctx context.Context) (string, error) {
		return c.submitOnce(ctx, address, selector, parameter)
	})
	if err != nil {
		return "", err
	}

	c.logger.Info("transaction broadcast",
		zap.String("contract", string(inv.Contract)),
		zap.String("method", inv.Method),
		zap.String("txid", txID))

	return txID, nil
}

func (c *Client) submitOnce(ctx context.Context, address Address, selector, parameter string) (string, error) {
	built, err := c.post(ctx, "/wallet/triggersmartcontract", map[string]any{
		"owner_address":     string(c.owner),
		"contract_address":  string(address),
		"function_selector": selector,
		"parameter":         parameter,
		"fee_limit":         c.feeLimit,
		"visible":           true,
	})
	if err != nil {
		return "", err
	}

	var trig triggerResponse
	if err := json.Unmarshal(built, &trig); err != nil {
		return "", errdefs.NewContract("malformed trigger response", err)
	}
	if !trig.Result.Result {
		return "", errdefs.NewContract(
			fmt.Sprintf("transaction build rejected: %s %s", trig.Result.Code, decodeNodeMessage(trig.Result.Message)), nil)
	}

	var tx map[string]any
	if err := json.Unmarshal(trig.Transaction, &tx); err != nil {
		return "", errdefs.NewContract("malformed transaction payload", err)
	}
	txID, _ := tx["txID"].(string)
	if txID == "" {
		return "", errdefs.NewContract("transaction payload missing txID", nil)
	}

	digest, err := hex.DecodeString(txID)
	if err != nil || len(digest) != 32 {
		return "", errdefs.NewContract("transaction ID is not a 32-byte hex digest", err)
	}
	signature, err := ethcrypto.Sign(digest, c.key)
	if err != nil {
		return "", errdefs.NewAuthentication(fmt.Sprintf("failed to sign transaction: %v", err))
	}
	tx["signature"] = []string{hex.EncodeToString(signature)}

	broadcast, err := c.post(ctx, "/wallet/broadcasttransaction", tx)
	if err != nil {
		return "", err
	}

	var result struct {
		Result  bool   `json:"result"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(broadcast, &result); err != nil {
		return "", errdefs.NewContract("malformed broadcast response", err)
	}
	if !result.Result {
		return "", errdefs.NewContract(
			fmt.Sprintf("broadcast rejected: %s %s", result.Code, decodeNodeMessage(result.Message)), nil)
	}

	return txID, nil
}

// Call executes a view/pure contract function without gas and returns the
// raw node response.
func (c *Client) Call(ctx context.Context, inv Invocation) (json.RawMessage, error) {
	address, err := c.contractAddress(inv.Contract)
	if err != nil {
		return nil, err
	}

	selector, parameter, err := encodeInvocation(inv)
	if err != nil {
		return nil, err
	}

	owner := string(c.owner)
	if owner == "" {
		// The constant endpoint requires some caller identity.
		owner = string(EncodeAddress([20]byte{}))
	}

	return retry.Do(ctx, c.policy, c.logger, string(inv.Contract)+"."+inv.Method, func(ctx context.Context) (json.RawMessage, error) {
		return c.post(ctx, "/wallet/triggerconstantcontract", map[string]any{
			"owner_address":     owner,
			"contract_address":  string(address),
			"function_selector": selector,
			"parameter":         parameter,
			"visible":           true,
		})
	})
}

func (c *Client) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errdefs.NewNetwork(fmt.Sprintf("node request %s failed", path), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errdefs.NewNetwork("failed to read node response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errdefs.NewNetwork(
			fmt.Sprintf("node request %s failed with status %d: %s", path, resp.StatusCode, string(data)), nil)
	}

	return json.RawMessage(data), nil
}

// decodeNodeMessage turns the node's hex-encoded failure message into
// readable text.
func decodeNodeMessage(msg string) string {
	if decoded, err := hex.DecodeString(msg); err == nil && len(decoded) > 0 {
		return string(decoded)
	}
	return msg
}

// encodeInvocation derives the ABI function selector and hex-encoded
// parameter block from a shaped invocation.
func encodeInvocation(inv Invocation) (string, string, error) {
	types := make([]string, 0, len(inv.Params))
	args := make(abi.Arguments, 0, len(inv.Params))
	values := make([]any, 0, len(inv.Params))

	for _, param := range inv.Params {
		typeName, value, err := abiValue(param)
		if err != nil {
			return "", "", err
		}
		abiType, err := abi.NewType(typeName, "", nil)
		if err != nil {
			return "", "", fmt.Errorf("failed to resolve ABI type %s: %w", typeName, err)
		}
		types = append(types, typeName)
		args = append(args, abi.Argument{Type: abiType})
		values = append(values, value)
	}

	packed, err := args.Pack(values...)
	if err != nil {
		return "", "", errdefs.NewValidation(fmt.Sprintf("failed to encode %s parameters", inv.Method), err.Error())
	}

	selector := inv.Method + "(" + strings.Join(types, ",") + ")"
	return selector, hex.EncodeToString(packed), nil
}

// abiValue maps a shaped parameter to its ABI type and packable value.
func abiValue(param any) (string, any, error) {
	switch v := param.(type) {
	case uint64:
		return "uint256", new(big.Int).SetUint64(v), nil
	case *big.Int:
		if v == nil {
			v = new(big.Int)
		}
		return "uint256", v, nil
	case Sentiment:
		return "uint8", uint8(v), nil
	case uint8:
		return "uint8", v, nil
	case uint16:
		return "uint16", v, nil
	case bool:
		return "bool", v, nil
	case string:
		return "string", v, nil
	case [32]byte:
		return "bytes32", v, nil
	case Address:
		account, err := v.EthAddress()
		if err != nil {
			return "", nil, err
		}
		return "address", account, nil
	default:
		return "", nil, errdefs.NewValidation(fmt.Sprintf("unsupported parameter type %T", param), nil)
	}
}
