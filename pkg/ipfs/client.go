// Package ipfs stores and loads registry documents on the content
// network. Fetches go through an ordered list of equivalent public
// gateways with per-gateway retries; uploads go to a configured pinning
// endpoint.
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trc8004/m2m-go/pkg/errdefs"
	"github.com/trc8004/m2m-go/pkg/retry"
)

// URIPrefix is the content-network URI scheme.
const URIPrefix = "ipfs://"

// EnvGatewayURL names the environment variable that overrides the
// preferred gateway base URL.
const EnvGatewayURL = "IPFS_GATEWAY_URL"

// DefaultGateways are equivalent public gateways, tried in order.
var DefaultGateways = []string{
	"https://ipfs.io/ipfs",
	"https://gateway.pinata.cloud/ipfs",
	"https://cloudflare-ipfs.com/ipfs",
}

// Config holds configuration for the IPFS client
type Config struct {
	// UploadEndpoint is the pinning API endpoint for uploads. If empty,
	// uploads fail and callers should upload through the backend API.
	UploadEndpoint string

	// GatewayURL is the preferred fetch gateway. If empty, the
	// IPFS_GATEWAY_URL environment variable is consulted, then the first
	// default gateway.
	GatewayURL string

	// Gateways replaces the whole gateway list, in order. When set,
	// GatewayURL and the defaults are ignored.
	Gateways []string

	// Timeout is the per-request transport timeout.
	// If zero, defaults to 30 seconds.
	Timeout time.Duration

	// RetryPolicy governs per-gateway fetch attempts.
	// Zero value means retry.DefaultPolicy.
	RetryPolicy retry.Policy
}

// Client talks to the content network.
type Client struct {
	uploadEndpoint string
	gateways       []string
	httpClient     *http.Client
	policy         retry.Policy
	logger         *zap.Logger
}

// uploadResponse is the pinning endpoint's reply.
type uploadResponse struct {
	Hash string `json:"hash"`
	Cid  string `json:"cid"`
}

// NewClient creates a new content network client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	policy := cfg.RetryPolicy
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy
	}

	gateways := cfg.Gateways
	if len(gateways) == 0 {
		preferred := cfg.GatewayURL
		if preferred == "" {
			preferred = os.Getenv(EnvGatewayURL)
		}
		if preferred == "" {
			preferred = DefaultGateways[0]
		}

		// Preferred gateway first, then the defaults minus duplicates.
		gateways = []string{preferred}
		for _, gw := range DefaultGateways {
			if gw != preferred {
				gateways = append(gateways, gw)
			}
		}
	}

	return &Client{
		uploadEndpoint: cfg.UploadEndpoint,
		gateways:       gateways,
		httpClient:     &http.Client{Timeout: timeout},
		policy:         policy,
		logger:         logger,
	}
}

// Gateways returns the resolved gateway order.
func (c *Client) Gateways() []string {
	out := make([]string, len(c.gateways))
	copy(out, c.gateways)
	return out
}

// Upload pins v as JSON on the content network and returns its URI and CID.
func (c *Client) Upload(ctx context.Context, v any) (string, string, error) {
	if c.uploadEndpoint == "" {
		return "", "", errdefs.NewStorage(
			"no IPFS upload endpoint configured, use the API client's UploadToIPFS instead", nil)
	}

	body, err := json.Marshal(v)
	if err != nil {
		return "", "", errdefs.NewValidation("upload payload is not JSON-representable", err.Error())
	}

	result, err := retry.Do(ctx, c.policy, c.logger, "ipfs_upload", func(ctx context.Context) (*uploadResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadEndpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create upload request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, errdefs.NewNetwork("upload request failed", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return nil, errdefs.NewNetwork(
				fmt.Sprintf("upload failed with status %d: %s", resp.StatusCode, string(respBody)), nil)
		}

		var out uploadResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("failed to decode upload response: %w", err)
		}
		return &out, nil
	})
	if err != nil {
		return "", "", errdefs.NewStorage("IPFS upload failed", err)
	}

	cid := result.Hash
	if cid == "" {
		cid = result.Cid
	}
	if cid == "" {
		return "", "", errdefs.NewStorage("no IPFS hash in upload response", nil)
	}

	c.logger.Debug("uploaded to IPFS", zap.String("cid", cid))
	return FormatURI(cid), cid, nil
}

// FormatURI formats a CID as a content-network URI.
func FormatURI(cid string) string {
	return URIPrefix + cid
}

// ExtractCID extracts the CID from a content-network URI. Bare CIDs pass
// through unchanged; inverse of FormatURI for well-formed input.
func ExtractCID(uri string) string {
	return strings.TrimPrefix(uri, URIPrefix)
}
