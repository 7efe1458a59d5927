// Package api is the HTTP client for the registry backend, which serves
// indexed blockchain data for fast queries. All reads here are cached
// views; the chain remains the source of truth.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/trc8004/m2m-go/pkg/errdefs"
	"github.com/trc8004/m2m-go/pkg/models"
	"github.com/trc8004/m2m-go/pkg/retry"
)

// Config holds configuration for the backend API client.
type Config struct {
	// BaseURL is the backend root, e.g. https://api.registry.example.
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout is the per-request transport timeout.
	// If zero, defaults to 30 seconds.
	Timeout time.Duration

	// RequestsPerSecond throttles outgoing requests. Zero disables
	// throttling.
	RequestsPerSecond float64

	// RetryPolicy governs request attempts.
	// Zero value means retry.DefaultPolicy.
	RetryPolicy retry.Policy
}

// Client queries the registry backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	policy     retry.Policy
	logger     *zap.Logger
}

// NewClient creates a backend API client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		return nil, errdefs.NewConfiguration("backend API base URL is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	policy := cfg.RetryPolicy
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	logger.Info("backend API client initialized", zap.String("base_url", cfg.BaseURL))

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		policy:     policy,
		logger:     logger,
	}, nil
}

// GetAgent fetches a single agent profile by ID.
func (c *Client) GetAgent(ctx context.Context, agentID uint64) (*models.Agent, error) {
	agent, err := retry.Do(ctx, c.policy, c.logger, "api.get_agent", func(ctx context.Context) (*models.Agent, error) {
		var agent models.Agent
		if err := c.get(ctx, fmt.Sprintf("/agents/%d", agentID), nil, &agent); err != nil {
			return nil, err
		}
		return &agent, nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil, errdefs.NewNetwork(fmt.Sprintf("agent %d not found", agentID), err)
	}
	return agent, err
}

// SearchAgents queries agents with the given filters.
func (c *Client) SearchAgents(ctx context.Context, filter models.SearchFilter) (*models.SearchResult, error) {
	query := url.Values{}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(filter.Offset))
	if filter.Query != "" {
		query.Set("query", filter.Query)
	}
	for _, skill := range filter.Skills {
		query.Add("skills", skill)
	}
	for _, tag := range filter.Tags {
		query.Add("tags", tag)
	}
	if filter.MinFeedbackPositive != nil {
		query.Set("min_feedback_positive", strconv.Itoa(*filter.MinFeedbackPositive))
	}
	if filter.VerifiedOnly {
		query.Set("verified_only", "true")
	}

	return retry.Do(ctx, c.policy, c.logger, "api.search_agents", func(ctx context.Context) (*models.SearchResult, error) {
		var result models.SearchResult
		if err := c.get(ctx, "/agents", query, &result); err != nil {
			return nil, err
		}
		return &result, nil
	})
}

// SyncAgent asks the backend to re-index an agent from the chain.
func (c *Client) SyncAgent(ctx context.Context, agentID uint64) (map[string]any, error) {
	return retry.Do(ctx, c.policy, c.logger, "api.sync_agent", func(ctx context.Context) (map[string]any, error) {
		var status map[string]any
		if err := c.post(ctx, fmt.Sprintf("/agents/%d/sync", agentID), nil, &status); err != nil {
			return nil, err
		}
		return status, nil
	})
}

// GetReputation fetches the sentiment breakdown for an agent.
func (c *Client) GetReputation(ctx context.Context, agentID uint64) (*models.ReputationStats, error) {
	return retry.Do(ctx, c.policy, c.logger, "api.get_reputation", func(ctx context.Context) (*models.ReputationStats, error) {
		var stats models.ReputationStats
		if err := c.get(ctx, fmt.Sprintf("/reputation/%d", agentID), nil, &stats); err != nil {
			return nil, err
		}
		return &stats, nil
	})
}

// GetValidations fetches validation history for an agent.
func (c *Client) GetValidations(ctx context.Context, agentID uint64, limit int) ([]models.Validation, error) {
	if limit <= 0 {
		limit = 50
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	return retry.Do(ctx, c.policy, c.logger, "api.get_validations", func(ctx context.Context) ([]models.Validation, error) {
		var validations []models.Validation
		if err := c.get(ctx, fmt.Sprintf("/validations/%d", agentID), query, &validations); err != nil {
			return nil, err
		}
		return validations, nil
	})
}

// UploadToIPFS stores a metadata document through the backend's pinning
// endpoint and returns the resulting ipfs:// URI.
func (c *Client) UploadToIPFS(ctx context.Context, data any) (string, error) {
	return retry.Do(ctx, c.policy, c.logger, "api.upload_metadata", func(ctx context.Context) (string, error) {
		var result struct {
			URI string `json:"uri"`
		}
		if err := c.post(ctx, "/storage/upload", map[string]any{"data": data}, &result); err != nil {
			return "", err
		}
		if result.URI == "" {
			return "", errdefs.NewStorage("upload response carried no URI", nil)
		}
		return result.URI, nil
	})
}

// GetStats fetches global registry counters.
func (c *Client) GetStats(ctx context.Context) (*models.RegistryStats, error) {
	return retry.Do(ctx, c.policy, c.logger, "api.get_stats", func(ctx context.Context) (*models.RegistryStats, error) {
		var stats models.RegistryStats
		if err := c.get(ctx, "/stats", nil, &stats); err != nil {
			return nil, err
		}
		return &stats, nil
	})
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return err
		}
	}

	// Each attempt carries its own request ID, so retried attempts show
	// up as distinct requests in backend traces.
	req.Header.Set("X-Request-ID", uuid.NewString())
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errdefs.NewNetwork(fmt.Sprintf("backend request %s failed", req.URL.Path), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errdefs.NewNetwork("failed to read backend response", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("resource %s %w", req.URL.Path, ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errdefs.NewAuthentication(fmt.Sprintf("backend rejected credentials with status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return errdefs.NewNetwork(
			fmt.Sprintf("backend request %s failed with status %d: %s", req.URL.Path, resp.StatusCode, string(data)), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errdefs.NewNetwork("malformed backend response", err)
	}
	return nil
}

// ErrNotFound marks 404 responses. It never triggers a retry; callers
// shape their own message around it.
var ErrNotFound = errors.New("not found")
