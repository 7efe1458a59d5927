package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/trc8004/m2m-go/pkg/errdefs"
	"github.com/trc8004/m2m-go/pkg/models"
	"github.com/trc8004/m2m-go/pkg/retry"
)

var fastPolicy = retry.Policy{
	MaxAttempts:     3,
	BaseDelay:       time.Millisecond,
	MaxDelay:        5 * time.Millisecond,
	ExponentialBase: 2.0,
}

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: baseURL, RetryPolicy: fastPolicy}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}, nil); errdefs.CodeOf(err) != errdefs.CodeConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestGetAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agents/42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("expected request ID header")
		}
		fmt.Fprint(w, `{"agent_id":42,"owner_address":"TOwner","name":"translator",
			"description":"en<->fr","version":"1.2.0","token_uri":"ipfs://QmMeta",
			"verified":true,"active":true,"registered_at":"2026-01-15T10:00:00Z"}`)
	}))
	defer server.Close()

	agent, err := testClient(t, server.URL).GetAgent(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if agent.AgentID != 42 || agent.Name != "translator" || !agent.Verified {
		t.Fatalf("unexpected agent: %+v", agent)
	}
}

func TestGetAgentNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := testClient(t, server.URL).GetAgent(context.Background(), 7)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "agent 7 not found") {
		t.Fatalf("expected shaped not-found message, got %v", err)
	}
	if errdefs.CodeOf(err) != errdefs.CodeNetwork {
		t.Fatalf("expected network error code, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("404 must not retry, saw %d attempts", calls.Load())
	}
}

func TestGetAgentRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"agent_id":7,"owner_address":"T","name":"a","description":"d",
			"version":"1","token_uri":"u","registered_at":"2026-01-15T10:00:00Z"}`)
	}))
	defer server.Close()

	agent, err := testClient(t, server.URL).GetAgent(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if agent.AgentID != 7 || calls.Load() != 3 {
		t.Fatalf("expected recovery on attempt 3, got agent %+v after %d calls", agent, calls.Load())
	}
}

func TestRetriedAttemptsCarryDistinctRequestIDs(t *testing.T) {
	var ids []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, r.Header.Get("X-Request-ID"))
		if len(ids) < 3 {
			http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"total_agents":1}`)
	}))
	defer server.Close()

	if _, err := testClient(t, server.URL).GetStats(context.Background()); err != nil {
		t.Fatalf("GetStats: %v", err)
	}

	if len(ids) != 3 {
		t.Fatalf("expected 3 attempts, saw %d", len(ids))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		if id == "" {
			t.Fatal("attempt missing request ID")
		}
		if seen[id] {
			t.Fatalf("request ID %s reused across attempts", id)
		}
		seen[id] = true
	}
}

func TestSearchAgents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("query") != "translation" || q.Get("verified_only") != "true" {
			t.Errorf("unexpected query: %v", q)
		}
		if got := q["skills"]; len(got) != 2 || got[0] != "en" || got[1] != "fr" {
			t.Errorf("unexpected skills: %v", got)
		}
		if q.Get("min_feedback_positive") != "5" {
			t.Errorf("unexpected min_feedback_positive: %s", q.Get("min_feedback_positive"))
		}
		if q.Get("limit") != "20" {
			t.Errorf("expected default limit 20, got %s", q.Get("limit"))
		}
		fmt.Fprint(w, `{"total":1,"offset":0,"limit":20,"agents":[
			{"agent_id":1,"owner_address":"T","name":"a","description":"d",
			 "version":"1","token_uri":"u","registered_at":"2026-01-15T10:00:00Z"}]}`)
	}))
	defer server.Close()

	min := 5
	result, err := testClient(t, server.URL).SearchAgents(context.Background(), models.SearchFilter{
		Query:               "translation",
		Skills:              []string{"en", "fr"},
		MinFeedbackPositive: &min,
		VerifiedOnly:        true,
	})
	if err != nil {
		t.Fatalf("SearchAgents: %v", err)
	}
	if result.Total != 1 || len(result.Agents) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestUploadToIPFS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage/upload" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		fmt.Fprint(w, `{"uri":"ipfs://QmUploaded","cid":"QmUploaded"}`)
	}))
	defer server.Close()

	uri, err := testClient(t, server.URL).UploadToIPFS(context.Background(), map[string]any{"name": "a"})
	if err != nil {
		t.Fatalf("UploadToIPFS: %v", err)
	}
	if uri != "ipfs://QmUploaded" {
		t.Fatalf("unexpected uri %s", uri)
	}
}

func TestUploadToIPFSMissingURI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	_, err := testClient(t, server.URL).UploadToIPFS(context.Background(), map[string]any{})
	if errdefs.CodeOf(err) != errdefs.CodeStorage {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestAuthHeaderAndRejection(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer sekret" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	c, err := NewClient(Config{BaseURL: server.URL, APIKey: "sekret", RetryPolicy: fastPolicy}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.GetStats(context.Background())
	if errdefs.CodeOf(err) != errdefs.CodeAuthentication {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("auth rejection must not retry, saw %d attempts", calls.Load())
	}
}

func TestGetValidationsAndReputation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/validations/"):
			if r.URL.Query().Get("limit") != "10" {
				t.Errorf("unexpected limit %s", r.URL.Query().Get("limit"))
			}
			fmt.Fprint(w, `[{"request_id":"0xabc","requester_address":"TReq",
				"validator_address":"TVal","agent_id":7,"status":"pending"}]`)
		case strings.HasPrefix(r.URL.Path, "/reputation/"):
			fmt.Fprint(w, `{"agent_id":7,"total_feedback":10,"feedback_positive":8,
				"feedback_neutral":1,"feedback_negative":1,"positive_ratio":0.8}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	validations, err := c.GetValidations(context.Background(), 7, 10)
	if err != nil || len(validations) != 1 || validations[0].Status != "pending" {
		t.Fatalf("GetValidations = %+v, %v", validations, err)
	}

	stats, err := c.GetReputation(context.Background(), 7)
	if err != nil || stats.FeedbackPositive != 8 {
		t.Fatalf("GetReputation = %+v, %v", stats, err)
	}
}

func TestRateLimiterThrottles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total_agents":1}`)
	}))
	defer server.Close()

	c, err := NewClient(Config{
		BaseURL:           server.URL,
		RequestsPerSecond: 50,
		RetryPolicy:       fastPolicy,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.GetStats(context.Background()); err != nil {
			t.Fatalf("GetStats: %v", err)
		}
	}
	// Burst 1 at 50 rps means the third call waits at least ~40ms total.
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("expected limiter to pace requests, finished in %v", elapsed)
	}
}
