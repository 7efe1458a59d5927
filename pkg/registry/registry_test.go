package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trc8004/m2m-go/pkg/chain"
	"github.com/trc8004/m2m-go/pkg/config"
	"github.com/trc8004/m2m-go/pkg/crypto"
	"github.com/trc8004/m2m-go/pkg/errdefs"
	"github.com/trc8004/m2m-go/pkg/models"
)

const testPrivateKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

// testBackend fakes the registry backend and the TRON node together.
type testBackend struct {
	t *testing.T

	txID      string
	uploaded  []map[string]any
	selectors []string
	synced    []string
}

func (b *testBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/storage/upload":
			var req map[string]any
			json.NewDecoder(r.Body).Decode(&req)
			if data, ok := req["data"].(map[string]any); ok {
				b.uploaded = append(b.uploaded, data)
			}
			fmt.Fprint(w, `{"uri":"ipfs://QmMetadata","cid":"QmMetadata"}`)

		case strings.HasSuffix(r.URL.Path, "/sync"):
			b.synced = append(b.synced, r.URL.Path)
			fmt.Fprint(w, `{"status":"queued"}`)

		case r.URL.Path == "/agents/42":
			fmt.Fprint(w, `{"agent_id":42,"owner_address":"TOwner","name":"oracle",
				"description":"d","version":"1","token_uri":"ipfs://QmMetadata",
				"active":true,"registered_at":"2026-02-01T00:00:00Z"}`)

		case r.URL.Path == "/wallet/triggersmartcontract":
			var req map[string]any
			json.NewDecoder(r.Body).Decode(&req)
			b.selectors = append(b.selectors, req["function_selector"].(string))
			fmt.Fprintf(w, `{"result":{"result":true},"transaction":{"txID":"%s","raw_data":{}}}`, b.txID)

		case r.URL.Path == "/wallet/broadcasttransaction":
			fmt.Fprint(w, `{"result":true}`)

		case r.URL.Path == "/wallet/gettransactioninfobyid":
			fmt.Fprintf(w, `{"id":"%s","blockNumber":100,"log":[
				{"topics":["%s","%s"],"data":""}]}`,
				b.txID, strings.Repeat("ee", 32), fmt.Sprintf("%064x", 42))

		default:
			b.t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})
}

func newTestRegistry(t *testing.T) (*Registry, *testBackend) {
	t.Helper()

	backend := &testBackend{t: t, txID: strings.Repeat("ab", 32)}
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig("nile")
	cfg.Chain.RPCURL = server.URL
	cfg.Chain.PrivateKey = testPrivateKey
	cfg.Chain.IdentityAddress = string(chain.EncodeAddress([20]byte{1}))
	cfg.Chain.ValidationAddress = string(chain.EncodeAddress([20]byte{2}))
	cfg.Chain.ReputationAddress = string(chain.EncodeAddress([20]byte{3}))
	cfg.API.BaseURL = server.URL
	cfg.Retry.MaxAttempts = 2
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = 2 * time.Millisecond
	cfg.Retry.Jitter = false

	reg, err := New(cfg, nil)
	require.NoError(t, err)
	return reg, backend
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil, nil)
	assert.Equal(t, errdefs.CodeConfiguration, errdefs.CodeOf(err))
}

func TestRegisterAgent(t *testing.T) {
	reg, backend := newTestRegistry(t)

	meta := models.AgentMetadata{
		Name:        "oracle",
		Description: "price oracle agent",
		Skills:      []models.Skill{{SkillID: "px", SkillName: "pricing", Description: "spot prices"}},
		Endpoints:   []models.Endpoint{},
		Tags:        []string{"oracle", "defi"},
	}

	result, err := reg.RegisterAgent(context.Background(), meta)
	require.NoError(t, err)
	assert.Equal(t, backend.txID, result.TxID)
	assert.Equal(t, "ipfs://QmMetadata", result.TokenURI)

	// The on-chain hash is the canonical keccak digest of the uploaded
	// document, with the version default applied.
	meta.Version = "1.0.0"
	want, err := crypto.ComputeDocumentHash(meta)
	require.NoError(t, err)
	assert.Equal(t, crypto.NormalizeHash(want), result.MetadataHash)

	require.Len(t, backend.uploaded, 1)
	assert.Equal(t, "oracle", backend.uploaded[0]["name"])
	require.Len(t, backend.selectors, 1)
	assert.Equal(t, "register(string,bytes32)", backend.selectors[0])
}

func TestRegisterAgentNormalizesEmptyCollections(t *testing.T) {
	reg, backend := newTestRegistry(t)

	result, err := reg.RegisterAgent(context.Background(), models.AgentMetadata{
		Name:        "oracle",
		Description: "price oracle agent",
	})
	require.NoError(t, err)

	// Nil skills/endpoints/tags upload as empty arrays, never null.
	require.Len(t, backend.uploaded, 1)
	assert.Equal(t, []any{}, backend.uploaded[0]["skills"])
	assert.Equal(t, []any{}, backend.uploaded[0]["endpoints"])
	assert.Equal(t, []any{}, backend.uploaded[0]["tags"])

	// The on-chain hash covers the normalized document.
	want, err := crypto.ComputeDocumentHash(models.AgentMetadata{
		Name:        "oracle",
		Description: "price oracle agent",
		Version:     "1.0.0",
		Skills:      []models.Skill{},
		Endpoints:   []models.Endpoint{},
		Tags:        []string{},
	})
	require.NoError(t, err)
	assert.Equal(t, crypto.NormalizeHash(want), result.MetadataHash)
}

func TestRegisterAgentValidation(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.RegisterAgent(context.Background(), models.AgentMetadata{Description: "d"})
	assert.Equal(t, errdefs.CodeValidation, errdefs.CodeOf(err))

	_, err = reg.RegisterAgent(context.Background(), models.AgentMetadata{Name: "n"})
	assert.Equal(t, errdefs.CodeValidation, errdefs.CodeOf(err))
}

func TestResolveAgentID(t *testing.T) {
	reg, backend := newTestRegistry(t)

	agentID, err := reg.ResolveAgentID(context.Background(), backend.txID)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), agentID)
	require.Len(t, backend.synced, 1)
	assert.Equal(t, "/agents/42/sync", backend.synced[0])
}

func TestValidationLifecycle(t *testing.T) {
	reg, backend := newTestRegistry(t)
	ctx := context.Background()
	validator := string(chain.EncodeAddress([20]byte{9}))
	requestID := "0x" + strings.Repeat("cd", 32)

	_, err := reg.SubmitValidation(ctx, 42, validator, "ipfs://QmRequest", map[string]any{"suite": "latency"})
	require.NoError(t, err)

	_, err = reg.CompleteValidation(ctx, ValidationResult{
		RequestID: requestID,
		ResultURI: "ipfs://QmResult",
	})
	require.NoError(t, err)

	// Rejections may omit the result URI entirely.
	_, err = reg.RejectValidation(ctx, ValidationResult{
		RequestID:    requestID,
		Tag:          "spec-violation",
		ResponseCode: 422,
	})
	require.NoError(t, err)

	_, err = reg.CancelValidation(ctx, requestID)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"validationRequest(uint256,address,string,bytes32)",
		"completeValidation(bytes32,string,bytes32)",
		"rejectValidation(bytes32,string,bytes32,string,uint16)",
		"cancelRequest(bytes32)",
	}, backend.selectors)
}

func TestValidationInputErrors(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.SubmitValidation(ctx, 42, "not-an-address", "uri", nil)
	assert.Equal(t, errdefs.CodeValidation, errdefs.CodeOf(err))

	_, err = reg.CompleteValidation(ctx, ValidationResult{RequestID: "xyz"})
	assert.Equal(t, errdefs.CodeValidation, errdefs.CodeOf(err))
}

func TestFeedbackLifecycle(t *testing.T) {
	reg, backend := newTestRegistry(t)
	ctx := context.Background()

	// Legacy layout: only the base fields set.
	_, err := reg.GiveFeedback(ctx, FeedbackInput{
		AgentID:   42,
		Text:      "solid results",
		Sentiment: "positive",
	})
	require.NoError(t, err)

	// One extended field forces the 10-field layout.
	_, err = reg.GiveFeedback(ctx, FeedbackInput{
		AgentID:   42,
		Text:      "solid results",
		Sentiment: "positive",
		Tag1:      "accuracy",
	})
	require.NoError(t, err)

	_, err = reg.RespondToFeedback(ctx, ResponseInput{
		AgentID:       42,
		FeedbackIndex: 0,
		Text:          "thanks",
	})
	require.NoError(t, err)

	_, err = reg.RevokeFeedback(ctx, 42, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"giveFeedback(uint256,string,uint8)",
		"giveFeedback(uint256,string,uint8,uint256,uint8,string,string,string,string,bytes32)",
		"appendResponse(uint256,uint256,string)",
		"revokeFeedback(uint256,uint256)",
	}, backend.selectors)
}

func TestGiveFeedbackRejectsBadSentiment(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.GiveFeedback(context.Background(), FeedbackInput{AgentID: 1, Sentiment: "amazing"})
	assert.Equal(t, errdefs.CodeValidation, errdefs.CodeOf(err))
}

func TestReadDelegation(t *testing.T) {
	reg, _ := newTestRegistry(t)

	agent, err := reg.GetAgent(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "oracle", agent.Name)
}

func TestVerifyContent(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	doc := map[string]any{"b": 2, "a": 1}
	expected, err := crypto.ComputeDocumentHash(doc)
	require.NoError(t, err)

	// Store the document with different key order and formatting; the
	// canonical hash must still match.
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, []byte("{\n  \"b\": 2,\n  \"a\": 1\n}"), 0644))

	ok, err := reg.VerifyContent(ctx, "file://"+path, expected)
	require.NoError(t, err)
	assert.True(t, ok)

	// 0x prefix and case differences are normalized away.
	ok, err = reg.VerifyContent(ctx, "file://"+path, strings.ToUpper(strings.TrimPrefix(expected, "0x")))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reg.VerifyContent(ctx, "file://"+path, "0x"+strings.Repeat("00", 32))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = reg.VerifyContent(ctx, "file:///does/not/exist.json", expected)
	assert.Equal(t, errdefs.CodeStorage, errdefs.CodeOf(err))
}

func TestVerifyContentRawBytesOfStoredJSON(t *testing.T) {
	reg, _ := newTestRegistry(t)

	// A JSON document anchored by the hash of its stored bytes, not the
	// canonical form. Both digests must verify.
	stored := []byte("{\n  \"b\": 2,\n  \"a\": 1\n}")
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, stored, 0644))

	ok, err := reg.VerifyContent(context.Background(), "file://"+path, crypto.Keccak256Hex(stored))
	require.NoError(t, err)
	assert.True(t, ok)

	canonical, err := crypto.ComputeDocumentHash(map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	ok, err = reg.VerifyContent(context.Background(), "file://"+path, canonical)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyContentNonJSON(t *testing.T) {
	reg, _ := newTestRegistry(t)

	path := filepath.Join(t.TempDir(), "blob.bin")
	payload := []byte("not json at all")
	require.NoError(t, os.WriteFile(path, payload, 0644))

	ok, err := reg.VerifyContent(context.Background(), "file://"+path, crypto.Keccak256Hex(payload))
	require.NoError(t, err)
	assert.True(t, ok)
}
