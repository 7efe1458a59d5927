// Package models defines the agent registry data structures shared by the
// backend API client and the registry facade. Field names follow the
// backend's JSON wire format.
package models

import "time"

// Skill describes one capability an agent advertises.
type Skill struct {
	SkillID      string         `json:"skill_id"`
	SkillName    string         `json:"skill_name"`
	Description  string         `json:"description"`
	InputSchema  map[string]any `json:"input_schema,omitempty"`
	OutputSchema map[string]any `json:"output_schema,omitempty"`
}

// Endpoint is an agent API endpoint advertisement.
type Endpoint struct {
	EndpointType string `json:"endpoint_type"`
	URL          string `json:"url"`
	Name         string `json:"name,omitempty"`
	Version      string `json:"version,omitempty"`
}

// Agent is the complete agent profile as indexed by the backend.
type Agent struct {
	AgentID       uint64 `json:"agent_id"`
	OwnerAddress  string `json:"owner_address"`
	WalletAddress string `json:"wallet_address,omitempty"`

	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
	TokenURI    string `json:"token_uri"`

	Skills    []Skill    `json:"skills,omitempty"`
	Endpoints []Endpoint `json:"endpoints,omitempty"`
	Tags      []string   `json:"tags,omitempty"`

	Verified         bool   `json:"verified"`
	VerificationTier string `json:"verification_tier,omitempty"`
	Active           bool   `json:"active"`

	// Validation counts mirror the on-chain summary; there is no
	// numeric score anywhere in the system.
	TotalValidations     int `json:"total_validations"`
	ValidationsCompleted int `json:"validations_completed"`
	ValidationsRejected  int `json:"validations_rejected"`

	TotalFeedback    int `json:"total_feedback"`
	FeedbackPositive int `json:"feedback_positive"`
	FeedbackNeutral  int `json:"feedback_neutral"`
	FeedbackNegative int `json:"feedback_negative"`

	RegisteredAt time.Time  `json:"registered_at"`
	LastUpdated  *time.Time `json:"last_updated,omitempty"`
}

// Validation is a validation request and, once resolved, its result.
// Status is one of pending, completed, rejected, cancelled.
type Validation struct {
	RequestID       string `json:"request_id"`
	RequestDataHash string `json:"request_data_hash,omitempty"`

	RequesterAddress string `json:"requester_address"`
	ValidatorAddress string `json:"validator_address"`
	AgentID          uint64 `json:"agent_id"`

	RequestURI       string     `json:"request_uri,omitempty"`
	RequestTimestamp *time.Time `json:"request_timestamp,omitempty"`

	ResultURI   string     `json:"result_uri,omitempty"`
	ResultHash  string     `json:"result_hash,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Status string `json:"status"`
}

// Feedback is one reputation feedback entry with its response thread.
type Feedback struct {
	AgentID       uint64 `json:"agent_id"`
	ClientAddress string `json:"client_address"`
	FeedbackIndex uint64 `json:"feedback_index"`

	FeedbackText string `json:"feedback_text,omitempty"`
	Sentiment    string `json:"sentiment"`

	IsRevoked   bool      `json:"is_revoked"`
	SubmittedAt time.Time `json:"submitted_at"`

	Responses []map[string]any `json:"responses,omitempty"`
}

// AgentMetadata is the document uploaded to content storage and
// referenced by the on-chain token URI. Its canonical hash anchors the
// metadata on-chain.
type AgentMetadata struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Version     string     `json:"version"`
	Skills      []Skill    `json:"skills"`
	Endpoints   []Endpoint `json:"endpoints"`
	Tags        []string   `json:"tags"`
}

// SearchFilter narrows an agent search query.
type SearchFilter struct {
	Query               string
	Skills              []string
	Tags                []string
	MinFeedbackPositive *int
	VerifiedOnly        bool
	Limit               int
	Offset              int
}

// SearchResult is one page of agent search results.
type SearchResult struct {
	Total  int     `json:"total"`
	Agents []Agent `json:"agents"`
	Offset int     `json:"offset"`
	Limit  int     `json:"limit"`
}

// ReputationStats is the backend's sentiment breakdown for one agent.
type ReputationStats struct {
	AgentID          uint64  `json:"agent_id"`
	TotalFeedback    int     `json:"total_feedback"`
	ActiveFeedback   int     `json:"active_feedback"`
	RevokedFeedback  int     `json:"revoked_feedback"`
	FeedbackPositive int     `json:"feedback_positive"`
	FeedbackNeutral  int     `json:"feedback_neutral"`
	FeedbackNegative int     `json:"feedback_negative"`
	PositiveRatio    float64 `json:"positive_ratio"`
}

// RegistryStats is the backend's global counters.
type RegistryStats struct {
	TotalAgents      int `json:"total_agents"`
	ActiveAgents     int `json:"active_agents"`
	VerifiedAgents   int `json:"verified_agents"`
	TotalValidations int `json:"total_validations"`
	TotalFeedback    int `json:"total_feedback"`
}
