// Package config holds the SDK configuration: which TRON network to talk
// to, where the contracts live, which backend indexes them, and how
// content storage is reached.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"
)

// Config is the top-level SDK configuration.
type Config struct {
	Chain   ChainConfig   `yaml:"chain"`
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	Retry   RetryConfig   `yaml:"retry"`
}

// ChainConfig selects the TRON network and contract deployment.
type ChainConfig struct {
	Network    string `yaml:"network"`     // mainnet, shasta, nile
	RPCURL     string `yaml:"rpc_url"`     // overrides the network default when set
	PrivateKey string `yaml:"private_key"` // empty for read-only clients

	IdentityAddress   string `yaml:"identity_address"`
	ValidationAddress string `yaml:"validation_address"`
	ReputationAddress string `yaml:"reputation_address"`

	FeeLimit int64         `yaml:"fee_limit"` // sun; zero means the default
	Timeout  time.Duration `yaml:"timeout"`
}

// APIConfig points at the registry backend.
type APIConfig struct {
	BaseURL           string        `yaml:"base_url"` // empty means the network default
	APIKey            string        `yaml:"api_key"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// StorageConfig configures content loading and upload.
type StorageConfig struct {
	UploadEndpoint string        `yaml:"upload_endpoint"` // direct pinning endpoint, optional
	GatewayURL     string        `yaml:"gateway_url"`     // preferred IPFS gateway
	Gateways       []string      `yaml:"gateways"`        // full gateway order override
	Timeout        time.Duration `yaml:"timeout"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Colors     bool   `yaml:"colors"`      // colored console output
	OutputFile string `yaml:"output_file"` // empty for stdout
}

// RetryConfig mirrors retry.Policy in YAML form.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	BaseDelay       time.Duration `yaml:"base_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	ExponentialBase float64       `yaml:"exponential_base"`
	Jitter          bool          `yaml:"jitter"`
}

// defaultAPIURLs maps networks to their backend deployments. Testnets
// default to a local backend.
var defaultAPIURLs = map[string]string{
	"mainnet": "https://registry-api.trc8004.io",
	"shasta":  "http://localhost:8000",
	"nile":    "http://localhost:8000",
}

// DefaultConfig returns the configuration for a network with all
// defaults filled in.
func DefaultConfig(network string) *Config {
	if network == "" {
		network = "mainnet"
	}
	apiURL := defaultAPIURLs[network]
	if apiURL == "" {
		apiURL = "http://localhost:8000"
	}

	return &Config{
		Chain: ChainConfig{
			Network: network,
			Timeout: 30 * time.Second,
		},
		API: APIConfig{
			BaseURL: apiURL,
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Colors: true,
		},
		Retry: RetryConfig{
			MaxAttempts:     3,
			BaseDelay:       time.Second,
			MaxDelay:        30 * time.Second,
			ExponentialBase: 2.0,
			Jitter:          true,
		},
	}
}

// LoadFromFile reads a YAML config file over the network defaults.
// Unknown keys are rejected.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// First pass learns the network so the right defaults apply, the
	// second decodes over them.
	var probe Config
	if err := DecodeStrict(bytes.NewReader(data), &probe); err != nil {
		return nil, err
	}

	cfg := DefaultConfig(probe.Chain.Network)
	if err := DecodeStrict(bytes.NewReader(data), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
