package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ValidationError represents a single validation error with context.
type ValidationError struct {
	Path    string // e.g., "chain.network"
	Message string // e.g., "unknown network"
	Hint    string // e.g., "allowed values: mainnet, shasta, nile"
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s; %s", e.Path, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

var knownNetworks = map[string]bool{"mainnet": true, "shasta": true, "nile": true}

// Validate checks the entire config and aggregates all errors so the
// caller can print every issue at once.
func (c *Config) Validate() []error {
	var errs []error
	errs = append(errs, c.validateChain()...)
	errs = append(errs, c.validateAPI()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateLogging()...)
	errs = append(errs, c.validateRetry()...)
	return errs
}

func (c *Config) validateChain() []error {
	var errs []error
	cc := c.Chain

	if !knownNetworks[cc.Network] && cc.RPCURL == "" {
		errs = append(errs, ValidationError{
			Path:    "chain.network",
			Message: fmt.Sprintf("unknown network %q and no rpc_url override", cc.Network),
			Hint:    "allowed values: mainnet, shasta, nile",
		})
	}
	if cc.RPCURL != "" {
		if err := validateHTTPURL(cc.RPCURL); err != nil {
			errs = append(errs, ValidationError{Path: "chain.rpc_url", Message: err.Error()})
		}
	}
	if cc.FeeLimit < 0 {
		errs = append(errs, ValidationError{
			Path:    "chain.fee_limit",
			Message: fmt.Sprintf("must be >= 0; got %d", cc.FeeLimit),
		})
	}

	for path, addr := range map[string]string{
		"chain.identity_address":   cc.IdentityAddress,
		"chain.validation_address": cc.ValidationAddress,
		"chain.reputation_address": cc.ReputationAddress,
	} {
		if addr != "" && !strings.HasPrefix(addr, "T") {
			errs = append(errs, ValidationError{
				Path:    path,
				Message: "must be a base58 TRON address",
				Hint:    "addresses start with T on all TRON networks",
			})
		}
	}

	return errs
}

func (c *Config) validateAPI() []error {
	var errs []error

	if c.API.BaseURL == "" {
		errs = append(errs, ValidationError{
			Path:    "api.base_url",
			Message: "must not be empty",
		})
	} else if err := validateHTTPURL(c.API.BaseURL); err != nil {
		errs = append(errs, ValidationError{Path: "api.base_url", Message: err.Error()})
	}

	if c.API.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{
			Path:    "api.requests_per_second",
			Message: fmt.Sprintf("must be >= 0; got %v", c.API.RequestsPerSecond),
		})
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	if c.Storage.UploadEndpoint != "" {
		if err := validateHTTPURL(c.Storage.UploadEndpoint); err != nil {
			errs = append(errs, ValidationError{Path: "storage.upload_endpoint", Message: err.Error()})
		}
	}
	if c.Storage.GatewayURL != "" {
		if err := validateHTTPURL(c.Storage.GatewayURL); err != nil {
			errs = append(errs, ValidationError{Path: "storage.gateway_url", Message: err.Error()})
		}
	}
	for i, gw := range c.Storage.Gateways {
		if err := validateHTTPURL(gw); err != nil {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("storage.gateways[%d]", i),
				Message: err.Error(),
			})
		}
	}

	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error
	log := c.Logging

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[log.Level] {
		errs = append(errs, ValidationError{
			Path:    "logging.level",
			Message: fmt.Sprintf("invalid value %q", log.Level),
			Hint:    "allowed values: debug, info, warn, error",
		})
	}

	if log.OutputFile != "" {
		if dir := filepath.Dir(log.OutputFile); dir == "" {
			errs = append(errs, ValidationError{
				Path:    "logging.output_file",
				Message: "invalid path",
			})
		}
	}

	return errs
}

func (c *Config) validateRetry() []error {
	var errs []error
	rc := c.Retry

	if rc.MaxAttempts < 1 {
		errs = append(errs, ValidationError{
			Path:    "retry.max_attempts",
			Message: fmt.Sprintf("must be >= 1; got %d", rc.MaxAttempts),
		})
	}
	if rc.BaseDelay < 0 || rc.MaxDelay < 0 {
		errs = append(errs, ValidationError{
			Path:    "retry.base_delay",
			Message: "delays must be >= 0",
		})
	}
	if rc.MaxDelay != 0 && rc.MaxDelay < rc.BaseDelay {
		errs = append(errs, ValidationError{
			Path:    "retry.max_delay",
			Message: fmt.Sprintf("must be >= base_delay; got %v < %v", rc.MaxDelay, rc.BaseDelay),
		})
	}
	if rc.ExponentialBase != 0 && rc.ExponentialBase < 1 {
		errs = append(errs, ValidationError{
			Path:    "retry.exponential_base",
			Message: fmt.Sprintf("must be >= 1; got %v", rc.ExponentialBase),
		})
	}

	return errs
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https; got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL host must not be empty")
	}
	return nil
}
