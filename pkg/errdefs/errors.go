// Package errdefs defines the SDK error taxonomy.
//
// Every component raises an *Error carrying a stable code and an optional
// details payload. Callers match on kind with errors.Is against the
// exported sentinels; the retry layer classifies on Code before falling
// back to message inspection.
package errdefs

import (
	"errors"
	"fmt"
)

// Error codes, stable across releases.
const (
	CodeRegistry       = "REGISTRY_ERROR"
	CodeConfiguration  = "CONFIGURATION_ERROR"
	CodeContract       = "CONTRACT_ERROR"
	CodeNetwork        = "NETWORK_ERROR"
	CodeValidation     = "VALIDATION_ERROR"
	CodeStorage        = "STORAGE_ERROR"
	CodeAuthentication = "AUTHENTICATION_ERROR"
)

// Kind sentinels for errors.Is matching.
var (
	ErrConfiguration  = errors.New("configuration error")
	ErrContract       = errors.New("contract error")
	ErrNetwork        = errors.New("network error")
	ErrValidation     = errors.New("validation error")
	ErrStorage        = errors.New("storage error")
	ErrAuthentication = errors.New("authentication error")
)

var kindByCode = map[string]error{
	CodeConfiguration:  ErrConfiguration,
	CodeContract:       ErrContract,
	CodeNetwork:        ErrNetwork,
	CodeValidation:     ErrValidation,
	CodeStorage:        ErrStorage,
	CodeAuthentication: ErrAuthentication,
}

// Error is the structured SDK error.
type Error struct {
	Code    string
	Message string
	Details any
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("[%s] %s - %v", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is this error's kind sentinel.
func (e *Error) Is(target error) bool {
	return kindByCode[e.Code] == target
}

// New creates an error with an explicit code.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewConfiguration creates a configuration error. Always fatal.
func NewConfiguration(message string) *Error {
	return &Error{Code: CodeConfiguration, Message: message}
}

// NewContract creates a contract interaction error.
func NewContract(message string, cause error) *Error {
	return &Error{Code: CodeContract, Message: message, Cause: cause}
}

// NewNetwork creates a network/RPC error.
func NewNetwork(message string, cause error) *Error {
	return &Error{Code: CodeNetwork, Message: message, Cause: cause}
}

// NewValidation creates a caller-input validation error. Always fatal.
func NewValidation(message string, details any) *Error {
	return &Error{Code: CodeValidation, Message: message, Details: details}
}

// NewStorage creates an IPFS/storage error.
func NewStorage(message string, cause error) *Error {
	return &Error{Code: CodeStorage, Message: message, Cause: cause}
}

// NewAuthentication creates an authentication/signature error.
func NewAuthentication(message string) *Error {
	return &Error{Code: CodeAuthentication, Message: message}
}

// CodeOf returns the stable code of err if it is (or wraps) an *Error,
// and "" otherwise.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
