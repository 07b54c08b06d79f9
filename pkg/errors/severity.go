// Package errors provides severity-aware error types.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Severity indicates error impact level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// EstimateError is a structured error with context.
type EstimateError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Severity    Severity `json:"severity"`
	Subject     string   `json:"subject,omitempty"`
	Recoverable bool     `json:"recoverable"`
	Err         error    `json:"-"`
}

func (e *EstimateError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", e.Severity, e.Code, e.Message, e.Subject)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Code, e.Message)
}

func (e *EstimateError) Unwrap() error { return e.Err }

// Error codes
const (
	ErrCodeUnknownPort      = "UNKNOWN_PORT"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeRateConfig       = "RATE_CONFIG"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
	ErrCodeManualEntry      = "MANUAL_ENTRY_REQUIRED"
)

// NewUnknownPortError creates the fatal error for an arrival port that cannot be resolved.
func NewUnknownPortError(code string, cause error) *EstimateError {
	return &EstimateError{
		Code:        ErrCodeUnknownPort,
		Message:     "port not found",
		Severity:    SeverityFatal,
		Subject:     code,
		Recoverable: false,
		Err:         cause,
	}
}

// NewInvalidInputError creates an error for a rejected request field.
func NewInvalidInputError(field, reason string) *EstimateError {
	return &EstimateError{
		Code:        ErrCodeInvalidInput,
		Message:     reason,
		Severity:    SeverityError,
		Subject:     field,
		Recoverable: false,
	}
}

// NewStoreError wraps a fee store failure.
func NewStoreError(op string, cause error) *EstimateError {
	return &EstimateError{
		Code:        ErrCodeStoreUnavailable,
		Message:     fmt.Sprintf("failed to %s", op),
		Severity:    SeverityError,
		Recoverable: true,
		Err:         cause,
	}
}

// CodeOf returns the code of the first EstimateError in err's chain.
func CodeOf(err error) string {
	var ee *EstimateError
	if stderrors.As(err, &ee) {
		return ee.Code
	}
	return ""
}
