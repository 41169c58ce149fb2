package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by code and message so sentinel values
// survive wrapping with a cause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode reports whether any DomainError in err's chain carries code.
func IsCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
	ErrCodeToolExecution    = "TOOL_EXECUTION_ERROR"
	ErrCodeUnknownTool      = "UNKNOWN_TOOL"
	ErrCodeModelCall        = "MODEL_CALL_ERROR"
)

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidChunkSource   = NewDomainError(ErrCodeValidation, "invalid chunk source")
	ErrInvalidArguments     = NewDomainError(ErrCodeValidation, "invalid tool arguments")
)

// Knowledge store errors
var (
	ErrStoreUnavailable = NewDomainError(ErrCodeStoreUnavailable, "knowledge store unavailable")
	ErrEmptyQuery       = NewDomainError(ErrCodeValidation, "query text is empty")
)

// Tool errors
var (
	ErrUnknownTool   = NewDomainError(ErrCodeUnknownTool, "unknown tool")
	ErrToolExecution = NewDomainError(ErrCodeToolExecution, "tool execution failed")
	ErrToolTimeout   = NewDomainError(ErrCodeToolExecution, "tool timed out")
)

// Model errors
var (
	ErrModelCall      = NewDomainError(ErrCodeModelCall, "model call failed")
	ErrEmptyModelTurn = NewDomainError(ErrCodeModelCall, "model returned no choices")
)

// Authorization errors
var (
	ErrInvalidAPIToken = NewDomainError(ErrCodeUnauthorized, "invalid api token")
)
