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

// Is reports whether target is a DomainError with the same code, so a wrapped
// error matches the sentinel it was derived from.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
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

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"

	ErrCodeInvalidTenant      = "INVALID_TENANT"
	ErrCodeTenantAccessDenied = "TENANT_ACCESS_DENIED"
	ErrCodeIndexingFailed     = "INDEXING_FAILED"
	ErrCodeRetrievalFailed    = "RETRIEVAL_FAILED"
	ErrCodeGenerationFailed   = "GENERATION_FAILED"
	ErrCodeGroundingRejected  = "GROUNDING_REJECTED"
)

// Tenant errors
var (
	ErrInvalidTenant      = NewDomainError(ErrCodeInvalidTenant, "tenant id is missing or malformed")
	ErrTenantAccessDenied = NewDomainError(ErrCodeTenantAccessDenied, "access denied to this tenant")
	ErrTenantNotFound     = NewDomainError(ErrCodeNotFound, "tenant not found")
)

// Pipeline errors
var (
	ErrIndexingFailed    = NewDomainError(ErrCodeIndexingFailed, "knowledge indexing failed")
	ErrRetrievalFailed   = NewDomainError(ErrCodeRetrievalFailed, "knowledge retrieval failed")
	ErrGenerationFailed  = NewDomainError(ErrCodeGenerationFailed, "response generation failed")
	ErrGroundingRejected = NewDomainError(ErrCodeGroundingRejected, "response is not grounded in knowledge")
)

// Validation errors
var (
	ErrMissingRequiredField  = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyQuery            = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrInvalidFeedbackRating = NewDomainError(ErrCodeValidation, "invalid feedback rating")
	ErrInvalidIndexJobStatus = NewDomainError(ErrCodeValidation, "invalid index job status")
	ErrUnsupportedFileFormat = NewDomainError(ErrCodeValidation, "unsupported file format")
)

// Not found errors
var (
	ErrDocumentNotFound     = NewDomainError(ErrCodeNotFound, "knowledge document not found")
	ErrConversationNotFound = NewDomainError(ErrCodeNotFound, "conversation not found")
)

// Already exists errors
var (
	ErrTenantAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "tenant already exists")
)

// Operational errors
var (
	ErrRateLimited          = NewDomainError(ErrCodeRateLimited, "too many requests for this tenant")
	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
)

// IndexingFailed wraps cause as an INDEXING_FAILED error.
func IndexingFailed(cause error) error {
	return NewDomainErrorWithCause(ErrCodeIndexingFailed, ErrIndexingFailed.Message, cause)
}

// RetrievalFailed wraps cause as a RETRIEVAL_FAILED error.
func RetrievalFailed(cause error) error {
	return NewDomainErrorWithCause(ErrCodeRetrievalFailed, ErrRetrievalFailed.Message, cause)
}

// GenerationFailed wraps cause as a GENERATION_FAILED error.
func GenerationFailed(cause error) error {
	return NewDomainErrorWithCause(ErrCodeGenerationFailed, ErrGenerationFailed.Message, cause)
}

// ProviderError is a failure reported by an external model provider.
// Transient marks rate limits, timeouts and server-side faults that are worth
// retrying; anything else is a permanent rejection.
type ProviderError struct {
	Provider   string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider error (%s, status %d): %v", e.Provider, kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s provider error (%s): %v", e.Provider, kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err carries a retryable ProviderError.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient
}

// TransientStatus reports whether an HTTP status from a provider is retryable.
func TransientStatus(status int) bool {
	return status == 408 || status == 409 || status == 429 || status >= 500
}
