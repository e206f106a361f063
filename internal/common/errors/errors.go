// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Pipeline errors that may surface to a caller.
const (
	ErrCodeQueryTooShort         ErrorCode = "QUERY_TOO_SHORT"
	ErrCodeModelUnavailable      ErrorCode = "MODEL_UNAVAILABLE"
	ErrCodeLLMTimeout            ErrorCode = "LLM_TIMEOUT"
	ErrCodeSchemaRepairExhausted ErrorCode = "SCHEMA_REPAIR_EXHAUSTED"
	ErrCodeInvalidInput          ErrorCode = "INVALID_INPUT"
)

// Evidence errors. These are absorbed by the web strategy and only surface
// from the evidence adapters themselves.
const (
	ErrCodeWebSearchFailed  ErrorCode = "WEB_SEARCH_FAILED"
	ErrCodeWebSearchTimeout ErrorCode = "WEB_SEARCH_TIMEOUT"
	ErrCodePageFetchFailed  ErrorCode = "PAGE_FETCH_FAILED"
	ErrCodeSummarizeFailed  ErrorCode = "SUMMARIZE_FAILED"
)

// Infrastructure errors.
const (
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeExternalService  ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout          ErrorCode = "TIMEOUT_ERROR"
	ErrCodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeBusinessRule     ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeAuthentication   ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// AsStandardError finds the first StandardError in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries a StandardError with the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func detailsOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// NewQueryTooShortError rejects a query before any model or network call.
func NewQueryTooShortError(length, minLength int) *StandardError {
	return newError(ErrCodeQueryTooShort,
		"Query is too short",
		fmt.Sprintf("query has %d characters, at least %d required", length, minLength),
		false, nil).
		WithMetadata("minLength", minLength)
}

// NewInvalidInputError creates a non-retryable error for malformed job variables.
func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid job input", details, false, nil)
}

// NewModelUnavailableError creates a retryable model gateway error.
func NewModelUnavailableError(provider string, err error) *StandardError {
	return newError(ErrCodeModelUnavailable,
		fmt.Sprintf("Model provider '%s' unavailable", provider),
		detailsOf(err), true, err).
		WithMetadata("provider", provider)
}

// NewLLMTimeoutError creates a retryable model timeout error.
func NewLLMTimeoutError(provider string, err error) *StandardError {
	return newError(ErrCodeLLMTimeout,
		"Model call timed out",
		detailsOf(err), true, err).
		WithMetadata("provider", provider)
}

// NewSchemaRepairExhaustedError is returned when the repaired answer still
// fails validation.
func NewSchemaRepairExhaustedError(details string) *StandardError {
	return newError(ErrCodeSchemaRepairExhausted,
		"Answer could not be repaired to the required shape",
		details, false, nil)
}

// NewWebSearchFailedError creates a retryable search provider error.
func NewWebSearchFailedError(provider string, err error) *StandardError {
	return newError(ErrCodeWebSearchFailed,
		fmt.Sprintf("Web search via '%s' failed", provider),
		detailsOf(err), true, err)
}

// NewWebSearchTimeoutError creates a non-retryable web search timeout error.
func NewWebSearchTimeoutError(provider string) *StandardError {
	return newError(ErrCodeWebSearchTimeout,
		"Web search API timeout",
		fmt.Sprintf("provider: %s", provider), false, nil)
}

// NewPageFetchFailedError reports a page that could not be opened.
func NewPageFetchFailedError(url string, err error) *StandardError {
	return newError(ErrCodePageFetchFailed,
		"Page could not be opened",
		fmt.Sprintf("url: %s, error: %s", url, detailsOf(err)), true, err).
		WithMetadata("url", url)
}

// NewSummarizeFailedError reports a page that could not be summarized.
func NewSummarizeFailedError(url string, err error) *StandardError {
	return newError(ErrCodeSummarizeFailed,
		"Page could not be summarized",
		fmt.Sprintf("url: %s, error: %s", url, detailsOf(err)), true, err).
		WithMetadata("url", url)
}

func NewConfigInvalidError(details string) *StandardError {
	return newError(ErrCodeConfigInvalid, "Invalid configuration", details, false, nil)
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return newError(ErrCodeBusinessRule, message, details, false, nil)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService,
		fmt.Sprintf("External service '%s' error", service),
		detailsOf(err), true, err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout,
		fmt.Sprintf("Service '%s' timeout", service),
		detailsOf(err), true, err)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError(ErrCodeResourceNotFound,
		fmt.Sprintf("Resource not found in %s", service),
		details, false, nil)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthentication, "Authentication failed", details, false, nil)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the error codes caught by
// boundary events in the answer process.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeQueryTooShort:         "QUERY_TOO_SHORT",
	ErrCodeInvalidInput:          "INVALID_INPUT",
	ErrCodeModelUnavailable:      "MODEL_UNAVAILABLE",
	ErrCodeLLMTimeout:            "LLM_TIMEOUT",
	ErrCodeSchemaRepairExhausted: "SCHEMA_REPAIR_EXHAUSTED",
	ErrCodeWebSearchFailed:       "WEB_SEARCH_FAILED",
	ErrCodeWebSearchTimeout:      "WEB_SEARCH_TIMEOUT",
	ErrCodePageFetchFailed:       "PAGE_FETCH_FAILED",
	ErrCodeSummarizeFailed:       "SUMMARIZE_FAILED",
	ErrCodeConfigInvalid:         "CONFIG_INVALID",
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeModelUnavailable,
		ErrCodeExternalService:
		return 3

	case ErrCodeWebSearchFailed,
		ErrCodePageFetchFailed,
		ErrCodeSummarizeFailed,
		ErrCodeTimeout:
		return 2

	case ErrCodeLLMTimeout:
		return 1

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "INPUT"):
		return "VALIDATION"
	case strings.Contains(codeStr, "MODEL") || strings.Contains(codeStr, "LLM") || strings.Contains(codeStr, "SCHEMA"):
		return "AI"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "PAGE") || strings.Contains(codeStr, "SUMMARIZE"):
		return "EVIDENCE"
	case strings.Contains(codeStr, "CONFIG"):
		return "CONFIG"
	default:
		return "OTHER"
	}
}
