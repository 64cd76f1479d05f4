// Package errors provides the standard error taxonomy shared by the search API and
// the workflow workers, plus conversion to BPMN errors and HTTP statuses.
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

const (
	// NotFound
	ErrCodeListingNotFound ErrorCode = "LISTING_NOT_FOUND"
	ErrCodeMakeNotFound    ErrorCode = "MAKE_NOT_FOUND"

	// Request validation (only for malformed bodies, never for filter facets)
	ErrCodeInvalidRequest      ErrorCode = "INVALID_REQUEST"
	ErrCodeInvalidFilterFormat ErrorCode = "INVALID_FILTER_FORMAT"

	// Storage (fatal for the request)
	ErrCodeStorageUnavailable   ErrorCode = "STORAGE_UNAVAILABLE"
	ErrCodeQueryExecutionFailed ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout         ErrorCode = "QUERY_TIMEOUT"
	ErrCodeSearchQueryFailed    ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeIndexNotFound        ErrorCode = "INDEX_NOT_FOUND"

	// External text completion (always handled locally)
	ErrCodeLLMTimeout          ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMCompletionFailed ErrorCode = "LLM_COMPLETION_FAILED"
	ErrCodeExtractionInvalid   ErrorCode = "EXTRACTION_INVALID"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// AsStandardError unwraps err into a *StandardError when one is in the chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
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

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewListingNotFoundError is returned for unknown or non-public listings.
func NewListingNotFoundError(listingID string) *StandardError {
	return newError(ErrCodeListingNotFound, "Listing not found", fmt.Sprintf("listingId: %s", listingID), false)
}

// NewMakeNotFoundError is returned for unknown or inactive car makes.
func NewMakeNotFoundError(makeID string) *StandardError {
	return newError(ErrCodeMakeNotFound, "Car make not found", fmt.Sprintf("makeId: %s", makeID), false)
}

func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid request", details, false)
}

func NewInvalidFilterFormatError(details string) *StandardError {
	return newError(ErrCodeInvalidFilterFormat, "Invalid filter format", details, false)
}

// NewStorageUnavailableError wraps a connection-level failure of the listing store.
func NewStorageUnavailableError(backend string, err error) *StandardError {
	return newError(ErrCodeStorageUnavailable, fmt.Sprintf("Listing storage '%s' unavailable", backend), err.Error(), true)
}

func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true)
}

func NewQueryTimeoutError(queryType string) *StandardError {
	return newError(ErrCodeQueryTimeout, "Database query timeout", fmt.Sprintf("queryType: %s", queryType), true)
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true)
}

func NewIndexNotFoundError(indexName string) *StandardError {
	return newError(ErrCodeIndexNotFound, "Elasticsearch index not found", fmt.Sprintf("indexName: %s", indexName), false)
}

func NewLLMTimeoutError(operation string) *StandardError {
	return newError(ErrCodeLLMTimeout, "Text completion timeout", fmt.Sprintf("operation: %s", operation), true)
}

func NewLLMCompletionFailedError(err error) *StandardError {
	return newError(ErrCodeLLMCompletionFailed, "Text completion API error", err.Error(), true)
}

func NewExtractionInvalidError(details string) *StandardError {
	return newError(ErrCodeExtractionInvalid, "Extraction output did not match schema", details, false)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeListingNotFound:      "LISTING_NOT_FOUND",
	ErrCodeMakeNotFound:         "MAKE_NOT_FOUND",
	ErrCodeInvalidRequest:       "INVALID_REQUEST",
	ErrCodeInvalidFilterFormat:  "INVALID_FILTER_FORMAT",
	ErrCodeStorageUnavailable:   "STORAGE_UNAVAILABLE",
	ErrCodeQueryExecutionFailed: "QUERY_EXECUTION_FAILED",
	ErrCodeQueryTimeout:         "QUERY_TIMEOUT",
	ErrCodeSearchQueryFailed:    "SEARCH_QUERY_FAILED",
	ErrCodeIndexNotFound:        "INDEX_NOT_FOUND",
	ErrCodeLLMTimeout:           "LLM_TIMEOUT",
	ErrCodeLLMCompletionFailed:  "LLM_COMPLETION_FAILED",
	ErrCodeExtractionInvalid:    "EXTRACTION_INVALID",
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStorageUnavailable,
		ErrCodeQueryExecutionFailed,
		ErrCodeSearchQueryFailed:
		return 3

	case ErrCodeQueryTimeout:
		return 2

	case ErrCodeLLMTimeout, ErrCodeLLMCompletionFailed:
		return 1

	default:
		return 0
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

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the taxonomy bucket of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasSuffix(codeStr, "NOT_FOUND") && code != ErrCodeIndexNotFound:
		return "NOT_FOUND"
	case strings.Contains(codeStr, "LLM") || strings.Contains(codeStr, "EXTRACTION"):
		return "EXTERNAL_SERVICE"
	case strings.Contains(codeStr, "STORAGE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "INDEX"):
		return "STORAGE"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
