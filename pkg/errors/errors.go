// Package errors provides a structured error system for scancache with error codes, categories, and context.
package errors

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for cache operations.
type ErrorCode string

// Error code constants organized by category.
const (
	// Configuration errors
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeMissingConfig    ErrorCode = "MISSING_CONFIG"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigSave       ErrorCode = "CONFIG_SAVE"

	// Storage errors (disk tier)
	ErrCodeStorageRead   ErrorCode = "STORAGE_READ"
	ErrCodeStorageWrite  ErrorCode = "STORAGE_WRITE"
	ErrCodeStorageDelete ErrorCode = "STORAGE_DELETE"
	ErrCodeEntryCorrupt  ErrorCode = "ENTRY_CORRUPT"
	ErrCodeEntryEncode   ErrorCode = "ENTRY_ENCODE"
	ErrCodeCacheDir      ErrorCode = "CACHE_DIR"

	// Watch errors (invalidation registry)
	ErrCodeWatchSetup  ErrorCode = "WATCH_SETUP"
	ErrCodeWatchClosed ErrorCode = "WATCH_CLOSED"

	// State errors
	ErrCodeCacheClosed    ErrorCode = "CACHE_CLOSED"
	ErrCodeNotInitialized ErrorCode = "NOT_INITIALIZED"
	ErrCodeInvalidState   ErrorCode = "INVALID_STATE"

	// Operation errors
	ErrCodePatternInvalid   ErrorCode = "PATTERN_INVALID"
	ErrCodeOperationFailed  ErrorCode = "OPERATION_FAILED"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Internal errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrCodeUnknownError  ErrorCode = "UNKNOWN_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryStorage       ErrorCategory = "storage"
	CategoryWatch         ErrorCategory = "watch"
	CategoryState         ErrorCategory = "state"
	CategoryOperation     ErrorCategory = "operation"
	CategoryInternal      ErrorCategory = "internal"
)

// CacheError represents a structured error with context and metadata.
type CacheError struct {
	// Core error information
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	// Contextual information
	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"` // Not serialized to avoid circular refs
	Timestamp time.Time         `json:"timestamp"`

	// Operational metadata
	Component string `json:"component"`
	Operation string `json:"operation,omitempty"`

	// Error handling hints
	Retryable  bool `json:"retryable"`
	HTTPStatus int  `json:"http_status,omitempty"`
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *CacheError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error (for errors.Is compatibility).
func (e *CacheError) Is(target error) bool {
	if cacheErr, ok := target.(*CacheError); ok {
		return e.Code == cacheErr.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *CacheError) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Code=%s", e.Code))
	parts = append(parts, fmt.Sprintf("Category=%s", e.Category))
	parts = append(parts, fmt.Sprintf("Message=%q", e.Message))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}

	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}

	if e.Retryable {
		parts = append(parts, "Retryable=true")
	}

	if len(e.Details) > 0 {
		details, _ := json.Marshal(e.Details)
		parts = append(parts, fmt.Sprintf("Details=%s", details))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("CacheError{%s}", strings.Join(parts, ", "))
}

// JSON returns the error as a JSON string.
func (e *CacheError) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal error: %s"}`, err.Error())
	}
	return string(data)
}

// NewError creates a new cache error with default values.
func NewError(code ErrorCode, message string) *CacheError {
	return &CacheError{
		Code:       code,
		Category:   GetCategory(code),
		Message:    message,
		Timestamp:  time.Now(),
		Details:    make(map[string]interface{}),
		Context:    make(map[string]string),
		Retryable:  IsRetryableByDefault(code),
		HTTPStatus: GetDefaultHTTPStatus(code),
	}
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INVALID_CONFIG") || strings.HasPrefix(codeStr, "MISSING_CONFIG") ||
		strings.HasPrefix(codeStr, "CONFIG_"):
		return CategoryConfiguration
	case strings.HasPrefix(codeStr, "STORAGE_") || strings.HasPrefix(codeStr, "ENTRY_") ||
		strings.HasPrefix(codeStr, "CACHE_DIR"):
		return CategoryStorage
	case strings.HasPrefix(codeStr, "WATCH_"):
		return CategoryWatch
	case strings.HasPrefix(codeStr, "CACHE_CLOSED") || strings.HasPrefix(codeStr, "NOT_INITIALIZED") ||
		strings.HasPrefix(codeStr, "INVALID_STATE"):
		return CategoryState
	case strings.HasPrefix(codeStr, "PATTERN_") || strings.HasPrefix(codeStr, "OPERATION_") ||
		strings.HasPrefix(codeStr, "VALIDATION_"):
		return CategoryOperation
	default:
		return CategoryInternal
	}
}

// IsRetryableByDefault determines if an error is retryable by default.
func IsRetryableByDefault(code ErrorCode) bool {
	retryableCodes := map[ErrorCode]bool{
		ErrCodeStorageRead:   true,
		ErrCodeStorageWrite:  true,
		ErrCodeStorageDelete: true,
		ErrCodeInternalError: true,
	}
	return retryableCodes[code]
}

// GetDefaultHTTPStatus returns the default HTTP status for an error code.
func GetDefaultHTTPStatus(code ErrorCode) int {
	statusMap := map[ErrorCode]int{
		ErrCodeInvalidConfig:    400, // Bad Request
		ErrCodeConfigValidation: 400,
		ErrCodePatternInvalid:   400,
		ErrCodeValidationFailed: 400,
		ErrCodeCacheClosed:      503, // Service Unavailable
		ErrCodeNotInitialized:   503,
		ErrCodeWatchClosed:      503,
		ErrCodeInternalError:    500, // Internal Server Error
	}

	if status, ok := statusMap[code]; ok {
		return status
	}
	return 500 // Default to Internal Server Error
}

// WithContext adds contextual information to an error
func (e *CacheError) WithContext(key, value string) *CacheError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithDetail adds detailed information to an error
func (e *CacheError) WithDetail(key string, value interface{}) *CacheError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *CacheError) WithComponent(component string) *CacheError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *CacheError) WithOperation(operation string) *CacheError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause
func (e *CacheError) WithCause(cause error) *CacheError {
	e.Cause = cause
	return e
}
