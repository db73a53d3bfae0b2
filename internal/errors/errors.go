// Package errors provides the categorized error taxonomy used across the
// feed engine and its API surface.
package errors

import (
	"fmt"
	"net/http"

	"github.com/dailylens/internal/types"
)

// ErrorCategory represents the category of an error.
type ErrorCategory string

const (
	// CategoryValidation represents malformed input errors (4xx).
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents unknown resource errors.
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryRateLimit represents request-rate rejections.
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategoryEntitlement represents tier quota rejections.
	CategoryEntitlement ErrorCategory = "entitlement"
	// CategorySystem represents internal errors (5xx).
	CategorySystem ErrorCategory = "system"
	// CategoryCache represents cache-layer errors, absorbed internally.
	CategoryCache ErrorCategory = "cache"
)

// CategorizedError carries a category and HTTP status alongside the
// structured code/message/details triple.
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to the wire-level ServiceError.
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewValidationError creates a malformed-input error.
func NewValidationError(field string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid field '%s': %s", field, reason),
		Details: map[string]interface{}{
			"field":  field,
			"reason": reason,
		},
	}
}

// NewNotFoundError creates an unknown-resource error.
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewRateLimitedError creates a request-rate rejection carrying a
// retry-after hint in seconds.
func NewRateLimitedError(endpoint string, limit int, retryAfterSeconds int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       "RATE_LIMITED",
		Message:    "rate limit exceeded, retry shortly",
		Details: map[string]interface{}{
			"endpoint":            endpoint,
			"limit_per_window":    limit,
			"retry_after_seconds": retryAfterSeconds,
		},
	}
}

// NewEntitlementExceededError creates a tier quota rejection carrying the
// upgrade context a client needs to render a paywall prompt.
func NewEntitlementExceededError(tier types.UserTier, limit, used, remaining int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryEntitlement,
		StatusCode: http.StatusPaymentRequired,
		Code:       "ENTITLEMENT_EXCEEDED",
		Message:    "monthly post limit reached, upgrade tier to continue",
		Details: map[string]interface{}{
			"tier":              tier,
			"monthly_limit":     limit,
			"monthly_used":      used,
			"monthly_remaining": remaining,
		},
	}
}

// NewInternalError creates an internal server error.
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// NewCacheError creates a cache-layer error. These are logged and absorbed,
// never surfaced to the caller.
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCache,
		StatusCode: http.StatusInternalServerError,
		Code:       "CACHE_ERROR",
		Message:    fmt.Sprintf("cache error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}
