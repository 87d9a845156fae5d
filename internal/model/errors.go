package model

import "fmt"

// ToolError is the explicit error-kind return used throughout the dispatch
// pipeline. Stages return a *ToolError instead of raising; transports map
// the Code to their own status space (HTTP status, MCP error result).
type ToolError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unauthorized builds an authentication failure.
func Unauthorized(message string) *ToolError {
	return &ToolError{Code: ErrCodeUnauthorized, Message: message}
}

// PermissionDenied builds a distinguishable deny outcome carrying the tool
// and role so transports can return a uniform 403-equivalent.
func PermissionDenied(tool string, role Role) *ToolError {
	return &ToolError{
		Code:    ErrCodeForbidden,
		Message: fmt.Sprintf("role %s may not invoke %s", role, tool),
		Details: map[string]any{"tool": tool, "role": string(role)},
	}
}

// RateLimited builds a rejection with a retry-after hint in seconds.
func RateLimited(retryAfterSeconds int) *ToolError {
	return &ToolError{
		Code:    ErrCodeRateLimited,
		Message: "rate limit exceeded",
		Details: map[string]any{"retry_after_seconds": retryAfterSeconds},
	}
}

// NotFound builds a not-found error naming the key(s) that were missing.
func NotFound(message string, keys map[string]any) *ToolError {
	return &ToolError{Code: ErrCodeNotFound, Message: message, Details: keys}
}

// Invalid builds a validation failure. Raised before any I/O is attempted.
func Invalid(format string, args ...any) *ToolError {
	return &ToolError{Code: ErrCodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// Internal builds a caller-safe internal error. The underlying cause is
// logged with the trace id, never leaked in Message.
func Internal() *ToolError {
	return &ToolError{Code: ErrCodeInternalError, Message: "an internal error occurred"}
}
