package internal

import (
	"fmt"
	"strings"
)

// ErrorType represents different types of errors
type ErrorType int

const (
	ErrInvalidLink ErrorType = iota
	ErrResolveFailed
	ErrTransferFailed
	ErrSizeMismatch
	ErrUploadRejected
	ErrFileTooLarge
	ErrUserBusy
	ErrCancelled
	ErrNetworkTimeout
	ErrRateLimit
	ErrInvalidResponse
	ErrDiskSpace
	ErrPermissionDenied
)

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// LeechError represents a transfer pipeline error with detailed information
type LeechError struct {
	Code       int                    `json:"code"`
	Message    string                 `json:"message"`
	Type       ErrorType              `json:"type"`
	Severity   ErrorSeverity          `json:"severity"`
	URL        string                 `json:"url,omitempty"`
	Hint       string                 `json:"hint,omitempty"` // user-facing guidance
	RetryAfter int                    `json:"retry_after,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *LeechError) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("leech error (code: %d, type: %s)", e.Code, e.Type.String()))

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Hint != "" {
		parts = append(parts, fmt.Sprintf("Hint: %s", e.Hint))
	}

	return strings.Join(parts, " - ")
}

// UserMessage returns the line shown to the end user in chat. It never
// exposes URLs, codes, or internal context.
func (e *LeechError) UserMessage() string {
	msg := e.Message
	if msg == "" {
		msg = e.Type.String()
	}
	if e.Hint != "" {
		return fmt.Sprintf("❌ %s\n%s", msg, e.Hint)
	}
	return "❌ " + msg
}

// DetailedError returns a detailed error message with all available information
func (e *LeechError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s] %s Error", e.Severity.String(), e.Type.String()))

	if e.Code != 0 {
		parts = append(parts, fmt.Sprintf("Code: %d", e.Code))
	}
	if e.Message != "" {
		parts = append(parts, fmt.Sprintf("Message: %s", e.Message))
	}

	if e.URL != "" {
		parts = append(parts, fmt.Sprintf("URL: %s", redactSensitiveURL(e.URL)))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(contextParts, ", ")))
	}

	if e.Hint != "" {
		parts = append(parts, fmt.Sprintf("\nHint: %s", e.Hint))
	}

	if e.RetryAfter > 0 {
		parts = append(parts, fmt.Sprintf("Retry after: %d seconds", e.RetryAfter))
	}

	return strings.Join(parts, "\n")
}

// String returns the string representation of ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrInvalidLink:
		return "InvalidLink"
	case ErrResolveFailed:
		return "ResolveFailed"
	case ErrTransferFailed:
		return "TransferFailed"
	case ErrSizeMismatch:
		return "SizeMismatch"
	case ErrUploadRejected:
		return "UploadRejected"
	case ErrFileTooLarge:
		return "FileTooLarge"
	case ErrUserBusy:
		return "UserBusy"
	case ErrCancelled:
		return "Cancelled"
	case ErrNetworkTimeout:
		return "NetworkTimeout"
	case ErrRateLimit:
		return "RateLimit"
	case ErrInvalidResponse:
		return "InvalidResponse"
	case ErrDiskSpace:
		return "DiskSpace"
	case ErrPermissionDenied:
		return "PermissionDenied"
	default:
		return "Unknown"
	}
}

// String returns the string representation of ErrorSeverity
func (es ErrorSeverity) String() string {
	switch es {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// NewLeechError creates a new LeechError with detailed information
func NewLeechError(code int, message string, errorType ErrorType) *LeechError {
	err := &LeechError{
		Code:     code,
		Message:  message,
		Type:     errorType,
		Severity: getDefaultSeverity(errorType),
		Context:  make(map[string]interface{}),
	}

	err.Hint = getDefaultHint(errorType, code)

	return err
}

// WithHint replaces the user-facing hint on the error
func (e *LeechError) WithHint(hint string) *LeechError {
	e.Hint = hint
	return e
}

// WithURL adds URL context to the error (redacted in logs)
func (e *LeechError) WithURL(url string) *LeechError {
	e.URL = url
	return e
}

// WithRetryAfter sets the retry delay for rate limit errors
func (e *LeechError) WithRetryAfter(seconds int) *LeechError {
	e.RetryAfter = seconds
	return e
}

// WithContext adds context information to the error
func (e *LeechError) WithContext(key string, value interface{}) *LeechError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsRetryable returns true if the error is retryable
func (e *LeechError) IsRetryable() bool {
	switch e.Type {
	case ErrNetworkTimeout, ErrRateLimit:
		return true
	case ErrInvalidResponse:
		return e.Code >= 500
	default:
		return false
	}
}

// IsCritical returns true if the error is critical and should stop execution
func (e *LeechError) IsCritical() bool {
	return e.Severity == SeverityCritical
}

// IsCancelled reports whether err is a user-initiated cancellation.
func IsCancelled(err error) bool {
	le, ok := err.(*LeechError)
	return ok && le.Type == ErrCancelled
}

// AsLeechError converts any error into a LeechError, wrapping foreign
// errors as a generic transfer failure.
func AsLeechError(err error) *LeechError {
	if err == nil {
		return nil
	}
	if le, ok := err.(*LeechError); ok {
		return le
	}
	return NewLeechError(500, err.Error(), ErrTransferFailed)
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field      string                 `json:"field"`
	Message    string                 `json:"message"`
	Value      interface{}            `json:"value,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := []string{fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, " - ")
}

// DetailedError returns a detailed validation error message
func (e *ValidationError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Validation Error for field '%s'", e.Field))
	parts = append(parts, fmt.Sprintf("Message: %s", e.Message))

	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("Provided value: %v", e.Value))
	}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("\nSuggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, "\n")
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// WithSuggestion adds a suggestion to the validation error
func (e *ValidationError) WithSuggestion(suggestion string) *ValidationError {
	e.Suggestion = suggestion
	return e
}

// WithContext adds context to the validation error
func (e *ValidationError) WithContext(key string, value interface{}) *ValidationError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// getDefaultHint returns a default user-facing hint based on error type and code
func getDefaultHint(errorType ErrorType, code int) string {
	switch errorType {
	case ErrInvalidLink:
		return "Send a valid Terabox share link (e.g. https://terabox.com/s/...)"
	case ErrResolveFailed:
		return "The link could not be resolved. It may be expired, private, or the resolver services are down. Try again later."
	case ErrTransferFailed:
		return "Download failed after all retries. Try again later."
	case ErrSizeMismatch:
		return "The downloaded file was incomplete. Try again."
	case ErrUploadRejected:
		return "Telegram rejected the upload. Try again later."
	case ErrFileTooLarge:
		return "Files over 50 MB cannot be sent by the bot."
	case ErrUserBusy:
		return "You already have an active download. Send /cancel to stop it first."
	case ErrCancelled:
		return ""
	case ErrNetworkTimeout:
		return "The connection timed out. Try again in a few minutes."
	case ErrRateLimit:
		return "Too many requests. Wait a bit before retrying."
	case ErrInvalidResponse:
		if code >= 500 {
			return "The upstream service had an error. Try again later."
		}
		return "The upstream service returned an unexpected response."
	case ErrDiskSpace:
		return "The server is out of disk space. Contact the operator."
	case ErrPermissionDenied:
		return "The server could not write the file. Contact the operator."
	default:
		return "Something went wrong. Try again."
	}
}

// getDefaultSeverity returns the default severity for an error type
func getDefaultSeverity(errorType ErrorType) ErrorSeverity {
	switch errorType {
	case ErrRateLimit, ErrNetworkTimeout, ErrUserBusy:
		return SeverityWarning
	case ErrCancelled:
		return SeverityInfo
	case ErrDiskSpace, ErrPermissionDenied:
		return SeverityCritical
	default:
		return SeverityError
	}
}

// redactSensitiveURL redacts query parameters that may carry signed tokens
func redactSensitiveURL(url string) string {
	if strings.Contains(url, "?") {
		parts := strings.Split(url, "?")
		return parts[0] + "?[REDACTED]"
	}
	return url
}

// Common error constructors for frequently used errors

// NewInvalidLinkError creates an error for unrecognized share links
func NewInvalidLinkError(url string, reason string) *LeechError {
	return NewLeechError(400, fmt.Sprintf("Invalid link: %s", reason), ErrInvalidLink).
		WithURL(url)
}

// NewResolveFailedError creates an error for exhausted resolver endpoints
func NewResolveFailedError(url string, reason string) *LeechError {
	return NewLeechError(502, fmt.Sprintf("Could not resolve link: %s", reason), ErrResolveFailed).
		WithURL(url)
}

// NewTransferFailedError creates an error for exhausted download attempts
func NewTransferFailedError(reason string) *LeechError {
	return NewLeechError(500, fmt.Sprintf("Download failed: %s", reason), ErrTransferFailed)
}

// NewSizeMismatchError creates an error for downloads below the size tolerance
func NewSizeMismatchError(got, want int64) *LeechError {
	return NewLeechError(422, "Downloaded file is smaller than expected", ErrSizeMismatch).
		WithContext("got_bytes", got).
		WithContext("want_bytes", want)
}

// NewUploadRejectedError creates an error for uploads Telegram refused
func NewUploadRejectedError(reason string) *LeechError {
	return NewLeechError(502, fmt.Sprintf("Upload failed: %s", reason), ErrUploadRejected)
}

// NewFileTooLargeError creates an error for files over the upload ceiling
func NewFileTooLargeError(size, ceiling int64) *LeechError {
	return NewLeechError(413, "File is too large to send", ErrFileTooLarge).
		WithContext("size_bytes", size).
		WithContext("ceiling_bytes", ceiling)
}

// NewUserBusyError creates an error for a second concurrent transfer
func NewUserBusyError() *LeechError {
	return NewLeechError(409, "A download is already in progress", ErrUserBusy)
}

// NewCancelledError creates an error for a user-initiated cancellation
func NewCancelledError() *LeechError {
	return NewLeechError(499, "Download cancelled", ErrCancelled)
}

// NewNetworkTimeoutError creates an error for network timeouts
func NewNetworkTimeoutError(operation string) *LeechError {
	return NewLeechError(408, fmt.Sprintf("Network timeout during %s", operation), ErrNetworkTimeout)
}

// NewRateLimitError creates an error for rate limiting
func NewRateLimitError(retryAfter int) *LeechError {
	return NewLeechError(429, "Rate limit exceeded", ErrRateLimit).
		WithRetryAfter(retryAfter)
}
