package internal

import (
	"errors"
	"strings"
	"testing"
)

func TestLeechError_Error(t *testing.T) {
	err := NewLeechError(502, "resolver unreachable", ErrResolveFailed)

	msg := err.Error()
	if !strings.Contains(msg, "502") {
		t.Errorf("error string missing code: %q", msg)
	}
	if !strings.Contains(msg, "ResolveFailed") {
		t.Errorf("error string missing type: %q", msg)
	}
	if !strings.Contains(msg, "resolver unreachable") {
		t.Errorf("error string missing message: %q", msg)
	}
}

func TestLeechError_UserMessage(t *testing.T) {
	t.Run("with_hint", func(t *testing.T) {
		err := NewTransferFailedError("connection reset")
		msg := err.UserMessage()

		if !strings.HasPrefix(msg, "❌ ") {
			t.Errorf("user message missing prefix: %q", msg)
		}
		if !strings.Contains(msg, "\n") {
			t.Errorf("user message missing hint line: %q", msg)
		}
	})

	t.Run("without_hint", func(t *testing.T) {
		err := NewCancelledError()
		msg := err.UserMessage()

		if strings.Contains(msg, "\n") {
			t.Errorf("cancellation should have no hint line: %q", msg)
		}
	})

	t.Run("never_leaks_url", func(t *testing.T) {
		err := NewInvalidLinkError("https://terabox.com/s/secret?sign=abc", "bad domain")
		msg := err.UserMessage()

		if strings.Contains(msg, "sign=abc") {
			t.Errorf("user message leaked URL: %q", msg)
		}
	})
}

func TestLeechError_DetailedError_RedactsURL(t *testing.T) {
	err := NewResolveFailedError("https://terabox.com/s/abc?sign=topsecret", "down")

	detail := err.DetailedError()
	if strings.Contains(detail, "topsecret") {
		t.Errorf("detailed error leaked signed URL: %q", detail)
	}
	if !strings.Contains(detail, "[REDACTED]") {
		t.Errorf("detailed error did not redact query: %q", detail)
	}
}

func TestLeechError_Constructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *LeechError
		wantType ErrorType
		wantCode int
	}{
		{name: "invalid_link", err: NewInvalidLinkError("u", "r"), wantType: ErrInvalidLink, wantCode: 400},
		{name: "resolve_failed", err: NewResolveFailedError("u", "r"), wantType: ErrResolveFailed, wantCode: 502},
		{name: "transfer_failed", err: NewTransferFailedError("r"), wantType: ErrTransferFailed, wantCode: 500},
		{name: "size_mismatch", err: NewSizeMismatchError(90, 100), wantType: ErrSizeMismatch, wantCode: 422},
		{name: "upload_rejected", err: NewUploadRejectedError("r"), wantType: ErrUploadRejected, wantCode: 502},
		{name: "file_too_large", err: NewFileTooLargeError(100, 50), wantType: ErrFileTooLarge, wantCode: 413},
		{name: "user_busy", err: NewUserBusyError(), wantType: ErrUserBusy, wantCode: 409},
		{name: "cancelled", err: NewCancelledError(), wantType: ErrCancelled, wantCode: 499},
		{name: "network_timeout", err: NewNetworkTimeoutError("probe"), wantType: ErrNetworkTimeout, wantCode: 408},
		{name: "rate_limit", err: NewRateLimitError(5), wantType: ErrRateLimit, wantCode: 429},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.wantType {
				t.Errorf("type = %v, want %v", tt.err.Type, tt.wantType)
			}
			if tt.err.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", tt.err.Code, tt.wantCode)
			}
		})
	}
}

func TestLeechError_IsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  *LeechError
		want bool
	}{
		{name: "network_timeout", err: NewNetworkTimeoutError("download"), want: true},
		{name: "rate_limit", err: NewRateLimitError(5), want: true},
		{name: "upstream_5xx", err: NewLeechError(502, "bad gateway", ErrInvalidResponse), want: true},
		{name: "upstream_4xx", err: NewLeechError(404, "gone", ErrInvalidResponse), want: false},
		{name: "invalid_link", err: NewInvalidLinkError("u", "r"), want: false},
		{name: "cancelled", err: NewCancelledError(), want: false},
		{name: "file_too_large", err: NewFileTooLargeError(100, 50), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.IsRetryable(); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLeechError_Severity(t *testing.T) {
	if NewCancelledError().Severity != SeverityInfo {
		t.Error("cancellation should be informational")
	}
	if NewUserBusyError().Severity != SeverityWarning {
		t.Error("user busy should be a warning")
	}
	if !NewLeechError(507, "disk full", ErrDiskSpace).IsCritical() {
		t.Error("disk space exhaustion should be critical")
	}
	if NewTransferFailedError("x").IsCritical() {
		t.Error("transfer failure should not be critical")
	}
}

func TestIsCancelled(t *testing.T) {
	if !IsCancelled(NewCancelledError()) {
		t.Error("NewCancelledError should be cancelled")
	}
	if IsCancelled(NewTransferFailedError("x")) {
		t.Error("transfer failure is not a cancellation")
	}
	if IsCancelled(errors.New("plain")) {
		t.Error("foreign error is not a cancellation")
	}
	if IsCancelled(nil) {
		t.Error("nil is not a cancellation")
	}
}

func TestAsLeechError(t *testing.T) {
	t.Run("nil_stays_nil", func(t *testing.T) {
		if AsLeechError(nil) != nil {
			t.Error("expected nil")
		}
	})

	t.Run("passthrough", func(t *testing.T) {
		original := NewUserBusyError()
		if got := AsLeechError(original); got != original {
			t.Error("expected the same error back")
		}
	})

	t.Run("wraps_foreign_errors", func(t *testing.T) {
		got := AsLeechError(errors.New("boom"))
		if got.Type != ErrTransferFailed {
			t.Errorf("type = %v, want ErrTransferFailed", got.Type)
		}
		if !strings.Contains(got.Message, "boom") {
			t.Errorf("message lost: %q", got.Message)
		}
	})
}

func TestLeechError_Builders(t *testing.T) {
	err := NewRateLimitError(0).
		WithRetryAfter(30).
		WithHint("slow down").
		WithURL("https://example.com").
		WithContext("endpoint", "primary")

	if err.RetryAfter != 30 {
		t.Errorf("RetryAfter = %d, want 30", err.RetryAfter)
	}
	if err.Hint != "slow down" {
		t.Errorf("Hint = %q", err.Hint)
	}
	if err.Context["endpoint"] != "primary" {
		t.Errorf("Context not applied: %v", err.Context)
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("RATE_LIMIT", "unparseable rate limit").
		WithSuggestion(`Use a value like "5M"`).
		WithContext("value", "fast")

	msg := err.Error()
	if !strings.Contains(msg, "RATE_LIMIT") {
		t.Errorf("field missing from error: %q", msg)
	}
	if !strings.Contains(msg, "Suggestion") {
		t.Errorf("suggestion missing from error: %q", msg)
	}
	if err.Context["value"] != "fast" {
		t.Errorf("context not applied: %v", err.Context)
	}
}

func TestErrorType_String(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    string
	}{
		{ErrInvalidLink, "InvalidLink"},
		{ErrResolveFailed, "ResolveFailed"},
		{ErrTransferFailed, "TransferFailed"},
		{ErrSizeMismatch, "SizeMismatch"},
		{ErrUploadRejected, "UploadRejected"},
		{ErrFileTooLarge, "FileTooLarge"},
		{ErrUserBusy, "UserBusy"},
		{ErrCancelled, "Cancelled"},
		{ErrNetworkTimeout, "NetworkTimeout"},
		{ErrRateLimit, "RateLimit"},
		{ErrInvalidResponse, "InvalidResponse"},
		{ErrDiskSpace, "DiskSpace"},
		{ErrPermissionDenied, "PermissionDenied"},
		{ErrorType(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.errType.String(); got != tt.want {
			t.Errorf("ErrorType(%d).String() = %q, want %q", tt.errType, got, tt.want)
		}
	}
}
