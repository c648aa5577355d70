package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"teraleech/internal"
)

func fastRetryClient() *HTTPClient {
	return NewHTTPClientWithConfig(&HTTPClientConfig{
		Timeout: 5 * time.Second,
		RetryConfig: &RetryConfig{
			MaxAttempts:   3,
			BaseDelay:     time.Millisecond,
			MaxDelay:      10 * time.Millisecond,
			Multiplier:    2.0,
			JitterPercent: 0,
		},
	})
}

func TestHTTPClient_SuccessFirstTry(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := fastRetryClient()
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := fastRetryClient()
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("expected success after retries, got: %v", err)
	}
	resp.Body.Close()

	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Errorf("server hit %d times, want 3", n)
	}
}

func TestHTTPClient_NotFoundDoesNotRetry(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := fastRetryClient()
	_, err := client.Get(server.URL)
	if err == nil {
		t.Fatal("expected error for 404")
	}

	leechErr, ok := err.(*internal.LeechError)
	if !ok {
		t.Fatalf("expected *internal.LeechError, got %T: %v", err, err)
	}
	if leechErr.Type != internal.ErrInvalidResponse {
		t.Errorf("error type = %v, want ErrInvalidResponse", leechErr.Type)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("server hit %d times, want 1 (no retry on 404)", n)
	}
}

func TestHTTPClient_ForbiddenRotatesUserAgent(t *testing.T) {
	var mu sync.Mutex
	var agents []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		first := len(agents) == 1
		mu.Unlock()
		if first {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := fastRetryClient()
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("expected success after rotation, got: %v", err)
	}
	resp.Body.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(agents) != 2 {
		t.Fatalf("server hit %d times, want 2", len(agents))
	}
	if agents[0] == agents[1] {
		t.Errorf("user agent did not rotate after 403: %q", agents[0])
	}
}

func TestHTTPClient_TooManyRequestsRetries(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := fastRetryClient()
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("expected success after 429 retry, got: %v", err)
	}
	resp.Body.Close()

	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Errorf("server hit %d times, want 2", n)
	}
}

func TestHTTPClient_PartialContentIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "bytes 0-0/100")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("x"))
	}))
	defer server.Close()

	client := fastRetryClient()
	resp, err := client.GetWithHeaders(server.URL, map[string]string{"Range": "bytes=0-0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		t.Errorf("status = %d, want 206", resp.StatusCode)
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := fastRetryClient()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.GetWithContext(ctx, server.URL, nil)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestHTTPClient_CustomHeadersForwarded(t *testing.T) {
	var gotRange string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := fastRetryClient()
	resp, err := client.GetWithContext(context.Background(), server.URL, map[string]string{
		"Range": "bytes=100-",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if gotRange != "bytes=100-" {
		t.Errorf("Range header = %q, want %q", gotRange, "bytes=100-")
	}
}

func TestConfigureProxy(t *testing.T) {
	tests := []struct {
		name        string
		proxyURL    string
		expectError bool
	}{
		{name: "http_proxy", proxyURL: "http://127.0.0.1:8080", expectError: false},
		{name: "socks5_proxy", proxyURL: "socks5://127.0.0.1:1080", expectError: false},
		{name: "unsupported_scheme", proxyURL: "ftp://127.0.0.1:21", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &http.Transport{}
			err := configureProxy(transport, tt.proxyURL)
			if tt.expectError && err == nil {
				t.Errorf("expected error for %q", tt.proxyURL)
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error for %q: %v", tt.proxyURL, err)
			}
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	client := NewHTTPClient()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil_error", err: nil, want: false},
		{name: "timeout_error", err: context.DeadlineExceeded, want: true},
		{name: "retryable_leech_error", err: internal.NewRateLimitError(5), want: true},
		{name: "non_retryable_leech_error", err: internal.NewInvalidLinkError("u", "bad"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := client.isRetryableError(tt.err); got != tt.want {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
