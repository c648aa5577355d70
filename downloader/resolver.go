package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"teraleech/internal"
	"teraleech/utils"
)

// ResolverClient resolves Terabox share links into direct download
// targets by calling third-party resolver services. Endpoints are
// tried in order until one produces a usable target.
type ResolverClient struct {
	httpClient *utils.HTTPClient
	validator  *utils.LinkValidator
	endpoints  []string
}

var _ internal.LinkResolver = (*ResolverClient)(nil)

// NewResolverClient creates a resolver backed by the given endpoints
func NewResolverClient(endpoints []string) *ResolverClient {
	return &ResolverClient{
		httpClient: utils.NewHTTPClient(),
		validator:  utils.NewLinkValidator(),
		endpoints:  endpoints,
	}
}

// NewResolverClientWithHTTP creates a resolver with a custom HTTP client
func NewResolverClientWithHTTP(endpoints []string, httpClient *utils.HTTPClient) *ResolverClient {
	return &ResolverClient{
		httpClient: httpClient,
		validator:  utils.NewLinkValidator(),
		endpoints:  endpoints,
	}
}

// Resolve turns a share link into a ResolvedTarget. Each endpoint gets
// one shot; retries for transient network errors happen inside the
// HTTP client, not here.
func (r *ResolverClient) Resolve(ctx context.Context, shareURL string) (*internal.ResolvedTarget, error) {
	if err := r.validator.Validate(shareURL); err != nil {
		return nil, err
	}

	if len(r.endpoints) == 0 {
		return nil, internal.NewResolveFailedError(shareURL, "no resolver endpoints configured")
	}

	var failures []string
	for _, endpoint := range r.endpoints {
		target, err := r.resolveVia(ctx, endpoint, shareURL)
		if err == nil {
			internal.LogInfo("Resolved %q (%s) via %s", target.Filename, target.SizeText, endpoint)
			return target, nil
		}
		if ctx.Err() != nil {
			return nil, internal.NewCancelledError()
		}
		failures = append(failures, fmt.Sprintf("%s: %v", endpoint, err))
		internal.LogWarn("Resolver endpoint failed: %s: %v", endpoint, err)
	}

	return nil, internal.NewResolveFailedError(shareURL,
		fmt.Sprintf("all %d endpoints failed", len(r.endpoints))).
		WithContext("failures", strings.Join(failures, "; "))
}

// resolveVia queries a single resolver endpoint
func (r *ResolverClient) resolveVia(ctx context.Context, endpoint, shareURL string) (*internal.ResolvedTarget, error) {
	requestURL := fmt.Sprintf("%s?url=%s", endpoint, url.QueryEscape(shareURL))

	resp, err := r.httpClient.GetWithContext(ctx, requestURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	target, err := parseResolverResponse(body)
	if err != nil {
		return nil, err
	}

	target.ShareURL = shareURL
	target.Timestamp = time.Now()
	return target, nil
}

// parseResolverResponse extracts a target from a resolver JSON payload.
// These services decorate their keys with emoji ("✅ Status",
// "📜 Extracted Info", "📂 Title", "📏 Size", "🔽 Direct Download
// Link") and change the decoration between deployments, so keys are
// located by substring rather than matched exactly.
func parseResolverResponse(body []byte) (*internal.ResolvedTarget, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, internal.NewLeechError(502, "response is not a JSON object", internal.ErrInvalidResponse)
	}

	if status, ok := findString(payload, "status"); ok {
		if !strings.Contains(strings.ToLower(status), "success") {
			return nil, internal.NewLeechError(502,
				fmt.Sprintf("resolver reported status %q", status), internal.ErrInvalidResponse)
		}
	}

	fileObj, err := findExtractedInfo(payload)
	if err != nil {
		return nil, err
	}

	target := &internal.ResolvedTarget{}

	if title, ok := findString(fileObj, "title"); ok {
		target.Filename = strings.TrimSpace(title)
	} else if name, ok := findString(fileObj, "name"); ok {
		target.Filename = strings.TrimSpace(name)
	}

	if sizeText, ok := findString(fileObj, "size"); ok {
		target.SizeText = strings.TrimSpace(sizeText)
		if parsed, perr := humanize.ParseBytes(target.SizeText); perr == nil {
			target.Size = int64(parsed)
		}
	}

	for _, hint := range []string{"direct", "download", "link"} {
		if link, ok := findString(fileObj, hint); ok && strings.HasPrefix(link, "http") {
			target.DirectURL = link
			break
		}
	}

	if target.Filename == "" {
		return nil, internal.NewLeechError(502, "no filename in resolver response", internal.ErrInvalidResponse)
	}
	if target.DirectURL == "" {
		return nil, internal.NewLeechError(502, "no direct link in resolver response", internal.ErrInvalidResponse)
	}

	return target, nil
}

// findExtractedInfo locates the file object in the payload. It may sit
// under an "Extracted Info" key (as an object or a one-element array)
// or the payload itself may be the file object.
func findExtractedInfo(payload map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	raw, ok := findRaw(payload, "extracted")
	if !ok {
		// Flat layout: the top-level object carries the file fields
		return payload, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj, nil
	}

	var list []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0], nil
	}

	return nil, internal.NewLeechError(502, "unrecognized extracted-info shape", internal.ErrInvalidResponse)
}

// findRaw returns the value whose key contains substr, case-insensitive
func findRaw(obj map[string]json.RawMessage, substr string) (json.RawMessage, bool) {
	for key, value := range obj {
		if strings.Contains(strings.ToLower(key), substr) {
			return value, true
		}
	}
	return nil, false
}

// findString is findRaw for string-valued keys
func findString(obj map[string]json.RawMessage, substr string) (string, bool) {
	raw, ok := findRaw(obj, substr)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
