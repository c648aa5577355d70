package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"teraleech/internal"
)

// LinkValidator handles validation and extraction of Terabox share links
type LinkValidator struct {
	allowedDomains []string
	urlPattern     *regexp.Regexp
}

// NewLinkValidator creates a new link validator with the known Terabox
// domain family. Terabox rotates mirror domains frequently, so the list
// includes the mirrors seen in the wild.
func NewLinkValidator() *LinkValidator {
	allowedDomains := []string{
		"terabox.com",
		"terabox.app",
		"terabox.fun",
		"teraboxapp.com",
		"teraboxurl.com",
		"1024terabox.com",
		"1024tera.com",
		"freeterabox.com",
		"4funbox.com",
		"mirrobox.com",
		"nephobox.com",
		"momerybox.com",
		"tibibox.com",
	}

	return &LinkValidator{
		allowedDomains: allowedDomains,
		urlPattern:     regexp.MustCompile(`https?://[^\s<>"']+`),
	}
}

// Validate checks that the URL is a well-formed link on an allowed domain
func (v *LinkValidator) Validate(rawURL string) error {
	if rawURL == "" {
		return internal.NewValidationError("url", "URL cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return internal.NewValidationError("url", fmt.Sprintf("invalid URL format: %v", err))
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return internal.NewValidationError("url", "URL must use http or https protocol")
	}

	host := strings.ToLower(parsedURL.Hostname())

	if !v.isAllowedHost(host) {
		return internal.NewInvalidLinkError(rawURL,
			fmt.Sprintf("%s is not a recognized Terabox domain", host))
	}

	return nil
}

// isAllowedHost matches the host itself or any subdomain of an allowed domain
func (v *LinkValidator) isAllowedHost(host string) bool {
	for _, domain := range v.allowedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// ExtractShareLink returns the first allow-listed link found in free
// text. Messages often carry the link mixed with captions and emoji.
func (v *LinkValidator) ExtractShareLink(text string) (string, error) {
	candidates := v.urlPattern.FindAllString(text, -1)
	if len(candidates) == 0 {
		return "", internal.NewInvalidLinkError(text, "no link found in message")
	}

	for _, candidate := range candidates {
		candidate = strings.TrimRight(candidate, ".,!?)]}")
		if v.Validate(candidate) == nil {
			return candidate, nil
		}
	}

	return "", internal.NewInvalidLinkError(candidates[0], "no Terabox link found in message")
}

// ShareID extracts the short share identifier when the link carries one
// in a recognized form (/s/<id> or ?surl=<id>). Returns "" for mirror
// links that hide the identifier behind a redirect.
func (v *LinkValidator) ShareID(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	if surl := parsedURL.Query().Get("surl"); surl != "" {
		return surl
	}

	if idx := strings.Index(parsedURL.Path, "/s/"); idx != -1 {
		id := parsedURL.Path[idx+len("/s/"):]
		if slash := strings.IndexByte(id, '/'); slash != -1 {
			id = id[:slash]
		}
		return id
	}

	return ""
}
