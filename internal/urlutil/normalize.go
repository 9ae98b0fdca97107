// Package urlutil provides URL normalization and utility functions.
package urlutil

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// MaxURLLength is the longest URL the scheduler will accept.
const MaxURLLength = 2048

// TrackingParams are query parameters stripped during normalization.
var TrackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"gclid", "fbclid", "ref", "source", "campaign_id", "ad_id",
}

// Normalizer handles URL normalization.
type Normalizer struct {
	// Query parameters to remove (utm_*, gclid, etc.)
	IgnoreParams map[string]struct{}

	// Remove trailing slashes
	RemoveTrailingSlash bool

	// Remove default ports (80 for http, 443 for https)
	RemoveDefaultPort bool

	// Remove fragment (#...)
	RemoveFragment bool

	// Lowercase scheme and host
	LowercaseSchemeHost bool

	// Sort query parameters
	SortQueryParams bool

	// Remove www prefix
	RemoveWWW bool
}

// DefaultNormalizer returns a normalizer with the scheduler's default rules.
func DefaultNormalizer() *Normalizer {
	return NewNormalizer(TrackingParams)
}

// NewNormalizer creates a normalizer that strips the given query parameters.
func NewNormalizer(ignoreParams []string) *Normalizer {
	params := make(map[string]struct{})
	for _, p := range ignoreParams {
		params[strings.ToLower(p)] = struct{}{}
	}

	return &Normalizer{
		IgnoreParams:        params,
		RemoveTrailingSlash: true,
		RemoveDefaultPort:   true,
		RemoveFragment:      true,
		LowercaseSchemeHost: true,
		SortQueryParams:     true,
		RemoveWWW:           true,
	}
}

// Normalize normalizes a URL string.
func (n *Normalizer) Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}

	// Lowercase scheme and host
	if n.LowercaseSchemeHost {
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
	}

	// Remove default ports
	if n.RemoveDefaultPort {
		host := u.Host
		if u.Scheme == "http" && strings.HasSuffix(host, ":80") {
			u.Host = strings.TrimSuffix(host, ":80")
		} else if u.Scheme == "https" && strings.HasSuffix(host, ":443") {
			u.Host = strings.TrimSuffix(host, ":443")
		}
	}

	// Remove www prefix if configured
	if n.RemoveWWW {
		u.Host = strings.TrimPrefix(u.Host, "www.")
	}

	// Remove fragment
	if n.RemoveFragment {
		u.Fragment = ""
	}

	// Handle path
	path := u.Path
	if path == "" {
		path = "/"
	}

	// Normalize path (remove double slashes, resolve . and ..)
	path = normalizePath(path)

	// Remove trailing slash (except for root)
	if n.RemoveTrailingSlash && len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	u.Path = path

	// Handle query parameters
	if u.RawQuery != "" {
		query := u.Query()
		newQuery := url.Values{}

		for key, values := range query {
			// Skip ignored parameters
			if _, ignore := n.IgnoreParams[strings.ToLower(key)]; ignore {
				continue
			}
			// Skip empty values, unless it is the key's only value
			for _, v := range values {
				if v != "" || len(values) == 1 {
					newQuery.Add(key, v)
				}
			}
		}

		if n.SortQueryParams {
			u.RawQuery = sortedQueryString(newQuery)
		} else {
			u.RawQuery = newQuery.Encode()
		}
	}

	return u.String(), nil
}

// normalizePath removes double slashes and resolves . and ..
func normalizePath(path string) string {
	// Replace multiple slashes with single slash
	re := regexp.MustCompile(`/+`)
	path = re.ReplaceAllString(path, "/")

	// Split and resolve . and ..
	parts := strings.Split(path, "/")
	var result []string

	for _, part := range parts {
		switch part {
		case ".":
			// Skip current directory
		case "..":
			// Go up one directory
			if len(result) > 0 && result[len(result)-1] != "" {
				result = result[:len(result)-1]
			}
		default:
			result = append(result, part)
		}
	}

	normalized := strings.Join(result, "/")
	if normalized == "" {
		return "/"
	}
	return normalized
}

// sortedQueryString returns a sorted query string.
func sortedQueryString(query url.Values) string {
	if len(query) == 0 {
		return ""
	}

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		values := query[k]
		sort.Strings(values)
		for _, v := range values {
			if v == "" {
				parts = append(parts, url.QueryEscape(k))
			} else {
				parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
	}

	return strings.Join(parts, "&")
}

// IsValid reports whether a URL is one the scheduler will track:
// an absolute http or https URL of sane length.
func IsValid(rawURL string) bool {
	if len(rawURL) < 10 || len(rawURL) > MaxURLLength {
		return false
	}
	return strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://")
}

// ExtractHost extracts the host from a URL.
func ExtractHost(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return strings.ToLower(u.Host), nil
}

// ExtractDomain extracts the lowercased domain of a URL, without port.
// Returns "" when the URL has no parseable host.
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// ExtractPath returns the path component of a URL, "/" when absent.
func ExtractPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// ResolveRelative resolves a possibly relative URL against a base URL.
func ResolveRelative(base, href string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	refURL, err := url.Parse(href)
	if err != nil {
		return "", err
	}

	return baseURL.ResolveReference(refURL).String(), nil
}

// IsSameHost checks if two URLs have the same host.
func IsSameHost(url1, url2 string) bool {
	host1, err1 := ExtractHost(url1)
	host2, err2 := ExtractHost(url2)
	if err1 != nil || err2 != nil {
		return false
	}
	return host1 == host2
}
