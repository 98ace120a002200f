// Package urlutil provides URL normalization and domain-scope checks.
package urlutil

import (
	"net/url"
	"strings"
)

// rejectedPrefixes are href prefixes that never resolve to a fetchable URL.
var rejectedPrefixes = []string{"mailto:", "javascript:", "tel:", "#"}

// NormalizeStarts prepares seed URLs for enqueue: it drops empty inputs,
// prepends "https://" when no scheme is present, and strips any fragment.
// Input order is preserved; duplicates are not removed.
func NormalizeStarts(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if u.Scheme == "" {
			u, err = url.Parse("https://" + raw)
			if err != nil {
				continue
			}
		}
		u.Fragment = ""
		out = append(out, u.String())
	}
	return out
}

// NormalizeLink resolves href against base and returns the absolute,
// fragment-stripped URL. It rejects mailto:, javascript:, tel:, and
// fragment-only hrefs, and anything that does not resolve to http(s).
func NormalizeLink(base, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	for _, prefix := range rejectedPrefixes {
		if strings.HasPrefix(href, prefix) {
			return "", false
		}
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	resolved := baseURL.ResolveReference(ref)
	resolved.Fragment = ""

	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	return resolved.String(), true
}

// IsAllowedDomain reports whether url's host is in scope. An empty allowed
// list means allow-all. A host is in scope if it equals an allowed domain
// or is a subdomain of one (leading dots on configured domains are
// stripped before comparison).
func IsAllowedDomain(rawURL string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	host, err := ExtractHost(rawURL)
	if err != nil || host == "" {
		return false
	}
	for _, domain := range allowed {
		domain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "."))
		if domain == "" {
			continue
		}
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// ExtractHost returns the lowercased host (without port) of a URL.
func ExtractHost(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return strings.ToLower(u.Hostname()), nil
}
