package urlutil

import (
	"net/url"
	"strings"
)

// BuildAbsolute builds an absolute URL from a base URL and a path. Paths that
// are already absolute http(s) URLs are returned unchanged.
func BuildAbsolute(base, path string) string {
	base = normalizeBaseURL(base)
	if path == "" {
		return base
	}
	if IsAbsolute(path) {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return base + path
	}
	return base + "/" + path
}

// IsAbsolute reports whether raw is an http(s) URL with a host.
func IsAbsolute(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Origin returns scheme://host[:port] of raw, or "" when raw is not an
// absolute http(s) URL.
func Origin(raw string) string {
	if !IsAbsolute(raw) {
		return ""
	}
	u, _ := url.Parse(strings.TrimSpace(raw))
	return u.Scheme + "://" + u.Host
}

func normalizeBaseURL(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/")
}
