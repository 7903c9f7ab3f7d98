package utils

import (
	"net/url"
	"path"
	"strings"
)

// IsHTTPURL reports whether s looks like an http(s) URL.
func IsHTTPURL(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// BasenameFromURL returns the last path segment of raw, or "remote.bin"
// when there is none.
func BasenameFromURL(raw string) string {
	const fallback = "remote.bin"
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		return fallback
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	return base
}

// StripExt removes the final extension from name.
func StripExt(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}
