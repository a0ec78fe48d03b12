package urlutil

import "net/url"

// NormalizeBase turns a service base URL into the single spelling every
// derived request URL is built from:
//   - Scheme and host are lowercased
//   - Default ports are omitted (:80 for http, :443 for https)
//   - Trailing slashes are removed, the root path included
//   - Query and fragment are dropped
//
// NormalizeBase is pure and idempotent and never mutates its input.
func NormalizeBase(base url.URL) url.URL {
	normalized := base

	normalized.Scheme = lowerASCII(normalized.Scheme)
	normalized.Host = lowerASCII(normalized.Host)

	if host, port := normalized.Hostname(), normalized.Port(); port != "" {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	normalized.Path = stripTrailingSlash(normalized.Path)
	normalized.RawPath = stripTrailingSlash(normalized.RawPath)

	normalized.Fragment = ""
	normalized.RawFragment = ""
	normalized.RawQuery = ""
	normalized.ForceQuery = false

	return normalized
}

// JoinBase returns base followed by path, path starting with "/".
func JoinBase(base url.URL, path string) string {
	normalized := NormalizeBase(base)
	return normalized.String() + path
}

// lowerASCII converts ASCII characters to lowercase, allocating only when needed.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

func stripTrailingSlash(path string) string {
	for len(path) > 0 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}
