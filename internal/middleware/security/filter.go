// Package security filters obvious scanner and attack traffic before it
// reaches the API handlers.
package security

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// probePaths are exempt from filtering
var probePaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
}

// scannerPrefixes are path prefixes no legitimate client of this API
// requests; they show up constantly on anything listening on a public port
var scannerPrefixes = []string{
	"/.php",
	"/wp-admin",
	"/wp-includes",
	"/wp-content",
	"/wp-login",
	"/.git/",
	"/.env",
	"/web-inf/",
	"/cgi-bin/",
	"/admin/",
	"/phpmyadmin",
	"/phpinfo",
	"/shell",
	"/config.",
	"/.htaccess",
	"/.htpasswd",
	"/server-status",
	"/xmlrpc.php",
}

// traversalPatterns catch path traversal and null-byte tricks anywhere in
// the path, including URL-encoded variants
var traversalPatterns = []string{
	"../",
	"..%2f",
	"..%5c",
	"%2e%2e/",
	"%00",
}

// Middleware returns middleware that rejects requests matching known attack
// patterns with a generic 400. Probe paths bypass the filter.
func Middleware(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if probePaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			if blockedPath(r.URL) {
				writeBlockedResponse(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// blockedPath reports whether the request path matches a scanner prefix or
// a traversal pattern, in both raw and decoded form.
func blockedPath(u *url.URL) bool {
	path := strings.ToLower(u.Path)

	for _, prefix := range scannerPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	if containsTraversal(path) {
		return true
	}

	// Re-check the escaped form; the router may have decoded the tricks away
	rawPath := u.RawPath
	if rawPath == "" {
		rawPath = u.Path
	}
	decoded, err := url.PathUnescape(rawPath)
	if err == nil && !strings.EqualFold(decoded, path) {
		return containsTraversal(strings.ToLower(decoded))
	}

	return false
}

func containsTraversal(path string) bool {
	for _, pattern := range traversalPatterns {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}

// writeBlockedResponse answers with a generic 400 that does not reveal what
// triggered the block
func writeBlockedResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    "BAD_REQUEST",
			"message": "Invalid request",
		},
	})
}
