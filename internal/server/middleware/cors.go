package middleware

import (
	"net/http"
	"strings"
)

// CORS header values advertised on every API response.
const (
	CORSAllowMethods = "GET, POST, OPTIONS"
	CORSAllowHeaders = "Content-Type, Authorization"
	CORSMaxAge       = "86400"
)

// OriginAllowList is an exact-match set of allowed origins.
type OriginAllowList map[string]struct{}

// NewOriginAllowList builds an allow-list. Trailing slashes are ignored.
func NewOriginAllowList(origins []string) OriginAllowList {
	list := make(OriginAllowList, len(origins))
	for _, origin := range origins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			list[origin] = struct{}{}
		}
	}
	return list
}

// Allows reports whether origin is on the list.
func (l OriginAllowList) Allows(origin string) bool {
	if origin == "" {
		return false
	}
	_, ok := l[origin]
	return ok
}

// ApplyCORSHeaders reflects origin only when allowed and always advertises
// the allowed methods and headers.
func ApplyCORSHeaders(h http.Header, allowed OriginAllowList, origin string) {
	if allowed.Allows(origin) {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
	}
	h.Set("Access-Control-Allow-Methods", CORSAllowMethods)
	h.Set("Access-Control-Allow-Headers", CORSAllowHeaders)
}

// CORS applies CORS headers and answers preflight requests with 204.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := NewOriginAllowList(origins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ApplyCORSHeaders(w.Header(), allowed, r.Header.Get("Origin"))
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Max-Age", CORSMaxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
