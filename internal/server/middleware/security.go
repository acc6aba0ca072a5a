package middleware

import (
	"net/http"
	"strings"

	"github.com/unrolled/secure"
)

// Fixed security header values.
const (
	HSTSMaxAgeSeconds       = 31536000
	HeaderPermissionsPolicy = "camera=(), microphone=(), geolocation=()"
	HeaderReferrerPolicy    = "strict-origin-when-cross-origin"
)

// forwardedHTTPS marks a request as TLS-terminated by the proxy in front.
var forwardedHTTPS = map[string]string{"X-Forwarded-Proto": "https"}

// ContentSecurityPolicy builds the policy header value. connectOrigins are
// appended to connect-src after 'self'.
func ContentSecurityPolicy(connectOrigins ...string) string {
	connect := []string{"'self'"}
	for _, origin := range connectOrigins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			connect = append(connect, origin)
		}
	}

	return strings.Join([]string{
		"default-src 'self'",
		"script-src 'self'",
		"style-src 'self' 'unsafe-inline'",
		"img-src 'self' data:",
		"connect-src " + strings.Join(connect, " "),
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self'",
	}, "; ")
}

// NewSecureHeaders returns the header policy applied to every response.
// HSTS is sent on plain HTTP too, since TLS usually ends at the proxy.
func NewSecureHeaders(connectOrigins ...string) *secure.Secure {
	return secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		STSSeconds:            HSTSMaxAgeSeconds,
		STSIncludeSubdomains:  true,
		ForceSTSHeader:        true,
		ContentSecurityPolicy: ContentSecurityPolicy(connectOrigins...),
		ReferrerPolicy:        HeaderReferrerPolicy,
		PermissionsPolicy:     HeaderPermissionsPolicy,
	})
}

// NewHTTPSRedirect returns a policy that answers plain-HTTP requests with a
// 301 to the same path on https. The target host is always r.Host;
// forwarded host headers are ignored.
func NewHTTPSRedirect() *secure.Secure {
	return secure.New(secure.Options{
		SSLRedirect:     true,
		SSLProxyHeaders: forwardedHTTPS,
	})
}

// SecurityHeaders applies the security header set to every response before
// the handler runs, so short-circuits and panics carry them too.
func SecurityHeaders(connectOrigins ...string) func(http.Handler) http.Handler {
	return NewSecureHeaders(connectOrigins...).Handler
}

// HTTPSRedirect redirects plain-HTTP requests when enabled.
func HTTPSRedirect(enabled bool) func(http.Handler) http.Handler {
	if !enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return NewHTTPSRedirect().Handler
}

// fallbackHeaders backs WriteFallback, which may run before any policy did.
var fallbackHeaders = NewSecureHeaders()
