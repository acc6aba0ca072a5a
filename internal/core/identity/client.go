// Package identity derives caller fingerprints and checks API key format.
package identity

import (
	"net/http"
	"strings"

	"github.com/draftsmith/draftsmith/internal/core"
)

const (
	unknown            = "unknown"
	userAgentKeyLength = 50
)

// addressHeaders are consulted in order; the first non-empty value wins.
var addressHeaders = []string{"X-Forwarded-For", "X-Real-IP", "CF-Connecting-IP"}

// Identify derives the rate limiting subject for a request from its headers.
func Identify(header http.Header) core.ClientKey {
	return core.ClientKey(clientAddress(header) + ":" + userAgentPrefix(header.Get("User-Agent")))
}

func clientAddress(header http.Header) string {
	for _, name := range addressHeaders {
		value := header.Get(name)
		if value == "" {
			continue
		}
		if name == "X-Forwarded-For" {
			value, _, _ = strings.Cut(value, ",")
		}
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return unknown
}

func userAgentPrefix(userAgent string) string {
	if userAgent == "" {
		return unknown
	}
	runes := []rune(userAgent)
	if len(runes) > userAgentKeyLength {
		runes = runes[:userAgentKeyLength]
	}
	return string(runes)
}
