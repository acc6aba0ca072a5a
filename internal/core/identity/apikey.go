package identity

import (
	"errors"
	"regexp"
	"strings"

	"github.com/draftsmith/draftsmith/internal/core"
)

const (
	apiKeyMinLength = 20
	apiKeyMaxLength = 50
	apiKeyPrefix    = "AI"
)

var (
	ErrAPIKeyMissing     = errors.New("API key is required")
	ErrAPIKeyLength      = errors.New("API key must be between 20 and 50 characters")
	ErrAPIKeyPrefix      = errors.New("API key must start with AI")
	ErrAPIKeyCharacters  = errors.New("API key may only contain letters, digits, underscores and hyphens")
	ErrAPIKeyPlaceholder = errors.New("API key looks like a placeholder")
)

var (
	apiKeyPattern      = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	placeholderMarkers = []string{"test", "demo", "example"}
)

// ValidateAPIKey checks the shape of a provider key. It does not prove the
// key is live; only the provider can do that.
func ValidateAPIKey(key string) error {
	switch {
	case key == "":
		return ErrAPIKeyMissing
	case len(key) < apiKeyMinLength || len(key) > apiKeyMaxLength:
		return ErrAPIKeyLength
	case !strings.HasPrefix(key, apiKeyPrefix):
		return ErrAPIKeyPrefix
	case !apiKeyPattern.MatchString(key):
		return ErrAPIKeyCharacters
	}

	lowered := strings.ToLower(key)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lowered, marker) {
			return ErrAPIKeyPlaceholder
		}
	}
	return nil
}

// KeyErrorCode maps a validation failure to its error code. A missing key is
// an input problem; any malformed key is reported as an invalid key.
func KeyErrorCode(err error) (core.ErrorCode, bool) {
	switch {
	case errors.Is(err, ErrAPIKeyMissing):
		return core.ErrorInvalidInput, true
	case errors.Is(err, ErrAPIKeyLength),
		errors.Is(err, ErrAPIKeyPrefix),
		errors.Is(err, ErrAPIKeyCharacters),
		errors.Is(err, ErrAPIKeyPlaceholder):
		return core.ErrorInvalidAPIKey, true
	default:
		return "", false
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(authorization string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Redact shortens a key for logs.
func Redact(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "..." + key[len(key)-4:]
}
