package classify

import (
	"errors"
	"net/http"
	"strings"

	"github.com/draftsmith/draftsmith/internal/core"
	"github.com/draftsmith/draftsmith/internal/core/identity"
	"github.com/draftsmith/draftsmith/internal/core/sanitize"
)

// rule pairs a code with a structural predicate and the message fragments
// used only when the failure carries no structure.
type rule struct {
	code      core.ErrorCode
	matches   func(f Failure) bool
	fragments []string
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{
		code: core.ErrorInvalidAPIKey,
		matches: func(f Failure) bool {
			if f.Kind == KindKey {
				code, _ := identity.KeyErrorCode(f.Err)
				return code == core.ErrorInvalidAPIKey
			}
			return upstream(f) && (f.StatusCode == http.StatusUnauthorized ||
				f.Reason == "API_KEY_INVALID" ||
				(f.StatusCode == http.StatusBadRequest && mentionsInvalidKey(lower(f))))
		},
		fragments: []string{"api key not valid", "invalid api key", "api key invalid", "api_key_invalid", "unauthorized"},
	},
	{
		code: core.ErrorAPIKeyExpired,
		matches: func(f Failure) bool {
			return upstream(f) && (f.StatusCode == http.StatusForbidden ||
				f.Reason == "API_KEY_EXPIRED" ||
				f.Status == "PERMISSION_DENIED")
		},
		fragments: []string{"api key expired", "permission denied", "forbidden"},
	},
	{
		code: core.ErrorRateLimited,
		matches: func(f Failure) bool {
			return upstream(f) && (f.StatusCode == http.StatusTooManyRequests || f.Status == "RESOURCE_EXHAUSTED")
		},
		fragments: []string{"rate limit", "quota", "too many requests", "resource exhausted"},
	},
	{
		code: core.ErrorServiceUnavailable,
		matches: func(f Failure) bool {
			return upstream(f) && (f.StatusCode >= http.StatusInternalServerError || f.Status == "UNAVAILABLE")
		},
		fragments: []string{"service unavailable", "temporarily unavailable", "overloaded", "maintenance"},
	},
	{
		code:      core.ErrorTimeout,
		matches:   func(f Failure) bool { return f.Kind == KindTimeout },
		fragments: []string{"timeout", "timed out", "deadline exceeded", "aborted"},
	},
	{
		code:      core.ErrorNetwork,
		matches:   func(f Failure) bool { return f.Kind == KindNetwork },
		fragments: []string{"network", "fetch failed", "connection refused", "connection reset", "no such host", "econnreset", "enotfound"},
	},
	{
		code:      core.ErrorSafetyViolation,
		matches:   func(f Failure) bool { return f.Kind == KindSafety },
		fragments: []string{"safety", "recitation", "blocked"},
	},
	{
		code: core.ErrorEmptyContent,
		matches: func(f Failure) bool {
			return f.Kind == KindInput && errors.Is(f.Err, sanitize.ErrEmptyContent)
		},
	},
	{
		code: core.ErrorContentTooLong,
		matches: func(f Failure) bool {
			return f.Kind == KindInput && errors.Is(f.Err, sanitize.ErrContentTooLong)
		},
	},
	{
		code: core.ErrorInvalidInput,
		matches: func(f Failure) bool {
			return f.Kind == KindInput || f.Kind == KindKey ||
				(upstream(f) && f.StatusCode == http.StatusBadRequest)
		},
		fragments: []string{"invalid argument", "invalid input", "bad request"},
	},
}

func match(f Failure) core.ErrorCode {
	message := lower(f)
	for _, r := range rules {
		if r.matches(f) {
			return r.code
		}
		if f.Kind == KindUnstructured && containsAny(message, r.fragments) {
			return r.code
		}
	}
	return core.ErrorUnknown
}

func upstream(f Failure) bool {
	return f.Kind == KindHTTP || f.Kind == KindProvider
}

func lower(f Failure) string {
	return strings.ToLower(f.Message)
}

func mentionsInvalidKey(message string) bool {
	if !strings.Contains(message, "api key") && !strings.Contains(message, "api_key") {
		return false
	}
	return strings.Contains(message, "invalid") || strings.Contains(message, "not valid")
}

func containsAny(message string, fragments []string) bool {
	if message == "" {
		return false
	}
	for _, fragment := range fragments {
		if strings.Contains(message, fragment) {
			return true
		}
	}
	return false
}

func isSanitizeError(err error) bool {
	return errors.Is(err, sanitize.ErrEmptyContent) || errors.Is(err, sanitize.ErrContentTooLong)
}
