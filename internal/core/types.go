package core

// ClientKey is the best-effort caller fingerprint used as the rate limiting
// subject: the first proxy-reported address joined to a truncated user agent.
// It is not an authentication credential and collisions are acceptable.
type ClientKey string

// Endpoint names a rate limited API surface.
type Endpoint string

const (
	EndpointGenerate  Endpoint = "generate"
	EndpointAnalytics Endpoint = "analytics"
	EndpointErrors    Endpoint = "errors"
	EndpointDefault   Endpoint = "default"
)

// ErrorCode is the closed taxonomy used for classified failures.
type ErrorCode string

const (
	ErrorInvalidAPIKey      ErrorCode = "INVALID_API_KEY"
	ErrorAPIKeyExpired      ErrorCode = "API_KEY_EXPIRED"
	ErrorRateLimited        ErrorCode = "RATE_LIMITED"
	ErrorServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrorTimeout            ErrorCode = "TIMEOUT"
	ErrorNetwork            ErrorCode = "NETWORK_ERROR"
	ErrorSafetyViolation    ErrorCode = "SAFETY_VIOLATION"
	ErrorInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrorEmptyContent       ErrorCode = "EMPTY_CONTENT"
	ErrorContentTooLong     ErrorCode = "CONTENT_TOO_LONG"
	ErrorUnknown            ErrorCode = "UNKNOWN_ERROR"
)

// ErrorCodes lists every code in precedence order.
var ErrorCodes = []ErrorCode{
	ErrorInvalidAPIKey,
	ErrorAPIKeyExpired,
	ErrorRateLimited,
	ErrorServiceUnavailable,
	ErrorTimeout,
	ErrorNetwork,
	ErrorSafetyViolation,
	ErrorInvalidInput,
	ErrorEmptyContent,
	ErrorContentTooLong,
	ErrorUnknown,
}

// ActionTag identifies a recovery action offered to the user.
type ActionTag string

const (
	ActionRetry           ActionTag = "retry"
	ActionWait            ActionTag = "wait"
	ActionUpdateAPIKey    ActionTag = "update_api_key"
	ActionAPIKeyHelp      ActionTag = "api_key_help"
	ActionCheckConnection ActionTag = "check_connection"
	ActionCheckStatus     ActionTag = "check_status"
	ActionEditContent     ActionTag = "edit_content"
	ActionShortenContent  ActionTag = "shorten_content"
	ActionContactSupport  ActionTag = "contact_support"
)
