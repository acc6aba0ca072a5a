package errors

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/draftsmith/draftsmith/internal/core"
	"github.com/draftsmith/draftsmith/internal/core/classify"
	"github.com/draftsmith/draftsmith/internal/metrics"
	"github.com/draftsmith/draftsmith/internal/observability"
	"github.com/draftsmith/draftsmith/internal/server/middleware"
)

// Envelope codes that are not part of the classifier's code set.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeInternal         = "INTERNAL_ERROR"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeConfigInvalid    = "CONFIG_INVALID"
)

var exposeDetails atomic.Bool

// SetExposeDetails controls whether technical details reach API callers.
// Servers running in production leave this off.
func SetExposeDetails(enabled bool) {
	exposeDetails.Store(enabled)
}

// ExposeDetails reports whether technical details reach API callers.
func ExposeDetails() bool {
	return exposeDetails.Load()
}

// Error creation helpers for common error types

// User Errors (400-level)
func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(string(core.ErrorInvalidInput), message)
}

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

func NewRateLimitedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(string(core.ErrorRateLimited), message)
}

// Server Errors (500-level)
func NewInternalError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInternal, message)
}

func NewConfigInvalidError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeConfigInvalid, message)
}

// Wrap builds an envelope for err under code, correlated with the request
// carried by ctx.
func Wrap(ctx context.Context, code string, err error, message string) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(code, message)
	envelope = envelope.WithCorrelationID(extractCorrelationID(ctx))
	return withWrappedError(envelope, err)
}

func WrapInvalidInput(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, string(core.ErrorInvalidInput), err, message)
}

func WrapInternal(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	envelope := Wrap(ctx, CodeInternal, err, message)
	envelope, _ = envelope.WithSeverity(errors.SeverityHigh)
	return envelope
}

func WrapConfigInvalid(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	envelope := Wrap(ctx, CodeConfigInvalid, err, message)
	envelope, _ = envelope.WithSeverity(errors.SeverityCritical)
	return envelope
}

func WrapStoreUnavailable(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	envelope := Wrap(ctx, CodeStoreUnavailable, err, message)
	envelope, _ = envelope.WithSeverity(errors.SeverityMedium)
	return envelope
}

// extractCorrelationID gets correlation ID from context, falls back to generating new UUID
func extractCorrelationID(ctx context.Context) string {
	if ctx != nil {
		if requestID := middleware.GetRequestID(ctx); requestID != "" {
			return requestID
		}
	}
	return uuid.New().String()
}

// EnsureEnvelope normalizes any error into a gofulmen ErrorEnvelope.
// Classified errors keep their code and user-facing message.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	if err == nil {
		env := errors.NewErrorEnvelope(CodeInternal, "unexpected nil error")
		env, _ = env.WithSeverity(errors.SeverityCritical)
		return env
	}

	if envelope, ok := err.(*errors.ErrorEnvelope); ok && envelope != nil {
		return envelope
	}

	if classified, ok := err.(*classify.ClassifiedError); ok && classified != nil {
		env := errors.NewErrorEnvelope(string(classified.Code), classified.UserMessage)
		env, _ = env.WithContext(map[string]interface{}{
			"technical_message": classified.TechnicalMessage,
		})
		return withSeverityFor(env, classified.Code)
	}

	env := errors.NewErrorEnvelope(CodeInternal, "unexpected error")
	env, _ = env.WithContext(map[string]interface{}{
		"wrapped_error": err.Error(),
	})
	env, _ = env.WithSeverity(errors.SeverityHigh)
	return env
}

// EnsureCorrelationID attaches a correlation ID to the envelope using the context when available.
func EnsureCorrelationID(envelope *errors.ErrorEnvelope, ctx context.Context) *errors.ErrorEnvelope {
	if envelope == nil {
		return nil
	}

	if envelope.CorrelationID != "" {
		return envelope
	}

	var correlationID string
	if ctx != nil {
		correlationID = middleware.GetRequestID(ctx)
	}

	if correlationID == "" {
		correlationID = "fallback-" + errors.GenerateCorrelationID()
	}

	return envelope.WithCorrelationID(correlationID)
}

// HTTPStatusFromEnvelope resolves the HTTP status code corresponding to an error envelope.
func HTTPStatusFromEnvelope(envelope *errors.ErrorEnvelope) int {
	if envelope == nil {
		return http.StatusInternalServerError
	}
	return HTTPStatusFromCode(envelope.Code)
}

// HTTPStatusFromCode resolves the HTTP status code corresponding to an error code.
func HTTPStatusFromCode(code string) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case CodeInternal, CodeConfigInvalid:
		return http.StatusInternalServerError
	}
	return classify.Catalog(core.ErrorCode(code)).ResponseStatus()
}

// withSeverityFor marks server-side failures. Caller mistakes carry no
// severity and are logged at info.
func withSeverityFor(env *errors.ErrorEnvelope, code core.ErrorCode) *errors.ErrorEnvelope {
	switch code {
	case core.ErrorUnknown:
		env, _ = env.WithSeverity(errors.SeverityHigh)
	case core.ErrorServiceUnavailable, core.ErrorNetwork, core.ErrorTimeout, core.ErrorAPIKeyExpired:
		env, _ = env.WithSeverity(errors.SeverityMedium)
	}
	return env
}

func withWrappedError(envelope *errors.ErrorEnvelope, err error) *errors.ErrorEnvelope {
	if envelope == nil || err == nil {
		return envelope
	}

	updated, updateErr := envelope.WithContext(map[string]interface{}{
		"wrapped_error": err.Error(),
	})
	if updateErr != nil {
		return envelope
	}
	return updated
}

// ResponseDetails constructs API-safe details map by merging envelope details and context.
func ResponseDetails(envelope *errors.ErrorEnvelope) map[string]interface{} {
	if envelope == nil {
		return nil
	}

	details := make(map[string]interface{})

	for key, value := range envelope.Details {
		details[key] = value
	}

	for key, value := range envelope.Context {
		if _, exists := details[key]; !exists {
			details[key] = value
		}
	}

	if len(details) == 0 {
		return nil
	}

	return details
}

// Response is the JSON envelope returned by every API route.
type Response struct {
	Success   bool                      `json:"success"`
	Data      any                       `json:"data,omitempty"`
	Error     string                    `json:"error,omitempty"`
	Details   any                       `json:"details,omitempty"`
	Code      string                    `json:"code,omitempty"`
	Actions   []classify.RecoveryAction `json:"actions,omitempty"`
	RequestID string                    `json:"request_id,omitempty"`
}

// WriteJSON writes resp with the given status.
func WriteJSON(w http.ResponseWriter, status int, resp Response) {
	WriteRaw(w, status, resp)
}

// WriteRaw writes v as JSON without the response envelope, for probe and
// version endpoints.
func WriteRaw(w http.ResponseWriter, status int, v any) {
	if w == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RespondSuccess writes a success envelope carrying data.
func RespondSuccess(w http.ResponseWriter, r *http.Request, status int, data any) {
	resp := Response{Success: true, Data: data}
	if r != nil {
		resp.RequestID = middleware.GetRequestID(r.Context())
	}
	WriteJSON(w, status, resp)
}

// RespondClassified writes a failure envelope for a classified error. The
// technical message is included only when details are exposed.
func RespondClassified(w http.ResponseWriter, r *http.Request, endpoint string, classified *classify.ClassifiedError) {
	if classified == nil {
		classified = classify.Catalog(core.ErrorUnknown)
	}

	status := classified.ResponseStatus()
	resp := Response{
		Success: false,
		Error:   classified.UserMessage,
		Code:    string(classified.Code),
		Actions: classified.Actions,
	}
	if ExposeDetails() {
		resp.Details = classified.TechnicalMessage
	}

	var requestID string
	if r != nil {
		requestID = middleware.GetRequestID(r.Context())
		resp.RequestID = requestID
	}

	logClassified(classified, endpoint, status, requestID)
	metrics.RecordClassifiedError(endpoint, string(classified.Code), classified.Cause)

	WriteJSON(w, status, resp)
}

// RespondWithError normalizes the supplied error and writes a JSON response.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	RespondWithEnvelope(w, r, EnsureEnvelope(err))
}

// RespondWithEnvelope finalizes the provided envelope, logging and emitting metrics.
func RespondWithEnvelope(w http.ResponseWriter, r *http.Request, envelope *errors.ErrorEnvelope) {
	if w == nil {
		return
	}

	if r != nil {
		envelope = EnsureCorrelationID(envelope, r.Context())
	} else {
		envelope = EnsureCorrelationID(envelope, nil)
	}

	statusCode := HTTPStatusFromEnvelope(envelope)

	response := Response{
		Success:   false,
		Error:     envelope.Message,
		Code:      envelope.Code,
		RequestID: envelope.CorrelationID,
	}
	if ExposeDetails() {
		if details := ResponseDetails(envelope); details != nil {
			response.Details = details
		}
	}

	logHTTPError(envelope, statusCode)
	emitErrorMetrics(r, envelope, statusCode)

	WriteJSON(w, statusCode, response)
}

func logClassified(classified *classify.ClassifiedError, endpoint string, status int, requestID string) {
	if observability.ServerLogger == nil {
		return
	}

	fields := []zap.Field{
		zap.String("error_code", string(classified.Code)),
		zap.String("endpoint", endpoint),
		zap.Int("http_status", status),
		zap.String("technical_message", classified.TechnicalMessage),
		zap.String("request_id", requestID),
	}
	if classified.HTTPStatus != 0 {
		fields = append(fields, zap.Int("upstream_status", classified.HTTPStatus))
	}
	if classified.Cause != "" {
		fields = append(fields, zap.String("cause", classified.Cause))
	}

	if classified.Code == core.ErrorUnknown {
		observability.ServerLogger.Error("Request failed", fields...)
		return
	}
	observability.ServerLogger.Warn("Request failed", fields...)
}

func logHTTPError(envelope *errors.ErrorEnvelope, statusCode int) {
	if observability.ServerLogger == nil || envelope == nil {
		return
	}

	fields := []zap.Field{
		zap.String("error_code", envelope.Code),
		zap.Int("http_status", statusCode),
	}

	if envelope.Severity != "" {
		fields = append(fields, zap.String("severity", string(envelope.Severity)))
	}

	for key, value := range envelope.Context {
		fields = append(fields, zap.Any(key, value))
	}

	if envelope.CorrelationID != "" {
		fields = append(fields, zap.String("request_id", envelope.CorrelationID))
	}

	switch envelope.Severity {
	case errors.SeverityCritical, errors.SeverityHigh:
		observability.ServerLogger.Error(envelope.Message, fields...)
	case errors.SeverityMedium:
		observability.ServerLogger.Warn(envelope.Message, fields...)
	default:
		observability.ServerLogger.Info(envelope.Message, fields...)
	}
}

func emitErrorMetrics(r *http.Request, envelope *errors.ErrorEnvelope, statusCode int) {
	if envelope == nil {
		return
	}

	metrics.RecordError(envelope.Code, statusCode)
	if r != nil {
		metrics.RecordErrorByEndpoint(r.URL.Path, envelope.Code)
	}
}
