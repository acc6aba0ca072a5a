package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/unrolled/secure"
	"go.uber.org/zap"

	"github.com/draftsmith/draftsmith/internal/core"
	"github.com/draftsmith/draftsmith/internal/core/classify"
	"github.com/draftsmith/draftsmith/internal/core/engine"
	"github.com/draftsmith/draftsmith/internal/core/identity"
	apperrors "github.com/draftsmith/draftsmith/internal/errors"
	"github.com/draftsmith/draftsmith/internal/metrics"
	"github.com/draftsmith/draftsmith/internal/observability"
	"github.com/draftsmith/draftsmith/internal/server/middleware"
)

// RateLimitedMessage is the fixed body text of a rate-limit rejection.
const RateLimitedMessage = "Too many requests. Please try again later."

// Stage is a step of the request state machine.
type Stage string

const (
	StageReceived          Stage = "RECEIVED"
	StageHTTPSChecked      Stage = "HTTPS_CHECKED"
	StageRateChecked       Stage = "RATE_CHECKED"
	StageSanitized         Stage = "SANITIZED"
	StageDispatched        Stage = "DISPATCHED"
	StageSucceeded         Stage = "SUCCEEDED"
	StageClassifiedFailure Stage = "CLASSIFIED_FAILURE"
)

// Pipeline holds the state shared by every API route: the limiter, the
// response header policy and the production switch.
type Pipeline struct {
	Limiter *engine.RateLimiter

	// Headers sets the security header set on every response.
	Headers *secure.Secure

	// Redirect, when set, sends plain-HTTP requests to https.
	Redirect *secure.Secure

	Origins middleware.OriginAllowList

	// MaxBodyBytes bounds request bodies; zero disables the bound.
	MaxBodyBytes int64

	// Identify derives the client key; identity.Identify when nil.
	Identify func(http.Header) core.ClientKey

	Clock func() time.Time
}

// Exchange is the per-request state handed to a route's dispatch step.
type Exchange struct {
	Endpoint  core.Endpoint
	Client    core.ClientKey
	RequestID string
	Request   *http.Request
}

// Route binds an endpoint to its input preparation and dispatch steps.
// Prepare decodes and sanitizes the body; its errors become 400-class
// responses and Dispatch is never reached. Dispatch errors are classified.
type Route[T any] struct {
	Endpoint core.Endpoint
	Prepare  func(r *http.Request) (T, error)
	Dispatch func(ctx context.Context, ex Exchange, in T) (any, error)
}

// Handle builds the HTTP handler running route through every pipeline stage.
func Handle[T any](p *Pipeline, route Route[T]) http.HandlerFunc {
	endpoint := string(route.Endpoint)

	return func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		_ = p.headers().Process(w, r)
		middleware.ApplyCORSHeaders(header, p.Origins, r.Header.Get("Origin"))

		requestID := middleware.GetRequestID(r.Context())
		stage := StageReceived

		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				metrics.RecordPanic()
				if observability.ServerLogger != nil {
					observability.ServerLogger.Error("Panic in request pipeline",
						zap.String("endpoint", endpoint),
						zap.String("stage", string(stage)),
						zap.Any("panic", rec),
						zap.String("request_id", requestID),
					)
				}
				middleware.WriteFallback(w, r, requestID)
			}
		}()

		if r.Method == http.MethodOptions {
			header.Set("Access-Control-Max-Age", middleware.CORSMaxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if p.Redirect != nil {
			if err := p.Redirect.Process(w, r); err != nil {
				logStage(endpoint, stage, requestID, zap.String("outcome", "https_redirect"))
				return
			}
		}
		stage = StageHTTPSChecked

		client := p.identify(r.Header)
		decision := p.Limiter.Decide(r.Context(), endpoint, client)
		if decision.Limit > 0 {
			header.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			header.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		}
		if !decision.Allowed {
			p.rejectRateLimited(w, endpoint, client, requestID, decision)
			return
		}
		stage = StageRateChecked

		if p.MaxBodyBytes > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, p.MaxBodyBytes)
		}

		input, err := route.Prepare(r)
		if err != nil {
			rejectInput(w, r, endpoint, requestID, err)
			return
		}
		stage = StageSanitized

		ex := Exchange{
			Endpoint:  route.Endpoint,
			Client:    client,
			RequestID: requestID,
			Request:   r,
		}
		stage = StageDispatched
		logStage(endpoint, stage, requestID)

		data, err := route.Dispatch(r.Context(), ex, input)
		if err != nil {
			stage = StageClassifiedFailure
			classified := classify.Classify(err, classify.Context{Operation: endpoint})
			apperrors.RespondClassified(w, r, endpoint, classified)
			return
		}

		stage = StageSucceeded
		logStage(endpoint, stage, requestID)
		apperrors.RespondSuccess(w, r, http.StatusOK, data)
	}
}

func (p *Pipeline) rejectRateLimited(w http.ResponseWriter, endpoint string, client core.ClientKey, requestID string, decision engine.Decision) {
	retryAfter := decision.RetryAfter(p.now())
	seconds := int((retryAfter + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))

	metrics.RecordRateLimitRejection(endpoint)
	if observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Rate limit exceeded",
			zap.String("endpoint", endpoint),
			zap.String("client", string(client)),
			zap.Int("limit", decision.Limit),
			zap.Time("reset_at", decision.ResetAt),
			zap.String("request_id", requestID),
		)
	}

	apperrors.WriteJSON(w, http.StatusTooManyRequests, apperrors.Response{
		Success:   false,
		Error:     RateLimitedMessage,
		RequestID: requestID,
	})
}

// rejectInput answers a failed preparation step with the classified user
// message. API key format failures keep the classifier's status so callers
// receive the key recovery actions; every other failure is 400-class.
func rejectInput(w http.ResponseWriter, r *http.Request, endpoint, requestID string, err error) {
	classified := classify.Classify(err, classify.Context{Operation: endpoint})

	metrics.RecordSanitizerRejection(endpoint, string(classified.Code))
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Request input rejected",
			zap.String("endpoint", endpoint),
			zap.String("code", string(classified.Code)),
			zap.Error(err),
			zap.String("request_id", requestID),
		)
	}

	if code, ok := identity.KeyErrorCode(err); ok && code == core.ErrorInvalidAPIKey {
		apperrors.RespondClassified(w, r, endpoint, classified)
		return
	}

	status := classified.ResponseStatus()
	if status >= http.StatusInternalServerError {
		status = http.StatusBadRequest
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
	}

	resp := apperrors.Response{
		Success:   false,
		Error:     classified.UserMessage,
		Code:      string(classified.Code),
		Actions:   classified.Actions,
		RequestID: requestID,
	}
	if apperrors.ExposeDetails() {
		resp.Details = classified.TechnicalMessage
	}
	apperrors.WriteJSON(w, status, resp)
}

func logStage(endpoint string, stage Stage, requestID string, extra ...zap.Field) {
	if observability.ServerLogger == nil {
		return
	}
	fields := append([]zap.Field{
		zap.String("endpoint", endpoint),
		zap.String("stage", string(stage)),
		zap.String("request_id", requestID),
	}, extra...)
	observability.ServerLogger.Debug("Request stage", fields...)
}

func (p *Pipeline) headers() *secure.Secure {
	if p.Headers != nil {
		return p.Headers
	}
	return defaultHeaders
}

var defaultHeaders = middleware.NewSecureHeaders()

func (p *Pipeline) identify(h http.Header) core.ClientKey {
	if p.Identify != nil {
		return p.Identify(h)
	}
	return identity.Identify(h)
}

func (p *Pipeline) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now()
}
