// Package classify maps failures from any stage of a request onto a closed
// set of error codes with user-facing messages and recovery actions.
package classify

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/draftsmith/draftsmith/internal/core"
)

// RecoveryAction is an action offered to the user.
type RecoveryAction struct {
	Tag     core.ActionTag `json:"tag"`
	Label   string         `json:"label"`
	Primary bool           `json:"primary"`
}

// ClassifiedError is the result of classification. Only UserMessage and
// Actions are meant for end users; TechnicalMessage is for logs and
// non-production responses.
type ClassifiedError struct {
	Code             core.ErrorCode   `json:"code"`
	UserMessage      string           `json:"userMessage"`
	TechnicalMessage string           `json:"technicalMessage"`
	HTTPStatus       int              `json:"httpStatus,omitempty"`
	Cause            string           `json:"cause,omitempty"`
	Actions          []RecoveryAction `json:"actions"`

	err error
}

func (e *ClassifiedError) Error() string {
	if e == nil {
		return string(core.ErrorUnknown)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.TechnicalMessage)
}

// Unwrap returns the classified error.
func (e *ClassifiedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Primary returns the primary recovery action.
func (e *ClassifiedError) Primary() RecoveryAction {
	for _, action := range e.Actions {
		if action.Primary {
			return action
		}
	}
	return RecoveryAction{}
}

// ResponseStatus is the HTTP status used when answering a caller with e.
func (e *ClassifiedError) ResponseStatus() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	if status, ok := responseStatus[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Retryable reports whether repeating the same call may succeed.
func (e *ClassifiedError) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Code {
	case core.ErrorServiceUnavailable, core.ErrorNetwork, core.ErrorRateLimited:
		return true
	default:
		return false
	}
}

// Context describes the call that failed.
type Context struct {
	Operation string
	Deadline  time.Duration
}

// Classify maps err to a ClassifiedError. Errors that are already
// classified are returned unchanged.
func Classify(err error, cctx ...Context) *ClassifiedError {
	var classified *ClassifiedError
	if errors.As(err, &classified) && classified != nil {
		return classified
	}
	return ClassifyFailure(FromError(err), cctx...)
}

// ClassifyResponse maps a non-2xx HTTP response.
func ClassifyResponse(statusCode int, body []byte, cctx ...Context) *ClassifiedError {
	return ClassifyFailure(FromResponse(statusCode, body), cctx...)
}

// ClassifyFailure maps a normalized failure.
func ClassifyFailure(f Failure, cctx ...Context) *ClassifiedError {
	code := match(f)
	out := &ClassifiedError{
		Code:             code,
		UserMessage:      userMessage(code, f),
		TechnicalMessage: technicalMessage(f, cctx),
		Cause:            f.Cause,
		Actions:          actionsFor(code, f),
		err:              f.Err,
	}
	if upstream(f) {
		out.HTTPStatus = f.StatusCode
	}
	return out
}

// Catalog returns the classification for code with no failure detail, for
// listing and documentation.
func Catalog(code core.ErrorCode) *ClassifiedError {
	return &ClassifiedError{
		Code:        code,
		UserMessage: userMessage(code, Failure{}),
		Actions:     actionsFor(code, Failure{}),
	}
}

func technicalMessage(f Failure, cctx []Context) string {
	message := f.Message
	if message == "" && f.Err != nil {
		message = f.Err.Error()
	}
	if message == "" {
		message = "unknown failure"
	}
	if len(cctx) == 0 {
		return message
	}

	c := cctx[0]
	if f.Kind == KindTimeout && c.Deadline > 0 {
		message = fmt.Sprintf("%s (deadline %s)", message, c.Deadline)
	}
	if c.Operation != "" {
		message = c.Operation + ": " + message
	}
	return message
}

var responseStatus = map[core.ErrorCode]int{
	core.ErrorInvalidAPIKey:      http.StatusUnauthorized,
	core.ErrorAPIKeyExpired:      http.StatusForbidden,
	core.ErrorRateLimited:        http.StatusTooManyRequests,
	core.ErrorServiceUnavailable: http.StatusServiceUnavailable,
	core.ErrorTimeout:            http.StatusGatewayTimeout,
	core.ErrorNetwork:            http.StatusBadGateway,
	core.ErrorSafetyViolation:    http.StatusUnprocessableEntity,
	core.ErrorInvalidInput:       http.StatusBadRequest,
	core.ErrorEmptyContent:       http.StatusBadRequest,
	core.ErrorContentTooLong:     http.StatusBadRequest,
	core.ErrorUnknown:            http.StatusInternalServerError,
}

var userMessages = map[core.ErrorCode]string{
	core.ErrorInvalidAPIKey:      "Your API key is invalid. Please check it and try again.",
	core.ErrorAPIKeyExpired:      "Your API key has expired or does not have permission. Please update it.",
	core.ErrorRateLimited:        "Too many requests. Please wait a moment and try again.",
	core.ErrorServiceUnavailable: "The AI service is temporarily unavailable. Please try again shortly.",
	core.ErrorTimeout:            "The request took too long to complete. Please try again.",
	core.ErrorNetwork:            "Could not reach the AI service. Check your connection and try again.",
	core.ErrorSafetyViolation:    "The content could not be generated because of content restrictions. Please revise your request.",
	core.ErrorInvalidInput:       "The request was invalid. Please review your input and try again.",
	core.ErrorEmptyContent:       "Content cannot be empty. Please add some text and try again.",
	core.ErrorContentTooLong:     "Content is too long. Please shorten it and try again.",
	core.ErrorUnknown:            "Something went wrong. Please try again.",
}

var safetyMessages = map[string]string{
	"SAFETY":     "The content was blocked by safety filters. Please rephrase your request.",
	"RECITATION": "The response was blocked because it closely matched existing material. Please rephrase your request.",
	"MAX_TOKENS": "The response reached the maximum length. Try a shorter or more focused request.",
}

func userMessage(code core.ErrorCode, f Failure) string {
	if code == core.ErrorSafetyViolation {
		if message, ok := safetyMessages[f.Reason]; ok {
			return message
		}
	}
	if message, ok := userMessages[code]; ok {
		return message
	}
	return userMessages[core.ErrorUnknown]
}

var actionLabels = map[core.ActionTag]string{
	core.ActionRetry:           "Try again",
	core.ActionWait:            "Wait a minute",
	core.ActionUpdateAPIKey:    "Update API key",
	core.ActionAPIKeyHelp:      "How to get an API key",
	core.ActionCheckConnection: "Check your connection",
	core.ActionCheckStatus:     "Check service status",
	core.ActionEditContent:     "Edit your content",
	core.ActionShortenContent:  "Shorten your content",
	core.ActionContactSupport:  "Contact support",
}

// actionPlans lists actions per code; the first is primary.
var actionPlans = map[core.ErrorCode][]core.ActionTag{
	core.ErrorInvalidAPIKey:      {core.ActionUpdateAPIKey, core.ActionAPIKeyHelp},
	core.ErrorAPIKeyExpired:      {core.ActionUpdateAPIKey, core.ActionAPIKeyHelp},
	core.ErrorRateLimited:        {core.ActionRetry, core.ActionWait},
	core.ErrorServiceUnavailable: {core.ActionRetry, core.ActionCheckStatus},
	core.ErrorTimeout:            {core.ActionRetry, core.ActionShortenContent},
	core.ErrorNetwork:            {core.ActionRetry, core.ActionCheckConnection},
	core.ErrorSafetyViolation:    {core.ActionEditContent, core.ActionContactSupport},
	core.ErrorInvalidInput:       {core.ActionEditContent},
	core.ErrorEmptyContent:       {core.ActionEditContent},
	core.ErrorContentTooLong:     {core.ActionShortenContent, core.ActionEditContent},
	core.ErrorUnknown:            {core.ActionRetry, core.ActionContactSupport},
}

func actionsFor(code core.ErrorCode, f Failure) []RecoveryAction {
	plan, ok := actionPlans[code]
	if !ok {
		plan = actionPlans[core.ErrorUnknown]
	}
	if code == core.ErrorSafetyViolation && f.Reason == "MAX_TOKENS" {
		plan = []core.ActionTag{core.ActionShortenContent, core.ActionEditContent}
	}

	actions := make([]RecoveryAction, 0, len(plan))
	for i, tag := range plan {
		actions = append(actions, RecoveryAction{Tag: tag, Label: actionLabels[tag], Primary: i == 0})
	}
	return actions
}
