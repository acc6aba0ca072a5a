package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/draftsmith/draftsmith/internal/core"
	"github.com/draftsmith/draftsmith/internal/core/classify"
	"github.com/draftsmith/draftsmith/internal/core/sanitize"
	"github.com/draftsmith/draftsmith/internal/core/store"
	"github.com/draftsmith/draftsmith/internal/observability"
)

// Field limits for client event payloads, in characters.
const (
	maxEventNameLength  = 100
	maxPageLength       = 500
	maxMetadataEntries  = 20
	maxMetadataKeyLen   = 64
	maxMetadataValueLen = 500
	maxErrorMessageLen  = 2000
	maxErrorCodeLen     = 100
	maxStackLen         = 10000
	maxURLLength        = 2000
	maxUserAgentLength  = 500
)

// EventLogger persists client events. Writes are best effort.
type EventLogger interface {
	LogAnalyticsEvent(ctx context.Context, event store.AnalyticsEvent) (string, error)
	LogError(ctx context.Context, entry store.ErrorLog) (string, error)
}

// AnalyticsBody is the JSON body of POST /api/analytics.
type AnalyticsBody struct {
	Event    string            `json:"event"`
	Page     string            `json:"page,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ErrorBody is the JSON body of POST /api/errors.
type ErrorBody struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	Stack     string `json:"stack,omitempty"`
	URL       string `json:"url,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// RecordData is the success payload of the event routes. ID is null when
// the event could not be stored.
type RecordData struct {
	ID *string `json:"id"`
}

// EventsHandler serves the analytics and client error routes.
type EventsHandler struct {
	Logger  EventLogger
	Timeout time.Duration
}

// AnalyticsRoute returns the pipeline route for analytics events.
func (h *EventsHandler) AnalyticsRoute() Route[store.AnalyticsEvent] {
	return Route[store.AnalyticsEvent]{
		Endpoint: core.EndpointAnalytics,
		Prepare:  prepareAnalytics,
		Dispatch: func(ctx context.Context, ex Exchange, event store.AnalyticsEvent) (any, error) {
			event.ClientKey = string(ex.Client)
			event.RequestID = ex.RequestID
			return h.record(ctx, ex, func(ctx context.Context) (string, error) {
				return h.Logger.LogAnalyticsEvent(ctx, event)
			}), nil
		},
	}
}

// ErrorsRoute returns the pipeline route for client error reports.
func (h *EventsHandler) ErrorsRoute() Route[store.ErrorLog] {
	return Route[store.ErrorLog]{
		Endpoint: core.EndpointErrors,
		Prepare:  prepareErrorLog,
		Dispatch: func(ctx context.Context, ex Exchange, entry store.ErrorLog) (any, error) {
			entry.ClientKey = string(ex.Client)
			entry.RequestID = ex.RequestID
			return h.record(ctx, ex, func(ctx context.Context) (string, error) {
				return h.Logger.LogError(ctx, entry)
			}), nil
		},
	}
}

func (h *EventsHandler) record(ctx context.Context, ex Exchange, write func(context.Context) (string, error)) RecordData {
	if h == nil || h.Logger == nil {
		return RecordData{}
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	id, err := write(ctx)
	if err != nil {
		if observability.ServerLogger != nil {
			observability.ServerLogger.Warn("Failed to store client event",
				zap.String("endpoint", string(ex.Endpoint)),
				zap.Error(err),
				zap.String("request_id", ex.RequestID),
			)
		}
		return RecordData{}
	}
	return RecordData{ID: &id}
}

func prepareAnalytics(r *http.Request) (store.AnalyticsEvent, error) {
	var body AnalyticsBody
	if err := decodeJSON(r, &body); err != nil {
		return store.AnalyticsEvent{}, err
	}

	event, err := sanitize.Optional(body.Event, maxEventNameLength)
	if err != nil {
		return store.AnalyticsEvent{}, err
	}
	if event == "" {
		return store.AnalyticsEvent{}, classify.InvalidInput("event is required")
	}

	page, err := sanitize.Optional(body.Page, maxPageLength)
	if err != nil {
		return store.AnalyticsEvent{}, err
	}

	if len(body.Metadata) > maxMetadataEntries {
		return store.AnalyticsEvent{}, classify.InvalidInput("metadata may hold at most %d entries", maxMetadataEntries)
	}
	var metadata map[string]string
	for key, value := range body.Metadata {
		cleanKey, err := sanitize.Optional(key, maxMetadataKeyLen)
		if err != nil {
			return store.AnalyticsEvent{}, err
		}
		cleanValue, err := sanitize.Optional(value, maxMetadataValueLen)
		if err != nil {
			return store.AnalyticsEvent{}, err
		}
		if cleanKey == "" {
			continue
		}
		if metadata == nil {
			metadata = make(map[string]string, len(body.Metadata))
		}
		metadata[cleanKey] = cleanValue
	}

	return store.AnalyticsEvent{Event: event, Page: page, Metadata: metadata}, nil
}

func prepareErrorLog(r *http.Request) (store.ErrorLog, error) {
	var body ErrorBody
	if err := decodeJSON(r, &body); err != nil {
		return store.ErrorLog{}, err
	}

	message, err := sanitize.Optional(body.Message, maxErrorMessageLen)
	if err != nil {
		return store.ErrorLog{}, err
	}
	if message == "" {
		return store.ErrorLog{}, classify.InvalidInput("message is required")
	}

	entry := store.ErrorLog{Message: message}
	fields := []struct {
		raw   string
		limit int
		dst   *string
	}{
		{body.Code, maxErrorCodeLen, &entry.Code},
		{body.Stack, maxStackLen, &entry.Stack},
		{body.URL, maxURLLength, &entry.URL},
		{body.UserAgent, maxUserAgentLength, &entry.UserAgent},
	}
	for _, field := range fields {
		clean, err := sanitize.Optional(field.raw, field.limit)
		if err != nil {
			return store.ErrorLog{}, err
		}
		*field.dst = clean
	}

	return entry, nil
}
