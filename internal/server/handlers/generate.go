package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/draftsmith/draftsmith/internal/ailink"
	"github.com/draftsmith/draftsmith/internal/core"
	"github.com/draftsmith/draftsmith/internal/core/classify"
	"github.com/draftsmith/draftsmith/internal/core/engine"
	"github.com/draftsmith/draftsmith/internal/core/identity"
	"github.com/draftsmith/draftsmith/internal/core/sanitize"
	"github.com/draftsmith/draftsmith/internal/metrics"
	"github.com/draftsmith/draftsmith/internal/observability"
)

// Field limits for optional generation inputs, in characters.
const (
	maxToneLength     = 200
	maxAudienceLength = 500
	maxContextLength  = 2000
)

// GenerateBody is the JSON body of POST /api/generate.
type GenerateBody struct {
	Prompt      string `json:"prompt"`
	ContentType string `json:"contentType"`
	Tone        string `json:"tone,omitempty"`
	Audience    string `json:"audience,omitempty"`
	Context     string `json:"context,omitempty"`
}

// GenerateData is the success payload of POST /api/generate.
type GenerateData struct {
	Content     string             `json:"content"`
	ContentType ailink.ContentType `json:"contentType"`
	Model       string             `json:"model,omitempty"`
}

// GenerateHandler serves content generation.
type GenerateHandler struct {
	Orchestrator *engine.Orchestrator

	// FallbackAPIKey is used when the request has no Authorization header.
	FallbackAPIKey string
}

// Route returns the pipeline route for generation.
func (h *GenerateHandler) Route() Route[ailink.GenerateRequest] {
	return Route[ailink.GenerateRequest]{
		Endpoint: core.EndpointGenerate,
		Prepare:  h.prepare,
		Dispatch: h.dispatch,
	}
}

func (h *GenerateHandler) prepare(r *http.Request) (ailink.GenerateRequest, error) {
	var body GenerateBody
	if err := decodeJSON(r, &body); err != nil {
		return ailink.GenerateRequest{}, err
	}

	key := identity.BearerToken(r.Header.Get("Authorization"))
	if key == "" && strings.TrimSpace(r.Header.Get("Authorization")) == "" {
		key = h.FallbackAPIKey
	}
	if err := identity.ValidateAPIKey(key); err != nil {
		return ailink.GenerateRequest{}, err
	}

	contentType, err := ailink.ParseContentType(body.ContentType)
	if err != nil {
		return ailink.GenerateRequest{}, err
	}

	prompt, err := sanitize.EmailContent(body.Prompt)
	if err != nil {
		return ailink.GenerateRequest{}, err
	}
	tone, err := sanitize.Optional(body.Tone, maxToneLength)
	if err != nil {
		return ailink.GenerateRequest{}, err
	}
	audience, err := sanitize.Optional(body.Audience, maxAudienceLength)
	if err != nil {
		return ailink.GenerateRequest{}, err
	}
	extra, err := sanitize.Optional(body.Context, maxContextLength)
	if err != nil {
		return ailink.GenerateRequest{}, err
	}

	return ailink.GenerateRequest{
		Prompt:      prompt,
		ContentType: contentType,
		Tone:        tone,
		Audience:    audience,
		Context:     extra,
		APIKey:      key,
	}, nil
}

func (h *GenerateHandler) dispatch(ctx context.Context, ex Exchange, req ailink.GenerateRequest) (any, error) {
	outcome, err := h.Orchestrator.Generate(ctx, req)
	metrics.RecordDedup(outcome != nil && outcome.Shared, h.Orchestrator.Pending())
	if err != nil {
		return nil, err
	}

	if outcome.Shared && observability.ServerLogger != nil {
		observability.ServerLogger.Debug("Joined in-flight generation",
			zap.String("request_id", ex.RequestID),
			zap.Duration("duration", outcome.Duration),
		)
	}

	return GenerateData{
		Content:     outcome.Result.Content,
		ContentType: outcome.Result.ContentType,
		Model:       outcome.Result.Model,
	}, nil
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return classify.InvalidInput("request body is required")
	}
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return classify.InvalidInput("request body must be a JSON object")
	}
	return nil
}
