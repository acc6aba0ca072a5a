package ailink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/draftsmith/draftsmith/internal/ailink/driver"
	"github.com/draftsmith/draftsmith/internal/ailink/prompt"
	"github.com/draftsmith/draftsmith/internal/core/classify"
	"github.com/draftsmith/draftsmith/internal/metrics"
)

// ContentType selects the prompt used for generation.
type ContentType string

const (
	ContentTypeEmail  ContentType = "email"
	ContentTypeSlides ContentType = "slides"
)

// ParseContentType validates a content type, defaulting to email.
func ParseContentType(value string) (ContentType, error) {
	switch ContentType(strings.ToLower(strings.TrimSpace(value))) {
	case "", ContentTypeEmail:
		return ContentTypeEmail, nil
	case ContentTypeSlides:
		return ContentTypeSlides, nil
	default:
		return "", classify.InvalidInput("contentType must be %q or %q", ContentTypeEmail, ContentTypeSlides)
	}
}

// GenerateRequest carries sanitized generation input.
type GenerateRequest struct {
	Prompt      string      `json:"prompt"`
	ContentType ContentType `json:"contentType"`
	Tone        string      `json:"tone,omitempty"`
	Audience    string      `json:"audience,omitempty"`
	Context     string      `json:"context,omitempty"`
	APIKey      string      `json:"-"`
}

// GenerateResult is a successful generation.
type GenerateResult struct {
	Content      string        `json:"content"`
	ContentType  ContentType   `json:"contentType"`
	Model        string        `json:"model"`
	FinishReason string        `json:"finishReason,omitempty"`
	Usage        *driver.Usage `json:"usage,omitempty"`
	Attempts     int           `json:"-"`
}

// Service renders prompts and runs them through a driver.
type Service struct {
	Driver  driver.Driver
	Prompts prompt.Registry
	Model   string
	Retry   RetryPolicy
}

// Generate produces content for req. Provider failures are returned as-is
// for the caller to classify.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if s == nil || s.Driver == nil {
		return nil, errors.New("generation driver not configured")
	}
	if s.Prompts == nil {
		return nil, errors.New("prompt registry not configured")
	}

	contentType, err := ParseContentType(string(req.ContentType))
	if err != nil {
		return nil, err
	}

	def, err := s.Prompts.Get(string(contentType))
	if err != nil {
		return nil, fmt.Errorf("load prompt: %w", err)
	}

	system, user, err := def.Render(map[string]string{
		"prompt":   req.Prompt,
		"tone":     req.Tone,
		"audience": req.Audience,
		"context":  req.Context,
	})
	if err != nil {
		return nil, classify.InvalidInput("%s", err.Error())
	}

	driverReq := &driver.Request{
		Model:             s.Model,
		APIKey:            req.APIKey,
		SystemInstruction: system,
		Prompt:            user,
		Temperature:       def.Config.Generation.Temperature,
		MaxOutputTokens:   def.Config.Generation.MaxOutputTokens,
		Metadata:          map[string]string{"content_type": string(contentType)},
	}

	var resp *driver.Response
	attempts, err := s.Retry.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		var callErr error
		resp, callErr = s.Driver.Generate(ctx, driverReq)
		metrics.RecordProviderCall(s.Driver.Name(), outcome(callErr), time.Since(start))
		return callErr
	}, func(err error) bool {
		return classify.Classify(err).Retryable()
	})
	if err != nil {
		return nil, err
	}

	return &GenerateResult{
		Content:      resp.Text,
		ContentType:  contentType,
		Model:        resp.Model,
		FinishReason: resp.FinishReason,
		Usage:        resp.Usage,
		Attempts:     attempts,
	}, nil
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return strings.ToLower(string(classify.Classify(err).Code))
}
