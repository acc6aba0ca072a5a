package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/draftsmith/draftsmith/internal/ailink/driver"
)

const (
	providerName = "gemini"

	// DefaultBaseURL is the public Generative Language API.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultModel is used when a request names none.
	DefaultModel = "gemini-1.5-flash"
)

// Finish reasons that end generation without usable text.
var blockingFinishReasons = map[string]bool{
	"SAFETY":             true,
	"RECITATION":         true,
	"MAX_TOKENS":         true,
	"BLOCKLIST":          true,
	"PROHIBITED_CONTENT": true,
}

// Client implements the Gemini generateContent API via direct HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient returns a client with defaults applied.
func NewClient(baseURL string) *Client {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{BaseURL: base}
}

// Name returns the driver identifier.
func (c *Client) Name() string {
	return providerName
}

// Endpoint returns the scheme and host of the API.
func (c *Client) Endpoint() string {
	parsed, err := url.Parse(c.BaseURL)
	if err != nil || parsed.Host == "" {
		return c.BaseURL
	}
	return parsed.Scheme + "://" + parsed.Host
}

// Generate calls models/{model}:generateContent.
func (c *Client) Generate(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	if c == nil {
		return nil, fmt.Errorf("gemini client not configured")
	}
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}

	ctx, cancel := withTimeout(ctx, c.Timeout)
	if cancel != nil {
		defer cancel()
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = DefaultModel
	}

	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/models/" + url.PathEscape(model) + ":generateContent"
	trace := driver.TraceEntry{Driver: providerName, Endpoint: endpoint, Model: model, PromptChars: len(req.Prompt)}
	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", req.APIKey)

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	trace.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		trace.Error = err.Error()
		driver.Trace(trace)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	trace.StatusCode = resp.StatusCode
	trace.Response = json.RawMessage(respBody)
	if !json.Valid(respBody) {
		trace.Response = nil
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		perr := decodeError(resp.StatusCode, respBody)
		trace.Error = perr.Error()
		driver.Trace(trace)
		return nil, perr
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		trace.Error = err.Error()
		driver.Trace(trace)
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out, err := toDriverResponse(&parsed, model)
	if out != nil {
		trace.FinishReason = out.FinishReason
	}
	if err != nil {
		trace.Error = err.Error()
	}
	driver.Trace(trace)
	return out, err
}

func buildRequest(req *driver.Request) generateRequest {
	payload := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
	}
	if strings.TrimSpace(req.SystemInstruction) != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: req.SystemInstruction}}}
	}
	if req.Temperature != nil || req.MaxOutputTokens != nil {
		payload.GenerationConfig = &generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxOutputTokens,
		}
	}
	return payload
}

// toDriverResponse distinguishes the structural ways a 2xx response can be
// empty so callers can report them precisely.
func toDriverResponse(parsed *generateResponse, model string) (*driver.Response, error) {
	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		return nil, &driver.BlockedError{Provider: providerName, Reason: driver.NormalizeReason(parsed.PromptFeedback.BlockReason), Prompt: true}
	}
	if len(parsed.Candidates) == 0 {
		return nil, &driver.EmptyResponseError{Provider: providerName, Cause: driver.EmptyNoCandidates}
	}

	first := parsed.Candidates[0]
	reason := driver.NormalizeReason(first.FinishReason)
	out := &driver.Response{FinishReason: reason, Model: model}
	if parsed.ModelVersion != "" {
		out.Model = parsed.ModelVersion
	}
	if parsed.UsageMetadata != nil {
		out.Usage = &driver.Usage{
			PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
			CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      parsed.UsageMetadata.TotalTokenCount,
		}
	}

	if blockingFinishReasons[reason] {
		return out, &driver.BlockedError{Provider: providerName, Reason: reason}
	}
	if first.Content == nil || len(first.Content.Parts) == 0 {
		return out, &driver.EmptyResponseError{Provider: providerName, Cause: driver.EmptyNoParts}
	}

	var builder strings.Builder
	for _, p := range first.Content.Parts {
		builder.WriteString(p.Text)
	}
	out.Text = strings.TrimSpace(builder.String())
	if out.Text == "" {
		return out, &driver.EmptyResponseError{Provider: providerName, Cause: driver.EmptyText}
	}
	return out, nil
}

func decodeError(statusCode int, body []byte) *driver.ProviderError {
	perr := &driver.ProviderError{
		Provider:    providerName,
		StatusCode:  statusCode,
		Message:     strings.TrimSpace(string(body)),
		RawResponse: body,
	}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return perr
	}
	if parsed.Error.Message != "" {
		perr.Message = parsed.Error.Message
	}
	perr.Status = parsed.Error.Status
	for _, detail := range parsed.Error.Details {
		if detail.Reason != "" {
			perr.Reason = detail.Reason
			break
		}
	}
	return perr
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, timeout)
}
