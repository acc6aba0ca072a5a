package driver

import (
	"context"
)

// Driver defines the interface for text generation providers.
type Driver interface {
	// Generate sends a generation request and returns the response.
	Generate(ctx context.Context, req *Request) (*Response, error)
	// Name returns the driver identifier (e.g., "gemini").
	Name() string
	// Endpoint returns the origin the driver talks to.
	Endpoint() string
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is a provider-agnostic generation request. APIKey is the caller's
// key and is sent per request; drivers never log it.
type Request struct {
	Model             string
	APIKey            string
	SystemInstruction string
	Prompt            string
	Temperature       *float64
	MaxOutputTokens   *int
	Metadata          map[string]string
}

// Response is a provider-agnostic generation response.
type Response struct {
	Text         string
	FinishReason string
	Model        string
	Usage        *Usage
}
