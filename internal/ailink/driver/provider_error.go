package driver

import (
	"fmt"
	"strings"
)

// ProviderError is returned when a provider responds with a non-2xx status.
//
// Status and Reason carry the provider's structured error fields when the
// body could be decoded. RawResponse must never include API keys.
type ProviderError struct {
	Provider    string
	StatusCode  int
	Status      string
	Reason      string
	Message     string
	RawResponse []byte
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.Provider, e.Message)
}

// BlockedError reports a response the provider withheld or cut short for a
// content reason: a safety block, a recitation match or the token ceiling.
type BlockedError struct {
	Provider string
	// Reason is the provider's finish or block reason, e.g. SAFETY.
	Reason string
	// Prompt is true when the prompt itself was blocked.
	Prompt bool
}

func (e *BlockedError) Error() string {
	if e == nil {
		return "response blocked"
	}
	if e.Prompt {
		return fmt.Sprintf("%s blocked the prompt: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("%s stopped generation: %s", e.Provider, e.Reason)
}

// Empty response causes.
const (
	EmptyNoCandidates = "no_candidates"
	EmptyNoParts      = "no_parts"
	EmptyText         = "empty_text"
)

// EmptyResponseError reports a 2xx response that carried no usable text.
type EmptyResponseError struct {
	Provider string
	Cause    string
}

func (e *EmptyResponseError) Error() string {
	if e == nil {
		return "empty response"
	}
	return fmt.Sprintf("%s returned an empty response (%s)", e.Provider, e.Cause)
}

// NormalizeReason upper-cases a provider reason for comparison.
func NormalizeReason(reason string) string {
	return strings.ToUpper(strings.TrimSpace(reason))
}
