package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/draftsmith/draftsmith/internal/ailink"
	"github.com/draftsmith/draftsmith/internal/core/classify"
	"github.com/draftsmith/draftsmith/internal/core/dedup"
)

// DefaultDeadline bounds a generation call end to end.
const DefaultDeadline = 30 * time.Second

// Generator produces content from a sanitized request.
type Generator interface {
	Generate(ctx context.Context, req ailink.GenerateRequest) (*ailink.GenerateResult, error)
}

// Orchestrator dispatches generation calls under a hard deadline, sharing
// identical in-flight requests when a deduplicator is configured.
type Orchestrator struct {
	Generator Generator
	Dedup     *dedup.Deduplicator[*ailink.GenerateResult]
	Deadline  time.Duration
	Clock     func() time.Time
}

// Outcome describes a successful dispatch.
type Outcome struct {
	Result   *ailink.GenerateResult
	Shared   bool
	Duration time.Duration
}

// Generate runs req. Every failure, including the deadline expiring, is
// returned as a *classify.ClassifiedError.
func (o *Orchestrator) Generate(ctx context.Context, req ailink.GenerateRequest) (*Outcome, error) {
	deadline := o.deadline()
	cctx := classify.Context{Operation: "generate", Deadline: deadline}
	if o == nil || o.Generator == nil {
		return nil, classify.Classify(classify.InvalidInput("generation is not configured"), cctx)
	}

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	invoke := func(callCtx context.Context) (*ailink.GenerateResult, error) {
		callCtx, cancel := context.WithTimeout(callCtx, deadline)
		defer cancel()
		return o.Generator.Generate(callCtx, req)
	}

	start := o.now()
	var (
		result *ailink.GenerateResult
		shared bool
		err    error
	)
	if o.Dedup != nil {
		result, shared, err = o.Dedup.Do(ctx, Signature(req), invoke)
	} else {
		result, err = invoke(ctx)
	}
	if err != nil {
		return nil, classify.Classify(err, cctx)
	}

	return &Outcome{Result: result, Shared: shared, Duration: o.now().Sub(start)}, nil
}

// Pending reports deduplicated calls still in flight.
func (o *Orchestrator) Pending() int {
	if o == nil || o.Dedup == nil {
		return 0
	}
	return o.Dedup.PendingCount()
}

// Shutdown releases every in-flight entry.
func (o *Orchestrator) Shutdown() {
	if o != nil && o.Dedup != nil {
		o.Dedup.CancelAll()
	}
}

// Signature derives the dedup key for req. The API key contributes only a
// fingerprint so callers with different keys never share a call.
func Signature(req ailink.GenerateRequest) string {
	body, _ := json.Marshal(req)
	header := http.Header{}
	if req.APIKey != "" {
		sum := sha256.Sum256([]byte(req.APIKey))
		header.Set("X-Key-Fingerprint", hex.EncodeToString(sum[:8]))
	}
	return dedup.Signature(http.MethodPost, "generate/"+string(req.ContentType), body, header)
}

func (o *Orchestrator) deadline() time.Duration {
	if o == nil || o.Deadline <= 0 {
		return DefaultDeadline
	}
	return o.Deadline
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Clock != nil {
		return o.Clock()
	}
	return time.Now().UTC()
}
