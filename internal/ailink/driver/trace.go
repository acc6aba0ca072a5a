package driver

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// TraceEntry represents a single provider exchange. Prompts and keys are never
// recorded; only their sizes and the provider's response.
type TraceEntry struct {
	Timestamp    time.Time       `json:"timestamp"`
	Driver       string          `json:"driver"`
	Endpoint     string          `json:"endpoint"`
	Model        string          `json:"model,omitempty"`
	PromptChars  int             `json:"prompt_chars"`
	StatusCode   int             `json:"status_code,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`
	Response     json.RawMessage `json:"response,omitempty"`
	Error        string          `json:"error,omitempty"`
	DurationMs   int64           `json:"duration_ms"`
}

// Tracer appends trace entries to a file as NDJSON.
type Tracer struct {
	file *os.File
	mu   sync.Mutex
}

var (
	activeTracer *Tracer
	tracerMu     sync.RWMutex
)

// EnableTracing starts tracing to path and returns a function that stops it.
func EnableTracing(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}

	tracerMu.Lock()
	previous := activeTracer
	activeTracer = &Tracer{file: f}
	tracerMu.Unlock()
	_ = previous.Close()

	return DisableTracing, nil
}

// DisableTracing stops tracing and closes the trace file.
func DisableTracing() {
	tracerMu.Lock()
	previous := activeTracer
	activeTracer = nil
	tracerMu.Unlock()
	_ = previous.Close()
}

// Trace records entry when tracing is enabled.
func Trace(entry TraceEntry) {
	tracerMu.RLock()
	t := activeTracer
	tracerMu.RUnlock()
	t.Write(entry)
}

// Write appends entry as one JSON line.
func (t *Tracer) Write(entry TraceEntry) {
	if t == nil || t.file == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = t.file.Write(append(data, '\n'))
}

// Close closes the trace file.
func (t *Tracer) Close() error {
	if t == nil || t.file == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Close()
}
