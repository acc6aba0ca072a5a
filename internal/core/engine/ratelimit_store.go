package engine

import (
	"context"
	"sync"
	"time"

	"github.com/draftsmith/draftsmith/internal/core"
)

// MemoryRateStore keeps rate windows in process memory.
type MemoryRateStore struct {
	mu      sync.Mutex
	windows map[string]*core.RateWindow
}

// NewMemoryRateStore returns an empty store.
func NewMemoryRateStore() *MemoryRateStore {
	return &MemoryRateStore{windows: make(map[string]*core.RateWindow)}
}

// UpdateRateWindow applies fn under the store lock.
func (m *MemoryRateStore) UpdateRateWindow(ctx context.Context, key string, fn func(current *core.RateWindow) *core.RateWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.windows == nil {
		m.windows = make(map[string]*core.RateWindow)
	}

	var current *core.RateWindow
	if existing, ok := m.windows[key]; ok {
		copied := *existing
		current = &copied
	}

	next := fn(current)
	if next == nil {
		delete(m.windows, key)
		return nil
	}
	m.windows[key] = next
	return nil
}

// SweepRateWindows removes windows whose reset time is at or before now.
func (m *MemoryRateStore) SweepRateWindows(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, window := range m.windows {
		if window.Expired(now) {
			delete(m.windows, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of tracked windows.
func (m *MemoryRateStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// Window returns a copy of the window stored under key.
func (m *MemoryRateStore) Window(key string) (core.RateWindow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	window, ok := m.windows[key]
	if !ok {
		return core.RateWindow{}, false
	}
	return *window, true
}
