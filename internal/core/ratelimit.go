package core

import "time"

// RateWindow is the fixed-window counter held for one (endpoint, client) key.
// Count never exceeds the policy limit while the window is current.
type RateWindow struct {
	Count   int
	ResetAt time.Time
}

// Expired reports whether the window no longer governs requests at now.
// A request arriving exactly at ResetAt starts a new window.
func (w *RateWindow) Expired(now time.Time) bool {
	return w == nil || !now.Before(w.ResetAt)
}
