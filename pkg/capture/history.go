// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"sync"
	"time"
)

// History suppresses repeats of identical advertisements. Remotes resend the
// same packet for as long as a button is held; one copy is reported per TTL
// window, counted from the first sighting.
type History struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
}

// NewHistory creates a history. A ttl of 0 disables suppression.
func NewHistory(ttl time.Duration) *History {
	return &History{
		ttl:  ttl,
		seen: make(map[string]time.Time),
	}
}

// Seen reports whether raw was first seen less than the TTL before now.
// Repeats do not extend the window; once it lapses raw is reported again
// and a new window starts.
func (h *History) Seen(raw []byte, now time.Time) bool {
	if h.ttl <= 0 {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	key := string(raw)
	if first, ok := h.seen[key]; ok && now.Sub(first) < h.ttl {
		return true
	}
	h.seen[key] = now
	if len(h.seen) > maxHistoryEntries {
		h.pruneLocked(now)
	}
	return false
}

const maxHistoryEntries = 1024

// Prune forgets entries older than the TTL
func (h *History) Prune(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pruneLocked(now)
}

func (h *History) pruneLocked(now time.Time) {
	for key, first := range h.seen {
		if now.Sub(first) >= h.ttl {
			delete(h.seen, key)
		}
	}
}

// Len returns the number of remembered advertisements
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}
