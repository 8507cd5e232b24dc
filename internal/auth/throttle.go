// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Murmauth Contributors

package auth

import (
	"sync"
	"time"
)

// Brute-force lockout configuration.
const (
	// LockoutDuration is the time a username is locked out after too many
	// failures.
	LockoutDuration = 15 * time.Minute

	// LockoutThreshold is the number of consecutive failures that triggers
	// a lockout.
	LockoutThreshold = 7

	// failureWindow bounds how long failures count against a username.
	failureWindow = 15 * time.Minute
)

// Throttle tracks authentication failures per username and locks a name out
// after repeated failures. State lives in memory only; a restart clears it.
type Throttle struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]*throttleEntry
}

type throttleEntry struct {
	failures    int
	lastFailure time.Time
	lockedUntil time.Time
}

// NewThrottle creates a Throttle. now may be nil, in which case time.Now is
// used.
func NewThrottle(now func() time.Time) *Throttle {
	if now == nil {
		now = time.Now
	}
	return &Throttle{
		now:     now,
		entries: make(map[string]*throttleEntry),
	}
}

// IsLockedOut reports whether the username is currently locked out. Stale
// failure records are dropped as a side effect.
func (t *Throttle) IsLockedOut(username string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[username]
	if !ok {
		return false
	}

	now := t.now()
	if entry.lockedUntil.After(now) {
		return true
	}
	if now.Sub(entry.lastFailure) > failureWindow {
		delete(t.entries, username)
	}
	return false
}

// RecordFailure counts a failed attempt against the username. Reaching the
// threshold starts the lockout and resets the count, so the lockout repeats
// if failures continue afterwards.
func (t *Throttle) RecordFailure(username string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	entry, ok := t.entries[username]
	if !ok || now.Sub(entry.lastFailure) > failureWindow {
		entry = &throttleEntry{}
		t.entries[username] = entry
	}

	entry.failures++
	entry.lastFailure = now
	if entry.failures >= LockoutThreshold {
		entry.lockedUntil = now.Add(LockoutDuration)
		entry.failures = 0
	}
}

// RecordSuccess clears all failure state for the username.
func (t *Throttle) RecordSuccess(username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, username)
}
