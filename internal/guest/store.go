// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Murmauth Contributors

// Package guest manages time-limited anonymous access: admin-issued session
// tokens, self-registered guest identities, and the authenticator that
// verifies guest credentials for the dispatcher.
package guest

import (
	"sync"
	"time"
)

// entry pairs a stored value with its write-time expiry.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Store is a concurrent key-value store whose entries expire a fixed
// duration after they were written. Expiry is write-time based: reads never
// refresh it. Removal is lazy; every lookup treats an expired entry as
// absent.
type Store[V any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry[V]
}

// NewStore creates a Store with the given TTL. now may be nil, in which case
// time.Now is used; tests inject a deterministic clock.
func NewStore[V any](ttl time.Duration, now func() time.Time) *Store[V] {
	if now == nil {
		now = time.Now
	}
	return &Store[V]{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]entry[V]),
	}
}

// Put stores value under key, resetting the key's expiry to now+TTL.
func (s *Store[V]) Put(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry[V]{value: value, expiresAt: s.now().Add(s.ttl)}
}

// Get returns the live value for key. Expired entries are removed and
// reported as absent.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// PutIfAbsent stores value under key only if the key has no live entry.
// It reports whether the value was stored. The check and the insert are one
// atomic step, so two concurrent calls for the same key cannot both win.
func (s *Store[V]) PutIfAbsent(key string, value V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && !s.now().After(e.expiresAt) {
		return false
	}
	s.entries[key] = entry[V]{value: value, expiresAt: s.now().Add(s.ttl)}
	return true
}

// Len reports the number of live entries, pruning expired ones as a side
// effect.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
	return len(s.entries)
}
