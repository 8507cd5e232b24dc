// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Murmauth Contributors

// Package auth implements the authentication engine: the outcome type shared
// by all authenticators, the username-to-id hashing scheme, the
// directory-backed authenticator, and the dispatcher that tries authenticators
// in priority order.
package auth

// Outcome is the result of an authentication attempt. Every attempt
// terminates in either a fully enriched accepted outcome or a plain
// rejection; there is no third state.
type Outcome struct {
	// Authenticated reports whether the credentials were accepted.
	Authenticated bool

	// ID is the numeric user id derived from the username.
	// Only meaningful when Authenticated is true.
	ID uint32

	// Groups lists the group names to assign to the user, in the order the
	// backend produced them. May be empty.
	Groups []string

	// DisplayName overrides the name the user connects with.
	// Empty means no override.
	DisplayName string
}

// Accept builds an accepted outcome.
func Accept(id uint32, groups []string, displayName string) Outcome {
	return Outcome{
		Authenticated: true,
		ID:            id,
		Groups:        groups,
		DisplayName:   displayName,
	}
}

// Reject builds a rejected outcome. Unknown users, wrong passwords, and
// internal backend failures all reject identically; callers cannot
// distinguish them from the outcome alone.
func Reject() Outcome {
	return Outcome{}
}
