// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Murmauth Contributors

package auth

import "context"

// Authenticator validates a name/password pair against one credential
// backend. Implementations fail closed: any internal error is logged by the
// implementation and surfaced as a rejection, never as a panic or a partial
// success.
type Authenticator interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Authenticate checks the supplied credentials and returns an outcome.
	Authenticate(ctx context.Context, username, password string) Outcome
}
