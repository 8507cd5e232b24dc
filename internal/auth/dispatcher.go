// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Murmauth Contributors

package auth

import (
	"context"

	"github.com/tendollarbond/murmauth/internal/observability"
)

// Dispatcher tries a fixed-priority chain of authenticators and returns the
// first accepted outcome. The directory backend is placed before the guest
// backend, so a directory identity always wins over a guest identity with the
// same name.
type Dispatcher struct {
	chain    []Authenticator
	throttle *Throttle
}

// NewDispatcher creates a Dispatcher trying the given authenticators in
// order.
func NewDispatcher(chain ...Authenticator) *Dispatcher {
	return &Dispatcher{
		chain:    chain,
		throttle: NewThrottle(nil),
	}
}

// Authenticate runs the chain. Later backends are consulted only when every
// earlier one rejected; the final result is the first acceptance or a plain
// rejection. It never returns an error: each backend fails closed on its own.
// A username with too many recent failures is refused without consulting any
// backend.
func (d *Dispatcher) Authenticate(ctx context.Context, username, password string) Outcome {
	if d.throttle.IsLockedOut(username) {
		observability.RecordAuthLockout()
		return Reject()
	}

	for _, a := range d.chain {
		outcome := a.Authenticate(ctx, username, password)
		if outcome.Authenticated {
			observability.RecordAuthAttempt(a.Name(), "accepted")
			d.throttle.RecordSuccess(username)
			return outcome
		}
		observability.RecordAuthAttempt(a.Name(), "rejected")
	}

	d.throttle.RecordFailure(username)
	return Reject()
}

// NameToID maps a name to its derived numeric id without touching any
// backend. It is side-effect-free and always succeeds.
func (d *Dispatcher) NameToID(username string) uint32 {
	return UsernameToID(username)
}
