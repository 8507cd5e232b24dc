// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Murmauth Contributors

package guest

import "errors"

// ErrUsernameTaken is returned when the desired guest name already has a
// live identity.
var ErrUsernameTaken = errors.New("username already taken")

// ErrSessionInvalid is returned when a session token is unknown or expired.
var ErrSessionInvalid = errors.New("invalid or expired guest session")
