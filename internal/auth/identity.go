// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Murmauth Contributors

package auth

import (
	"crypto/sha1" //nolint:gosec // G505: not used for security, only as a stable id derivation
	"encoding/binary"
)

// UsernameToID derives a stable numeric id from a username by hashing it with
// SHA-1 and folding the first four digest bytes into a non-negative 31-bit
// value. Ids are derived, never allocated: the same name maps to the same id
// in every process, and an id can be computed for a name that has never
// authenticated. Collisions between distinct names are a known limitation.
func UsernameToID(username string) uint32 {
	sum := sha1.Sum([]byte(username))

	v := int32(binary.LittleEndian.Uint32(sum[:4]))
	if v < 0 {
		v = -v
	}
	// -MinInt32 overflows back to MinInt32; the mask keeps the result
	// non-negative in that one case too.
	return uint32(v) & 0x7fffffff
}
