// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package invariants

import "math/rand/v2"

// Sometimes returns true percent% of the time if we were built with the
// "invariants" of "race" build tags.
func Sometimes(percent int) bool {
	return Enabled && rand.Uint32N(100) < uint32(percent)
}

// StrictlyIncreasing reports whether s[:n] is strictly increasing. It is meant
// to be called only when Enabled.
func StrictlyIncreasing[T Integer](s []T, n int) bool {
	for i := 1; i < n; i++ {
		if s[i] <= s[i-1] {
			return false
		}
	}
	return true
}

// Integer is a constraint that permits any integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}
