// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package bitflip diagnoses checksum mismatches caused by a single flipped
// bit, which usually points at faulty hardware rather than a software bug.
package bitflip

// MaxLen is the largest input that Find examines; the search costs eight
// checksum computations per byte.
const MaxLen = 40 << 10

// Find flips every bit of data in turn and reports the first position at which
// the checksum of the result equals expected. data is restored before Find
// returns. Inputs longer than MaxLen are only searched within their first
// MaxLen bytes.
func Find(data []byte, checksum func([]byte) uint32, expected uint32) (index, bit int, found bool) {
	for i := range data[:min(len(data), MaxLen)] {
		for b := 0; b < 8; b++ {
			data[i] ^= 1 << b
			sum := checksum(data)
			data[i] ^= 1 << b
			if sum == expected {
				return i, b, true
			}
		}
	}
	return 0, 0, false
}
