// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package testutils

import "math/rand/v2"

// RandomBytes returns n random bytes. Random bytes do not compress.
func RandomBytes(rng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(rng.Uint32())
	}
	return b
}

// CompressibleBytes returns n bytes made of short random runs drawn from a
// small alphabet, which every algorithm compresses well.
func CompressibleBytes(rng *rand.Rand, n int) []byte {
	b := make([]byte, 0, n)
	for len(b) < n {
		c := 'a' + byte(rng.IntN(4))
		run := 1 + rng.IntN(16)
		for i := 0; i < run && len(b) < n; i++ {
			b = append(b, c)
		}
	}
	return b
}
