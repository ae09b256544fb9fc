// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bitflip

import (
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFind(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	expected := crc32.ChecksumIEEE(data)

	data[10] ^= 1 << 3
	corrupted := append([]byte(nil), data...)
	index, bit, found := Find(data, crc32.ChecksumIEEE, expected)
	require.True(t, found)
	require.Equal(t, 10, index)
	require.Equal(t, 3, bit)
	require.Equal(t, corrupted, data)

	// Two flipped bits cannot be explained by a single flip.
	data[20] ^= 1
	_, _, found = Find(data, crc32.ChecksumIEEE, expected)
	require.False(t, found)
}
