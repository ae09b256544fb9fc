// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package testutils

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

// RequireMarked verifies that err is non-nil and carries the given marker
// (for example base.ErrCorruption).
func RequireMarked(t testing.TB, err, marker error) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, errors.Is(err, marker), "expected %v to be marked with %v", err, marker)
}

// CheckErr can be used to simplify test code that expects no errors:
//
//	v := testutils.CheckErr(someFunc())
func CheckErr[V any](v V, err error) V {
	if err != nil {
		panic(err)
	}
	return v
}
