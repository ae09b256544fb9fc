// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base defines fundamental types shared by the segment packages: the
// document identifier, the error markers that classify failures, and the
// logging interface.
//
// # Errors
//
// Errors that callers need to tell apart are marked, not typed. Use
// errors.Is(err, ErrCorruption) to detect malformed stored data and
// errors.Is(err, ErrInvalidArgument) to detect precondition violations by the
// caller. Marks survive wrapping.
package base
