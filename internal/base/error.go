// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/errors"

// ErrCorruption is a marker to indicate that data in a compressed block or
// other stored structure is malformed.
var ErrCorruption = errors.New("segcore: corruption")

// ErrInvalidArgument is a marker for errors caused by a caller violating the
// preconditions of an operation (for example a sub-range that lies outside
// the original stream). These indicate a bug in the caller.
var ErrInvalidArgument = errors.New("segcore: invalid argument")

// MarkCorruptionError marks given error as a corruption error.
func MarkCorruptionError(err error) error {
	if errors.Is(err, ErrCorruption) {
		return err
	}
	return errors.Mark(err, ErrCorruption)
}

// CorruptionErrorf formats according to a format specifier and returns
// the string as an error value that is marked as a corruption error.
func CorruptionErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrCorruption)
}

// InvalidArgumentf formats according to a format specifier and returns the
// string as an error value that is marked with ErrInvalidArgument.
func InvalidArgumentf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidArgument)
}
