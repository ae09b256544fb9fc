// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package testutils

import (
	"fmt"
	"sync"
	"testing"

	"github.com/cockroachdb/segcore/internal/base"
)

// Logger is a base.Logger that writes to a testing.TB.
type Logger struct {
	T testing.TB
}

var _ base.Logger = Logger{}

func (l Logger) Infof(format string, args ...interface{}) {
	l.T.Logf(format, args...)
}

func (l Logger) Errorf(format string, args ...interface{}) {
	l.T.Logf(format, args...)
}

func (l Logger) Fatalf(format string, args ...interface{}) {
	l.T.Helper()
	l.T.Fatalf(format, args...)
}

// RecordingLogger is a Logger that also keeps the Infof and Errorf messages,
// so tests can assert on them.
type RecordingLogger struct {
	Logger

	mu   sync.Mutex
	msgs []string
}

var _ base.Logger = (*RecordingLogger)(nil)

// NewRecordingLogger returns a RecordingLogger that writes to t.
func NewRecordingLogger(t testing.TB) *RecordingLogger {
	return &RecordingLogger{Logger: Logger{T: t}}
}

func (l *RecordingLogger) Infof(format string, args ...interface{}) {
	l.record(format, args...)
	l.Logger.Infof(format, args...)
}

func (l *RecordingLogger) Errorf(format string, args ...interface{}) {
	l.record(format, args...)
	l.Logger.Errorf(format, args...)
}

func (l *RecordingLogger) record(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, fmt.Sprintf(format, args...))
}

// Messages returns the messages logged so far.
func (l *RecordingLogger) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.msgs...)
}
