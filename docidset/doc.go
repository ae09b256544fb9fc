// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package docidset implements sets of document identifiers and forward-only
// iterators over them, used during query evaluation to represent and
// traverse candidate documents of a segment.
//
// All iterators share the same contract:
//
//   - DocID returns -1 before the first positioning call and NoMoreDocs once
//     the iterator is exhausted. Exhaustion is absorbing: further calls keep
//     returning NoMoreDocs.
//   - NextDoc moves to the next document.
//   - Advance(target) moves to the first document >= target that has not
//     been consumed yet.
//   - IntoBitSet(upTo, bs, offset) sets bit doc-offset for the current
//     document (or the first one, on a fresh iterator) and every following
//     document < upTo, and leaves the iterator on the first document
//     >= upTo.
//   - Cost is a fixed estimate of the number of documents; it does not change
//     as iteration proceeds.
//
// Sets are immutable and may be shared between goroutines. Iterators are not
// safe for concurrent use; each goroutine must obtain its own.
package docidset
