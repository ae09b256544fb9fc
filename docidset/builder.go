// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package docidset

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cockroachdb/errors"
)

// Builder accumulates the documents matching a query within one segment and
// builds the most compact Set for them. Documents may be added in any order
// and more than once.
//
// Small results are buffered in a slice and built into a SortedArray. Once the
// number of added documents exceeds the sparse threshold (1/128th of the
// segment) the builder switches to a roaring bitmap.
type Builder struct {
	maxDoc    DocID
	threshold int
	buf       []DocID
	bm        *roaring.Bitmap
}

// NewBuilder returns a builder for a segment holding documents [0, maxDoc).
func NewBuilder(maxDoc DocID) *Builder {
	if maxDoc < 0 {
		panic(errors.AssertionFailedf("docidset: negative maxDoc %d", maxDoc))
	}
	return &Builder{maxDoc: maxDoc, threshold: int(maxDoc >> 7)}
}

// Add adds a document to the set being built.
func (b *Builder) Add(doc DocID) {
	if doc < 0 || doc >= b.maxDoc {
		panic(errors.AssertionFailedf("docidset: doc %d out of range [0, %d)", doc, b.maxDoc))
	}
	if b.bm != nil {
		b.bm.Add(uint32(doc))
		return
	}
	b.buf = append(b.buf, doc)
	if len(b.buf) > b.threshold {
		b.upgrade()
	}
}

// AddIterator adds every remaining document of it.
func (b *Builder) AddIterator(it Iterator) {
	for doc := it.NextDoc(); doc != NoMoreDocs; doc = it.NextDoc() {
		b.Add(doc)
	}
}

func (b *Builder) upgrade() {
	b.bm = roaring.New()
	for _, doc := range b.buf {
		b.bm.Add(uint32(doc))
	}
	b.buf = nil
}

// Build returns the set of added documents. The builder must not be used
// afterwards.
func (b *Builder) Build() Set {
	if b.bm != nil {
		s := NewRoaringSet(b.bm)
		b.bm = nil
		return s
	}
	if len(b.buf) == 0 {
		return Empty()
	}
	s := SortedArrayOf(b.buf...)
	b.buf = nil
	return s
}
