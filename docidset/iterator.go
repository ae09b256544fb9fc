// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package docidset

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/segcore/internal/base"
	"github.com/cockroachdb/segcore/internal/invariants"
)

// DocID is a dense, zero-based identifier of a document within a segment.
type DocID = base.DocID

// NoMoreDocs is returned by iterators once they are exhausted.
const NoMoreDocs = base.NoMoreDocs

// unpositioned is the value DocID returns before the first positioning call.
const unpositioned DocID = -1

// Iterator is a forward-only cursor over an ascending sequence of DocIDs.
type Iterator interface {
	// DocID returns the current document: -1 if the iterator is not yet
	// positioned, NoMoreDocs if it is exhausted.
	DocID() DocID
	// NextDoc advances to the next document and returns it, or NoMoreDocs.
	NextDoc() DocID
	// Advance advances to the first not yet consumed document that is >=
	// target and returns it, or NoMoreDocs.
	Advance(target DocID) DocID
	// IntoBitSet sets bit doc-offset in bs for the current document and all
	// following documents that are < upTo. On return the iterator is
	// positioned on the first document >= upTo. It is a no-op if the current
	// document is already >= upTo. offset must not exceed any document that
	// is set.
	IntoBitSet(upTo DocID, bs *bitset.BitSet, offset DocID)
	// Cost returns an estimate of the number of documents the iterator
	// produces over its lifetime.
	Cost() int64
}

// Set is an immutable set of DocIDs.
type Set interface {
	// Iterator returns a fresh, unpositioned iterator over the set.
	Iterator() Iterator
	// MemoryUsage returns the approximate number of bytes retained by the set.
	MemoryUsage() int64
}

// intoBitSetByStepping implements Iterator.IntoBitSet for iterators that have
// no faster bulk path.
func intoBitSetByStepping(it Iterator, upTo DocID, bs *bitset.BitSet, offset DocID) {
	doc := it.DocID()
	if doc == unpositioned {
		doc = it.NextDoc()
	}
	for ; doc < upTo; doc = it.NextDoc() {
		setBit(bs, doc, offset)
	}
}

// setBit sets bit doc-offset in bs.
func setBit(bs *bitset.BitSet, doc, offset DocID) {
	if invariants.Enabled && doc < offset {
		panic(errors.AssertionFailedf("docidset: doc %d below bitset offset %d", doc, offset))
	}
	bs.Set(uint(doc - offset))
}

type emptySet struct{}

// Empty returns a set that contains no documents.
func Empty() Set { return emptySet{} }

func (emptySet) Iterator() Iterator  { return &emptyIterator{doc: unpositioned} }
func (emptySet) MemoryUsage() int64 { return 0 }

type emptyIterator struct {
	doc DocID
}

var _ Iterator = (*emptyIterator)(nil)

func (i *emptyIterator) DocID() DocID { return i.doc }

func (i *emptyIterator) NextDoc() DocID {
	i.doc = NoMoreDocs
	return i.doc
}

func (i *emptyIterator) Advance(DocID) DocID {
	i.doc = NoMoreDocs
	return i.doc
}

func (i *emptyIterator) IntoBitSet(DocID, *bitset.BitSet, DocID) {
	i.doc = NoMoreDocs
}

func (i *emptyIterator) Cost() int64 { return 0 }
