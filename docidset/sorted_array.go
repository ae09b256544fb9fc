// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package docidset

import (
	"slices"
	"unsafe"

	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/segcore/internal/base"
	"github.com/cockroachdb/segcore/internal/invariants"
)

// SortedArray is a Set backed by a strictly increasing array of DocIDs. It is
// meant for small sets, typically a narrow candidate subset of a segment.
//
// The backing array has one more element than the set: docs[length] holds
// NoMoreDocs, so that iterators never need to special-case exhaustion.
type SortedArray struct {
	docs   []DocID
	length int
}

var _ Set = (*SortedArray)(nil)

// NewSortedArray returns a set over docs[:length]. The array is retained, not
// copied, and must not be modified afterwards. docs[length] must be
// NoMoreDocs; otherwise an error marked with base.ErrInvalidArgument is
// returned. The documents in docs[:length] must be strictly increasing; this
// is only verified in invariant builds.
func NewSortedArray(docs []DocID, length int) (*SortedArray, error) {
	if length < 0 || length >= len(docs) {
		return nil, base.InvalidArgumentf("docidset: length %d out of range for array of %d elements",
			errors.Safe(length), errors.Safe(len(docs)))
	}
	if docs[length] != NoMoreDocs {
		return nil, base.InvalidArgumentf("docidset: docs[%d] = %d, expected NoMoreDocs terminator",
			errors.Safe(length), errors.Safe(docs[length]))
	}
	if invariants.Enabled && !invariants.StrictlyIncreasing(docs, length) {
		panic(errors.AssertionFailedf("docidset: docs must be strictly increasing: %v", docs[:length]))
	}
	return &SortedArray{docs: docs, length: length}, nil
}

// SortedArrayOf returns a set containing the given documents. The input may
// be in any order and contain duplicates; it is not retained.
func SortedArrayOf(ids ...DocID) *SortedArray {
	docs := make([]DocID, len(ids), len(ids)+1)
	copy(docs, ids)
	slices.Sort(docs)
	docs = slices.Compact(docs)
	n := len(docs)
	docs = append(docs, NoMoreDocs)
	return &SortedArray{docs: docs, length: n}
}

// Len returns the number of documents in the set.
func (s *SortedArray) Len() int { return s.length }

// Iterator implements Set.
func (s *SortedArray) Iterator() Iterator {
	return s.NewIterator()
}

// NewIterator returns a fresh iterator over the set. Unlike Iterator, the
// concrete type is returned so that callers on a hot path avoid the
// interface call overhead.
func (s *SortedArray) NewIterator() *SortedArrayIterator {
	return &SortedArrayIterator{docs: s.docs, length: s.length, doc: unpositioned}
}

// MemoryUsage implements Set.
func (s *SortedArray) MemoryUsage() int64 {
	return int64(unsafe.Sizeof(*s)) + int64(cap(s.docs))*int64(unsafe.Sizeof(DocID(0)))
}

// SortedArrayIterator iterates over a SortedArray.
//
// The iterator state is the pair (i, doc): doc is the current document and i
// is the index of the next document to return. Once i reaches length the
// iterator stays there and keeps returning the NoMoreDocs terminator.
type SortedArrayIterator struct {
	docs   []DocID
	length int
	i      int
	doc    DocID
}

var _ Iterator = (*SortedArrayIterator)(nil)

// DocID implements Iterator.
func (it *SortedArrayIterator) DocID() DocID { return it.doc }

// NextDoc implements Iterator.
func (it *SortedArrayIterator) NextDoc() DocID {
	it.doc = it.docs[it.i]
	if it.i < it.length {
		it.i++
	}
	return it.doc
}

// Advance implements Iterator.
//
// Advance gallops from the current position: the probe distance doubles
// while the probed document is still < target, after which a binary search
// over the last window finds the first document >= target. The cost is
// logarithmic in the number of documents skipped, not in the set size.
func (it *SortedArrayIterator) Advance(target DocID) DocID {
	i, length := it.i, it.length
	if i >= length {
		it.doc = NoMoreDocs
		return it.doc
	}
	bound := 1
	// bound < length-i is equivalent to i+bound < length but cannot overflow;
	// and since bound never exceeds 2*(length-i), doubling cannot overflow
	// either.
	for bound < length-i && it.docs[i+bound] < target {
		bound *= 2
	}
	lo, hi := i+bound/2, min(i+bound+1, length)
	pos, _ := slices.BinarySearch(it.docs[lo:hi], target)
	i = lo + pos
	it.doc = it.docs[i]
	if i < length {
		i++
	}
	it.i = i
	return it.doc
}

// IntoBitSet implements Iterator.
func (it *SortedArrayIterator) IntoBitSet(upTo DocID, bs *bitset.BitSet, offset DocID) {
	if it.doc >= upTo {
		return
	}
	// The current document has been returned to the caller but not yet
	// added to the bitmap, so the scan starts at it. A fresh iterator has
	// i == 0 and starts at the first document.
	from := it.i
	if it.doc != unpositioned {
		from--
	}
	to := findNextGEQ(it.docs, upTo, from, it.length)
	if invariants.Enabled && from < to && it.docs[from] < offset {
		panic(errors.AssertionFailedf("docidset: doc %d below bitset offset %d", it.docs[from], offset))
	}
	for _, doc := range it.docs[from:to] {
		bs.Set(uint(doc - offset))
	}
	it.doc = it.docs[to]
	it.i = to
	if to < it.length {
		it.i++
	}
}

// Cost implements Iterator.
func (it *SortedArrayIterator) Cost() int64 { return int64(it.length) }

// findNextGEQ returns the first index in [from, to) whose document is >=
// target, or to if there is none.
func findNextGEQ(docs []DocID, target DocID, from, to int) int {
	for i := from; i < to; i++ {
		if docs[i] >= target {
			return i
		}
	}
	return to
}
