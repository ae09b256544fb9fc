// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package docidset

import (
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"
)

// RoaringSet is a Set backed by a compressed bitmap. It is used for dense
// results where a SortedArray would waste memory.
type RoaringSet struct {
	bm   *roaring.Bitmap
	cost int64
}

var _ Set = (*RoaringSet)(nil)

// NewRoaringSet wraps bm. The bitmap is retained and must not be modified
// afterwards.
func NewRoaringSet(bm *roaring.Bitmap) *RoaringSet {
	bm.RunOptimize()
	return &RoaringSet{bm: bm, cost: int64(bm.GetCardinality())}
}

// Iterator implements Set.
func (s *RoaringSet) Iterator() Iterator {
	return &roaringIterator{it: s.bm.Iterator(), cost: s.cost, doc: unpositioned}
}

// MemoryUsage implements Set.
func (s *RoaringSet) MemoryUsage() int64 {
	return int64(unsafe.Sizeof(*s)) + int64(s.bm.GetSizeInBytes())
}

type roaringIterator struct {
	it   roaring.IntPeekable
	cost int64
	doc  DocID
}

var _ Iterator = (*roaringIterator)(nil)

func (i *roaringIterator) DocID() DocID { return i.doc }

func (i *roaringIterator) NextDoc() DocID {
	if i.it.HasNext() {
		i.doc = DocID(i.it.Next())
	} else {
		i.doc = NoMoreDocs
	}
	return i.doc
}

func (i *roaringIterator) Advance(target DocID) DocID {
	if target > 0 {
		i.it.AdvanceIfNeeded(uint32(target))
	}
	return i.NextDoc()
}

func (i *roaringIterator) IntoBitSet(upTo DocID, bs *bitset.BitSet, offset DocID) {
	if i.doc >= upTo {
		return
	}
	if i.doc != unpositioned {
		setBit(bs, i.doc, offset)
	}
	for i.it.HasNext() && DocID(i.it.PeekNext()) < upTo {
		setBit(bs, DocID(i.it.Next()), offset)
	}
	i.NextDoc()
}

func (i *roaringIterator) Cost() int64 { return i.cost }
