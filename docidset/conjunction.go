// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package docidset

import (
	"slices"

	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"
)

// conjunction is an Iterator over the intersection of its children. The
// children are ordered by ascending Cost so that the most selective child
// leads and the others are only asked to Advance.
type conjunction struct {
	lead   Iterator
	others []Iterator
	doc    DocID
}

// NewConjunction returns an iterator over the documents present in all of its.
// The iterators must be unpositioned.
func NewConjunction(its ...Iterator) Iterator {
	switch len(its) {
	case 0:
		panic(errors.AssertionFailedf("docidset: conjunction of zero iterators"))
	case 1:
		return its[0]
	}
	sorted := slices.Clone(its)
	slices.SortStableFunc(sorted, func(a, b Iterator) int {
		switch {
		case a.Cost() < b.Cost():
			return -1
		case a.Cost() > b.Cost():
			return 1
		}
		return 0
	})
	return &conjunction{lead: sorted[0], others: sorted[1:], doc: unpositioned}
}

func (c *conjunction) DocID() DocID { return c.doc }

func (c *conjunction) NextDoc() DocID {
	return c.doNext(c.lead.NextDoc())
}

func (c *conjunction) Advance(target DocID) DocID {
	return c.doNext(c.lead.Advance(target))
}

// doNext leapfrogs from candidate, a position of the lead, until all children
// agree on a document.
func (c *conjunction) doNext(candidate DocID) DocID {
outer:
	for candidate != NoMoreDocs {
		for _, it := range c.others {
			// The child may already be on candidate from a previous round.
			doc := it.DocID()
			if doc < candidate {
				doc = it.Advance(candidate)
			}
			if doc > candidate {
				candidate = c.lead.Advance(doc)
				continue outer
			}
		}
		break
	}
	c.doc = candidate
	return c.doc
}

func (c *conjunction) IntoBitSet(upTo DocID, bs *bitset.BitSet, offset DocID) {
	intoBitSetByStepping(c, upTo, bs, offset)
}

// Cost returns the cost of the lead, an upper bound of the intersection size.
func (c *conjunction) Cost() int64 { return c.lead.Cost() }
