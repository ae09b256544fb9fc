// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package docidset

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/crlib/testutils/leaktest"
	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/segcore/internal/invariants"
	"github.com/stretchr/testify/require"
)

func TestRoaringSetDataDriven(t *testing.T) {
	defer leaktest.AfterTest(t)()

	var s *RoaringSet
	datadriven.RunTest(t, "testdata/roaring", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "build":
			bm := roaring.New()
			for _, doc := range parseDocs(t, td.Input) {
				bm.Add(uint32(doc))
			}
			s = NewRoaringSet(bm)
			return fmt.Sprintf("cost=%d", s.Iterator().Cost())
		case "iter":
			return runIteratorCmds(t, s.Iterator(), td.Input)
		default:
			return fmt.Sprintf("unrecognized command %q", td.Cmd)
		}
	})
}

// TestSetsEquivalent drives a SortedArray and a RoaringSet holding the same
// documents with the same random operations and checks they agree.
func TestSetsEquivalent(t *testing.T) {
	defer leaktest.AfterTest(t)()

	seed := uint64(time.Now().UnixNano())
	t.Logf("seed %d", seed)
	rng := rand.New(rand.NewPCG(0, seed))

	for iter := 0; iter < 100; iter++ {
		maxDoc := 1 + rng.IntN(20000)
		docs, sa := randomSortedArray(rng, rng.IntN(min(maxDoc, 500)), maxDoc)
		bm := roaring.New()
		for _, d := range docs {
			bm.Add(uint32(d))
		}
		rs := NewRoaringSet(bm)
		a, b := sa.Iterator(), rs.Iterator()
		require.Equal(t, a.Cost(), b.Cost())

		for a.DocID() != NoMoreDocs {
			switch rng.IntN(3) {
			case 0:
				require.Equal(t, a.NextDoc(), b.NextDoc())
			case 1:
				target := max(a.DocID(), 0) + DocID(rng.IntN(1+maxDoc/20))
				require.Equal(t, a.Advance(target), b.Advance(target))
			case 2:
				upTo := max(a.DocID(), 0) + DocID(rng.IntN(1+maxDoc/20))
				bsA, bsB := bitset.New(uint(maxDoc)), bitset.New(uint(maxDoc))
				a.IntoBitSet(upTo, bsA, 0)
				b.IntoBitSet(upTo, bsB, 0)
				require.True(t, bsA.Equal(bsB))
				require.Equal(t, a.DocID(), b.DocID())
			}
		}
		require.Equal(t, NoMoreDocs, b.DocID())
	}
}

func TestEmpty(t *testing.T) {
	s := Empty()
	require.Zero(t, s.MemoryUsage())
	it := s.Iterator()
	require.Equal(t, DocID(-1), it.DocID())
	require.Zero(t, it.Cost())
	require.Equal(t, NoMoreDocs, it.NextDoc())
	require.Equal(t, NoMoreDocs, it.Advance(10))
	bs := bitset.New(8)
	it.IntoBitSet(100, bs, 0)
	require.Zero(t, bs.Count())
}

func collect(it Iterator) []DocID {
	var res []DocID
	for doc := it.NextDoc(); doc != NoMoreDocs; doc = it.NextDoc() {
		res = append(res, doc)
	}
	return res
}

func TestBuilder(t *testing.T) {
	const maxDoc = 1 << 14

	t.Run("empty", func(t *testing.T) {
		s := NewBuilder(maxDoc).Build()
		require.Equal(t, NoMoreDocs, s.Iterator().NextDoc())
	})

	t.Run("sparse", func(t *testing.T) {
		b := NewBuilder(maxDoc)
		for _, doc := range []DocID{90, 4, 4, 17, 3, 90} {
			b.Add(doc)
		}
		s := b.Build()
		require.IsType(t, (*SortedArray)(nil), s)
		require.Equal(t, []DocID{3, 4, 17, 90}, collect(s.Iterator()))
	})

	t.Run("dense", func(t *testing.T) {
		b := NewBuilder(maxDoc)
		var want []DocID
		for doc := DocID(maxDoc - 1); doc >= 0; doc -= 3 {
			b.Add(doc)
			want = append([]DocID{doc}, want...)
		}
		s := b.Build()
		require.IsType(t, (*RoaringSet)(nil), s)
		require.Equal(t, want, collect(s.Iterator()))
		require.Equal(t, int64(len(want)), s.Iterator().Cost())
	})

	t.Run("iterator", func(t *testing.T) {
		b := NewBuilder(maxDoc)
		b.AddIterator(SortedArrayOf(5, 6, 7).Iterator())
		b.AddIterator(SortedArrayOf(1, 6).Iterator())
		require.Equal(t, []DocID{1, 5, 6, 7}, collect(b.Build().Iterator()))
	})

	require.Panics(t, func() { NewBuilder(10).Add(10) })
	require.Panics(t, func() { NewBuilder(10).Add(-1) })
}

func TestConjunction(t *testing.T) {
	a := SortedArrayOf(1, 3, 5, 7, 9, 11, 13, 15, 17, 19)
	b := SortedArrayOf(3, 9, 15, 21)
	bm := roaring.New()
	bm.AddRange(0, 100)
	c := NewRoaringSet(bm)

	it := NewConjunction(a.Iterator(), b.Iterator(), c.Iterator())
	// The cheapest child leads.
	require.Equal(t, int64(4), it.Cost())
	require.Equal(t, DocID(-1), it.DocID())
	require.Equal(t, []DocID{3, 9, 15}, collect(it))
	require.Equal(t, NoMoreDocs, it.DocID())

	it = NewConjunction(c.Iterator(), a.Iterator(), b.Iterator())
	require.Equal(t, DocID(9), it.Advance(4))
	bs := bitset.New(32)
	it.IntoBitSet(NoMoreDocs, bs, 0)
	require.Equal(t, []uint{9, 15}, setBits(bs))

	it = NewConjunction(a.Iterator(), SortedArrayOf(2, 4).Iterator())
	require.Equal(t, NoMoreDocs, it.NextDoc())

	single := a.Iterator()
	require.Equal(t, single, NewConjunction(single))
	require.Panics(t, func() { NewConjunction() })
}

func TestConjunctionRandomized(t *testing.T) {
	seed := uint64(time.Now().UnixNano())
	t.Logf("seed %d", seed)
	rng := rand.New(rand.NewPCG(0, seed))

	for iter := 0; iter < 50; iter++ {
		const maxDoc = 2000
		n := 2 + rng.IntN(3)
		its := make([]Iterator, n)
		counts := make(map[DocID]int)
		for i := range its {
			docs, s := randomSortedArray(rng, rng.IntN(800), maxDoc)
			for _, d := range docs {
				counts[d]++
			}
			its[i] = s.Iterator()
		}
		var want []DocID
		for d := DocID(0); d < maxDoc; d++ {
			if counts[d] == n {
				want = append(want, d)
			}
		}
		require.Equal(t, want, collect(NewConjunction(its...)))
	}
}

// TestIntoBitSetOffset checks that bits are relative to the offset and that an
// offset above a set document is rejected when invariants are enabled.
func TestIntoBitSetOffset(t *testing.T) {
	bm := roaring.New()
	bm.AddMany([]uint32{10, 12, 15})
	rs := NewRoaringSet(bm)
	sets := map[string]func() Iterator{
		"sorted-array": func() Iterator { return SortedArrayOf(10, 12, 15).Iterator() },
		"roaring":      func() Iterator { return rs.Iterator() },
		"conjunction": func() Iterator {
			return NewConjunction(SortedArrayOf(10, 12, 15).Iterator(), rs.Iterator())
		},
	}
	for name, newIter := range sets {
		t.Run(name, func(t *testing.T) {
			bs := bitset.New(8)
			it := newIter()
			it.IntoBitSet(NoMoreDocs, bs, 10)
			require.Equal(t, []uint{0, 2, 5}, setBits(bs))
			require.Equal(t, NoMoreDocs, it.DocID())

			if !invariants.Enabled {
				t.Skip("offset is only checked with invariants enabled")
			}
			require.Panics(t, func() { newIter().IntoBitSet(NoMoreDocs, bitset.New(8), 11) })
			it = newIter()
			require.Equal(t, DocID(12), it.Advance(11))
			require.Panics(t, func() { it.IntoBitSet(NoMoreDocs, bitset.New(8), 13) })
		})
	}
}
