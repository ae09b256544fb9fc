// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/segcore/docidset"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var skipConfig struct {
	docs       int
	maxDoc     int
	strides    string
	iterations int
}

var skipCmd = &cobra.Command{
	Use:   "skip",
	Short: "run the doc-id set skipping benchmark",
	Long: `
Builds a random sorted doc-id set and compares galloping Advance calls against
a linear scan with NextDoc, for a range of advance distances. The same set is
also measured as a roaring bitmap.
`,
	Args: cobra.NoArgs,
	RunE: runSkip,
}

func parseStrides(s string) ([]int, error) {
	var strides []int
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || n <= 0 {
			return nil, errors.Newf("invalid stride %q", f)
		}
		strides = append(strides, n)
	}
	return strides, nil
}

// advanceAll advances through the set stride documents at a time and returns
// the number of documents landed on.
func advanceAll(it docidset.Iterator, stride docidset.DocID) int {
	n := 0
	for doc := it.Advance(0); doc != docidset.NoMoreDocs; doc = it.Advance(doc + stride) {
		n++
	}
	return n
}

// scanAll does the same as advanceAll with NextDoc only.
func scanAll(it docidset.Iterator, stride docidset.DocID) int {
	n := 0
	target := docidset.DocID(0)
	for doc := it.NextDoc(); doc != docidset.NoMoreDocs; doc = it.NextDoc() {
		if doc >= target {
			n++
			target = doc + stride
		}
	}
	return n
}

func measure(iterations int, fn func() int) (time.Duration, int) {
	start := crtime.NowMono()
	var n int
	for i := 0; i < iterations; i++ {
		n = fn()
	}
	return start.Elapsed() / time.Duration(iterations), n
}

func runSkip(cmd *cobra.Command, args []string) error {
	if skipConfig.docs <= 0 || skipConfig.maxDoc < skipConfig.docs || skipConfig.iterations <= 0 {
		return errors.New("--docs, --max-doc and --iterations must be positive, with --docs <= --max-doc")
	}
	strides, err := parseStrides(skipConfig.strides)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(0, seed))
	b := docidset.NewBuilder(docidset.DocID(skipConfig.maxDoc))
	docs := make([]docidset.DocID, 0, skipConfig.docs)
	seen := bitset.New(uint(skipConfig.maxDoc))
	for len(docs) < skipConfig.docs {
		d := rng.IntN(skipConfig.maxDoc)
		if seen.Test(uint(d)) {
			continue
		}
		seen.Set(uint(d))
		docs = append(docs, docidset.DocID(d))
		b.Add(docidset.DocID(d))
	}
	array := docidset.SortedArrayOf(docs...)
	var dense docidset.Set = b.Build()

	fmt.Printf("docs %d in [0, %d), sorted array %d bytes, built set %T %d bytes\n\n",
		array.Len(), skipConfig.maxDoc, array.MemoryUsage(), dense, dense.MemoryUsage())

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"stride", "hits", "advance", "next-doc scan", "speedup", "built set advance"})
	for _, stride := range strides {
		s := docidset.DocID(stride)
		advance, hits := measure(skipConfig.iterations, func() int { return advanceAll(array.Iterator(), s) })
		scan, scanHits := measure(skipConfig.iterations, func() int { return scanAll(array.Iterator(), s) })
		if hits != scanHits {
			return errors.AssertionFailedf("advance landed on %d documents, scan on %d", hits, scanHits)
		}
		built, builtHits := measure(skipConfig.iterations, func() int { return advanceAll(dense.Iterator(), s) })
		if hits != builtHits {
			return errors.AssertionFailedf("sorted array landed on %d documents, built set on %d", hits, builtHits)
		}
		table.Append([]string{
			strconv.Itoa(stride),
			strconv.Itoa(hits),
			advance.String(),
			scan.String(),
			fmt.Sprintf("%.1fx", float64(scan)/float64(max(advance, 1))),
			built.String(),
		})
	}
	table.Render()
	return nil
}
