// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cockroachdb/crlib/crtime"
	"golang.org/x/sync/errgroup"
)

const (
	minLatency = 100 * time.Nanosecond
	maxLatency = 10 * time.Second
)

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatency.Nanoseconds(), maxLatency.Nanoseconds(), 2)
}

type namedHistogram struct {
	name string
	mu   struct {
		sync.Mutex
		current *hdrhistogram.Histogram
		bytes   int64
	}
}

func newNamedHistogram(name string) *namedHistogram {
	w := &namedHistogram{name: name}
	w.mu.current = newHistogram()
	return w
}

// Record records an operation that took elapsed and processed n bytes.
func (w *namedHistogram) Record(elapsed time.Duration, n int) {
	elapsed = min(max(elapsed, minLatency), maxLatency)

	w.mu.Lock()
	err := w.mu.current.RecordValue(elapsed.Nanoseconds())
	w.mu.bytes += int64(n)
	w.mu.Unlock()

	if err != nil {
		// Note that a histogram only drops recorded values that are out of range,
		// but we clamp the latency value to the configured range to prevent such
		// drops. This code path should never happen.
		panic(fmt.Sprintf(`%s: recording value: %s`, w.name, err))
	}
}

func (w *namedHistogram) tick(fn func(h *hdrhistogram.Histogram, bytes int64)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	h, b := w.mu.current, w.mu.bytes
	w.mu.current = newHistogram()
	w.mu.bytes = 0
	fn(h, b)
}

type histogramTick struct {
	// Name is the name given to the histograms represented by this tick.
	Name string
	// Hist is the merged result of the represented histograms for this tick.
	// Hist.TotalCount() is the number of operations that occurred for this tick.
	Hist *hdrhistogram.Histogram
	// Cumulative is the merged result of the represented histograms for all
	// time.
	Cumulative *hdrhistogram.Histogram
	// Bytes and CumulativeBytes are the bytes processed during the tick and
	// over all time.
	Bytes, CumulativeBytes int64
	// Elapsed is the amount of time since the last tick.
	Elapsed time.Duration
}

type histogramRegistry struct {
	mu struct {
		sync.Mutex
		registered []*namedHistogram
	}

	start           crtime.Mono
	cumulative      map[string]*hdrhistogram.Histogram
	cumulativeBytes map[string]int64
	prevTick        map[string]crtime.Mono
}

func newHistogramRegistry() *histogramRegistry {
	return &histogramRegistry{
		start:           crtime.NowMono(),
		cumulative:      make(map[string]*hdrhistogram.Histogram),
		cumulativeBytes: make(map[string]int64),
		prevTick:        make(map[string]crtime.Mono),
	}
}

func (w *histogramRegistry) Register(name string) *namedHistogram {
	hist := newNamedHistogram(name)

	w.mu.Lock()
	w.mu.registered = append(w.mu.registered, hist)
	w.mu.Unlock()

	return hist
}

func (w *histogramRegistry) Tick(fn func(histogramTick)) {
	w.mu.Lock()
	registered := append([]*namedHistogram(nil), w.mu.registered...)
	w.mu.Unlock()

	merged := make(map[string]*hdrhistogram.Histogram)
	mergedBytes := make(map[string]int64)
	var names []string
	for _, hist := range registered {
		hist.tick(func(h *hdrhistogram.Histogram, b int64) {
			if m, ok := merged[hist.name]; ok {
				m.Merge(h)
			} else {
				merged[hist.name] = h
				names = append(names, hist.name)
			}
			mergedBytes[hist.name] += b
		})
	}

	now := crtime.NowMono()
	sort.Strings(names)
	for _, name := range names {
		if _, ok := w.cumulative[name]; !ok {
			w.cumulative[name] = newHistogram()
		}
		w.cumulative[name].Merge(merged[name])
		w.cumulativeBytes[name] += mergedBytes[name]

		prevTick, ok := w.prevTick[name]
		if !ok {
			prevTick = w.start
		}
		w.prevTick[name] = now
		fn(histogramTick{
			Name:            name,
			Hist:            merged[name],
			Cumulative:      w.cumulative[name],
			Bytes:           mergedBytes[name],
			CumulativeBytes: w.cumulativeBytes[name],
			Elapsed:         time.Duration(now - prevTick),
		})
	}
}

type test struct {
	// worker runs until ctx is canceled. It is started concurrency times.
	worker func(ctx context.Context, id int) error
	tick   func(elapsed time.Duration, i int)
	done   func(elapsed time.Duration)
}

// runTest runs the workers until the duration elapses or the process is
// interrupted, calling tick every second.
func runTest(t test) error {
	fmt.Printf("concurrency %d\n", concurrency)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error { return t.worker(gctx, i) })
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	start := crtime.NowMono()
	for i := 0; ; i++ {
		select {
		case <-ticker.C:
			t.tick(start.Elapsed(), i)

		case <-gctx.Done():
			err := g.Wait()
			t.done(start.Elapsed())
			return err
		}
	}
}

func ms(ns int64) float64 {
	return time.Duration(ns).Seconds() * 1000
}
