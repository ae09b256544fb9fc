// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/segcore/compression"
	"github.com/cockroachdb/segcore/internal/base"
	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var decompressConfig struct {
	setting   string
	adaptive  string
	blocks    int
	blockSize int
	rangeSize int
	plot      bool
}

var decompressCmd = &cobra.Command{
	Use:   "decompress",
	Short: "run the partial block decompression benchmark",
	Long: `
Writes a set of compressed blocks in memory and then reads random sub-ranges
of them from concurrent workers, each with its own decompressor.
`,
	Args: cobra.NoArgs,
	RunE: runDecompress,
}

// encodedBlock is a framed block along with its uncompressed length.
type encodedBlock struct {
	encoded []byte
	length  int
}

// vocabulary is used to generate text-like, compressible block contents.
var vocabulary = strings.Fields(`segment posting block skip doc id set range
offset length merge flush compaction index term field score vector shard
cursor bitmap roaring gallop leapfrog checksum frame`)

func randomText(rng *rand.Rand, n int) []byte {
	var b bytes.Buffer
	for b.Len() < n {
		b.WriteString(vocabulary[rng.IntN(len(vocabulary))])
		b.WriteByte(' ')
		if rng.IntN(8) == 0 {
			fmt.Fprintf(&b, "%d ", rng.Uint32())
		}
	}
	return b.Bytes()[:n]
}

func writeBlocks(rng *rand.Rand) ([]encodedBlock, error) {
	setting, err := compression.ParseSetting(decompressConfig.setting)
	if err != nil {
		return nil, err
	}
	compressLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "segbench",
		Name:      "compress_latency_seconds",
		Help:      "Time spent compressing a block.",
		Buckets:   prometheus.ExponentialBuckets(1e-6, 2, 20),
	})
	reg := prometheus.NewRegistry()
	reg.MustRegister(compressLatency)

	opts := compression.DefaultBlockWriterOptions()
	opts.Compression = setting
	opts.CompressLatency = compressLatency
	if decompressConfig.adaptive != "" {
		slow, err := compression.ParseSetting(decompressConfig.adaptive)
		if err != nil {
			return nil, err
		}
		var logger base.Logger = base.NoopLogger{}
		if verbose {
			logger = base.DefaultLogger
		}
		ac := compression.NewAdaptiveCompressor(compression.AdaptiveCompressorParams{
			Fast:            setting,
			Slow:            slow,
			ReductionCutoff: 0.2,
			SampleEvery:     10,
			SampleHalfLife:  int64(16 * decompressConfig.blockSize),
			SamplingSeed:    seed,
			Logger:          logger,
		})
		defer ac.Close()
		opts.Compressor = ac
	}
	w := compression.NewBlockWriter(opts)
	defer w.Close()

	blocks := make([]encodedBlock, decompressConfig.blocks)
	settings := make(map[compression.Setting]int)
	var raw, stored int
	for i := range blocks {
		data := randomText(rng, decompressConfig.blockSize)
		encoded, s := w.AppendBlock(nil, data)
		blocks[i] = encodedBlock{encoded: encoded, length: len(data)}
		settings[s]++
		raw += len(data)
		stored += len(encoded)
	}

	families, err := reg.Gather()
	if err != nil {
		return nil, err
	}
	var compressSeconds float64
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			compressSeconds += m.GetHistogram().GetSampleSum()
		}
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"stored as", "blocks"})
	for s, n := range settings {
		table.Append([]string{s.String(), fmt.Sprint(n)})
	}
	table.Render()
	fmt.Printf("wrote %d blocks: %d -> %d bytes (%.1f%%), compression %.1f MB/s\n\n",
		len(blocks), raw, stored, 100*float64(stored)/float64(raw),
		float64(raw)/compressSeconds/1e6)
	return blocks, nil
}

func runDecompress(cmd *cobra.Command, args []string) error {
	if decompressConfig.blocks <= 0 || decompressConfig.blockSize <= 0 {
		return errors.New("--blocks and --block-size must be positive")
	}
	if decompressConfig.rangeSize < 0 || decompressConfig.rangeSize > decompressConfig.blockSize {
		return errors.Newf("--range-size must be in [0, %d]", decompressConfig.blockSize)
	}
	rng := rand.New(rand.NewPCG(0, seed))
	blocks, err := writeBlocks(rng)
	if err != nil {
		return err
	}

	reg := newHistogramRegistry()
	proto := compression.NewAdaptiveDecompressor()
	var throughput []float64

	return runTest(test{
		worker: func(ctx context.Context, id int) error {
			latency := reg.Register("read")
			d := proto.Clone()
			rng := rand.New(rand.NewPCG(uint64(id), seed))
			var dst []byte
			var r bytes.Reader
			for ctx.Err() == nil {
				b := &blocks[rng.IntN(len(blocks))]
				offset, length := 0, b.length
				if decompressConfig.rangeSize > 0 {
					length = decompressConfig.rangeSize
					offset = rng.IntN(b.length - length + 1)
				}
				r.Reset(b.encoded)
				start := crtime.NowMono()
				var err error
				dst, err = d.Decompress(&r, b.length, offset, length, dst)
				if err != nil {
					return err
				}
				latency.Record(start.Elapsed(), length)
			}
			return nil
		},

		tick: func(elapsed time.Duration, i int) {
			if i%20 == 0 {
				fmt.Println("_elapsed____ops/sec___MB/sec__p50(µs)__p95(µs)__p99(µs)_pMax(µs)")
			}
			reg.Tick(func(tick histogramTick) {
				h := tick.Hist
				mbps := float64(tick.Bytes) / tick.Elapsed.Seconds() / 1e6
				throughput = append(throughput, mbps)
				fmt.Printf("%8s %10.1f %8.1f %8.1f %8.1f %8.1f %8.1f\n",
					time.Duration(elapsed.Seconds()+0.5)*time.Second,
					float64(h.TotalCount())/tick.Elapsed.Seconds(),
					mbps,
					1000*ms(h.ValueAtQuantile(50)),
					1000*ms(h.ValueAtQuantile(95)),
					1000*ms(h.ValueAtQuantile(99)),
					1000*ms(h.ValueAtQuantile(100)),
				)
			})
		},

		done: func(elapsed time.Duration) {
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"elapsed", "ops(total)", "ops/sec(cum)", "MB/sec(cum)",
				"avg(µs)", "p50(µs)", "p95(µs)", "p99(µs)", "pMax(µs)"})
			reg.Tick(func(tick histogramTick) {
				h := tick.Cumulative
				table.Append([]string{
					fmt.Sprintf("%.1fs", elapsed.Seconds()),
					fmt.Sprint(h.TotalCount()),
					fmt.Sprintf("%.1f", float64(h.TotalCount())/elapsed.Seconds()),
					fmt.Sprintf("%.1f", float64(tick.CumulativeBytes)/elapsed.Seconds()/1e6),
					fmt.Sprintf("%.2f", 1000*ms(int64(h.Mean()))),
					fmt.Sprintf("%.2f", 1000*ms(h.ValueAtQuantile(50))),
					fmt.Sprintf("%.2f", 1000*ms(h.ValueAtQuantile(95))),
					fmt.Sprintf("%.2f", 1000*ms(h.ValueAtQuantile(99))),
					fmt.Sprintf("%.2f", 1000*ms(h.ValueAtQuantile(100))),
				})
			})
			fmt.Println()
			table.Render()
			if decompressConfig.plot && len(throughput) > 1 {
				fmt.Println()
				fmt.Println(asciigraph.Plot(throughput, asciigraph.Height(10), asciigraph.Caption("MB/sec")))
			}
			if verbose {
				log.Printf("seed %d", seed)
			}
		},
	})
}
