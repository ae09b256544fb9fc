// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compression

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/segcore/internal/base"
	"github.com/cockroachdb/segcore/internal/testutils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestBlockDataDriven(t *testing.T) {
	var buf []byte
	var lengths []int
	datadriven.RunTest(t, "testdata/block", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "reset":
			buf, lengths = nil, nil
			return ""

		case "write":
			var settingStr string
			td.ScanArgs(t, "setting", &settingStr)
			opts := DefaultBlockWriterOptions()
			opts.Compression = testutils.CheckErr(ParseSetting(settingStr))
			if td.HasArg("checksum") {
				var c string
				td.ScanArgs(t, "checksum", &c)
				opts.Checksum = parseChecksumType(t, c)
			}
			repeat := 1
			td.MaybeScanArgs(t, "repeat", &repeat)
			data := []byte(strings.Repeat(strings.TrimSpace(td.Input), repeat))

			w := NewBlockWriter(opts)
			defer w.Close()
			var s Setting
			buf, s = w.AppendBlock(buf, data)
			lengths = append(lengths, len(data))
			return fmt.Sprintf("block %d: %s (%d bytes)", len(lengths)-1, s, len(data))

		case "read":
			var block, offset, length int
			td.ScanArgs(t, "block", &block)
			td.ScanArgs(t, "offset", &offset)
			td.ScanArgs(t, "length", &length)
			d := NewAdaptiveDecompressor()
			if td.HasArg("decompressor") {
				var name string
				td.ScanArgs(t, "decompressor", &name)
				d = NewDecompressor(testutils.CheckErr(ParseSetting(name)).Algorithm)
			}
			r := bytes.NewReader(buf)
			skip := NewAdaptiveDecompressor()
			for i := 0; i < block; i++ {
				_, err := skip.Decompress(r, lengths[i], 0, 0, nil)
				require.NoError(t, err)
			}
			out, err := d.Decompress(r, lengths[block], offset, length, nil)
			switch {
			case err == nil:
				return fmt.Sprintf("%q", out)
			case errors.Is(err, base.ErrInvalidArgument):
				return "error: invalid argument"
			case errors.Is(err, base.ErrCorruption):
				return "error: corruption"
			default:
				return fmt.Sprintf("error: %v", err)
			}

		default:
			return fmt.Sprintf("unrecognized command %q", td.Cmd)
		}
	})
}

// requireBytes compares contents only: an empty read may return a nil slice.
func requireBytes(t *testing.T, want, got []byte) {
	t.Helper()
	require.Len(t, got, len(want))
	require.True(t, bytes.Equal(want, got), "expected %q, got %q", want, got)
}

func parseChecksumType(t *testing.T, s string) ChecksumType {
	for _, c := range []ChecksumType{ChecksumTypeNone, ChecksumTypeCRC32c, ChecksumTypeXXHash64} {
		if c.String() == s {
			return c
		}
	}
	t.Fatalf("unknown checksum type %q", s)
	return 0
}

// TestDecompressSubRange reads a sub-range of a block holding the bytes
// 0, 1, ..., 99 with every preset.
func TestDecompressSubRange(t *testing.T) {
	original := make([]byte, 100)
	for i := range original {
		original[i] = byte(i)
	}
	for _, s := range presets {
		t.Run(s.String(), func(t *testing.T) {
			opts := DefaultBlockWriterOptions()
			opts.Compression = s
			w := NewBlockWriter(opts)
			defer w.Close()
			buf, _ := w.AppendBlock(nil, original)

			r := bytes.NewReader(buf)
			out, err := NewDecompressor(s.Algorithm).Decompress(r, 100, 30, 10, nil)
			require.NoError(t, err)
			require.Equal(t, []byte{30, 31, 32, 33, 34, 35, 36, 37, 38, 39}, out)
			require.Zero(t, r.Len())
		})
	}
}

func TestDecompressRandomRanges(t *testing.T) {
	seed := uint64(time.Now().UnixNano())
	t.Logf("seed %d", seed)
	rng := rand.New(rand.NewPCG(0, seed))

	for _, s := range presets {
		t.Run(s.String(), func(t *testing.T) {
			opts := BlockWriterOptions{Compression: s, Checksum: ChecksumTypeCRC32c}
			w := NewBlockWriter(opts)
			defer w.Close()
			d := NewDecompressor(s.Algorithm)

			var dst, buf []byte
			for i := 0; i < 50; i++ {
				n := rng.IntN(32 << 10)
				var data []byte
				if rng.IntN(4) == 0 {
					data = testutils.RandomBytes(rng, n)
				} else {
					data = testutils.CompressibleBytes(rng, n)
				}
				buf, _ = w.AppendBlock(buf[:0], data)

				offset := rng.IntN(n + 1)
				length := rng.IntN(n - offset + 1)
				var err error
				dst, err = d.Decompress(bytes.NewReader(buf), n, offset, length, dst)
				require.NoError(t, err)
				requireBytes(t, data[offset:offset+length], dst)
			}
		})
	}
}

// TestDecompressConsecutiveBlocks checks that each call consumes exactly one
// framed block, whatever range it asks for.
func TestDecompressConsecutiveBlocks(t *testing.T) {
	rng := rand.New(rand.NewPCG(0, 1))
	var buf []byte
	var blocks [][]byte
	for _, s := range presets {
		opts := DefaultBlockWriterOptions()
		opts.Compression = s
		w := NewBlockWriter(opts)
		for i := 0; i < 5; i++ {
			data := testutils.CompressibleBytes(rng, 1+rng.IntN(8<<10))
			buf, _ = w.AppendBlock(buf, data)
			blocks = append(blocks, data)
		}
		w.Close()
	}

	r := bytes.NewReader(buf)
	d := NewAdaptiveDecompressor()
	for _, data := range blocks {
		offset := rng.IntN(len(data))
		length := rng.IntN(min(len(data)-offset, 16) + 1)
		out, err := d.Decompress(r, len(data), offset, length, nil)
		require.NoError(t, err)
		requireBytes(t, data[offset:offset+length], out)
	}
	require.Zero(t, r.Len())
}

// TestBlockWriterReusesBuffer writes several blocks with one writer, so that
// every compressor sees a reused, zero-length but large enough dst.
func TestBlockWriterReusesBuffer(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 512)
	for _, s := range presets {
		t.Run(s.String(), func(t *testing.T) {
			opts := DefaultBlockWriterOptions()
			opts.Compression = s
			w := NewBlockWriter(opts)
			defer w.Close()
			var buf []byte
			for i := 0; i < 3; i++ {
				var stored Setting
				buf, stored = w.AppendBlock(buf, data)
				require.Equal(t, s.Algorithm, stored.Algorithm)
			}
			r := bytes.NewReader(buf)
			d := NewDecompressor(s.Algorithm)
			for i := 0; i < 3; i++ {
				out, err := d.Decompress(r, len(data), 8*i, 64, nil)
				require.NoError(t, err)
				require.Equal(t, data[8*i:8*i+64], out)
			}
			require.Zero(t, r.Len())
		})
	}
}

func TestDecompressInvalidRange(t *testing.T) {
	w := NewBlockWriter(DefaultBlockWriterOptions())
	defer w.Close()
	buf, _ := w.AppendBlock(nil, bytes.Repeat([]byte("segment"), 10))

	for _, tc := range []struct{ originalLength, offset, length int }{
		{70, -1, 5},
		{70, 0, -1},
		{70, 66, 5},
		{70, 71, 0},
		{-1, 0, 0},
		{70, 1 << 62, 1 << 62},
	} {
		r := bytes.NewReader(buf)
		_, err := NewAdaptiveDecompressor().Decompress(r, tc.originalLength, tc.offset, tc.length, nil)
		testutils.RequireMarked(t, err, base.ErrInvalidArgument)
		// Nothing was read.
		require.Equal(t, len(buf), r.Len())
	}
}

func TestDecompressEmptyRange(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 100)
	for _, s := range presets {
		opts := DefaultBlockWriterOptions()
		opts.Compression = s
		w := NewBlockWriter(opts)
		buf, _ := w.AppendBlock(nil, data)
		buf, _ = w.AppendBlock(buf, data[:10])
		w.Close()

		r := bytes.NewReader(buf)
		d := NewDecompressor(s.Algorithm)
		out, err := d.Decompress(r, len(data), 500, 0, make([]byte, 10))
		require.NoError(t, err)
		require.Empty(t, out)
		out, err = d.Decompress(r, 10, 0, 10, nil)
		require.NoError(t, err)
		require.Equal(t, data[:10], out)
	}
}

func TestDecompressCorruption(t *testing.T) {
	data := bytes.Repeat([]byte("corruption"), 100)
	w := NewBlockWriter(BlockWriterOptions{
		Compression:         Snappy,
		MinReductionPercent: DefaultMinReductionPercent,
		Checksum:            ChecksumTypeXXHash64,
	})
	defer w.Close()
	valid, s := w.AppendBlock(nil, data)
	require.Equal(t, Snappy, s)

	mutate := func(f func(b []byte) []byte) []byte {
		return f(append([]byte(nil), valid...))
	}
	cases := map[string][]byte{
		"payload-bit-flip": mutate(func(b []byte) []byte { b[len(b)-6] ^= 0x10; return b }),
		"checksum-bit-flip": mutate(func(b []byte) []byte { b[len(b)-1] ^= 0x01; return b }),
		// The checksum covers the indicator.
		"indicator-swap":   mutate(func(b []byte) []byte { b[0] = byte(MinLZ); return b }),
		"unknown-indicator": mutate(func(b []byte) []byte { b[0] = 200; return b }),
		"unknown-checksum":  mutate(func(b []byte) []byte { b[1] = 7; return b }),
		"huge-length": append([]byte{byte(SnappyAlgorithm), byte(ChecksumTypeNone)},
			binary.AppendUvarint(nil, 1<<40)...),
		"garbage": {0xff, 0xfe, 0xfd},
		"empty":   {},
	}
	for i := 1; i < len(valid); i += 7 {
		cases[fmt.Sprintf("truncated-%d", i)] = valid[:i]
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewAdaptiveDecompressor().Decompress(bytes.NewReader(b), len(data), 0, len(data), nil)
			testutils.RequireMarked(t, err, base.ErrCorruption)
		})
	}

	t.Run("bit-flip-detail", func(t *testing.T) {
		b := append([]byte(nil), valid...)
		b[len(b)-6] ^= 1 << 2
		_, err := NewAdaptiveDecompressor().Decompress(bytes.NewReader(b), len(data), 0, 1, nil)
		testutils.RequireMarked(t, err, base.ErrCorruption)
		require.Contains(t, errors.FlattenDetails(err), "single bit flip")
	})

	t.Run("uncompressed-length-mismatch", func(t *testing.T) {
		w := NewBlockWriter(BlockWriterOptions{})
		defer w.Close()
		b, _ := w.AppendBlock(nil, data)
		_, err := NewAdaptiveDecompressor().Decompress(bytes.NewReader(b), len(data)+1, 0, 1, nil)
		testutils.RequireMarked(t, err, base.ErrCorruption)
	})

	t.Run("wrong-algorithm", func(t *testing.T) {
		_, err := NewDecompressor(Zstd).Decompress(bytes.NewReader(valid), len(data), 0, 1, nil)
		testutils.RequireMarked(t, err, base.ErrCorruption)
	})
}

func TestMinReductionPercent(t *testing.T) {
	rng := rand.New(rand.NewPCG(0, 1))
	random := testutils.RandomBytes(rng, 4096)
	compressible := bytes.Repeat([]byte{'a'}, 4096)

	w := NewBlockWriter(DefaultBlockWriterOptions())
	defer w.Close()
	_, s := w.AppendBlock(nil, random)
	require.Equal(t, NoCompression, s)
	_, s = w.AppendBlock(nil, compressible)
	require.Equal(t, Snappy, s)

	// With a 100% minimum reduction nothing is ever compressed.
	w100 := NewBlockWriter(BlockWriterOptions{Compression: Snappy, MinReductionPercent: 100})
	defer w100.Close()
	buf, s := w100.AppendBlock(nil, compressible)
	require.Equal(t, NoCompression, s)
	out, err := NewDecompressor(SnappyAlgorithm).Decompress(bytes.NewReader(buf), 4096, 4000, 96, nil)
	require.NoError(t, err)
	require.Equal(t, compressible[4000:], out)
}

func TestBlockWriterOptions(t *testing.T) {
	require.Panics(t, func() { NewBlockWriter(BlockWriterOptions{Checksum: 2}) })
	require.Panics(t, func() { NewBlockWriter(BlockWriterOptions{MinReductionPercent: 101}) })
	require.Panics(t, func() { NewBlockWriter(BlockWriterOptions{Compression: Setting{Algorithm: Zstd, Level: 30}}) })

	var observed int
	opts := DefaultBlockWriterOptions()
	opts.CompressLatency = prometheus.ObserverFunc(func(v float64) {
		require.GreaterOrEqual(t, v, 0.0)
		observed++
	})
	w := NewBlockWriter(opts)
	defer w.Close()
	var out bytes.Buffer
	for i := 0; i < 3; i++ {
		_, err := w.WriteBlock(&out, []byte("latency latency latency latency"))
		require.NoError(t, err)
	}
	require.Equal(t, 3, observed)

	r := bytes.NewReader(out.Bytes())
	for i := 0; i < 3; i++ {
		got, err := NewAdaptiveDecompressor().Decompress(r, 31, 8, 7, nil)
		require.NoError(t, err)
		require.Equal(t, "latency", string(got))
	}
}

func TestBlockWriterExternalCompressor(t *testing.T) {
	hist := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "compress_latency_seconds"})
	c := GetCompressor(LZ4Fast)
	defer c.Close()
	w := NewBlockWriter(BlockWriterOptions{Compressor: c, CompressLatency: hist})
	data := bytes.Repeat([]byte("external"), 64)
	buf, s := w.AppendBlock(nil, data)
	w.Close()
	require.Equal(t, LZ4Fast, s)

	// The compressor is still usable after the writer is closed.
	_, s = c.Compress(nil, data)
	require.Equal(t, LZ4Fast, s)

	out, err := NewDecompressor(LZ4).Decompress(bytes.NewReader(buf), len(data), 0, len(data), nil)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

// TestDecompressorClone decodes the same blocks from several goroutines, each
// with its own clone.
func TestDecompressorClone(t *testing.T) {
	rng := rand.New(rand.NewPCG(0, 1))
	type block struct {
		data    []byte
		encoded []byte
	}
	var blocks []block
	for _, s := range presets {
		opts := DefaultBlockWriterOptions()
		opts.Compression = s
		w := NewBlockWriter(opts)
		for i := 0; i < 4; i++ {
			data := testutils.CompressibleBytes(rng, 1+rng.IntN(16<<10))
			encoded, _ := w.AppendBlock(nil, data)
			blocks = append(blocks, block{data: data, encoded: encoded})
		}
		w.Close()
	}

	proto := NewAdaptiveDecompressor()
	// Warm up the prototype's scratch state; clones must not share it.
	for _, b := range blocks {
		_, err := proto.Decompress(bytes.NewReader(b.encoded), len(b.data), 0, len(b.data), nil)
		require.NoError(t, err)
	}

	// Worker 0 keeps using the prototype alongside its clones.
	workers := []Decompressor{proto}
	for len(workers) < 8 {
		workers = append(workers, proto.Clone())
	}
	var g errgroup.Group
	for w, d := range workers {
		seed := uint64(w)
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(0, seed))
			var dst []byte
			for i := 0; i < 200; i++ {
				b := blocks[rng.IntN(len(blocks))]
				offset := rng.IntN(len(b.data))
				length := rng.IntN(len(b.data) - offset + 1)
				var err error
				dst, err = d.Decompress(bytes.NewReader(b.encoded), len(b.data), offset, length, dst)
				if err != nil {
					return err
				}
				if !bytes.Equal(dst, b.data[offset:offset+length]) {
					return errors.Newf("mismatch decoding [%d, %d)", offset, offset+length)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
