// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// segbench benchmarks the segment building blocks: partial block
// decompression and doc-id set skipping.
package main

import (
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	concurrency int
	duration    time.Duration
	verbose     bool
	seed        uint64
)

var rootCmd = &cobra.Command{
	Use:   "segbench [command] (flags)",
	Short: "segment storage benchmarking tool",
	Long:  ``,
}

func main() {
	log.SetFlags(0)

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		decompressCmd,
		skipCmd,
	)

	rootCmd.PersistentFlags().Uint64Var(
		&seed, "seed", uint64(time.Now().UnixNano()), "random seed")
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable verbose logging")

	decompressCmd.Flags().IntVarP(
		&concurrency, "concurrency", "c", 1, "number of concurrent workers")
	decompressCmd.Flags().DurationVarP(
		&duration, "duration", "d", 10*time.Second, "the duration to run (0, run until interrupted)")
	decompressCmd.Flags().StringVar(
		&decompressConfig.setting, "setting", "snappy", "compression setting (e.g. snappy, lz4, zstd3, deflate6)")
	decompressCmd.Flags().StringVar(
		&decompressConfig.adaptive, "adaptive", "",
		"write blocks with an adaptive compressor choosing between --setting and this slower setting")
	decompressCmd.Flags().IntVar(
		&decompressConfig.blocks, "blocks", 1000, "number of blocks to write")
	decompressCmd.Flags().IntVar(
		&decompressConfig.blockSize, "block-size", 32<<10, "uncompressed size of each block")
	decompressCmd.Flags().IntVar(
		&decompressConfig.rangeSize, "range-size", 512,
		"number of bytes read from each block (0 reads whole blocks)")
	decompressCmd.Flags().BoolVar(
		&decompressConfig.plot, "plot", false, "plot the throughput over time")

	skipCmd.Flags().IntVar(
		&skipConfig.docs, "docs", 1<<16, "number of documents in the set")
	skipCmd.Flags().IntVar(
		&skipConfig.maxDoc, "max-doc", 1<<24, "documents are drawn from [0, max-doc)")
	skipCmd.Flags().StringVar(
		&skipConfig.strides, "strides", "1,16,256,4096,65536", "comma separated advance distances")
	skipCmd.Flags().IntVar(
		&skipConfig.iterations, "iterations", 20, "full passes over the set per stride")

	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}
