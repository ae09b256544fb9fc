// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package compression implements block compression for segment storage and
// the partial decompression contract used by block-compressed readers.
//
// A block is written by a BlockWriter and read back by a Decompressor. The
// reader asks for a sub-range [offset, offset+length) of the original,
// uncompressed block; implementations are free to stop decoding as soon as
// that range is available or to decode the whole block and copy the range
// out. Either way the input is always advanced past the whole framed block,
// so that consecutive blocks can be read from the same input.
package compression

import (
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/segcore/internal/base"
	"github.com/minio/minlz"
)

// Algorithm identifies a compression algorithm. The value is stored in every
// block header and must not be changed.
type Algorithm uint8

// The available algorithms.
const (
	NoAlgorithm     Algorithm = 0
	SnappyAlgorithm Algorithm = 1
	Zstd            Algorithm = 2
	MinLZ           Algorithm = 3
	LZ4             Algorithm = 4
	Deflate         Algorithm = 5

	numAlgorithms = 6
)

var algorithmNames = [numAlgorithms]string{
	NoAlgorithm:     "none",
	SnappyAlgorithm: "snappy",
	Zstd:            "zstd",
	MinLZ:           "minlz",
	LZ4:             "lz4",
	Deflate:         "deflate",
}

// String implements fmt.Stringer.
func (a Algorithm) String() string {
	return redact.StringWithoutMarkers(a)
}

// SafeFormat implements redact.SafeFormatter.
func (a Algorithm) SafeFormat(w redact.SafePrinter, _ rune) {
	if a < numAlgorithms {
		w.SafeString(redact.SafeString(algorithmNames[a]))
		return
	}
	w.Printf("unknown(%d)", redact.SafeUint(a))
}

// Setting contains the information needed to compress a block.
type Setting struct {
	Algorithm Algorithm
	// Level is algorithm-specific. Algorithms without levels use 0.
	Level uint8
}

// String implements fmt.Stringer. The result can be parsed by ParseSetting.
func (s Setting) String() string {
	return redact.StringWithoutMarkers(s)
}

// SafeFormat implements redact.SafeFormatter.
func (s Setting) SafeFormat(w redact.SafePrinter, _ rune) {
	s.Algorithm.SafeFormat(w, 'v')
	if s.Level != 0 {
		w.SafeUint(redact.SafeUint(s.Level))
	}
}

// Setting presets.
var (
	NoCompression    = Setting{Algorithm: NoAlgorithm}
	Snappy           = Setting{Algorithm: SnappyAlgorithm}
	MinLZFastest     = Setting{Algorithm: MinLZ, Level: minlz.LevelFastest}
	MinLZBalanced    = Setting{Algorithm: MinLZ, Level: minlz.LevelBalanced}
	LZ4Fast          = Setting{Algorithm: LZ4}
	LZ4HighLevel9    = Setting{Algorithm: LZ4, Level: 9}
	ZstdLevel1       = Setting{Algorithm: Zstd, Level: 1}
	ZstdLevel3       = Setting{Algorithm: Zstd, Level: 3}
	DeflateBestSpeed = Setting{Algorithm: Deflate, Level: 1}
	DeflateDefault   = Setting{Algorithm: Deflate, Level: 6}
)

// presets is used in tests and by the benchmarking tool.
var presets = []Setting{
	NoCompression, Snappy, MinLZFastest, MinLZBalanced, LZ4Fast, LZ4HighLevel9,
	ZstdLevel1, ZstdLevel3, DeflateBestSpeed, DeflateDefault,
}

// Presets returns the predefined settings.
func Presets() []Setting {
	return append([]Setting(nil), presets...)
}

// validate returns an error if the level is not supported by the algorithm.
func (s Setting) validate() error {
	var lo, hi uint8
	switch s.Algorithm {
	case NoAlgorithm, SnappyAlgorithm:
		lo, hi = 0, 0
	case MinLZ:
		lo, hi = minlz.LevelFastest, minlz.LevelSmallest
	case LZ4:
		lo, hi = 0, 9
	case Zstd:
		lo, hi = 1, 22
	case Deflate:
		lo, hi = 1, 9
	default:
		return base.InvalidArgumentf("compression: unknown algorithm %s", s.Algorithm)
	}
	if s.Level < lo || s.Level > hi {
		return base.InvalidArgumentf("compression: %s does not support level %d",
			s.Algorithm, errors.Safe(s.Level))
	}
	return nil
}

// ParseSetting parses the output of Setting.String, e.g. "snappy", "zstd3" or
// "lz4". An algorithm name without a level selects its default level.
func ParseSetting(str string) (Setting, error) {
	str = strings.ToLower(strings.TrimSpace(str))
	for a, name := range algorithmNames {
		if !strings.HasPrefix(str, name) {
			continue
		}
		s := Setting{Algorithm: Algorithm(a)}
		if rest := str[len(name):]; rest != "" {
			level, err := strconv.ParseUint(rest, 10, 8)
			if err != nil {
				return Setting{}, base.InvalidArgumentf("compression: invalid level in %q", str)
			}
			s.Level = uint8(level)
		} else {
			s.Level = defaultLevel(s.Algorithm)
		}
		if err := s.validate(); err != nil {
			return Setting{}, err
		}
		return s, nil
	}
	return Setting{}, base.InvalidArgumentf("compression: unknown setting %q", str)
}

func defaultLevel(a Algorithm) uint8 {
	switch a {
	case MinLZ:
		return minlz.LevelBalanced
	case Zstd:
		return 3
	case Deflate:
		return 6
	}
	return 0
}

// Compressor compresses blocks.
type Compressor interface {
	// Compress a block, appending the compressed data to dst[:0]. Returns
	// the setting that was used.
	Compress(dst, src []byte) ([]byte, Setting)

	// Close must be called when the Compressor is no longer needed. After
	// Close is called, the Compressor must not be used again.
	Close()
}

// GetCompressor returns a Compressor for the given setting. Close must be
// called on the result when it is no longer needed. Panics if the setting is
// invalid.
func GetCompressor(s Setting) Compressor {
	if err := s.validate(); err != nil {
		panic(errors.AssertionFailedf("%v", err))
	}
	switch s.Algorithm {
	case NoAlgorithm:
		return noopCompressor{}
	case SnappyAlgorithm:
		return snappyCompressor{}
	case MinLZ:
		return getMinlzCompressor(int(s.Level))
	case LZ4:
		return getLZ4Compressor(int(s.Level))
	case Zstd:
		return getZstdCompressor(int(s.Level))
	case Deflate:
		return newDeflateCompressor(int(s.Level))
	default:
		panic(errors.AssertionFailedf("compression: unhandled algorithm %s", s.Algorithm))
	}
}

// Input is a sequential source of bytes, positioned by the caller at the start
// of a block.
type Input interface {
	io.Reader
	io.ByteReader
}

// Decompressor reconstructs a sub-range of a compressed block.
//
// A Decompressor holds scratch state and is not safe for concurrent use. Each
// goroutine should obtain its own instance through Clone and reuse it
// serially.
type Decompressor interface {
	// Decompress reads one block from in, whose uncompressed contents are
	// originalLength bytes long, and returns the bytes in [offset,
	// offset+length) of the uncompressed contents. The result is written to
	// dst[:0], which is grown or reallocated as necessary; callers must use
	// the returned slice, whose length is exactly length.
	//
	// The whole block is consumed from in, even when only part of it needs
	// decoding.
	//
	// An invalid range returns an error marked base.ErrInvalidArgument without
	// reading from in. Malformed blocks return an error marked
	// base.ErrCorruption; in is then positioned at an unspecified point.
	Decompress(in Input, originalLength, offset, length int, dst []byte) ([]byte, error)

	// Clone returns an independent Decompressor with the same parameters and
	// disjoint scratch state.
	Clone() Decompressor
}

// NewDecompressor returns a Decompressor for blocks written with the given
// algorithm. Blocks that were stored uncompressed (because compression did
// not reduce their size enough) are accepted as well.
func NewDecompressor(a Algorithm) Decompressor {
	if a >= numAlgorithms {
		panic(errors.AssertionFailedf("compression: unknown algorithm %d", errors.Safe(a)))
	}
	return &decompressor{restrict: true, algorithm: a}
}

// NewAdaptiveDecompressor returns a Decompressor that accepts blocks written
// with any algorithm, such as those produced by an AdaptiveCompressor.
func NewAdaptiveDecompressor() Decompressor {
	return &decompressor{}
}
