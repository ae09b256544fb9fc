// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compression

import (
	"encoding/binary"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/pierrec/lz4/v4"
)

var lz4Levels = [...]lz4.CompressionLevel{
	lz4.Fast, lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4,
	lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

// lz4Compressor writes raw LZ4 blocks. Level 0 uses the fast compressor and
// levels 1-9 the high compression one.
type lz4Compressor struct {
	level int
	fast  lz4.Compressor
	hc    lz4.CompressorHC
}

var _ Compressor = (*lz4Compressor)(nil)

var lz4CompressorPool = sync.Pool{
	New: func() any { return &lz4Compressor{} },
}

func getLZ4Compressor(level int) *lz4Compressor {
	if level < 0 || level >= len(lz4Levels) {
		panic(errors.AssertionFailedf("unexpected LZ4 level %d", level))
	}
	c := lz4CompressorPool.Get().(*lz4Compressor)
	c.level = level
	c.hc.Level = lz4Levels[level]
	return c
}

func (c *lz4Compressor) Compress(dst, src []byte) ([]byte, Setting) {
	bound := lz4.CompressBlockBound(len(src))
	if cap(dst) < bound {
		dst = make([]byte, bound)
	}
	dst = dst[:bound]
	var n int
	var err error
	if c.level == 0 {
		n, err = c.fast.CompressBlock(src, dst)
	} else {
		n, err = c.hc.CompressBlock(src, dst)
	}
	if err != nil {
		panic(errors.Wrap(err, "lz4 compression"))
	}
	if n == 0 {
		// The block is incompressible.
		return append(dst[:0], src...), NoCompression
	}
	return dst[:n], Setting{Algorithm: LZ4, Level: uint8(c.level)}
}

func (c *lz4Compressor) Close() {
	lz4CompressorPool.Put(c)
}

// lz4Decoder decodes LZ4 blocks only as far as the requested range. It needs
// no scratch space: the prefix is decoded into dst and then shifted out.
type lz4Decoder struct{}

var _ decoder = lz4Decoder{}

func (lz4Decoder) decode(
	payload []byte, originalLength, offset, length int, dst []byte,
) ([]byte, error) {
	limit := offset + length
	out, err := decodeLZ4(slices.Grow(dst[:0], limit), payload, limit)
	if err != nil {
		return nil, err
	}
	n := copy(out, out[offset:limit])
	return out[:n], nil
}

func (lz4Decoder) clone() decoder { return lz4Decoder{} }

const lz4MinMatch = 4

var errLZ4Truncated = errors.New("lz4: truncated block")

// decodeLZ4 decodes the LZ4 block src into dst[:0] and stops as soon as limit
// bytes are available. It returns exactly limit bytes. cap(dst) must be at
// least limit.
//
// A block is a sequence of (token, literals, offset, match) tuples. The token
// holds the literal length in its high nibble and the match length minus 4 in
// its low nibble; a nibble of 15 is followed by extension bytes that are added
// to it until one is not 255. The last sequence has literals only.
func decodeLZ4(dst, src []byte, limit int) ([]byte, error) {
	out := dst[:0]
	for len(out) < limit {
		if len(src) == 0 {
			return nil, errLZ4Truncated
		}
		token := src[0]
		src = src[1:]

		lit := int(token >> 4)
		if lit == 15 {
			var ok bool
			if lit, src, ok = readLZ4Length(lit, src); !ok {
				return nil, errLZ4Truncated
			}
		}
		if lit > len(src) {
			return nil, errLZ4Truncated
		}
		if rem := limit - len(out); lit >= rem {
			return append(out, src[:rem]...), nil
		}
		out = append(out, src[:lit]...)
		src = src[lit:]
		if len(src) == 0 {
			return nil, errors.Newf("lz4: block ends after %d bytes, expected at least %d",
				errors.Safe(len(out)), errors.Safe(limit))
		}

		if len(src) < 2 {
			return nil, errLZ4Truncated
		}
		off := int(binary.LittleEndian.Uint16(src))
		src = src[2:]
		if off == 0 || off > len(out) {
			return nil, errors.Newf("lz4: invalid match offset %d at position %d",
				errors.Safe(off), errors.Safe(len(out)))
		}
		match := int(token & 0xf)
		if match == 15 {
			var ok bool
			if match, src, ok = readLZ4Length(match, src); !ok {
				return nil, errLZ4Truncated
			}
		}
		match = min(match+lz4MinMatch, limit-len(out))
		start := len(out) - off
		if off >= match {
			out = append(out, out[start:start+match]...)
		} else {
			// Overlapping match: it repeats the last off bytes.
			for i := 0; i < match; i++ {
				out = append(out, out[start+i])
			}
		}
	}
	return out, nil
}

func readLZ4Length(n int, src []byte) (int, []byte, bool) {
	for {
		if len(src) == 0 {
			return 0, nil, false
		}
		b := src[0]
		src = src[1:]
		n += int(b)
		if b != 255 {
			return n, src, true
		}
	}
}
