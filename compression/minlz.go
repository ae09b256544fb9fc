// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compression

import (
	"github.com/cockroachdb/errors"
	"github.com/minio/minlz"
)

type minlzCompressor struct {
	level int
}

var _ Compressor = (*minlzCompressor)(nil)

func (c *minlzCompressor) Compress(dst, src []byte) ([]byte, Setting) {
	// MinLZ cannot encode blocks greater than 8MB. Fall back to Snappy in those
	// cases; the block is tagged as Snappy so any reader can decode it.
	if len(src) > minlz.MaxBlockSize {
		return (snappyCompressor{}).Compress(dst, src)
	}

	compressed, err := minlz.Encode(dst, src, c.level)
	if err != nil {
		panic(errors.Wrap(err, "minlz compression"))
	}
	return compressed, Setting{Algorithm: MinLZ, Level: uint8(c.level)}
}

func (c *minlzCompressor) Close() {}

var minlzCompressors = [...]*minlzCompressor{
	minlz.LevelFastest:  {level: minlz.LevelFastest},
	minlz.LevelBalanced: {level: minlz.LevelBalanced},
	minlz.LevelSmallest: {level: minlz.LevelSmallest},
}

func getMinlzCompressor(level int) Compressor {
	if level < minlz.LevelFastest || level >= len(minlzCompressors) {
		panic(errors.AssertionFailedf("unexpected MinLZ level %d", level))
	}
	return minlzCompressors[level]
}

type minlzDecoder struct {
	buf []byte
}

var _ decoder = (*minlzDecoder)(nil)

func (d *minlzDecoder) decode(
	payload []byte, originalLength, offset, length int, dst []byte,
) ([]byte, error) {
	n, err := minlz.DecodedLen(payload)
	if err != nil {
		return nil, err
	}
	if n != originalLength {
		return nil, errors.Newf("minlz: block decodes to %d bytes, expected %d",
			errors.Safe(n), errors.Safe(originalLength))
	}
	if offset == 0 && length == originalLength {
		return decodeFull(minlz.Decode, dst, payload, originalLength)
	}
	d.buf, err = decodeFull(minlz.Decode, d.buf, payload, originalLength)
	if err != nil {
		return nil, err
	}
	return append(dst[:0], d.buf[offset:offset+length]...), nil
}

func (d *minlzDecoder) clone() decoder { return &minlzDecoder{} }
