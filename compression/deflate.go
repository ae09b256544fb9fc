// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compression

import (
	"bytes"
	"io"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/flate"
)

// appendWriter is an io.Writer that appends to a slice.
type appendWriter struct {
	buf []byte
}

func (w *appendWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

type deflateCompressor struct {
	level int
	w     *flate.Writer
	out   appendWriter
}

var _ Compressor = (*deflateCompressor)(nil)

// deflateCompressorPools holds one pool per level, since a flate.Writer
// cannot change level on Reset.
var deflateCompressorPools [flate.BestCompression + 1]sync.Pool

func newDeflateCompressor(level int) *deflateCompressor {
	if level < flate.BestSpeed || level > flate.BestCompression {
		panic(errors.AssertionFailedf("unexpected deflate level %d", level))
	}
	if c, ok := deflateCompressorPools[level].Get().(*deflateCompressor); ok {
		return c
	}
	c := &deflateCompressor{level: level}
	w, err := flate.NewWriter(&c.out, level)
	if err != nil {
		panic(errors.Wrap(err, "deflate compression"))
	}
	c.w = w
	return c
}

func (c *deflateCompressor) Compress(dst, src []byte) ([]byte, Setting) {
	c.out.buf = dst[:0]
	c.w.Reset(&c.out)
	if _, err := c.w.Write(src); err != nil {
		panic(errors.Wrap(err, "deflate compression"))
	}
	if err := c.w.Close(); err != nil {
		panic(errors.Wrap(err, "deflate compression"))
	}
	result := c.out.buf
	c.out.buf = nil
	return result, Setting{Algorithm: Deflate, Level: uint8(c.level)}
}

func (c *deflateCompressor) Close() {
	deflateCompressorPools[c.level].Put(c)
}

// deflateDecoder streams the block: it skips the first offset bytes of output
// and stops reading once the requested range has been produced.
type deflateDecoder struct {
	src bytes.Reader
	r   io.ReadCloser
}

var _ decoder = (*deflateDecoder)(nil)

func (d *deflateDecoder) decode(
	payload []byte, originalLength, offset, length int, dst []byte,
) ([]byte, error) {
	d.src.Reset(payload)
	if d.r == nil {
		d.r = flate.NewReader(&d.src)
	} else if err := d.r.(flate.Resetter).Reset(&d.src, nil); err != nil {
		return nil, err
	}
	if offset > 0 {
		if _, err := io.CopyN(io.Discard, d.r, int64(offset)); err != nil {
			return nil, errors.Wrap(noEOF(err), "deflate: skipping to offset")
		}
	}
	out := slices.Grow(dst[:0], length)[:length]
	if _, err := io.ReadFull(d.r, out); err != nil {
		return nil, errors.Wrap(err, "deflate: reading range")
	}
	return out, nil
}

func (d *deflateDecoder) clone() decoder { return &deflateDecoder{} }
