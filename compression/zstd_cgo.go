// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build cgo

package compression

import (
	"sync"

	"github.com/DataDog/zstd"
	"github.com/cockroachdb/errors"
)

type zstdCompressor struct {
	level int
	ctx   zstd.Ctx
}

var _ Compressor = (*zstdCompressor)(nil)

var zstdCompressorPool = sync.Pool{
	New: func() any {
		return &zstdCompressor{ctx: zstd.NewCtx()}
	},
}

// UseStandardZstdLib indicates whether the zstd implementation is a port of the
// official one in the facebook/zstd repository. Tests that compare compressed
// sizes against fixed expectations depend on it.
const UseStandardZstdLib = true

func (z *zstdCompressor) Compress(dst, src []byte) ([]byte, Setting) {
	// Get the bound and allocate the proper amount of memory instead of relying
	// on DataDog/zstd to do it for us.
	bound := zstd.CompressBound(len(src))
	if cap(dst) < bound {
		dst = make([]byte, bound)
	}
	dst = dst[:bound]
	result, err := z.ctx.CompressLevel(dst, src, z.level)
	if err != nil {
		panic(errors.Wrap(err, "zstd compression"))
	}
	if len(result) > 0 && &result[0] != &dst[0] {
		panic(errors.AssertionFailedf("allocated a new buffer despite checking CompressBound"))
	}
	return result, Setting{Algorithm: Zstd, Level: uint8(z.level)}
}

func (z *zstdCompressor) Close() {
	zstdCompressorPool.Put(z)
}

func getZstdCompressor(level int) *zstdCompressor {
	z := zstdCompressorPool.Get().(*zstdCompressor)
	z.level = level
	return z
}

type zstdDecoder struct {
	ctx zstd.Ctx
	buf []byte
}

var _ decoder = (*zstdDecoder)(nil)

func newZstdDecoder() *zstdDecoder {
	return &zstdDecoder{ctx: zstd.NewCtx()}
}

func (z *zstdDecoder) decode(
	payload []byte, originalLength, offset, length int, dst []byte,
) ([]byte, error) {
	if len(payload) == 0 {
		return nil, errors.New("zstd: empty block")
	}
	if offset == 0 && length == originalLength {
		return z.decodeFull(dst, payload, originalLength)
	}
	var err error
	if z.buf, err = z.decodeFull(z.buf, payload, originalLength); err != nil {
		return nil, err
	}
	return append(dst[:0], z.buf[offset:offset+length]...), nil
}

func (z *zstdDecoder) decodeFull(buf, payload []byte, n int) ([]byte, error) {
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]
	written, err := z.ctx.DecompressInto(buf, payload)
	if err != nil {
		return nil, err
	}
	if written != n {
		return nil, errors.Newf("zstd: block decodes to %d bytes, expected %d",
			errors.Safe(written), errors.Safe(n))
	}
	return buf, nil
}

func (z *zstdDecoder) clone() decoder { return newZstdDecoder() }
