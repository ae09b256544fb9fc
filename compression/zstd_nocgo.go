// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build !cgo

package compression

import (
	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
)

type zstdCompressor struct {
	level int
	enc   *zstd.Encoder
}

var _ Compressor = (*zstdCompressor)(nil)

func getZstdCompressor(level int) *zstdCompressor {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(errors.Wrap(err, "zstd compression"))
	}
	return &zstdCompressor{level: level, enc: enc}
}

// UseStandardZstdLib indicates whether the zstd implementation is a port of the
// official one in the facebook/zstd repository. Tests that compare compressed
// sizes against fixed expectations depend on it.
const UseStandardZstdLib = false

func (z *zstdCompressor) Compress(dst, src []byte) ([]byte, Setting) {
	return z.enc.EncodeAll(src, dst[:0]), Setting{Algorithm: Zstd, Level: uint8(z.level)}
}

func (z *zstdCompressor) Close() {
	if err := z.enc.Close(); err != nil {
		panic(err)
	}
}

type zstdDecoder struct {
	dec *zstd.Decoder
	buf []byte
}

var _ decoder = (*zstdDecoder)(nil)

func newZstdDecoder() *zstdDecoder {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		panic(errors.Wrap(err, "zstd decoder"))
	}
	return &zstdDecoder{dec: dec}
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
		buf = make([]byte, 0, n)
	}
	result, err := z.dec.DecodeAll(payload, buf[:0])
	if err != nil {
		return nil, err
	}
	if len(result) != n {
		return nil, errors.Newf("zstd: block decodes to %d bytes, expected %d",
			errors.Safe(len(result)), errors.Safe(n))
	}
	return result, nil
}

func (z *zstdDecoder) clone() decoder { return newZstdDecoder() }
