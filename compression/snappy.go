// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compression

import (
	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
)

type snappyCompressor struct{}

var _ Compressor = snappyCompressor{}

func (snappyCompressor) Compress(dst, src []byte) ([]byte, Setting) {
	dst = dst[:cap(dst):cap(dst)]
	return snappy.Encode(dst, src), Snappy
}

func (snappyCompressor) Close() {}

// snappyDecoder decodes whole blocks; Snappy has no cheap way to stop early.
// When the full block is requested it is decoded straight into dst.
type snappyDecoder struct {
	buf []byte
}

var _ decoder = (*snappyDecoder)(nil)

func (d *snappyDecoder) decode(
	payload []byte, originalLength, offset, length int, dst []byte,
) ([]byte, error) {
	n, err := snappy.DecodedLen(payload)
	if err != nil {
		return nil, err
	}
	if n != originalLength {
		return nil, errors.Newf("snappy: block decodes to %d bytes, expected %d",
			errors.Safe(n), errors.Safe(originalLength))
	}
	if offset == 0 && length == originalLength {
		return decodeFull(snappy.Decode, dst, payload, originalLength)
	}
	d.buf, err = decodeFull(snappy.Decode, d.buf, payload, originalLength)
	if err != nil {
		return nil, err
	}
	return append(dst[:0], d.buf[offset:offset+length]...), nil
}

func (d *snappyDecoder) clone() decoder { return &snappyDecoder{} }

// decodeFull runs a whole-block decode function into buf, growing it to n
// bytes first so that the decode function does not allocate.
func decodeFull(
	decode func(dst, src []byte) ([]byte, error), buf, payload []byte, n int,
) ([]byte, error) {
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]
	result, err := decode(buf, payload)
	if err != nil {
		return nil, err
	}
	if len(result) != n || (n > 0 && &result[0] != &buf[0]) {
		return nil, errors.Newf("decompressed into unexpected buffer: %p != %p",
			errors.Safe(result), errors.Safe(buf))
	}
	return result, nil
}
