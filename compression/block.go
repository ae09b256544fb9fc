// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compression

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/segcore/internal/base"
	"github.com/cockroachdb/segcore/internal/bitflip"
	"github.com/cockroachdb/segcore/internal/invariants"
	"github.com/prometheus/client_golang/prometheus"
)

// A framed block is laid out as:
//
//	+-----------+----------+------------------+---------+------------+
//	| indicator | checksum | payload length   | payload | checksum   |
//	| (1 byte)  | type (1) | (uvarint)        |         | (4 bytes)  |
//	+-----------+----------+------------------+---------+------------+
//
// The indicator is the Algorithm the payload was compressed with. The trailing
// checksum is omitted when the checksum type is ChecksumTypeNone; otherwise it
// covers the payload followed by the indicator byte.
const blockHeaderLen = 2

// ChecksumType specifies the checksum used for blocks.
type ChecksumType byte

// The available checksum types. These values are part of the block format and
// must not be changed.
const (
	ChecksumTypeNone     ChecksumType = 0
	ChecksumTypeCRC32c   ChecksumType = 1
	ChecksumTypeXXHash64 ChecksumType = 3
)

// String implements fmt.Stringer.
func (t ChecksumType) String() string {
	switch t {
	case ChecksumTypeCRC32c:
		return "crc32c"
	case ChecksumTypeNone:
		return "none"
	case ChecksumTypeXXHash64:
		return "xxhash64"
	default:
		panic(errors.Newf("compression: unknown checksum type: %d", t))
	}
}

func (t ChecksumType) valid() bool {
	return t == ChecksumTypeNone || t == ChecksumTypeCRC32c || t == ChecksumTypeXXHash64
}

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// A checksummer calculates checksums for blocks.
type checksummer struct {
	xxHasher *xxhash.Digest
}

// checksum computes a checksum over the provided payload and indicator.
func (c *checksummer) checksum(t ChecksumType, payload []byte, indicator byte) uint32 {
	switch t {
	case ChecksumTypeCRC32c:
		sum := crc32.Update(0, crc32cTable, payload)
		return crc32.Update(sum, crc32cTable, []byte{indicator})
	case ChecksumTypeXXHash64:
		if c.xxHasher == nil {
			c.xxHasher = xxhash.New()
		} else {
			c.xxHasher.Reset()
		}
		_, _ = c.xxHasher.Write(payload)
		_, _ = c.xxHasher.Write([]byte{indicator})
		return uint32(c.xxHasher.Sum64())
	default:
		panic(errors.AssertionFailedf("unsupported checksum type: %d", t))
	}
}

// DefaultMinReductionPercent is the MinReductionPercent used by
// DefaultBlockWriterOptions.
const DefaultMinReductionPercent = 12

// BlockWriterOptions configures a BlockWriter. The zero value writes
// uncompressed blocks without checksums.
type BlockWriterOptions struct {
	// Compression is the setting used to compress blocks. Ignored if
	// Compressor is set.
	Compression Setting
	// Compressor, if set, is used instead of a compressor built from
	// Compression (for example an AdaptiveCompressor). The BlockWriter does
	// not take ownership of it.
	Compressor Compressor
	// Blocks that are reduced by less than this percentage are stored
	// uncompressed.
	MinReductionPercent uint8
	// Checksum is the checksum written with every block.
	Checksum ChecksumType
	// CompressLatency, if set, observes the time spent compressing each
	// block, in seconds.
	CompressLatency prometheus.Observer
}

// DefaultBlockWriterOptions returns options that compress blocks with Snappy
// and protect them with an xxhash64 checksum.
func DefaultBlockWriterOptions() BlockWriterOptions {
	return BlockWriterOptions{
		Compression:         Snappy,
		MinReductionPercent: DefaultMinReductionPercent,
		Checksum:            ChecksumTypeXXHash64,
	}
}

// BlockWriter compresses and frames blocks. Typical usage:
//
//	w := NewBlockWriter(DefaultBlockWriterOptions())
//	defer w.Close()
//	buf, _ = w.AppendBlock(buf, block1)
//	buf, _ = w.AppendBlock(buf, block2)
//
// A BlockWriter is not safe for concurrent use.
type BlockWriter struct {
	opts           BlockWriterOptions
	compressor     Compressor
	ownsCompressor bool
	checksummer    checksummer
	// buf holds the compressed payload of the block being written.
	buf []byte
	// out is used by WriteBlock.
	out []byte
}

// NewBlockWriter returns a new BlockWriter. Panics if the options are invalid.
func NewBlockWriter(opts BlockWriterOptions) *BlockWriter {
	if !opts.Checksum.valid() {
		panic(errors.AssertionFailedf("compression: unknown checksum type %d", errors.Safe(opts.Checksum)))
	}
	if opts.MinReductionPercent > 100 {
		panic(errors.AssertionFailedf("compression: invalid MinReductionPercent %d", errors.Safe(opts.MinReductionPercent)))
	}
	w := &BlockWriter{opts: opts, compressor: opts.Compressor}
	if w.compressor == nil {
		w.compressor = GetCompressor(opts.Compression)
		w.ownsCompressor = true
	}
	return w
}

// AppendBlock compresses src and appends the framed block to dst. Returns the
// extended buffer and the setting the block was stored with, which is
// NoCompression if compression did not reduce the block enough.
func (w *BlockWriter) AppendBlock(dst, src []byte) ([]byte, Setting) {
	var start crtime.Mono
	if w.opts.CompressLatency != nil {
		start = crtime.NowMono()
	}
	payload, setting := w.compressor.Compress(w.buf[:0], src)
	w.buf = payload[:0]
	if w.opts.CompressLatency != nil {
		w.opts.CompressLatency.Observe(start.Elapsed().Seconds())
	}

	// Store the original data uncompressed if the reduction is less than the
	// minimum, i.e.:
	//
	//   after * 100
	//   -----------  >  100 - MinReductionPercent
	//      before
	if setting.Algorithm != NoAlgorithm &&
		int64(len(payload))*100 > int64(len(src))*int64(100-w.opts.MinReductionPercent) {
		payload, setting = src, NoCompression
	}

	indicator := byte(setting.Algorithm)
	dst = append(dst, indicator, byte(w.opts.Checksum))
	dst = binary.AppendUvarint(dst, uint64(len(payload)))
	dst = append(dst, payload...)
	if w.opts.Checksum != ChecksumTypeNone {
		dst = binary.LittleEndian.AppendUint32(dst, w.checksummer.checksum(w.opts.Checksum, payload, indicator))
	}
	return dst, setting
}

// WriteBlock compresses src and writes the framed block to out.
func (w *BlockWriter) WriteBlock(out io.Writer, src []byte) (Setting, error) {
	var setting Setting
	w.out, setting = w.AppendBlock(w.out[:0], src)
	if _, err := out.Write(w.out); err != nil {
		return Setting{}, errors.Wrap(err, "compression: writing block")
	}
	return setting, nil
}

// Close releases the resources of the BlockWriter. It must not be used
// afterwards.
func (w *BlockWriter) Close() {
	if w.ownsCompressor {
		w.compressor.Close()
	}
	*w = BlockWriter{}
}

// maxPayloadLen bounds the payload length we are willing to allocate for a
// block of the given original length. Every supported algorithm expands
// incompressible input by far less than this.
func maxPayloadLen(originalLength int) uint64 {
	return 2*uint64(originalLength) + 4096
}

// decoder is the algorithm-specific part of a Decompressor.
type decoder interface {
	// decode writes the bytes [offset, offset+length) of the uncompressed
	// payload to dst[:0] and returns the result. length is never 0.
	decode(payload []byte, originalLength, offset, length int, dst []byte) ([]byte, error)
	// clone returns a decoder with disjoint scratch state.
	clone() decoder
}

func newDecoder(a Algorithm) decoder {
	switch a {
	case SnappyAlgorithm:
		return &snappyDecoder{}
	case MinLZ:
		return &minlzDecoder{}
	case LZ4:
		return lz4Decoder{}
	case Zstd:
		return newZstdDecoder()
	case Deflate:
		return &deflateDecoder{}
	default:
		panic(errors.AssertionFailedf("compression: no decoder for %s", a))
	}
}

// decompressor implements Decompressor for every algorithm. If restrict is
// set, only blocks compressed with algorithm (or stored uncompressed) are
// accepted.
type decompressor struct {
	restrict  bool
	algorithm Algorithm
	// decoders are created lazily, indexed by algorithm.
	decoders    [numAlgorithms]decoder
	checksummer checksummer
	// payload holds the payload of the last block read.
	payload []byte
}

var _ Decompressor = (*decompressor)(nil)

// Decompress implements Decompressor.
func (d *decompressor) Decompress(
	in Input, originalLength, offset, length int, dst []byte,
) ([]byte, error) {
	if offset < 0 || length < 0 || originalLength < 0 || offset > originalLength-length {
		return nil, base.InvalidArgumentf(
			"compression: range [%d, %d+%d) out of bounds for block of length %d",
			errors.Safe(offset), errors.Safe(offset), errors.Safe(length), errors.Safe(originalLength))
	}
	algorithm, payload, err := d.readBlock(in, originalLength)
	if err != nil {
		return nil, err
	}
	if d.restrict && !d.accepts(algorithm) {
		return nil, base.CorruptionErrorf("compression: block compressed with %s, expected %s",
			algorithm, d.algorithm)
	}
	if algorithm == NoAlgorithm {
		if len(payload) != originalLength {
			return nil, base.CorruptionErrorf("compression: uncompressed block has length %d, expected %d",
				errors.Safe(len(payload)), errors.Safe(originalLength))
		}
		return append(dst[:0], payload[offset:offset+length]...), nil
	}
	if length == 0 {
		return dst[:0], nil
	}
	dec := d.decoders[algorithm]
	if dec == nil {
		dec = newDecoder(algorithm)
		d.decoders[algorithm] = dec
	}
	out, err := dec.decode(payload, originalLength, offset, length, dst)
	if err != nil {
		return nil, base.MarkCorruptionError(errors.Wrapf(err, "compression: decoding %s block", algorithm))
	}
	if invariants.Enabled && len(out) != length {
		panic(errors.AssertionFailedf("compression: %s decoded %d bytes, expected %d",
			algorithm, errors.Safe(len(out)), errors.Safe(length)))
	}
	if invariants.Sometimes(10) {
		// Callers must use the returned slice, not dst.
		out = slices.Clone(out)
	}
	return out, nil
}

// accepts returns true if a restricted decompressor may decode blocks tagged
// with a. Uncompressed blocks are always accepted, and MinLZ writers emit
// Snappy blocks for inputs above minlz.MaxBlockSize.
func (d *decompressor) accepts(a Algorithm) bool {
	return a == d.algorithm || a == NoAlgorithm || (d.algorithm == MinLZ && a == SnappyAlgorithm)
}

// readBlock reads one framed block from in, verifying its checksum. The
// returned payload is only valid until the next call.
func (d *decompressor) readBlock(in Input, originalLength int) (Algorithm, []byte, error) {
	var hdr [blockHeaderLen]byte
	if _, err := io.ReadFull(in, hdr[:]); err != nil {
		return 0, nil, base.MarkCorruptionError(errors.Wrap(noEOF(err), "compression: reading block header"))
	}
	algorithm, checksumType := Algorithm(hdr[0]), ChecksumType(hdr[1])
	if algorithm >= numAlgorithms {
		return 0, nil, base.CorruptionErrorf("compression: unknown compression indicator %d", errors.Safe(hdr[0]))
	}
	if !checksumType.valid() {
		return 0, nil, base.CorruptionErrorf("compression: unknown checksum type %d", errors.Safe(hdr[1]))
	}
	n, err := binary.ReadUvarint(in)
	if err != nil {
		return 0, nil, base.MarkCorruptionError(errors.Wrap(noEOF(err), "compression: reading block length"))
	}
	if n > maxPayloadLen(originalLength) {
		return 0, nil, base.CorruptionErrorf("compression: block payload of %d bytes for %d original bytes",
			errors.Safe(n), errors.Safe(originalLength))
	}
	d.payload = slices.Grow(d.payload[:0], int(n))[:n]
	if _, err := io.ReadFull(in, d.payload); err != nil {
		return 0, nil, base.MarkCorruptionError(errors.Wrap(noEOF(err), "compression: reading block payload"))
	}
	if checksumType != ChecksumTypeNone {
		var trailer [4]byte
		if _, err := io.ReadFull(in, trailer[:]); err != nil {
			return 0, nil, base.MarkCorruptionError(errors.Wrap(noEOF(err), "compression: reading block checksum"))
		}
		expected := binary.LittleEndian.Uint32(trailer[:])
		computed := d.checksummer.checksum(checksumType, d.payload, hdr[0])
		if expected != computed {
			err := base.CorruptionErrorf("compression: block checksum mismatch %x != %x",
				errors.Safe(computed), errors.Safe(expected))
			sum := func(p []byte) uint32 { return d.checksummer.checksum(checksumType, p, hdr[0]) }
			if i, bit, ok := bitflip.Find(d.payload, sum, expected); ok {
				err = errors.WithDetailf(err, "single bit flip at payload byte %d, bit %d", errors.Safe(i), errors.Safe(bit))
			}
			return 0, nil, err
		}
	}
	return algorithm, d.payload, nil
}

// noEOF converts io.EOF into io.ErrUnexpectedEOF: the caller asked for a
// block, so running out of input is always a truncation.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Clone implements Decompressor.
func (d *decompressor) Clone() Decompressor {
	c := &decompressor{restrict: d.restrict, algorithm: d.algorithm}
	for i, dec := range d.decoders {
		if dec != nil {
			c.decoders[i] = dec.clone()
		}
	}
	return c
}
