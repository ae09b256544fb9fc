// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compression

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/cockroachdb/segcore/internal/base"
)

// AdaptiveCompressor is a Compressor that automatically chooses between two
// algorithms: it uses a slower but better algorithm as long as it reduces the
// compressed size (compared to the faster algorithm) by a certain relative
// amount. The decision is probabilistic and based on sampling a subset of
// blocks.
//
// Blocks written by an AdaptiveCompressor carry their algorithm in the block
// header and are read back with NewAdaptiveDecompressor.
type AdaptiveCompressor struct {
	fast Compressor
	slow Compressor

	reductionCutoff float64
	sampleEvery     int
	logger          base.Logger

	// estimator for the relative size reduction when choosing the slow algorithm.
	estimator reductionEstimator
	rng       rand.PCG
	// usingSlow is the choice made for the last unsampled block.
	usingSlow bool

	buf []byte
}

// AdaptiveCompressorParams contains the parameters for an adaptive compressor.
type AdaptiveCompressorParams struct {
	// Fast and Slow are the two compression settings the adaptive compressor
	// chooses between.
	Fast Setting
	Slow Setting
	// ReductionCutoff is the relative size reduction (when using the slow
	// algorithm vs the fast algorithm) below which we use the fast algorithm. For
	// example, if ReductionCutoff is 0.3 then we only use the slow algorithm if
	// it reduces the compressed size (compared to the fast algorithm) by at least
	// 30%.
	ReductionCutoff float64
	// SampleEvery defines the sampling frequency: the probability we sample a
	// block is 1.0/SampleEvery. Sampling means trying both algorithms and
	// recording the compression ratio.
	SampleEvery int
	// SampleHalfLife defines the half-life, in bytes, of the exponentially
	// weighted moving average. It should be a factor larger than the expected
	// average block size.
	SampleHalfLife int64
	SamplingSeed   uint64
	// Logger receives a message whenever the compressor switches algorithm.
	// Defaults to base.NoopLogger.
	Logger base.Logger
}

// NewAdaptiveCompressor returns a new AdaptiveCompressor. Close must be called
// when it is no longer needed.
func NewAdaptiveCompressor(p AdaptiveCompressorParams) *AdaptiveCompressor {
	ac := adaptiveCompressorPool.Get().(*AdaptiveCompressor)
	ac.fast = GetCompressor(p.Fast)
	ac.slow = GetCompressor(p.Slow)
	ac.sampleEvery = max(p.SampleEvery, 1)
	ac.reductionCutoff = p.ReductionCutoff
	ac.logger = p.Logger
	if ac.logger == nil {
		ac.logger = base.NoopLogger{}
	}
	ac.estimator.init(p.SampleHalfLife)
	ac.rng.Seed(p.SamplingSeed, p.SamplingSeed)
	ac.usingSlow = false
	return ac
}

var _ Compressor = (*AdaptiveCompressor)(nil)

var adaptiveCompressorPool = sync.Pool{
	New: func() any { return &AdaptiveCompressor{} },
}

// Compress implements Compressor.
func (ac *AdaptiveCompressor) Compress(dst, src []byte) ([]byte, Setting) {
	estimate := ac.estimator.estimate()
	sampleThisBlock := math.IsNaN(estimate) || ac.rng.Uint64()%uint64(ac.sampleEvery) == 0
	if !sampleThisBlock {
		ac.estimator.noSample(int64(len(src)))
		useSlow := estimate >= ac.reductionCutoff
		if useSlow != ac.usingSlow {
			ac.usingSlow = useSlow
			s := "fast"
			if useSlow {
				s = "slow"
			}
			ac.logger.Infof("compression: adaptive compressor switching to %s algorithm (estimated reduction %.3f, cutoff %.3f)",
				s, estimate, ac.reductionCutoff)
		}
		if useSlow {
			return ac.slow.Compress(dst, src)
		}
		return ac.fast.Compress(dst, src)
	}
	bufFast, fastSetting := ac.fast.Compress(ac.buf[:0], src)
	ac.buf = bufFast[:0]
	dst, slowSetting := ac.slow.Compress(dst, src)
	reduction := 1 - float64(len(dst))/float64(max(len(bufFast), 1))
	ac.estimator.sampledBlock(int64(len(src)), reduction)
	if reduction < ac.reductionCutoff {
		return append(dst[:0], bufFast...), fastSetting
	}
	return dst, slowSetting
}

// Close implements Compressor.
func (ac *AdaptiveCompressor) Close() {
	ac.fast.Close()
	ac.slow.Close()
	ac.fast, ac.slow, ac.logger = nil, nil, nil
	if cap(ac.buf) > 256*1024 {
		ac.buf = nil // Release large buffers.
	}
	adaptiveCompressorPool.Put(ac)
}

// reductionEstimator is an exponentially weighted moving average of the size
// reduction of sampled blocks, weighted by block size. The weight of a
// sample halves every halfLife bytes, whether or not later blocks are
// sampled.
type reductionEstimator struct {
	halfLife float64
	sum      float64
	weight   float64
}

func (e *reductionEstimator) init(halfLife int64) {
	*e = reductionEstimator{halfLife: float64(max(halfLife, 1))}
}

// estimate returns NaN if there is no sample with a non-negligible weight.
func (e *reductionEstimator) estimate() float64 {
	if e.weight < 1 {
		return math.NaN()
	}
	return e.sum / e.weight
}

func (e *reductionEstimator) decay(bytes int64) {
	f := math.Exp2(-float64(bytes) / e.halfLife)
	e.sum *= f
	e.weight *= f
}

func (e *reductionEstimator) noSample(bytes int64) {
	e.decay(bytes)
}

func (e *reductionEstimator) sampledBlock(bytes int64, value float64) {
	e.decay(bytes)
	e.sum += value * float64(bytes)
	e.weight += float64(bytes)
}
