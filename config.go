// Copyright 2024 The memarena Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memarena

import "unsafe"

// WordSize is the machine word size in bytes, the unit all alignments
// and the tagged encoding in tag.go are expressed in.
const WordSize = unsafe.Sizeof(uintptr(0))

const (
	// DefaultMinBufferSize is the default MinBufferSize: the threshold
	// below which a trailing split remainder is folded into the
	// allocation instead of becoming its own free block.
	DefaultMinBufferSize = 16

	// DefaultBaselineAlignment is the default BaselineAlignment applied
	// by Allocate (as opposed to AllocateAligned).
	DefaultBaselineAlignment = 16

	// maxAlignmentFactor is the "256" in "256 * WORDSIZE" from spec §4.1/§6.
	maxAlignmentFactor = 256

	// DefaultPoisonByte is written over freed payloads when poisoning is on.
	DefaultPoisonByte = 0xDD

	// magic is XORed with a payload address to detect invalid frees (§4.5).
	// It is odd-valued. recoverNestedParent's low-bit test never sees it:
	// the word it inspects before an arena's head block is that arena's
	// free-root pointer.
	magic = 0xDEADBEEF
)

// MaxAlignment is the largest alignment Allocate/AllocateAligned accept:
// 256 * WordSize, per spec §4.4.
var MaxAlignment = maxAlignmentFactor * WordSize

// sizeMask is the largest payload size a block header can encode: the
// upper bits of sizeAndAlign once the low 3 alignment-exponent bits are
// reserved (spec §4.1).
const sizeMask = ^uintptr(0) >> 3

// arenaConfig holds the tunables assembled from Option values (config.go /
// §6 Configuration). It is copied into the Arena at construction time.
type arenaConfig struct {
	minBufferSize     uintptr
	baselineAlignment uintptr
	poison            PoisonMode
	poisonByte        byte
	provider          SpanProvider
}

func defaultConfig() arenaConfig {
	return arenaConfig{
		minBufferSize:     DefaultMinBufferSize,
		baselineAlignment: DefaultBaselineAlignment,
		poison:            PoisonOff,
		poisonByte:        DefaultPoisonByte,
		provider:          heapProvider{},
	}
}

// Option configures a new Arena.
type Option func(*arenaConfig)

// WithMinBufferSize overrides DefaultMinBufferSize.
func WithMinBufferSize(n int) Option {
	return func(c *arenaConfig) { c.minBufferSize = uintptr(n) }
}

// WithBaselineAlignment overrides DefaultBaselineAlignment. n must be a
// power of two in [WordSize, 256*WordSize]; invalid values are rejected
// at Arena construction time.
func WithBaselineAlignment(n int) Option {
	return func(c *arenaConfig) { c.baselineAlignment = uintptr(n) }
}

// WithPoison enables or disables use-after-free poisoning and sets the
// fill byte used.
func WithPoison(mode PoisonMode, fill byte) Option {
	return func(c *arenaConfig) { c.poison = mode; c.poisonByte = fill }
}

// WithSpanProvider overrides the byte-span provider used by NewDynamic.
func WithSpanProvider(p SpanProvider) Option {
	return func(c *arenaConfig) { c.provider = p }
}

func isPowerOfTwo(n uintptr) bool {
	return n != 0 && n&(n-1) == 0
}

func validAlignment(n uintptr) bool {
	return isPowerOfTwo(n) && n >= WordSize && n <= MaxAlignment
}
