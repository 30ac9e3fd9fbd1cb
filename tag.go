// Copyright 2024 The memarena Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memarena

import "math/bits"

// Tagged-pointer primitives (spec §4.1).
//
// sizeAndAlign packs a payload size into the upper bits of a machine
// word and a 3-bit alignment exponent into the low bits: the stored
// exponent k (0..7) represents an alignment of WordSize * 2^k. prev
// packs two single-bit flags (is_free, color) into the low 2 bits of a
// pointer value, legal because every block starts at at least a 4-byte
// boundary.

const (
	alignBits = 3
	alignMask = uintptr(1)<<alignBits - 1

	prevFreeBit  = uintptr(1) << 0
	prevColorBit = uintptr(1) << 1
	prevTagMask  = prevFreeBit | prevColorBit

	tailDynamicBit = uintptr(1) << 0
	tailNestedBit  = uintptr(1) << 1
	tailTagMask    = tailDynamicBit | tailNestedBit
)

// color is the LLRB node color, stored in bit 1 of a block's prev word
// and read back through block.treeColor/setColor (block.go).
type color bool

const (
	red   color = true
	black color = false
)

// alignExponent returns k such that align == WordSize<<k, or ok == false
// if align is not representable (spec §4.1/§6: power of two in
// [WordSize, 256*WordSize]).
func alignExponent(align uintptr) (uintptr, bool) {
	if !validAlignment(align) {
		return 0, false
	}
	k := uintptr(bits.TrailingZeros64(uint64(align))) - uintptr(bits.TrailingZeros64(uint64(WordSize)))
	return k, true
}

func exponentToAlign(k uintptr) uintptr {
	return WordSize << k
}

func packSizeAndAlign(size uintptr, alignK uintptr) uintptr {
	return size<<alignBits | (alignK & alignMask)
}

func unpackSize(v uintptr) uintptr {
	return v >> alignBits
}

func unpackAlign(v uintptr) uintptr {
	return exponentToAlign(v & alignMask)
}

// trailingZeros is the "alignment quality" measure of §4.3: the number
// of trailing zero bits of a payload address. Larger is "better
// aligned".
func trailingZeros(addr uintptr) int {
	if addr == 0 {
		return bits.UintSize
	}
	return bits.TrailingZeros64(uint64(addr))
}

func alignUp(addr uintptr, align uintptr) uintptr {
	return (addr + align - 1) &^ (align - 1)
}

// prev field tag accessors.

func prevPointer(v uintptr) uintptr { return v &^ prevTagMask }

func prevIsFree(v uintptr) bool { return v&prevFreeBit != 0 }

func prevColor(v uintptr) color { return v&prevColorBit != 0 }

func makePrev(ptr uintptr, free bool, c color) uintptr {
	v := ptr &^ prevTagMask
	if free {
		v |= prevFreeBit
	}
	if c {
		v |= prevColorBit
	}
	return v
}

func setPrevFree(v uintptr, free bool) uintptr {
	if free {
		return v | prevFreeBit
	}
	return v &^ prevFreeBit
}

func setPrevColor(v uintptr, c color) uintptr {
	if c {
		return v | prevColorBit
	}
	return v &^ prevColorBit
}

// tail field tag accessors (Arena.tail carries is_dynamic/is_nested,
// spec §3/§4.7).

func tailPointer(v uintptr) uintptr { return v &^ tailTagMask }

func tailIsDynamic(v uintptr) bool { return v&tailDynamicBit != 0 }

func tailIsNested(v uintptr) bool { return v&tailNestedBit != 0 }

func makeTail(ptr uintptr, dynamic, nested bool) uintptr {
	v := ptr &^ tailTagMask
	if dynamic {
		v |= tailDynamicBit
	}
	if nested {
		v |= tailNestedBit
	}
	return v
}
