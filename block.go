// Copyright 2024 The memarena Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memarena

import "unsafe"

// headerSize is the fixed per-block header size: two machine-word
// pairs, 32 bytes on 64-bit hosts, 16 bytes on 32-bit hosts (spec §3).
const headerSize = 4 * WordSize

// block is a header-address "view" over a live region of the span,
// analogous to how lldb.Allocator never materializes a whole block as a
// Go struct and instead reads/writes tagged fields directly through a
// Filer at computed offsets. Here the "Filer" is just the owning
// Arena's backing array, addressed directly via unsafe.Pointer
// arithmetic, which is why every structure that manufactures a block
// value keeps the owning span's slice alive (see Arena.span).
type block uintptr

func loadWord(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}

func storeWord(addr uintptr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = v
}

func (b block) addr() uintptr { return uintptr(b) }

func (b block) valid() bool { return b != 0 }

// --- raw header words ---

func (b block) rawSizeAlign() uintptr { return loadWord(uintptr(b)) }
func (b block) setRawSizeAlign(v uintptr) {
	storeWord(uintptr(b), v)
}

func (b block) rawPrev() uintptr { return loadWord(uintptr(b) + WordSize) }
func (b block) setRawPrev(v uintptr) {
	storeWord(uintptr(b)+WordSize, v)
}

func (b block) rawF3() uintptr { return loadWord(uintptr(b) + 2*WordSize) }
func (b block) setRawF3(v uintptr) {
	storeWord(uintptr(b)+2*WordSize, v)
}

func (b block) rawF4() uintptr { return loadWord(uintptr(b) + 3*WordSize) }
func (b block) setRawF4(v uintptr) {
	storeWord(uintptr(b)+3*WordSize, v)
}

// --- size / alignment ---

func (b block) size() uintptr      { return unpackSize(b.rawSizeAlign()) }
func (b block) alignment() uintptr { return unpackAlign(b.rawSizeAlign()) }

func (b block) setSizeAlign(size, align uintptr) {
	k, ok := alignExponent(align)
	if !ok {
		panic("memarena: internal: invalid alignment in setSizeAlign")
	}
	b.setRawSizeAlign(packSizeAndAlign(size, k))
}

func (b block) setSize(size uintptr) {
	b.setRawSizeAlign(packSizeAndAlign(size, b.rawSizeAlign()&alignMask))
}

// --- payload / physical neighbors (spec §4.2) ---

func (b block) payload() uintptr { return uintptr(b) + headerSize }

// next returns the block header immediately following b's payload. It
// is only meaningful while b is not the tail.
func (b block) next() block { return block(b.payload() + b.size()) }

func (b block) prevBlock() block { return block(prevPointer(b.rawPrev())) }

func (b block) setPrevBlock(p block) {
	b.setRawPrev(makePrev(uintptr(p), b.isFree(), b.treeColor()))
}

// --- is_free / color tags on prev (spec §4.1) ---

func (b block) isFree() bool { return prevIsFree(b.rawPrev()) }

func (b block) setFree(free bool) {
	b.setRawPrev(setPrevFree(b.rawPrev(), free))
}

func (b block) treeColor() color { return prevColor(b.rawPrev()) }

func (b block) setColor(c color) {
	b.setRawPrev(setPrevColor(b.rawPrev(), c))
}

// --- overlay: {left,right} when free, {owningArena,magic} when occupied ---

func (b block) leftChild() block  { return block(b.rawF3()) }
func (b block) rightChild() block { return block(b.rawF4()) }

func (b block) setLeftChild(c block)  { b.setRawF3(uintptr(c)) }
func (b block) setRightChild(c block) { b.setRawF4(uintptr(c)) }

func (b block) owningArena() *Arena {
	return (*Arena)(unsafe.Pointer(b.rawF3()))
}

func (b block) setOwningArena(a *Arena) {
	b.setRawF3(uintptr(unsafe.Pointer(a)))
}

func (b block) magicWord() uintptr   { return b.rawF4() }
func (b block) setMagicWord(v uintptr) { b.setRawF4(v) }

// stampOccupied writes size/alignment, clears the free tag, sets owner
// and magic — the common tail of both the free-list and tail
// allocation paths (spec §4.4). userAddr is the address actually
// returned to the caller, which differs from b.payload() whenever a
// head pad was inserted to satisfy an over-baseline alignment request;
// the magic word is always keyed against the returned address, since
// that is what Free receives back.
func (b block) stampOccupied(size, align uintptr, owner *Arena, userAddr uintptr) {
	b.setSizeAlign(size, align)
	b.setFree(false)
	b.setOwningArena(owner)
	b.setMagicWord(magic ^ userAddr)
}
