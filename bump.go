// Copyright 2024 The memarena Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memarena

import "unsafe"

// Bump is a fixed-capacity, stack-style sub-allocator carved from a
// single block of a parent Arena (spec §4.8). It never frees
// individual allocations; Reset rewinds the whole region and Free
// returns it to the parent in one shot.
//
// Its header overlays a plain block header exactly like a nested
// Arena's does: offset is stored in the same word an occupied block
// uses for its owning arena, since a Bump never needs owner recovery
// (its parent is held directly, like a nested Arena's). It therefore
// never enters — and is invisible to — its parent's free tree.
type Bump struct {
	hdr    block
	parent *Arena
}

// NewBump carves a size-byte block from parent and reinterprets it as
// a Bump (spec §4.8 bump_new).
func NewBump(parent *Arena, size int) (*Bump, error) {
	if parent == nil {
		return nil, &ErrInvalid{"nil parent", nil}
	}
	p, err := parent.Allocate(size)
	if err != nil {
		return nil, err
	}
	hdr := block(uintptr(p) - headerSize)
	hdr.setLeftChild(block(0)) // offset starts at 0 bytes into the payload
	return &Bump{hdr: hdr, parent: parent}, nil
}

func (bu *Bump) offset() uintptr     { return uintptr(bu.hdr.leftChild()) }
func (bu *Bump) setOffset(v uintptr) { bu.hdr.setLeftChild(block(v)) }

func (bu *Bump) base() uintptr     { return bu.hdr.payload() }
func (bu *Bump) capacity() uintptr { return bu.hdr.size() }

// Alloc returns bump_base+offset and advances offset by n, or nil on
// overflow or a negative n; it does not guarantee any particular
// alignment (spec §4.8 bump_alloc).
func (bu *Bump) Alloc(n int) unsafe.Pointer {
	if n < 0 {
		return nil
	}
	need := uintptr(n)
	off := bu.offset()
	if off+need < off || off+need > bu.capacity() {
		return nil
	}
	p := bu.base() + off
	bu.setOffset(off + need)
	return unsafe.Pointer(p)
}

// AllocAligned rounds offset up to the next multiple of align before
// advancing, or returns nil if align is invalid or the request
// overflows (spec §4.8 bump_alloc_aligned).
func (bu *Bump) AllocAligned(n int, align int) unsafe.Pointer {
	if n < 0 || !validAlignment(uintptr(align)) {
		return nil
	}
	rawOff := bu.offset()
	alignedAbs := alignUp(bu.base()+rawOff, uintptr(align))
	alignedOff := alignedAbs - bu.base()
	if alignedOff < rawOff || alignedOff > bu.capacity() {
		return nil
	}
	need := uintptr(n)
	if alignedOff+need < alignedOff || alignedOff+need > bu.capacity() {
		return nil
	}
	p := bu.base() + alignedOff
	bu.setOffset(alignedOff + need)
	return unsafe.Pointer(p)
}

// Reset rewinds offset to the start of the usable region (spec §4.8
// bump_reset).
func (bu *Bump) Reset() {
	bu.setOffset(0)
}

// Trim shrinks the bump's block to the smallest size that still fits
// the currently-used bytes, rounded up to the parent's baseline
// alignment, donating the surplus back to the parent either by
// merging it with an adjacent free block or by inserting a new one
// (spec §4.8 bump_trim).
func (bu *Bump) Trim() error {
	used := alignUp(bu.offset(), bu.parent.baselineAlignment())
	if used >= bu.capacity() {
		return nil
	}
	surplus := bu.capacity() - used
	if surplus < headerSize+bu.parent.cfg.minBufferSize {
		return nil
	}

	oldNext := bu.hdr.next()
	bu.hdr.setSize(used)

	nb := block(bu.hdr.addr() + headerSize + used)
	nb.setSizeAlign(surplus-headerSize, bu.parent.baselineAlignment())
	nb.setRawPrev(makePrev(uintptr(bu.hdr), false, black))
	if oldNext.valid() {
		oldNext.setPrevBlock(nb)
	}
	freeBlockInArena(bu.parent, nb)
	return nil
}

// Free returns the bump's entire region to its parent arena (spec
// §4.8 bump_free). The Bump must not be used afterward.
func (bu *Bump) Free() error {
	freeBlockInArena(bu.parent, bu.hdr)
	return nil
}
