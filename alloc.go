// Copyright 2024 The memarena Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memarena

import (
	"unsafe"

	"github.com/cznic/mathutil"
)

// tailFreeSize returns the number of bytes still available for
// allocation from the tail (spec §3's free_size_in_tail).
func (a *Arena) tailFreeSize() uintptr {
	t := a.tailBlock()
	if !t.isFree() {
		return 0
	}
	return a.end() - (t.addr() + headerSize)
}

// Allocate returns n bytes aligned to the arena's baseline alignment
// (spec §6 allocate(a, n)).
func (a *Arena) Allocate(n int) (unsafe.Pointer, error) {
	return a.AllocateAligned(n, int(a.baselineAlignment()))
}

// AllocateAligned returns n bytes aligned to align, which must be a
// power of two in [WordSize, MaxAlignment] (spec §4.4).
func (a *Arena) AllocateAligned(n int, align int) (unsafe.Pointer, error) {
	if n <= 0 || uintptr(n) > a.capacity() {
		return nil, &ErrInvalid{"size out of range", n}
	}
	if !validAlignment(uintptr(align)) {
		return nil, &ErrInvalid{"alignment", align}
	}

	reqSize := uintptr(n)
	reqAlign := uintptr(align)

	if p := a.allocFromFreeList(reqSize, reqAlign); p != 0 {
		return unsafe.Pointer(p), nil
	}
	if p := a.allocFromTail(reqSize, reqAlign); p != 0 {
		return unsafe.Pointer(p), nil
	}
	return nil, &ErrOutOfSpace{Requested: n, Available: int(mathutil.MaxInt64(0, int64(a.tailFreeSize())))}
}

// AllocateZeroed allocates count*size bytes at the arena's baseline
// alignment and zeroes them (spec §6 allocate_zeroed).
func (a *Arena) AllocateZeroed(count, size int) (unsafe.Pointer, error) {
	if count < 0 || size < 0 {
		return nil, &ErrInvalid{"negative count or size", nil}
	}
	total := count * size
	if size != 0 && total/size != count {
		return nil, &ErrInvalid{"count*size overflow", nil}
	}
	p, err := a.Allocate(total)
	if err != nil {
		return nil, err
	}
	buf := unsafe.Slice((*byte)(p), total)
	for i := range buf {
		buf[i] = 0
	}
	return p, nil
}

// allocFromFreeList implements spec §4.4 step A. Returns 0 on miss.
func (a *Arena) allocFromFreeList(reqSize, reqAlign uintptr) uintptr {
	h := a.bestFit(reqSize, reqAlign)
	if !h.valid() {
		return 0
	}
	a.detach(h)

	raw := h.payload()
	aligned := alignUp(raw, reqAlign)
	padding := aligned - raw
	// Round up like the tail path does, so a split-off remainder block
	// starts on a baseline boundary and its address survives prev tagging.
	total := alignUp(raw+padding+reqSize, a.baselineAlignment()) - raw
	if total > h.size() {
		total = h.size()
	}
	remainder := h.size() - total

	if remainder >= headerSize+a.cfg.minBufferSize {
		oldNext := h.next()
		h.setSize(total)

		nb := block(h.addr() + headerSize + total)
		nb.setSizeAlign(remainder-headerSize, a.baselineAlignment())
		nb.setRawPrev(makePrev(uintptr(h), true, black))
		nb.setLeftChild(0)
		nb.setRightChild(0)
		if oldNext.valid() {
			oldNext.setPrevBlock(nb)
		}
		a.insertFree(nb)
	} else {
		total = h.size() // absorb the whole block, including slack
	}

	h.stampOccupied(total, reqAlign, a, aligned)
	if padding > 0 {
		storeWord(aligned-WordSize, h.addr()^aligned)
	}
	return aligned
}

// allocFromTail implements spec §4.4 step B. Returns 0 if the tail
// cannot satisfy the request.
func (a *Arena) allocFromTail(reqSize, reqAlign uintptr) uintptr {
	tail := a.tailBlock()
	raw := tail.payload()
	aligned := alignUp(raw, reqAlign)
	padding := aligned - raw

	available := a.tailFreeSize()
	if available < padding+reqSize {
		return 0
	}

	if reqAlign > a.baselineAlignment() && padding >= headerSize+a.cfg.minBufferSize {
		tail.setSize(padding - headerSize)
		a.insertFree(tail)

		newTail := block(tail.addr() + headerSize + (padding - headerSize))
		newTail.setSizeAlign(0, a.baselineAlignment())
		newTail.setRawPrev(makePrev(uintptr(tail), true, black))
		newTail.setLeftChild(0)
		newTail.setRightChild(0)
		a.setTailBlock(newTail)

		tail = newTail
		raw = tail.payload()
		aligned = alignUp(raw, reqAlign)
		padding = aligned - raw
		available = a.tailFreeSize()
	}

	total := padding + reqSize
	remainder := available - total
	createNewTail := false
	if remainder >= headerSize+a.cfg.minBufferSize {
		roundedTotal := alignUp(tail.payload()+total, a.baselineAlignment()) - tail.payload()
		if available-roundedTotal >= headerSize+a.cfg.minBufferSize {
			total = roundedTotal
			createNewTail = true
		} else {
			total = available
		}
	} else {
		total = available
	}

	tail.stampOccupied(total, reqAlign, a, aligned)
	if padding > 0 {
		storeWord(aligned-WordSize, tail.addr()^aligned)
	}

	if createNewTail {
		nt := block(tail.addr() + headerSize + total)
		nt.setSizeAlign(0, a.baselineAlignment())
		nt.setRawPrev(makePrev(uintptr(tail), true, black))
		nt.setLeftChild(0)
		nt.setRightChild(0)
		a.setTailBlock(nt)
	}

	return aligned
}
