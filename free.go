// Copyright 2024 The memarena Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memarena

import "unsafe"

// Free releases a pointer previously returned by an allocate call on
// some Arena (spec §4.5). p may be any value, including one that was
// never returned by this package; an invalid pointer is silently
// dropped rather than reported, per the error taxonomy's invalid-free
// kind (spec §7).
func Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	userAddr := uintptr(p)

	h, ok := recoverHeader(userAddr)
	if !ok {
		return
	}
	if !validForFree(h, userAddr) {
		return
	}

	owner := h.owningArena()
	if owner.cfg.poison == PoisonOn {
		poisonPayload(h, owner.cfg.poisonByte)
	}
	freeBlockInArena(owner, h)
}

// recoverHeader recovers a block header from a user-facing pointer
// (spec §4.5 step A). Two cases, distinguished by the word immediately
// preceding userAddr:
//   - that word XOR userAddr == magic: no head padding was skipped, the
//     header sits exactly headerSize bytes before userAddr (the word
//     in question is, by coincidence of address, the header's own
//     magic field).
//   - otherwise, that word is a back-link: XOR-ing it with userAddr
//     yields the header address directly.
func recoverHeader(userAddr uintptr) (block, bool) {
	wordBefore := loadWord(userAddr - WordSize)

	if wordBefore^userAddr == magic {
		h := block(userAddr - headerSize)
		return h, h.valid()
	}

	candidate := wordBefore ^ userAddr
	if candidate == 0 || candidate%WordSize != 0 {
		return 0, false
	}
	return block(candidate), true
}

// validForFree implements spec §4.5 step B.
func validForFree(h block, userAddr uintptr) bool {
	if !h.valid() {
		return false
	}
	if h.size() > sizeMask {
		return false
	}
	if h.isFree() {
		return false
	}
	if h.magicWord()^userAddr != magic {
		return false
	}
	owner := h.owningArena()
	if owner == nil {
		return false
	}
	if !owner.contains(userAddr) {
		return false
	}
	return true
}

// freeBlockInArena performs spec §4.5 step D: it assumes h has already
// passed validation (or, for a nested arena being destroyed, needs
// none — its header's magic slot holds the free-tree root, not a
// magic word, so the public Free entry point can never validate it).
func freeBlockInArena(owner *Arena, h block) {
	h.setFree(true)
	h.setLeftChild(0)
	h.setRightChild(0)
	h.setColor(red)

	tail := owner.tailBlock()
	if h == tail {
		h.setSize(0)
		return
	}

	absorbedIntoTail := false
	if h.next() == tail {
		h.setSize(0)
		owner.setTailBlock(h)
		tail = h
		absorbedIntoTail = true
	} else if succ := h.next(); succ.valid() && succ.isFree() {
		owner.detach(succ)
		after := succ.next()
		h.setSize(h.size() + headerSize + succ.size())
		if after.valid() {
			after.setPrevBlock(h)
		}
	}

	if prev := h.prevBlock(); prev.valid() && prev.isFree() {
		owner.detach(prev)
		if absorbedIntoTail {
			prev.setSize(0)
			prev.setLeftChild(0)
			prev.setRightChild(0)
			owner.setTailBlock(prev)
			return
		}
		after := h.next()
		prev.setSize(prev.size() + headerSize + h.size())
		after.setPrevBlock(prev)
		h = prev
	} else if absorbedIntoTail {
		return
	}

	owner.insertFree(h)
}

// isNestedHeader reports whether b, viewed as an occupied block from
// its physical parent's side, is actually the header of a nested
// arena (spec §4.6).
func (b block) isNestedHeader() bool {
	return b.rawF3()&tailNestedBit != 0
}

// recoverNestedParent walks physical prev-links backward from a's own
// header to find the parent arena, without relying on a's cached
// parent field (spec §4.6). It exists to keep the algorithm testable
// on its own terms; Destroy uses the cached field directly since it is
// always available and a plain field load is cheaper than a walk.
func recoverNestedParent(a *Arena) *Arena {
	b := a.hdr
	for {
		p := b.prevBlock()
		if !p.valid() {
			word := loadWord(b.addr() - WordSize)
			if word&1 == 1 {
				offset := word >> 1
				return (*Arena)(unsafe.Pointer(b.addr() - offset))
			}
			return (*Arena)(unsafe.Pointer(b.addr() - arenaHeaderSize))
		}
		if !p.isFree() && !p.isNestedHeader() {
			return p.owningArena()
		}
		b = p
	}
}
