// Copyright 2024 The memarena Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memarena

// Intrusive Left-Leaning Red-Black tree over free blocks (spec §4.3).
// Every free block's leftChild/rightChild overlay fields double as the
// tree's child links; no separate node allocation is ever needed. The
// key is the triple (size, alignment quality, address) described in
// spec §4.3.

// compareBlocks orders x relative to y by (size, alignment quality,
// address), all ascending.
func compareBlocks(x, y block) int {
	if sx, sy := x.size(), y.size(); sx != sy {
		if sx < sy {
			return -1
		}
		return 1
	}
	if qx, qy := trailingZeros(x.payload()), trailingZeros(y.payload()); qx != qy {
		if qx < qy {
			return -1
		}
		return 1
	}
	if x.addr() == y.addr() {
		return 0
	}
	if x.addr() < y.addr() {
		return -1
	}
	return 1
}

func isRed(h block) bool { return h.valid() && h.treeColor() == red }

func rotateLeft(h block) block {
	x := h.rightChild()
	h.setRightChild(x.leftChild())
	x.setLeftChild(h)
	x.setColor(h.treeColor())
	h.setColor(red)
	return x
}

func rotateRight(h block) block {
	x := h.leftChild()
	h.setLeftChild(x.rightChild())
	x.setRightChild(h)
	x.setColor(h.treeColor())
	h.setColor(red)
	return x
}

func flipColors(h block) {
	h.setColor(!color(h.treeColor()))
	if l := h.leftChild(); l.valid() {
		l.setColor(!color(l.treeColor()))
	}
	if r := h.rightChild(); r.valid() {
		r.setColor(!color(r.treeColor()))
	}
}

// balance restores the LLRB shape invariants (no right-leaning red, no
// two consecutive left-leaning reds, 4-nodes temporarily represented as
// flipped pairs get split) at node h.
func balance(h block) block {
	if isRed(h.rightChild()) && !isRed(h.leftChild()) {
		h = rotateLeft(h)
	}
	if isRed(h.leftChild()) && isRed(h.leftChild().leftChild()) {
		h = rotateRight(h)
	}
	if isRed(h.leftChild()) && isRed(h.rightChild()) {
		flipColors(h)
	}
	return h
}

func insertNode(h, x block) block {
	if !h.valid() {
		x.setColor(red)
		x.setLeftChild(0)
		x.setRightChild(0)
		return x
	}

	switch cmp := compareBlocks(x, h); {
	case cmp < 0:
		h.setLeftChild(insertNode(h.leftChild(), x))
	default:
		// cmp == 0 cannot happen for distinct live blocks (address is
		// part of the key); cmp > 0 is the common case.
		h.setRightChild(insertNode(h.rightChild(), x))
	}
	return balance(h)
}

// insertFree inserts x (already marked free) into the arena's free
// tree.
func (a *Arena) insertFree(x block) {
	x.setFree(true)
	root := insertNode(a.freeRoot(), x)
	root.setColor(black)
	a.setFreeRoot(root)
}

func treeMin(h block) block {
	for h.leftChild().valid() {
		h = h.leftChild()
	}
	return h
}

func deleteMinNode(h block) block {
	if !h.leftChild().valid() {
		return h.rightChild()
	}
	h.setLeftChild(deleteMinNode(h.leftChild()))
	return h
}

// deleteNode removes the block matching target's key from the subtree
// rooted at h and returns the new subtree root. Per spec §4.3 this is
// classic BST removal (promoting the in-order successor when both
// children are present) followed by a single top-down balance pass at
// the call site, not a recursive rebalance on every level of the
// delete path.
func deleteNode(h, target block) block {
	if !h.valid() {
		return h
	}

	switch cmp := compareBlocks(target, h); {
	case cmp < 0:
		h.setLeftChild(deleteNode(h.leftChild(), target))
	case cmp > 0:
		h.setRightChild(deleteNode(h.rightChild(), target))
	default:
		switch {
		case !h.rightChild().valid():
			return h.leftChild()
		case !h.leftChild().valid():
			return h.rightChild()
		default:
			succ := treeMin(h.rightChild())
			newRight := deleteMinNode(h.rightChild())
			succ.setLeftChild(h.leftChild())
			succ.setRightChild(newRight)
			succ.setColor(h.treeColor())
			h = succ
		}
	}
	return h
}

// detach removes x from the arena's free tree. x MUST currently be a
// member of the tree (found either by bestFit or by an explicit
// triple-key walk, per spec §4.3's "detach by explicit pointer").
func (a *Arena) detach(x block) {
	root := deleteNode(a.freeRoot(), x)
	if root.valid() {
		root = balance(root)
		root.setColor(black)
	}
	a.setFreeRoot(root)
}

// bestFit walks the free tree looking for the left-most (tightest)
// block whose size can satisfy reqSize once padded up to reqAlign, per
// spec §4.3's best-fit search description. Returns the zero block if no
// candidate exists.
func (a *Arena) bestFit(reqSize, reqAlign uintptr) block {
	var best block
	h := a.freeRoot()
	for h.valid() {
		if h.size() < reqSize {
			h = h.rightChild()
			continue
		}
		pad := alignUp(h.payload(), reqAlign) - h.payload()
		if h.size() >= reqSize+pad {
			best = h
			h = h.leftChild()
		} else {
			h = h.rightChild()
		}
	}
	return best
}

// treeCount returns the number of nodes in the free tree. Used by
// tests, not the allocation hot path.
func treeCount(h block) int {
	if !h.valid() {
		return 0
	}
	return 1 + treeCount(h.leftChild()) + treeCount(h.rightChild())
}

// treeWalk calls f for every node in the subtree rooted at h, in-order.
func treeWalk(h block, f func(block)) {
	if !h.valid() {
		return
	}
	treeWalk(h.leftChild(), f)
	f(h)
	treeWalk(h.rightChild(), f)
}

// blackHeight returns the black-height of the subtree rooted at h, or
// -1 if the subtree violates black-balance. Used by property tests
// (spec §8 item 4).
func blackHeight(h block) int {
	if !h.valid() {
		return 0
	}
	if isRed(h.leftChild()) && isRed(h.rightChild()) {
		return -1
	}
	if isRed(h.rightChild()) {
		return -1 // right-leaning red link
	}
	if isRed(h.leftChild()) && isRed(h.leftChild().leftChild()) {
		return -1 // two consecutive left-leaning reds
	}
	lh := blackHeight(h.leftChild())
	rh := blackHeight(h.rightChild())
	if lh == -1 || rh == -1 || lh != rh {
		return -1
	}
	if isRed(h) {
		return lh
	}
	return lh + 1
}
