// Copyright 2024 The memarena Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memarena

import (
	"math/rand"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scratchArena returns an Arena whose only usable field is its raw
// header (backed by real memory), enough to exercise freeRoot-based
// tree operations without constructing a full span.
func scratchArena() *Arena {
	hdrBuf := make([]byte, headerSize)
	hdr := block(uintptr(unsafe.Pointer(&hdrBuf[0])))
	hdr.setRawF4(0)
	return &Arena{hdr: hdr}
}

// carveBlocks lays out n block headers stride bytes apart inside buf
// (only the headers are written, so no two overlap), and returns them with
// sizes set to size(i) (alignment fixed at WordSize so only size
// drives ordering in tests that want deterministic comparisons).
func carveBlocks(buf []byte, n int, stride uintptr, size func(i int) uintptr) []block {
	base := uintptr(unsafe.Pointer(&buf[0]))
	blocks := make([]block, n)
	for i := 0; i < n; i++ {
		b := block(base + uintptr(i)*stride)
		b.setSizeAlign(size(i), WordSize)
		b.setRawPrev(makePrev(0, true, black))
		b.setLeftChild(0)
		b.setRightChild(0)
		blocks[i] = b
	}
	return blocks
}

func TestCompareBlocksOrdersBySize(t *testing.T) {
	buf := make([]byte, 4096)
	blocks := carveBlocks(buf, 4, 256, func(i int) uintptr { return uintptr((i + 1) * 32) })

	assert.Equal(t, -1, compareBlocks(blocks[0], blocks[1]))
	assert.Equal(t, 1, compareBlocks(blocks[3], blocks[0]))
	assert.Equal(t, 0, compareBlocks(blocks[0], blocks[0]))
}

func TestLLRBInsertWalkIsSorted(t *testing.T) {
	buf := make([]byte, 16384)
	n := 40
	sizes := rand.New(rand.NewSource(1)).Perm(n)
	blocks := carveBlocks(buf, n, 256, func(i int) uintptr { return uintptr((sizes[i] + 1) * 16) })

	var root block
	for _, b := range blocks {
		root = insertNode(root, b)
		root.setColor(black)
	}

	require.Equal(t, n, treeCount(root))
	require.GreaterOrEqual(t, blackHeight(root), 0)

	var got []uintptr
	treeWalk(root, func(b block) { got = append(got, b.size()) })
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1], got[i])
	}
}

func TestLLRBDetachPreservesRemainingOrder(t *testing.T) {
	buf := make([]byte, 16384)
	n := 30
	blocks := carveBlocks(buf, n, 256, func(i int) uintptr { return uintptr((i + 1) * 16) })

	var root block
	for _, b := range blocks {
		root = insertNode(root, b)
		root.setColor(black)
	}

	a := scratchArena()
	a.setFreeRoot(root)

	victim := blocks[n/2]
	a.detach(victim)

	assert.Equal(t, n-1, treeCount(a.freeRoot()))
	assert.GreaterOrEqual(t, blackHeight(a.freeRoot()), 0)

	var got []uintptr
	treeWalk(a.freeRoot(), func(b block) { got = append(got, b.size()) })
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1], got[i])
	}
	for _, sz := range got {
		assert.NotEqual(t, victim.size(), sz)
	}
}

func TestBestFitFindsTightestAdequateBlock(t *testing.T) {
	buf := make([]byte, 16384)
	sizes := []uintptr{16, 32, 48, 64, 128, 256}
	blocks := carveBlocks(buf, len(sizes), 256, func(i int) uintptr { return sizes[i] })

	a := scratchArena()
	var root block
	for _, b := range blocks {
		root = insertNode(root, b)
		root.setColor(black)
	}
	a.setFreeRoot(root)

	got := a.bestFit(40, WordSize)
	require.True(t, got.valid())
	assert.EqualValues(t, 48, got.size())

	got = a.bestFit(256, WordSize)
	require.True(t, got.valid())
	assert.EqualValues(t, 256, got.size())

	got = a.bestFit(1000, WordSize)
	assert.False(t, got.valid())
}

func TestLLRBRandomInsertDeleteStaysBalanced(t *testing.T) {
	buf := make([]byte, 1<<20)
	n := 200
	blocks := carveBlocks(buf, n, 512, func(i int) uintptr { return uintptr((i + 1) * 8) })

	a := scratchArena()
	rng := rand.New(rand.NewSource(7))
	order := rng.Perm(n)
	for _, i := range order {
		root := insertNode(a.freeRoot(), blocks[i])
		root.setColor(black)
		a.setFreeRoot(root)
		require.GreaterOrEqual(t, blackHeight(a.freeRoot()), 0)
	}
	require.Equal(t, n, treeCount(a.freeRoot()))

	delOrder := rng.Perm(n)
	for k, i := range delOrder {
		a.detach(blocks[i])
		require.GreaterOrEqual(t, blackHeight(a.freeRoot()), 0)
		require.Equal(t, n-k-1, treeCount(a.freeRoot()))
	}
}
