// Copyright 2024 The memarena Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memarena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreeNilIsNoop(t *testing.T) {
	assert.NotPanics(t, func() { Free(nil) })
}

func TestFreeGarbagePointerIsNoop(t *testing.T) {
	junk := make([]byte, 64)
	p := unsafePointerFromSlice(junk, 32)
	assert.NotPanics(t, func() { Free(p) })
}

func TestDoubleFreeIsIdempotent(t *testing.T) {
	a, err := NewDynamic(1024)
	require.NoError(t, err)

	p, err := a.Allocate(32)
	require.NoError(t, err)
	Free(p)
	after1 := a.Stats()
	Free(p)
	after2 := a.Stats()
	assert.Equal(t, after1, after2)

	p2, err := a.Allocate(32)
	require.NoError(t, err)
	assert.NotNil(t, p2)
}

func TestFreshArenaAllocateMatchesScenarioOne(t *testing.T) {
	a, err := NewDynamic(1024)
	require.NoError(t, err)
	require.EqualValues(t, 1024, a.capacity())

	before := a.tailFreeSize()
	require.EqualValues(t, 992, before)

	p, err := a.Allocate(100)
	require.NoError(t, err)
	assert.Zero(t, uintptr(p)%16)
	assert.EqualValues(t, uintptr(a.hdr)+64, uintptr(p))

	afterAlloc := a.tailFreeSize()
	assert.Less(t, afterAlloc, before)

	Free(p)
	afterFree := a.tailFreeSize()
	assert.EqualValues(t, before, afterFree)
	assert.Zero(t, a.Stats().FreeTreeNodes)
}

func TestFragmentationFullyReabsorbsIntoTail(t *testing.T) {
	a, err := NewDynamic(2048)
	require.NoError(t, err)

	before := a.tailFreeSize()

	pa, err := a.Allocate(50)
	require.NoError(t, err)
	pb, err := a.Allocate(150)
	require.NoError(t, err)
	pc, err := a.Allocate(200)
	require.NoError(t, err)

	Free(pb)
	Free(pa)
	Free(pc)

	assert.Zero(t, a.Stats().FreeTreeNodes)
	assert.EqualValues(t, before, a.tailFreeSize())
}

func TestAlignmentStressDonatesHeadPad(t *testing.T) {
	a, err := NewDynamic(4096, WithBaselineAlignment(int(WordSize)))
	require.NoError(t, err)

	p, err := a.AllocateAligned(50, 128)
	require.NoError(t, err)
	assert.Zero(t, uintptr(p)%128)

	st := a.Stats()
	assert.Equal(t, 1, st.FreeTreeNodes, "head padding large enough to donate should appear in the tree")
}

func TestDoubleFreeSecondCallIsSilentNoOp(t *testing.T) {
	a, err := NewDynamic(1024)
	require.NoError(t, err)

	p, err := a.Allocate(32)
	require.NoError(t, err)
	Free(p)
	Free(p) // must not corrupt state or panic
	p2, err := a.Allocate(32)
	require.NoError(t, err)
	assert.NotNil(t, p2)
}

func TestAllocateFreeRoundTripRestoresTailCoverage(t *testing.T) {
	a, err := NewDynamic(1024)
	require.NoError(t, err)

	before := a.tailFreeSize()
	p, err := a.Allocate(200)
	require.NoError(t, err)
	Free(p)
	after := a.tailFreeSize()
	assert.Equal(t, before, after)
}

func TestRecoverHeaderNoPaddingCase(t *testing.T) {
	a, err := NewDynamic(1024)
	require.NoError(t, err)
	p, err := a.Allocate(64)
	require.NoError(t, err)

	h, ok := recoverHeader(uintptr(p))
	require.True(t, ok)
	assert.Equal(t, uintptr(p)-headerSize, h.addr())
}

func TestRecoverHeaderBackLinkCase(t *testing.T) {
	buf := make([]byte, 8192)
	start := uintptr(unsafePointerFromSlice(buf, 0))
	off := int(alignUp(start, 256) - start)
	a, err := NewStatic(buf[off:], WithBaselineAlignment(int(WordSize)))
	require.NoError(t, err)
	// Leave the tail's payload 16 bytes short of a 256 boundary: that
	// head pad is too small to donate, so a back-link word is written.
	_, err = a.Allocate(144)
	require.NoError(t, err)
	p, err := a.AllocateAligned(50, 256)
	require.NoError(t, err)

	h, ok := recoverHeader(uintptr(p))
	require.True(t, ok)
	assert.True(t, h.valid())
	assert.False(t, h.isFree())
	assert.NotEqual(t, uintptr(p)-headerSize, h.addr())
}
