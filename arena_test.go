// Copyright 2024 The memarena Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memarena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStaticRejectsNilAndTooSmall(t *testing.T) {
	_, err := NewStatic(nil)
	assert.Error(t, err)

	_, err = NewStatic(make([]byte, 4))
	assert.Error(t, err)
}

func TestNewStaticCapacity(t *testing.T) {
	buf := make([]byte, 1024)
	a, err := NewStatic(buf)
	require.NoError(t, err)
	assert.EqualValues(t, 1024-arenaHeaderSize, a.capacity())
	assert.False(t, a.isDynamic())
	assert.False(t, a.isNested())
}

func TestNewDynamicUsesProvider(t *testing.T) {
	a, err := NewDynamic(1024)
	require.NoError(t, err)
	assert.True(t, a.isDynamic())
	assert.NoError(t, a.Destroy())
}

func TestNewDynamicRejectsTooSmall(t *testing.T) {
	_, err := NewDynamic(4)
	assert.Error(t, err)
}

type countingProvider struct {
	acquired, released int
}

func (p *countingProvider) Acquire(n int) ([]byte, error) {
	p.acquired++
	return make([]byte, n), nil
}

func (p *countingProvider) Release(s []byte) { p.released++ }

func TestDynamicDestroyReleasesSpan(t *testing.T) {
	p := &countingProvider{}
	a, err := NewDynamic(1024, WithSpanProvider(p))
	require.NoError(t, err)
	assert.Equal(t, 1, p.acquired)
	require.NoError(t, a.Destroy())
	assert.Equal(t, 1, p.released)
}

func TestNewNestedIsByteCompatibleWithOccupiedBlock(t *testing.T) {
	parent, err := NewDynamic(4096)
	require.NoError(t, err)

	nested, err := NewNested(parent, 512)
	require.NoError(t, err)
	assert.True(t, nested.isNested())
	assert.Same(t, parent, nested.parent)

	// From parent's point of view, the nested arena is a single
	// occupied block; its own free tree should start out empty.
	assert.Zero(t, nested.Stats().FreeBlockCount)

	require.NoError(t, nested.Destroy())
}

func TestNestedDestroyReturnsBlockToParent(t *testing.T) {
	parent, err := NewDynamic(4096)
	require.NoError(t, err)

	before := parent.Stats()
	nested, err := NewNested(parent, 512)
	require.NoError(t, err)
	require.NoError(t, nested.Destroy())
	after := parent.Stats()

	assert.Equal(t, before.FreeBytes, after.FreeBytes)
	assert.Equal(t, before.OccupiedBytes, after.OccupiedBytes)
}

func TestRecoverNestedParentMatchesCachedParent(t *testing.T) {
	parent, err := NewDynamic(4096)
	require.NoError(t, err)

	nested, err := NewNested(parent, 512)
	require.NoError(t, err)

	assert.Same(t, parent, recoverNestedParent(nested))
}

func TestResetDiscardsAllocations(t *testing.T) {
	a, err := NewDynamic(1024)
	require.NoError(t, err)

	_, err = a.Allocate(64)
	require.NoError(t, err)
	_, err = a.Allocate(64)
	require.NoError(t, err)

	a.Reset()
	st := a.Stats()
	assert.Zero(t, st.OccupiedBytes)
	assert.Zero(t, st.FreeTreeNodes)
}

func TestResetIdempotent(t *testing.T) {
	a, err := NewDynamic(1024)
	require.NoError(t, err)
	_, err = a.Allocate(64)
	require.NoError(t, err)

	a.Reset()
	first := a.Stats()
	a.Reset()
	second := a.Stats()
	assert.Equal(t, first, second)
}

func TestResetZeroedClearsPayload(t *testing.T) {
	a, err := NewDynamic(1024)
	require.NoError(t, err)

	p, err := a.Allocate(64)
	require.NoError(t, err)
	buf := unsafeBytes(p, 64)
	for i := range buf {
		buf[i] = 0xAB
	}

	a.ResetZeroed()
	full := unsafeBytes(unsafePointerFromUintptr(a.tailBlock().payload()), int(a.tailFreeSize()))
	for _, bb := range full {
		assert.Zero(t, bb)
	}
}
