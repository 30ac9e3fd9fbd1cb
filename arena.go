// Copyright 2024 The memarena Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memarena

import (
	"runtime"
	"unsafe"
)

// arenaHeaderSize is byte-compatible with headerSize (spec §3): a
// nested arena's header occupies exactly one block-header-sized region
// in its parent, so the parent's neighbor walk treats it like any other
// occupied block.
const arenaHeaderSize = headerSize

// SpanProvider acquires and releases the backing span for a dynamic
// Arena (spec §1's "byte-span provider", "system heap equivalent").
// Grounded on lldb.Filer's role as the abstraction Allocator needs from
// storage, scoped down to the two operations a dynamic Arena needs.
type SpanProvider interface {
	Acquire(n int) ([]byte, error)
	Release(span []byte)
}

type heapProvider struct{}

func (heapProvider) Acquire(n int) ([]byte, error) { return make([]byte, n), nil }
func (heapProvider) Release([]byte)                {}

// Arena is a header-resident region allocator over a single contiguous
// byte span (spec §1–§3).
//
// An Arena's raw bookkeeping — capacity, baseline alignment, the tagged
// tail pointer and the free tree root — lives inside the span itself,
// in a 4-word header that is byte-compatible with a block header (see
// hdr below and block.go), exactly as spec §3 requires. The Go-level
// fields (span, parent, cfg, pin) are ordinary heap bookkeeping that
// never needs to be recovered from raw memory by a parent arena; see
// DESIGN.md's "nested-arena parent recovery" entry for why.
type Arena struct {
	hdr    block // address of this arena's 4-word raw header
	span   []byte
	parent *Arena
	cfg    arenaConfig
	pin    runtime.Pinner
}

func (a *Arena) capacity() uintptr          { return a.hdr.size() }
func (a *Arena) baselineAlignment() uintptr { return a.hdr.alignment() }

func (a *Arena) setCapacityAlignment(cap, align uintptr) {
	a.hdr.setSizeAlign(cap, align)
}

// tail/root overlay (spec §3's arena-header overlay fields; reuses
// block.go's f3/f4 raw accessors with arena-specific meaning instead of
// occupied-block owner/magic).

func (a *Arena) tailRaw() uintptr       { return a.hdr.rawF3() }
func (a *Arena) setTailRaw(v uintptr)   { a.hdr.setRawF3(v) }
func (a *Arena) tailBlock() block       { return block(tailPointer(a.tailRaw())) }
func (a *Arena) isDynamic() bool        { return tailIsDynamic(a.tailRaw()) }
func (a *Arena) isNested() bool         { return tailIsNested(a.tailRaw()) }

func (a *Arena) setTailBlock(t block) {
	a.setTailRaw(makeTail(uintptr(t), a.isDynamic(), a.isNested()))
}

func (a *Arena) freeRoot() block     { return block(a.hdr.rawF4()) }
func (a *Arena) setFreeRoot(b block) { a.hdr.setRawF4(uintptr(b)) }

func (a *Arena) base() uintptr { return a.hdr.payload() }
func (a *Arena) end() uintptr  { return a.base() + a.capacity() }

// contains reports whether addr falls within this arena's own payload
// region (spec §8 property 6).
func (a *Arena) contains(addr uintptr) bool {
	return addr >= a.base() && addr < a.end()
}

// headBlock returns the first block in the physical chain. Its address
// relative to hdr never changes across the arena's lifetime.
func (a *Arena) headBlock() block { return block(a.hdr.addr() + arenaHeaderSize) }

func minArenaSize(minBuf uintptr) uintptr {
	return arenaHeaderSize + headerSize + minBuf
}

func buildOptions(opts []Option) arenaConfig {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

func validateConfig(cfg arenaConfig) error {
	if !validAlignment(cfg.baselineAlignment) {
		return &ErrInvalid{"baseline alignment", cfg.baselineAlignment}
	}
	if cfg.minBufferSize == 0 {
		return &ErrInvalid{"min buffer size", cfg.minBufferSize}
	}
	return nil
}

// initHeader lays out a fresh arena header plus a single empty tail
// block filling the rest of capacity, starting at hdr. keepAlive is
// retained on the Arena only for root (static/dynamic) arenas, whose
// backing array has no other Go-level owner; a nested arena's span
// lives inside its parent's and is kept alive by the parent field
// instead.
//
// prev is left untouched when nested: it is the block's real physical
// link in the parent's chain, already set correctly by the parent's
// own Allocate, and must survive the overlay (spec §4.7).
func initHeader(hdr block, capacity uintptr, keepAlive []byte, cfg arenaConfig, dynamic, nested bool) *Arena {
	a := &Arena{hdr: hdr, span: keepAlive, cfg: cfg}
	a.pin.Pin(a)

	a.setCapacityAlignment(capacity, cfg.baselineAlignment)
	if !nested {
		a.hdr.setRawPrev(0)
	}

	tail := block(hdr.addr() + arenaHeaderSize)
	tail.setSizeAlign(0, cfg.baselineAlignment)
	tail.setRawPrev(makePrev(0, true, black))
	tail.setLeftChild(0)
	tail.setRightChild(0)

	a.setTailRaw(makeTail(uintptr(tail), dynamic, nested))
	a.setFreeRoot(0)
	return a
}

// NewStatic creates an Arena over a caller-supplied buffer. buf is
// never read from nor released by the Arena; the caller retains
// ownership of its lifetime (spec §6 make_static).
func NewStatic(buf []byte, opts ...Option) (*Arena, error) {
	cfg := buildOptions(opts)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, &ErrInvalid{"nil buffer", nil}
	}
	if uintptr(len(buf)) < minArenaSize(cfg.minBufferSize) {
		return nil, &ErrInvalid{"buffer too small", len(buf)}
	}

	hdr := block(uintptr(unsafe.Pointer(&buf[0])))
	capacity := uintptr(len(buf)) - arenaHeaderSize
	return initHeader(hdr, capacity, buf, cfg, false, false), nil
}

// NewDynamic creates an Arena over a span acquired from a SpanProvider
// (heapProvider, i.e. make([]byte, n), unless WithSpanProvider
// overrides it). Destroy releases the span back to the provider (spec
// §6 make_dynamic).
func NewDynamic(n int, opts ...Option) (*Arena, error) {
	cfg := buildOptions(opts)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if uintptr(n) < minArenaSize(cfg.minBufferSize) {
		return nil, &ErrInvalid{"size too small", n}
	}

	acquireSize := n + int(arenaHeaderSize)
	span, err := cfg.provider.Acquire(acquireSize)
	if err != nil {
		return nil, &ErrProvider{"Acquire failed", err}
	}
	if span == nil || len(span) < acquireSize {
		return nil, &ErrProvider{"provider returned insufficient span", nil}
	}

	hdr := block(uintptr(unsafe.Pointer(&span[0])))
	return initHeader(hdr, uintptr(n), span, cfg, true, false), nil
}

// NewNested carves an Arena of n bytes out of parent, byte-compatible
// with an occupied block so parent's own bookkeeping sees a single
// in-use block (spec §4.7). Freeing a nested arena (Destroy) returns
// the block to parent.
func NewNested(parent *Arena, n int, opts ...Option) (*Arena, error) {
	if parent == nil {
		return nil, &ErrInvalid{"nil parent", nil}
	}
	cfg := buildOptions(opts)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	need := int(minArenaSize(cfg.minBufferSize))
	if n < need {
		n = need
	}

	p, err := parent.Allocate(n)
	if err != nil {
		return nil, err
	}

	hdr := block(uintptr(p) - headerSize)
	actualCap := hdr.size() // captured before initHeader overwrites word0
	a := initHeader(hdr, actualCap, nil, cfg, false, true)
	a.parent = parent
	return a, nil
}

// Reset reinitializes the arena as a single empty tail and an empty
// free tree, discarding every live allocation without validating them
// (spec §4.9 / §8 reset idempotence).
func (a *Arena) Reset() {
	cap, align := a.capacity(), a.baselineAlignment()
	tail := block(a.hdr.addr() + arenaHeaderSize)
	tail.setSizeAlign(0, align)
	tail.setRawPrev(makePrev(0, true, black))
	tail.setLeftChild(0)
	tail.setRightChild(0)
	a.setCapacityAlignment(cap, align)
	a.setTailBlock(tail)
	a.setFreeRoot(0)
}

// ResetZeroed is Reset followed by zeroing the entire payload area: every
// byte after the fresh tail's header, which itself stays intact so the
// arena remains usable (spec §4.9).
func (a *Arena) ResetZeroed() {
	a.Reset()
	base := a.tailBlock().payload()
	buf := unsafe.Slice((*byte)(unsafe.Pointer(base)), a.tailFreeSize())
	for i := range buf {
		buf[i] = 0
	}
}

// Destroy releases the arena's resources: for a dynamic arena, the
// span is returned to its SpanProvider; for a nested arena, the block
// is freed back to the parent; for a static arena, Destroy is a no-op
// (spec §6 destroy).
func (a *Arena) Destroy() error {
	a.pin.Unpin()
	switch {
	case a.isNested():
		// The public Free entry point validates via the magic word, but
		// initHeader has already overwritten this block's magic slot with
		// the free-tree root (spec §4.7's overlay). Go straight to the
		// coalescing step against the known (parent, header) pair.
		freeBlockInArena(a.parent, a.hdr)
		return nil
	case a.isDynamic():
		a.cfg.provider.Release(a.span)
		return nil
	default:
		return nil
	}
}
