// Copyright 2024 The memarena Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memarena

// BlockInfo describes one block of the physical chain, for diagnostic
// consumers (internal/diag). It is a snapshot, not a live view.
type BlockInfo struct {
	Addr      uintptr
	Size      uintptr
	Free      bool
	IsTail    bool
	Alignment uintptr
}

// Walk calls fn once for every block in the physical chain, from the
// head block through the tail, in address order. Grounded on
// lldb.Allocator.Verify's scan-the-whole-file shape, scoped down to a
// single read-only pass with no bitmap bookkeeping since an in-memory
// arena has no analogous "lost space" failure mode to detect.
func (a *Arena) Walk(fn func(BlockInfo)) {
	tail := a.tailBlock()
	for b := a.headBlock(); ; {
		fn(BlockInfo{
			Addr:      b.addr(),
			Size:      b.size(),
			Free:      b.isFree(),
			IsTail:    b == tail,
			Alignment: b.alignment(),
		})
		if b == tail {
			return
		}
		b = b.next()
	}
}

// Stats summarizes an Arena's current occupancy, analogous to
// lldb.AllocStats.
type Stats struct {
	Capacity        uintptr
	BlockCount      int
	FreeBlockCount  int
	OccupiedBytes   uintptr
	FreeBytes       uintptr
	FreeTreeNodes   int
	FreeTreeBalance bool // true iff the LLRB black-height invariant holds
}

// Stats computes a snapshot summary of a. It is O(n) in the number of
// blocks plus O(n) in the number of free-tree nodes; intended for
// diagnostics and tests, not the allocation hot path.
func (a *Arena) Stats() Stats {
	var s Stats
	s.Capacity = a.capacity()
	a.Walk(func(bi BlockInfo) {
		s.BlockCount++
		if bi.IsTail {
			return
		}
		if bi.Free {
			s.FreeBlockCount++
			s.FreeBytes += bi.Size
		} else {
			s.OccupiedBytes += bi.Size
		}
	})
	s.FreeTreeNodes = treeCount(a.freeRoot())
	s.FreeTreeBalance = blackHeight(a.freeRoot()) >= 0
	return s
}
