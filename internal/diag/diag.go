// Copyright 2024 The memarena Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package diag provides optional textual diagnostics for a memarena
// Arena: a block-by-block dump and a proportional bar visualization of
// occupied versus free bytes. Nothing in the core package imports this
// package; it exists purely for callers who want to eyeball an arena's
// layout, the same role lldb.Allocator.Verify plays for a Filer.
package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/cznic/memarena"
)

// Dump writes one line per block in a's physical chain to w: its
// address, size, and whether it is free, occupied, or the tail.
func Dump(w io.Writer, a *memarena.Arena) error {
	var werr error
	a.Walk(func(b memarena.BlockInfo) {
		if werr != nil {
			return
		}
		kind := "occupied"
		switch {
		case b.IsTail:
			kind = "tail"
		case b.Free:
			kind = "free"
		}
		_, werr = fmt.Fprintf(w, "block %#x size=%d align=%d %s\n", b.Addr, b.Size, b.Alignment, kind)
	})
	return werr
}

// Bar writes a single-line proportional bar of width columns,
// approximating the arena's occupied/free/tail-uncarved split with the
// characters '#', '-', and '.' respectively.
func Bar(w io.Writer, a *memarena.Arena, width int) error {
	if width <= 0 {
		width = 64
	}
	st := a.Stats()
	if st.Capacity == 0 {
		_, err := fmt.Fprintln(w, strings.Repeat(".", width))
		return err
	}

	occCols := int(uintptr(width) * st.OccupiedBytes / st.Capacity)
	freeCols := int(uintptr(width) * st.FreeBytes / st.Capacity)
	if occCols > width {
		occCols = width
	}
	if occCols+freeCols > width {
		freeCols = width - occCols
	}
	tailCols := width - occCols - freeCols

	var b strings.Builder
	b.WriteString(strings.Repeat("#", occCols))
	b.WriteString(strings.Repeat("-", freeCols))
	b.WriteString(strings.Repeat(".", tailCols))
	_, err := fmt.Fprintln(w, b.String())
	return err
}

// Report writes Dump followed by a summary line and a Bar, a
// convenience for interactive use.
func Report(w io.Writer, a *memarena.Arena) error {
	if err := Dump(w, a); err != nil {
		return err
	}
	st := a.Stats()
	if _, err := fmt.Fprintf(w, "blocks=%d free=%d occupied=%d bytes free_tree_nodes=%d balanced=%v\n",
		st.BlockCount, st.FreeBlockCount, st.OccupiedBytes, st.FreeTreeNodes, st.FreeTreeBalance); err != nil {
		return err
	}
	return Bar(w, a, 64)
}
