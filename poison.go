// Copyright 2024 The memarena Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memarena

import "unsafe"

// PoisonMode controls whether a freed payload is overwritten with a
// fill byte before it re-enters the free tree (spec §4.5 step C).
type PoisonMode int

const (
	// PoisonOff never overwrites a freed payload.
	PoisonOff PoisonMode = iota
	// PoisonOn overwrites a freed payload with the configured fill byte.
	PoisonOn
)

// poisonPayload fills b's payload bytes with fill. Called only while b
// is still sized as it was at the moment of free, before coalescing
// changes its size field.
func poisonPayload(b block, fill byte) {
	n := b.size()
	if n == 0 {
		return
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(b.payload())), n)
	for i := range buf {
		buf[i] = fill
	}
}
