// Copyright 2024 The memarena Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memarena

import "unsafe"

func unsafeBytes(p unsafe.Pointer, n int) []byte {
	return unsafe.Slice((*byte)(p), n)
}

func unsafePointerFromUintptr(addr uintptr) unsafe.Pointer {
	return unsafe.Pointer(addr)
}

func unsafePointerFromSlice(b []byte, offset int) unsafe.Pointer {
	return unsafe.Pointer(&b[offset])
}
