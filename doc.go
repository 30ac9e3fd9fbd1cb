// Copyright 2024 The memarena Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*

Package memarena implements a header-resident region allocator: given a
single contiguous byte span, it parcels that span into aligned, variably
sized allocations that may be individually released and later reused.
It combines an O(1) tail-bump path with an O(log n) best-fit free-block
reuse path backed by a Left-Leaning Red-Black tree embedded inside the
free blocks themselves. Allocations carry no per-object out-of-band
bookkeeping; all state lives inside the managed span using pointer
tagging and struct overlays, for a fixed 32-byte (64-bit host) header
per live block plus one arena header.

The terms MUST or MUST NOT, where used in this documentation, are a
requirement for any alternative implementation aiming for
byte-compatibility with this one.

Span

A span is the single contiguous []byte an Arena owns for its entire
lifetime. Its base MUST be at least word-aligned; Go's allocator and
make([]byte, n) already guarantee this. Its length is fixed once the
Arena is constructed.

Block header

Every live block — whether free or occupied — is preceded by a 4-word
header:

	word 0: size_and_alignment (size in the upper bits; a 3-bit
	        alignment exponent in the low bits)
	word 1: prev (pointer to the physical predecessor block, tagged with
	        is_free in bit 0 and the LLRB node color in bit 1)
	word 2: overlay — left_child when free, owning arena when occupied
	word 3: overlay — right_child when free, magic word when occupied

Physical chain

Blocks tile the span contiguously: next(B) is always derived as
B's payload address plus its stored size; prev(B) is read from the
stored prev field, never derived. The chain's head has prev == nil.

Free tree

Free blocks are ordered into an intrusive Left-Leaning Red-Black tree,
keyed by (size, alignment quality, address), all ascending, where
alignment quality is the count of trailing zero bits of the payload
address. No free block ever needs an out-of-band tree node: its own
header fields double as the left_child/right_child links.

Tail

The tail is the distinguished rightmost block. While it holds uncarved
space it is marked free, has a recorded size of zero, and is never a
member of the free tree; its available space is the uncarved remainder
of the span. An allocation that takes all of the remaining space is
stamped onto the tail block itself, which then stays the tail, marked
occupied, until it is freed.

Owner recovery

Free(p) must recover p's block header and owning Arena from nothing
but p itself. When no alignment padding was skipped at allocation time,
the header sits exactly one header's width before p and its magic word
happens to occupy the word immediately preceding p. When padding was
skipped, a back-link word written at allocation time — the header
address XOR the returned pointer — occupies that same position
instead; Free distinguishes the two cases by checking whether XOR-ing
the word before p with p itself reproduces the fixed magic constant.

Nested arenas and Bumps

A nested Arena and a Bump are both byte-compatible with an ordinary
occupied block: to their parent they are indistinguishable from a
single in-use allocation. Both reuse the occupied-block overlay words
for their own private bookkeeping: a nested Arena stores its tail and
free-root there in place of owning arena and magic; a Bump stores its
offset in the owning-arena word — which is also why neither can be released through the
public Free entry point and instead call directly into the internal
coalescing step against their cached parent.

*/
package memarena
