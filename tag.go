// Copyright 2024 The heapmem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapmem

import "unsafe"

// Word sizes (spec data model §3): a header/footer is one word, the
// alignment quantum is a double word.
const (
	wsize = 4 // header/footer size in bytes
	dsize = 8 // alignment quantum

	minBlockSize = 2 * dsize // smallest legal block: a free block's header, pred/succ links and footer
	chunkSize    = 1 << 12   // default heap-extension granularity (4 KiB)
)

// pack encodes a block's boundary tag: size in the top bits, prevAlloc in
// bit 1, alloc in bit 0. size must already be a multiple of 8.
func pack(size, alloc, prevAlloc int) uint32 {
	if size&7 != 0 {
		panic("heapmem: block size not a multiple of 8")
	}
	w := uint32(size)
	if alloc != 0 {
		w |= 1
	}
	if prevAlloc != 0 {
		w |= 2
	}
	return w
}

func sizeOf(w uint32) int      { return int(w &^ 7) }
func allocOf(w uint32) int     { return int(w & 1) }
func prevAllocOf(w uint32) int { return int((w >> 1) & 1) }

// getWord/putWord read and write a 4-byte boundary-tag or free-list link
// word at an absolute in-process address. addr always points inside the
// arena's reserved, mmap'd backing array, which is never moved or
// GC-managed, so these casts are safe for the arena's lifetime.
func getWord(addr uintptr) uint32 {
	return *(*uint32)(unsafe.Pointer(addr))
}

func putWord(addr uintptr, v uint32) {
	*(*uint32)(unsafe.Pointer(addr)) = v
}

// headerAddr, footerAddr, nextBlock and prevBlock implement the HDRP,
// FTRP, NEXT_BLKP and PREV_BLKP pointer arithmetic of the boundary-tag
// protocol. prevBlock is only valid when prevAllocOf(header(bp)) == 0 —
// an allocated predecessor has no footer to read its size from.
func headerAddr(bp uintptr) uintptr { return bp - wsize }

func footerAddr(bp uintptr) uintptr {
	return bp + uintptr(sizeOf(getWord(headerAddr(bp)))) - dsize
}

func nextBlock(bp uintptr) uintptr {
	return bp + uintptr(sizeOf(getWord(headerAddr(bp))))
}

func prevBlock(bp uintptr) uintptr {
	return bp - uintptr(sizeOf(getWord(bp-dsize)))
}

// roundUpEven rounds n up to the nearest even number, as extendHeap needs
// to keep word counts aligned to a double word.
func roundUpEven(n int) int {
	if n%2 != 0 {
		return n + 1
	}
	return n
}

// roundUp8 rounds n up to the nearest multiple of 8.
func roundUp8(n int) int { return (n + 7) &^ 7 }

// adjustedSize computes the allocated block size for a user request of n
// bytes (spec §4.4.1): header overhead plus payload, rounded up to the
// alignment quantum, with a floor of minBlockSize.
func adjustedSize(n int) int {
	asize := roundUp8(n + wsize)
	if asize < minBlockSize {
		asize = minBlockSize
	}
	return asize
}
