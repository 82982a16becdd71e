// Copyright 2024 The heapmem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapmem

// findFit scans the free list for a block satisfying asize, per the
// Arena's configured Policy (spec §4.4.2). BestFit returns immediately on
// an exact match, otherwise the candidate with the smallest leftover
// slack, first occurrence winning ties. FirstFit returns the first block
// large enough, scanning the same explicit list
// (original_source/mm_explicit_w_footer.c's find_fit). Either returns 0
// if no block qualifies.
func (a *Arena) findFit(asize int) uintptr {
	if a.policy == FirstFit {
		for bp := a.freeList; bp != 0; bp = a.succLink(bp) {
			if sizeOf(getWord(headerAddr(bp))) >= asize {
				return bp
			}
		}
		return 0
	}

	var best uintptr
	bestDiff := -1
	for bp := a.freeList; bp != 0; bp = a.succLink(bp) {
		s := sizeOf(getWord(headerAddr(bp)))
		if s == asize {
			return bp
		}
		if s > asize {
			if diff := s - asize; bestDiff == -1 || diff < bestDiff {
				bestDiff = diff
				best = bp
			}
		}
	}
	return best
}

// place carves asize bytes out of the free block bp, splitting off the
// remainder when at least minBlockSize bytes would be left over (spec
// §4.4.3). bp must be a free-list member; place always leaves it either
// replaced (split) or unlinked (no split).
//
// Per the Open Question recorded in DESIGN.md, the allocated block's own
// prev_alloc bit is read from its existing header rather than hardcoded
// to 1: invariant 4 (no two adjacent free blocks) guarantees it already
// is 1 for any block reachable from the free list, so this is a free
// defensive simplification, not a behavior change.
func (a *Arena) place(bp uintptr, asize int) {
	hdr := headerAddr(bp)
	word := getWord(hdr)
	size := sizeOf(word)
	prevAlloc := prevAllocOf(word)
	diff := size - asize

	pred := a.predLink(bp)
	succ := a.succLink(bp)

	if diff >= minBlockSize {
		putWord(hdr, pack(asize, 1, prevAlloc))

		next := bp + uintptr(asize)
		putWord(headerAddr(next), pack(diff, 0, 1))
		putWord(footerAddr(next), pack(diff, 0, 1))
		a.replace(next, pred, succ)
		return
	}

	putWord(hdr, pack(size, 1, prevAlloc))

	nxt := nextBlock(bp)
	nxtWord := getWord(headerAddr(nxt))
	putWord(headerAddr(nxt), pack(sizeOf(nxtWord), allocOf(nxtWord), 1))
	a.unlink(bp)
}

// coalesce runs the four-case boundary-tag protocol against a just-freed
// block bp (spec §4.4.6). bp's own header/footer must already carry
// alloc=0 when this is called. The returned block is not a free-list
// member — the caller (free, or the callers of extendHeap) is responsible
// for linking it.
func (a *Arena) coalesce(bp uintptr) uintptr {
	prevAlloc := prevAllocOf(getWord(headerAddr(bp)))
	next := nextBlock(bp)
	nextWord := getWord(headerAddr(next))
	nextAlloc := allocOf(nextWord)
	size := sizeOf(getWord(headerAddr(bp)))

	switch {
	case prevAlloc != 0 && nextAlloc != 0: // Case 1: no merge
		putWord(headerAddr(next), pack(sizeOf(nextWord), nextAlloc, 0))
		return bp

	case prevAlloc != 0 && nextAlloc == 0: // Case 2: merge with next
		a.unlink(next)
		size += sizeOf(nextWord)
		putWord(headerAddr(bp), pack(size, 0, 1))
		putWord(footerAddr(bp), pack(size, 0, 1))

		newNext := nextBlock(bp)
		nw := getWord(headerAddr(newNext))
		putWord(headerAddr(newNext), pack(sizeOf(nw), allocOf(nw), 0))
		return bp

	case prevAlloc == 0 && nextAlloc != 0: // Case 3: merge with prev
		prev := prevBlock(bp)
		a.unlink(prev)
		size += sizeOf(getWord(headerAddr(prev)))
		putWord(headerAddr(prev), pack(size, 0, 1))
		putWord(footerAddr(bp), pack(size, 0, 1))

		putWord(headerAddr(next), pack(sizeOf(nextWord), nextAlloc, 0))
		return prev

	default: // Case 4: merge both neighbors
		prev := prevBlock(bp)
		a.unlink(prev)
		a.unlink(next)
		size += sizeOf(getWord(headerAddr(prev))) + sizeOf(nextWord)
		putWord(headerAddr(prev), pack(size, 0, 1))
		putWord(footerAddr(next), pack(size, 0, 1))

		newNext := nextBlock(prev)
		nw := getWord(headerAddr(newNext))
		putWord(headerAddr(newNext), pack(sizeOf(nw), allocOf(nw), 0))
		return prev
	}
}
