// Copyright 2024 The heapmem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapmem

import "fmt"

// Stats summarizes one Check pass over the heap, in the spirit of
// cznic-exp/lldb's AllocStats (a similarly low-level block allocator's
// Verify report): total blocks found by the boundary-tag heap walk, how
// many are free vs. allocated, and the byte totals of each.
type Stats struct {
	TotalBlocks int
	FreeBlocks  int
	AllocBlocks int
	FreeBytes   int
	AllocBytes  int
}

// Check walks the heap twice — once by boundary tag (bp to
// bp+size(header(bp)), prologue to epilogue) and once by free-list links
// — and cross-checks every invariant from spec §3. It is a testing aid
// (spec §7 explicitly invites one), never called from the hot
// allocate/free/realloc path, and never panics: the first violation
// found is returned as a wrapped ErrInvariant.
func (a *Arena) Check() (Stats, error) {
	var st Stats

	heapFree := map[uintptr]int{} // free blocks seen by the boundary-tag walk, size by address

	prologueWord := getWord(headerAddr(a.heapListp))
	if sizeOf(prologueWord) != dsize || allocOf(prologueWord) == 0 {
		return st, fmt.Errorf("%w: prologue at %#x is malformed", ErrInvariant, a.heapListp)
	}

	bp := nextBlock(a.heapListp)
	prevBlockAlloc := 1 // the prologue itself is allocated
	for {
		word := getWord(headerAddr(bp))
		size := sizeOf(word)
		if size == 0 { // epilogue
			if allocOf(word) == 0 || prevAllocOf(word) != prevBlockAlloc {
				return st, fmt.Errorf("%w: epilogue at %#x is malformed", ErrInvariant, bp)
			}
			break
		}
		if size%8 != 0 || size < minBlockSize {
			return st, fmt.Errorf("%w: block at %#x has illegal size %d", ErrInvariant, bp, size)
		}
		if bp%dsize != 0 {
			return st, fmt.Errorf("%w: block payload at %#x is not 8-byte aligned", ErrInvariant, bp)
		}

		alloc := allocOf(word)
		prevAlloc := prevAllocOf(word)
		if prevAlloc != prevBlockAlloc {
			return st, fmt.Errorf("%w: block at %#x prev_alloc=%d disagrees with predecessor's alloc=%d", ErrInvariant, bp, prevAlloc, prevBlockAlloc)
		}

		st.TotalBlocks++
		if alloc != 0 {
			st.AllocBlocks++
			st.AllocBytes += size
		} else {
			if prevBlockAlloc == 0 {
				return st, fmt.Errorf("%w: two adjacent free blocks at or before %#x", ErrInvariant, bp)
			}
			footer := getWord(footerAddr(bp))
			if sizeOf(footer) != size || allocOf(footer) != 0 || prevAllocOf(footer) != prevAlloc {
				return st, fmt.Errorf("%w: free block at %#x has mismatched header/footer", ErrInvariant, bp)
			}
			st.FreeBlocks++
			st.FreeBytes += size
			heapFree[bp] = size
		}

		prevBlockAlloc = alloc
		bp = nextBlock(bp)
	}

	// Walk forward via succ, checking membership and reachability of
	// everything the heap walk found as free.
	seen := map[uintptr]bool{}
	var tail uintptr
	for p := a.freeList; p != 0; p = a.succLink(p) {
		if seen[p] {
			return st, fmt.Errorf("%w: free list cycle at %#x", ErrInvariant, p)
		}
		seen[p] = true
		if _, ok := heapFree[p]; !ok {
			return st, fmt.Errorf("%w: free list member at %#x is not a free block on the heap", ErrInvariant, p)
		}
		if p < a.base || p >= a.base+uintptr(a.brk) {
			return st, fmt.Errorf("%w: free list link at %#x escapes the heap region", ErrInvariant, p)
		}
		tail = p
	}
	if len(seen) != len(heapFree) {
		return st, fmt.Errorf("%w: free list has %d members, heap walk found %d free blocks", ErrInvariant, len(seen), len(heapFree))
	}

	// Walk backward via pred from the tail and confirm it is the exact
	// reverse of the forward walk (spec §8 property 3).
	for p, prev := tail, uintptr(0); p != 0; p, prev = a.predLink(p), p {
		if succ := a.succLink(p); succ != prev {
			return st, fmt.Errorf("%w: free list is not symmetric at %#x", ErrInvariant, p)
		}
	}

	return st, nil
}
