// Copyright 2024 The heapmem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapmem

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/cznic/mathutil"
)

// DefaultMaxHeap is the address space reserved for an Arena when NewArena
// is called with maxBytes <= 0. It mirrors malloc-lab's memlib.c, which
// pre-allocates a fixed MAX_HEAP and serves mem_sbrk out of it — this
// package has no host memory system to delegate to, so it reserves its
// own region up front via mmap and treats that reservation as the upper
// bound a real sbrk would eventually refuse past.
const DefaultMaxHeap = 64 << 20

var (
	osPageSize = os.Getpagesize()
	osPageMask = osPageSize - 1
)

// Arena is a single allocator instance: one contiguous, growable heap
// region plus the explicit free list threaded through its free blocks.
// Its zero value is not usable; construct one with NewArena.
//
// Arena is not goroutine-safe (spec §5): every method has exclusive
// mutation rights over the heap and free-list head for the duration of
// its call, and a caller needing concurrent access must serialize calls
// externally.
type Arena struct {
	mem      []byte
	base     uintptr
	brk      int // current logical heap length, bytes from base
	maxBytes int

	heapListp uintptr // prologue payload address
	freeList  uintptr // free-list head, 0 == empty

	policy Policy

	allocs int // # of live Malloc/Calloc allocations
	frees  int // # of Free calls
	bytes  int // total bytes ever sbrk'd from the reservation
}

// Option configures a new Arena.
type Option func(*Arena)

// WithPolicy selects the free-list search strategy (default BestFit).
func WithPolicy(p Policy) Option {
	return func(a *Arena) { a.policy = p }
}

// NewArena reserves maxBytes of address space (DefaultMaxHeap if
// maxBytes <= 0) and initializes the prologue/epilogue sentinels and the
// first CHUNKSIZE-byte free block, exactly as mm_init does in
// original_source/mm_best_fit.c. It fails with ErrOutOfMemory only if the
// underlying reservation or the first extension cannot be satisfied.
func NewArena(maxBytes int, opts ...Option) (*Arena, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxHeap
	}

	mem, err := reserve(maxBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}

	a := &Arena{
		mem:      mem,
		base:     uintptr(unsafe.Pointer(&mem[0])),
		maxBytes: maxBytes,
	}
	for _, o := range opts {
		o(a)
	}

	if err := a.init(); err != nil {
		unreserve(mem)
		return nil, err
	}
	return a, nil
}

// Close releases the reserved address space. It is not necessary to Close
// an Arena when exiting a process.
func (a *Arena) Close() error {
	if a.mem == nil {
		return nil
	}
	err := unreserve(a.mem)
	*a = Arena{}
	return err
}

// init lays out the 4-word prologue/epilogue skeleton (spec §3, §4.2),
// then extends the heap by chunkSize and seeds the free list with the
// resulting block.
func (a *Arena) init() error {
	bp, err := a.sbrk(4 * wsize)
	if err != nil {
		return ErrOutOfMemory
	}

	putWord(bp, 0)                           // alignment padding
	putWord(bp+wsize, pack(dsize, 1, 0))      // prologue header
	putWord(bp+2*wsize, pack(dsize, 1, 0))    // prologue footer
	putWord(bp+3*wsize, pack(0, 1, 1))        // epilogue header
	a.heapListp = bp + 2*wsize

	free, err := a.extendHeap(chunkSize / wsize)
	if err != nil {
		return ErrOutOfMemory
	}

	a.freeList = free
	a.setPredLink(free, 0)
	a.setSuccLink(free, 0)
	return nil
}

// sbrk grows the logical heap by n bytes within the arena's fixed
// reservation and returns the address of the old break, mirroring
// mem_sbrk's contract: "grow heap by n bytes, return old end."
func (a *Arena) sbrk(n int) (uintptr, error) {
	if a.brk+n > len(a.mem) {
		return 0, ErrOutOfMemory
	}
	old := a.base + uintptr(a.brk)
	a.brk += n
	a.bytes += n
	return old, nil
}

// extendHeap grows the heap by (an even number of) words, overwriting the
// stale epilogue with the new free block's header/footer and writing a
// fresh epilogue at the new high edge, then coalesces with the low
// neighbor (spec §4.2). The caller owns inserting the returned block into
// the free list — extendHeap never inserts it; its coalesce step only
// unlinks a free low neighbor that the new block merges with.
func (a *Arena) extendHeap(words int) (uintptr, error) {
	size := roundUpEven(words) * wsize

	bp, err := a.sbrk(size)
	if err != nil {
		return 0, err
	}

	oldEpiloguePrevAlloc := prevAllocOf(getWord(headerAddr(bp)))
	putWord(headerAddr(bp), pack(size, 0, oldEpiloguePrevAlloc))
	putWord(footerAddr(bp), pack(size, 0, oldEpiloguePrevAlloc))
	putWord(headerAddr(nextBlock(bp)), pack(0, 1, 0))

	return a.coalesce(bp), nil
}

// extendSize is the max(asize, chunkSize) computation of spec §4.4.4,
// using the teacher's own mathutil dependency for the comparison instead
// of a hand-rolled ternary.
func extendSize(asize int) int {
	return mathutil.Max(asize, chunkSize)
}

// toOffset/fromOffset implement the portable free-list link encoding
// recommended by spec §9: pred/succ fields store 4-byte offsets from the
// heap base rather than truncated absolute addresses, so the layout
// stays correct regardless of the host's pointer width. Offset 0 is the
// null sentinel — it can never collide with a real free block because
// it names the prologue, which is always allocated.
func (a *Arena) toOffset(addr uintptr) uint32 {
	if addr == 0 {
		return 0
	}
	return uint32(addr - a.base)
}

func (a *Arena) fromOffset(off uint32) uintptr {
	if off == 0 {
		return 0
	}
	return a.base + uintptr(off)
}
