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

// trace gates verbose per-call debug logging to stderr, exactly as the
// teacher's Allocator does. Flip it and rebuild to watch every call's
// arguments and result stream past while chasing a fragmentation bug.
const trace = false

// Malloc allocates size bytes and returns a byte slice over the payload.
// The memory is not initialized. Malloc returns (nil, nil) for size == 0
// and (nil, ErrOutOfMemory) if the arena's reservation is exhausted.
//
// It's ok to reslice the returned slice, but the result of appending to
// it cannot be passed to Free or Realloc, since append may hand back a
// slice over a different backing array.
func (a *Arena) Malloc(size int) (r []byte, err error) {
	if trace {
		defer func() {
			var p *byte
			if len(r) != 0 {
				p = &r[0]
			}
			fmt.Fprintf(os.Stderr, "Malloc(%#x) %p, %v\n", size, p, err)
		}()
	}

	bp, err := a.malloc(size)
	if err != nil || bp == 0 {
		return nil, err
	}
	return a.bytesAt(bp, size), nil
}

// Calloc is like Malloc except the allocated memory is zeroed.
func (a *Arena) Calloc(size int) (r []byte, err error) {
	if trace {
		defer func() {
			var p *byte
			if len(r) != 0 {
				p = &r[0]
			}
			fmt.Fprintf(os.Stderr, "Calloc(%#x) %p, %v\n", size, p, err)
		}()
	}

	b, err := a.Malloc(size)
	if err != nil {
		return nil, err
	}
	for i := range b {
		b[i] = 0
	}
	return b, nil
}

// Free deallocates memory acquired from Malloc, Calloc or Realloc.
// Passing a pointer not obtained that way, or freeing the same payload
// twice, is undefined behavior (spec §7) — it is not detected.
func (a *Arena) Free(b []byte) (err error) {
	if trace {
		var p *byte
		if len(b) != 0 {
			p = &b[0]
		}
		defer func() {
			fmt.Fprintf(os.Stderr, "Free(%#x) %v\n", p, err)
		}()
	}

	b = b[:cap(b)]
	if len(b) == 0 {
		return nil
	}
	a.free(uintptr(unsafe.Pointer(&b[0])))
	return nil
}

// Realloc changes the size of the allocation backing b, per spec §4.4.7:
// allocate a new block, copy min(old, new) bytes, free the old block.
// realloc(nil, n) is equivalent to Malloc(n); realloc(b, 0) is equivalent
// to Free(b) followed by returning nil. If the new allocation fails, the
// old allocation is left untouched and (nil, ErrOutOfMemory) is returned.
func (a *Arena) Realloc(b []byte, size int) (r []byte, err error) {
	if trace {
		var p0 *byte
		if len(b) != 0 {
			p0 = &b[0]
		}
		defer func() {
			var p *byte
			if len(r) != 0 {
				p = &r[0]
			}
			fmt.Fprintf(os.Stderr, "Realloc(%p, %#x) %p, %v\n", p0, size, p, err)
		}()
	}

	switch {
	case len(b) == 0:
		return a.Malloc(size)
	case size == 0:
		return nil, a.Free(b)
	}

	r, err = a.Malloc(size)
	if err != nil {
		return nil, err
	}
	copy(r, b)
	return r, a.Free(b)
}

// UsableSize reports the payload capacity of a live allocation returned
// from Malloc, Calloc or Realloc — which may be larger than originally
// requested, since blocks round up to the alignment quantum.
func (a *Arena) UsableSize(p *byte) int {
	if p == nil {
		return 0
	}
	bp := uintptr(unsafe.Pointer(p))
	return sizeOf(getWord(headerAddr(bp))) - wsize
}

// UnsafeMalloc is like Malloc except it returns an unsafe.Pointer.
func (a *Arena) UnsafeMalloc(size int) (r unsafe.Pointer, err error) {
	if trace {
		defer func() {
			fmt.Fprintf(os.Stderr, "UnsafeMalloc(%#x) %p, %v\n", size, r, err)
		}()
	}
	bp, err := a.malloc(size)
	if err != nil || bp == 0 {
		return nil, err
	}
	return unsafe.Pointer(bp), nil
}

// UnsafeCalloc is like Calloc except it returns an unsafe.Pointer.
func (a *Arena) UnsafeCalloc(size int) (r unsafe.Pointer, err error) {
	if trace {
		defer func() {
			fmt.Fprintf(os.Stderr, "UnsafeCalloc(%#x) %p, %v\n", size, r, err)
		}()
	}
	r, err = a.UnsafeMalloc(size)
	if r == nil || err != nil {
		return nil, err
	}
	b := a.bytesAt(uintptr(r), size)
	for i := range b {
		b[i] = 0
	}
	return r, nil
}

// UnsafeFree is like Free except its argument is an unsafe.Pointer
// acquired from UnsafeMalloc, UnsafeCalloc or UnsafeRealloc.
func (a *Arena) UnsafeFree(p unsafe.Pointer) {
	if trace {
		defer func() {
			fmt.Fprintf(os.Stderr, "UnsafeFree(%p)\n", p)
		}()
	}
	if p == nil {
		return
	}
	a.free(uintptr(p))
}

// UnsafeRealloc is like Realloc except its first argument and its result
// are unsafe.Pointer, acquired from / suitable for UnsafeMalloc,
// UnsafeCalloc or UnsafeRealloc.
func (a *Arena) UnsafeRealloc(p unsafe.Pointer, size int) (r unsafe.Pointer, err error) {
	if trace {
		defer func() {
			fmt.Fprintf(os.Stderr, "UnsafeRealloc(%p, %#x) %p, %v\n", p, size, r, err)
		}()
	}

	switch {
	case p == nil:
		return a.UnsafeMalloc(size)
	case size == 0:
		a.UnsafeFree(p)
		return nil, nil
	}

	old := sizeOf(getWord(headerAddr(uintptr(p)))) - wsize
	r, err = a.UnsafeMalloc(size)
	if err != nil {
		return nil, err
	}

	n := mathutil.Min(old, size)
	copy(a.bytesAt(uintptr(r), n), a.bytesAt(uintptr(p), n))
	a.UnsafeFree(p)
	return r, nil
}

// bytesAt wraps the n bytes at the in-process address bp as a []byte
// without copying: bp points into the arena's mmap'd backing array,
// which outlives the slice and is never moved, so this is safe for as
// long as the caller respects ownership (i.e. until the next Free).
func (a *Arena) bytesAt(bp uintptr, n int) []byte {
	off := int(bp - a.base)
	return a.mem[off : off+n : off+n]
}

// malloc is the shared implementation behind Malloc and UnsafeMalloc
// (spec §4.4.4). It returns (0, nil) for a zero-size request.
func (a *Arena) malloc(size int) (uintptr, error) {
	if size == 0 {
		return 0, nil
	}
	if size < 0 {
		panic("heapmem: negative malloc size")
	}

	asize := adjustedSize(size)

	if bp := a.findFit(asize); bp != 0 {
		a.place(bp, asize)
		a.allocs++
		return bp, nil
	}

	extend := extendSize(asize)
	free, err := a.extendHeap(extend / wsize)
	if err != nil {
		return 0, ErrOutOfMemory
	}

	// extendHeap's coalesce may have merged the new block with an
	// already-free tail block that was a list member; coalesce always
	// unlinks anything it merges with before returning, so `free` here
	// is guaranteed not to already be on the free list (spec §9,
	// resolution #3) and this LIFO insert can never double-link it.
	a.insertLIFO(free)
	a.place(free, asize)
	a.allocs++
	return free, nil
}

// free is the shared implementation behind Free and UnsafeFree.
func (a *Arena) free(bp uintptr) {
	hdr := headerAddr(bp)
	word := getWord(hdr)
	size := sizeOf(word)
	prevAlloc := prevAllocOf(word)

	putWord(hdr, pack(size, 0, prevAlloc))
	putWord(footerAddr(bp), pack(size, 0, prevAlloc))

	merged := a.coalesce(bp)
	a.insertLIFO(merged)
	a.allocs--
	a.frees++
}
