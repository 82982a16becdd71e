// Copyright 2024 The heapmem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapmem

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// synthetic gives every test a small, fresh arena, mirroring spec §8's
// "assume fresh init, using a synthetic 64 KiB heap".
func synthetic(t *testing.T, opts ...Option) *Arena {
	t.Helper()
	a, err := NewArena(64<<10, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })
	return a
}

func addr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

func prevAllocBit(a *Arena, b []byte) int {
	return prevAllocOf(getWord(headerAddr(addr(b))))
}

func TestMallocZeroReturnsNil(t *testing.T) {
	a := synthetic(t)
	brk := a.brk

	b, err := a.Malloc(0)
	require.NoError(t, err)
	require.Nil(t, b)
	require.Equal(t, brk, a.brk, "allocate(0) must not mutate the heap")
}

func TestMallocAlignment(t *testing.T) {
	a := synthetic(t)
	b, err := a.Malloc(1)
	require.NoError(t, err)
	require.Equal(t, uintptr(0), addr(b)%8)
	require.Equal(t, minBlockSize-wsize, a.UsableSize(&b[0]))
}

// Seed scenario 1 (spec §8): free a just-allocated minimum-size block and
// expect it to coalesce straight back into the single 4096-byte free
// block it came from.
func TestSeedScenario1(t *testing.T) {
	a := synthetic(t)

	b, err := a.Malloc(1)
	require.NoError(t, err)
	require.Equal(t, uintptr(0), addr(b)%8)

	require.NoError(t, a.Free(b))

	require.NotZero(t, a.freeList)
	require.Equal(t, addr(b), a.freeList)
	require.Zero(t, a.succLink(a.freeList))
	require.Equal(t, chunkSize, sizeOf(getWord(headerAddr(a.freeList))))

	st, err := a.Check()
	require.NoError(t, err)
	require.Equal(t, 1, st.FreeBlocks)
}

// Seed scenario 2: best-fit on a post-split remainder returns the just
// vacated address.
func TestSeedScenario2(t *testing.T) {
	a := synthetic(t)

	x, err := a.Malloc(2040)
	require.NoError(t, err)
	_, err = a.Malloc(2040)
	require.NoError(t, err)

	require.NoError(t, a.Free(x))

	c, err := a.Malloc(8)
	require.NoError(t, err)
	require.Equal(t, addr(x), addr(c))

	_, err = a.Check()
	require.NoError(t, err)
}

// Seed scenario 3: freeing two allocated neighbors (in LIFO call order,
// not address order) coalesces them, and the surviving allocation's
// prev_alloc bit reflects the newly-freed neighbor.
func TestSeedScenario3(t *testing.T) {
	a := synthetic(t)

	x, err := a.Malloc(100)
	require.NoError(t, err)
	y, err := a.Malloc(100)
	require.NoError(t, err)
	c, err := a.Malloc(100)
	require.NoError(t, err)

	require.NoError(t, a.Free(y))
	require.Equal(t, 0, prevAllocBit(a, c))

	require.NoError(t, a.Free(x))

	st, err := a.Check()
	require.NoError(t, err)

	merged := addr(x)
	require.Equal(t, adjustedSize(100)*2, sizeOf(getWord(headerAddr(merged))))
	require.Equal(t, 1, st.FreeBlocks)
}

// Seed scenario 4: Case 4 (both neighbors free) produces one block
// spanning everything freed so far.
func TestSeedScenario4(t *testing.T) {
	a := synthetic(t)

	x, err := a.Malloc(100)
	require.NoError(t, err)
	y, err := a.Malloc(100)
	require.NoError(t, err)
	z, err := a.Malloc(100)
	require.NoError(t, err)

	require.NoError(t, a.Free(x))
	require.NoError(t, a.Free(z))
	require.NoError(t, a.Free(y))

	st, err := a.Check()
	require.NoError(t, err)
	require.Equal(t, 1, st.FreeBlocks)
	require.Equal(t, chunkSize, sizeOf(getWord(headerAddr(addr(x)))))
}

// Seed scenario 5: realloc preserves the first min(old, new) bytes.
func TestSeedScenario5(t *testing.T) {
	a := synthetic(t)

	p, err := a.Malloc(500)
	require.NoError(t, err)
	for i := range p {
		p[i] = 0xAB
	}

	q, err := a.Realloc(p, 1000)
	require.NoError(t, err)
	require.Len(t, q, 1000)
	for i := 0; i < 500; i++ {
		require.Equal(t, byte(0xAB), q[i])
	}

	_, err = a.Check()
	require.NoError(t, err)
}

// Seed scenario 6: best-fit picks the tightest of several candidates,
// never an exact-but-larger one when a closer slack exists.
func TestSeedScenario6BestFit(t *testing.T) {
	a := synthetic(t)

	x1, err := a.Malloc(24) // adjustedSize 32
	require.NoError(t, err)
	require.Equal(t, 32, sizeOf(getWord(headerAddr(addr(x1)))))
	_, err = a.Malloc(8) // separator, stays allocated
	require.NoError(t, err)

	x3, err := a.Malloc(44) // adjustedSize 48
	require.NoError(t, err)
	require.Equal(t, 48, sizeOf(getWord(headerAddr(addr(x3)))))
	_, err = a.Malloc(8) // separator
	require.NoError(t, err)

	x5, err := a.Malloc(60) // adjustedSize 64
	require.NoError(t, err)
	require.Equal(t, 64, sizeOf(getWord(headerAddr(addr(x5)))))
	_, err = a.Malloc(8) // separator, prevents the tail from coalescing in
	require.NoError(t, err)

	require.NoError(t, a.Free(x1))
	require.NoError(t, a.Free(x3))
	require.NoError(t, a.Free(x5))

	got, err := a.Malloc(20) // adjustedSize 24, best fit is the 32-byte block
	require.NoError(t, err)
	require.Equal(t, addr(x1), addr(got))
	require.NoError(t, a.Free(got))

	got, err = a.Malloc(36) // adjustedSize 40, best fit is the 48-byte block
	require.NoError(t, err)
	require.Equal(t, addr(x3), addr(got))
}

func TestFirstFitReturnsFirstCandidateNotTightest(t *testing.T) {
	a := synthetic(t, WithPolicy(FirstFit))

	x1, err := a.Malloc(24) // 32 bytes, freed first -> head of the LIFO free list last
	require.NoError(t, err)
	_, err = a.Malloc(8)
	require.NoError(t, err)
	x3, err := a.Malloc(44) // 48 bytes
	require.NoError(t, err)
	_, err = a.Malloc(8)
	require.NoError(t, err)

	require.NoError(t, a.Free(x1)) // list: [x1]
	require.NoError(t, a.Free(x3)) // list: [x3, x1] (LIFO)

	// A request that fits both: first-fit must return the list head (x3),
	// not the tighter-fitting x1 that best-fit would pick.
	got, err := a.Malloc(20)
	require.NoError(t, err)
	require.Equal(t, addr(x3), addr(got))
}

func TestSplitThreshold(t *testing.T) {
	a := synthetic(t)

	// n=4076 adjusts to exactly 4080 bytes, 16 bytes short of the initial
	// 4096-byte free block: diff == 16 is the split/no-split threshold,
	// so this exercises the split branch at its tightest legal margin.
	x, err := a.Malloc(4076)
	require.NoError(t, err)
	require.Equal(t, 4080, sizeOf(getWord(headerAddr(addr(x)))))

	require.NotZero(t, a.freeList)
	require.Equal(t, minBlockSize, sizeOf(getWord(headerAddr(a.freeList))))

	_, err = a.Check()
	require.NoError(t, err)
}

func TestExtendBeyondChunksize(t *testing.T) {
	a := synthetic(t)

	big := chunkSize * 2
	b, err := a.Malloc(big)
	require.NoError(t, err)
	require.GreaterOrEqual(t, sizeOf(getWord(headerAddr(addr(b)))), big)

	_, err = a.Check()
	require.NoError(t, err)
}

func TestOutOfMemory(t *testing.T) {
	a, err := NewArena(8 << 10)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Malloc(1 << 20)
	require.ErrorIs(t, err, ErrOutOfMemory)
}

func TestCallocZeroes(t *testing.T) {
	a := synthetic(t)
	b, err := a.Malloc(64)
	require.NoError(t, err)
	for i := range b {
		b[i] = 0xFF
	}
	require.NoError(t, a.Free(b))

	c, err := a.Calloc(64)
	require.NoError(t, err)
	for _, v := range c {
		require.Zero(t, v)
	}
}

func TestUnsafeRoundTrip(t *testing.T) {
	a := synthetic(t)

	p, err := a.UnsafeMalloc(128)
	require.NoError(t, err)
	require.NotNil(t, p)

	b := (*[128]byte)(p)
	for i := range b {
		b[i] = byte(i)
	}

	q, err := a.UnsafeRealloc(p, 256)
	require.NoError(t, err)
	bq := (*[256]byte)(q)
	for i := 0; i < 128; i++ {
		require.Equal(t, byte(i), bq[i])
	}

	a.UnsafeFree(q)
	_, err = a.Check()
	require.NoError(t, err)
}

func TestReallocNilIsMalloc(t *testing.T) {
	a := synthetic(t)
	b, err := a.Realloc(nil, 32)
	require.NoError(t, err)
	require.Len(t, b, 32)
}

func TestReallocZeroIsFree(t *testing.T) {
	a := synthetic(t)
	b, err := a.Malloc(32)
	require.NoError(t, err)

	r, err := a.Realloc(b, 0)
	require.NoError(t, err)
	require.Nil(t, r)

	_, err = a.Check()
	require.NoError(t, err)
}

func TestRandomizedSequenceStaysConsistent(t *testing.T) {
	a := synthetic(t)

	var live [][]byte
	rng := uint32(0x4F6CDD1D)
	next := func(n uint32) uint32 {
		rng ^= rng << 13
		rng ^= rng >> 17
		rng ^= rng << 5
		return rng % n
	}

	for i := 0; i < 500; i++ {
		if len(live) > 0 && next(3) == 0 {
			idx := int(next(uint32(len(live))))
			require.NoError(t, a.Free(live[idx]))
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
			continue
		}

		size := int(next(512)) + 1
		b, err := a.Malloc(size)
		if err != nil {
			require.ErrorIs(t, err, ErrOutOfMemory)
			continue
		}
		live = append(live, b)
	}

	_, err := a.Check()
	require.NoError(t, err)
}
