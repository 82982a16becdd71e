// Copyright 2024 The heapmem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapmem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFreeListLIFOOrder(t *testing.T) {
	a := synthetic(t)

	x, err := a.Malloc(24)
	require.NoError(t, err)
	_, err = a.Malloc(8)
	require.NoError(t, err)
	y, err := a.Malloc(24)
	require.NoError(t, err)
	_, err = a.Malloc(8)
	require.NoError(t, err)

	require.NoError(t, a.Free(x))
	require.NoError(t, a.Free(y))

	// LIFO: the most recently freed block (y) is the list head.
	require.Equal(t, addr(y), a.freeList)
	require.Equal(t, addr(x), a.succLink(a.freeList))
	// Behind x sits the split remainder of the initial chunk, just past
	// y (32 bytes) and the second separator (16 bytes); it ends the list.
	require.Equal(t, addr(y)+48, a.succLink(addr(x)))
	require.Zero(t, a.succLink(a.succLink(addr(x))))

	// The pred links run the other way.
	require.Equal(t, addr(y), a.predLink(addr(x)))
	require.Zero(t, a.predLink(addr(y)))
}

func TestPlaceSplitPreservesListPosition(t *testing.T) {
	a := synthetic(t)

	// A single free block (4096 bytes) is split by the first allocation;
	// the remainder must take over the head of the (empty) list rather
	// than being appended anywhere else.
	x, err := a.Malloc(24)
	require.NoError(t, err)
	_ = x

	require.NotZero(t, a.freeList)
	require.Equal(t, chunkSize-32, sizeOf(getWord(headerAddr(a.freeList))))
	require.Zero(t, a.predLink(a.freeList))
	require.Zero(t, a.succLink(a.freeList))
}
