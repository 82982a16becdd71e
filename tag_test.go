// Copyright 2024 The heapmem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapmem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPack(t *testing.T) {
	w := pack(32, 1, 0)
	require.Equal(t, 32, sizeOf(w))
	require.Equal(t, 1, allocOf(w))
	require.Equal(t, 0, prevAllocOf(w))

	w = pack(16, 0, 1)
	require.Equal(t, 16, sizeOf(w))
	require.Equal(t, 0, allocOf(w))
	require.Equal(t, 1, prevAllocOf(w))
}

func TestPackRejectsMisalignedSize(t *testing.T) {
	require.Panics(t, func() { pack(17, 1, 0) })
}

func TestAdjustedSize(t *testing.T) {
	cases := []struct{ n, want int }{
		{0, minBlockSize},
		{1, minBlockSize},
		{4, minBlockSize},
		{12, minBlockSize},
		{13, 24},
		{20, 24},
		{28, 32},
	}
	for _, c := range cases {
		require.Equal(t, c.want, adjustedSize(c.n), "n=%d", c.n)
	}
}

func TestRoundUpEven(t *testing.T) {
	require.Equal(t, 4, roundUpEven(4))
	require.Equal(t, 6, roundUpEven(5))
}
