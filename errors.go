// Copyright 2024 The heapmem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapmem

import "errors"

// ErrOutOfMemory is returned when the arena's reserved address space is
// exhausted: the host's sbrk-equivalent refused to grow the heap further.
// The arena and free list are left unchanged.
var ErrOutOfMemory = errors.New("heapmem: out of memory")

// ErrInvariant is returned by (*Arena).Check when a heap-consistency
// invariant (spec §3) does not hold. It is a testing aid, never returned
// from the hot allocate/free/realloc path.
var ErrInvariant = errors.New("heapmem: heap invariant violated")
