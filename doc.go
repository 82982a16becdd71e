// Copyright 2024 The heapmem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package heapmem implements a single-arena dynamic storage allocator on
// top of a contiguous, monotonically growable byte region.
//
// The arena is organized as a sequence of blocks, each carrying a 4-byte
// boundary-tag header encoding size and two flag bits (allocated,
// prev-allocated). Free blocks additionally carry a footer (for backward
// coalescing) and a pair of 4-byte pred/succ links threaded through their
// own payload, forming an explicit doubly-linked free list. Placement is
// best-fit with splitting; freeing a block walks the four-case
// boundary-tag coalescing protocol before relinking it.
//
// Changelog
//
// 2024-01-01 Initial best-fit, explicit-free-list arena.
//
// The package is not goroutine-safe: every exported method mutates shared
// arena state (the heap region and the free-list head) and callers must
// serialize access externally, exactly as a single-threaded sbrk-backed
// allocator would expect.
package heapmem
