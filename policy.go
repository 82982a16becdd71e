// Copyright 2024 The heapmem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapmem

// Policy selects the free-list search strategy used by findFit. The
// source this package is grounded on carries three variants sharing one
// skeleton (spec §1); BestFit is the refined variant this package
// implements in full, FirstFit is the reduced explicit-list variant kept
// as a runtime-selectable alternative (original_source/mm_explicit_w_footer.c).
type Policy int

const (
	// BestFit scans the whole free list and returns the block whose
	// leftover slack, after subtracting the request, is smallest. Ties
	// go to the first block encountered. O(n) in the free-list length.
	BestFit Policy = iota

	// FirstFit returns the first free block large enough to satisfy the
	// request, without considering slack. Cheaper per call, worse
	// fragmentation over time than BestFit.
	FirstFit
)

func (p Policy) String() string {
	switch p {
	case BestFit:
		return "best-fit"
	case FirstFit:
		return "first-fit"
	default:
		return "unknown"
	}
}
