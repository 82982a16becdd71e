// Copyright 2024 The heapmem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapmem

// Free-block payload layout (spec §3): pred at offset 0, succ at offset 4
// from the block's payload address, both stored as heap-base-relative
// offsets (see toOffset/fromOffset in arena.go).

func (a *Arena) predLink(bp uintptr) uintptr { return a.fromOffset(getWord(bp)) }
func (a *Arena) succLink(bp uintptr) uintptr { return a.fromOffset(getWord(bp + wsize)) }

func (a *Arena) setPredLink(bp, v uintptr) { putWord(bp, a.toOffset(v)) }
func (a *Arena) setSuccLink(bp, v uintptr) { putWord(bp+wsize, a.toOffset(v)) }

// insertLIFO prepends bp to the free list, the policy used by Free and by
// the extend-heap path of Malloc when no existing block fits (spec §4.3).
func (a *Arena) insertLIFO(bp uintptr) {
	old := a.freeList
	if old != 0 {
		a.setPredLink(old, bp)
	}
	a.setSuccLink(bp, old)
	a.setPredLink(bp, 0)
	a.freeList = bp
}

// unlink removes bp from the free list, patching the head if bp had no
// predecessor. bp's own link fields are left untouched — callers are
// about to either overwrite them with boundary tags or relink bp
// elsewhere.
func (a *Arena) unlink(bp uintptr) {
	pred := a.predLink(bp)
	succ := a.succLink(bp)
	if pred != 0 {
		a.setSuccLink(pred, succ)
	} else {
		a.freeList = succ
	}
	if succ != 0 {
		a.setPredLink(succ, pred)
	}
}

// replace splices next into the free list in place of the block that used
// to sit at pred/succ's position, without disturbing search order. This
// is the "address-preserving replacement" policy place uses when a split
// carves an allocated prefix off a free block (spec §4.3): the remainder
// inherits the original block's slot instead of being pushed to the head.
func (a *Arena) replace(next, pred, succ uintptr) {
	a.setPredLink(next, pred)
	a.setSuccLink(next, succ)
	if pred != 0 {
		a.setSuccLink(pred, next)
	} else {
		a.freeList = next
	}
	if succ != 0 {
		a.setPredLink(succ, next)
	}
}
