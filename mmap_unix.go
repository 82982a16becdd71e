// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

//go:build darwin || dragonfly || freebsd || linux || openbsd || solaris || netbsd

// Modifications (c) 2024 The heapmem Authors.

package heapmem

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// reserve maps a fixed-size anonymous, private region that will back the
// arena's entire lifetime: the arena's logical heap only ever grows within
// it (see sbrk in arena.go), it is never remapped or grown at the OS level.
func reserve(size int) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}

	if uintptr(unsafe.Pointer(&b[0]))&uintptr(osPageMask) != 0 {
		panic("internal error: mmap returned a non page aligned address")
	}

	return b, nil
}

func unreserve(b []byte) error {
	return unix.Munmap(b)
}
