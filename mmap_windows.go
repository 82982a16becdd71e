// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

// Modifications (c) 2024 The heapmem Authors.

package heapmem

import (
	"errors"
	"os"
	"reflect"
	"unsafe"

	"golang.org/x/sys/windows"
)

var pageSize = os.Getpagesize()

// mmap on Windows is a two-step process: CreateFileMapping gets us a
// handle, MapViewOfFile gets us an actual pointer into memory.
//
// handleMap lets unreserve recover the handle from the address reserve
// handed back, since windows.UnmapViewOfFile only takes the address.
var handleMap = map[uintptr]windows.Handle{}

func reserve(size int) ([]byte, error) {
	flProtect := uint32(windows.PAGE_READWRITE)
	dwDesiredAccess := uint32(windows.FILE_MAP_WRITE)

	maxSizeHigh := uint32(int64(size) >> 32)
	maxSizeLow := uint32(int64(size) & 0xFFFFFFFF)
	h, err := windows.CreateFileMapping(windows.InvalidHandle, nil, flProtect, maxSizeHigh, maxSizeLow, nil)
	if h == 0 {
		return nil, os.NewSyscallError("CreateFileMapping", err)
	}

	addr, err := windows.MapViewOfFile(h, dwDesiredAccess, 0, 0, uintptr(size))
	if addr == 0 {
		return nil, os.NewSyscallError("MapViewOfFile", err)
	}

	if addr&uintptr(osPageMask) != 0 {
		panic("internal error: mmap returned a non page aligned address")
	}

	handleMap[addr] = h
	var b []byte
	sh := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	sh.Data = addr
	sh.Len = size
	sh.Cap = size
	return b, nil
}

func unreserve(b []byte) error {
	if len(b) == 0 {
		return nil
	}

	addr := uintptr(unsafe.Pointer(&b[0]))
	if err := windows.UnmapViewOfFile(addr); err != nil {
		return err
	}

	handle, ok := handleMap[addr]
	if !ok {
		return errors.New("heapmem: unknown base address")
	}
	delete(handleMap, addr)

	return os.NewSyscallError("CloseHandle", windows.CloseHandle(handle))
}
