// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux || darwin

package shadow

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// newPage backs a shadow page with an anonymous mmap rather than a Go
// slice. The tag space can cover gigabytes of sparse guest address space;
// mmap lets the kernel lazily fault in the pages we actually touch instead
// of Go's allocator committing and zeroing [pageSize]uint32 up front for
// every page we ever look at.
func newPage() *page {
	b, err := unix.Mmap(-1, 0, pageSize*4, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		// Fall back to a heap allocation; losing the mmap optimization is
		// not a correctness problem.
		arr := new([pageSize]uint32)
		return &page{bytes: arr}
	}
	arr := (*[pageSize]uint32)(unsafe.Pointer(&b[0]))
	return &page{
		bytes: arr,
		alloc: func() { _ = unix.Munmap(b) },
	}
}
