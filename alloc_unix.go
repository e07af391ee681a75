//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux || darwin || freebsd || openbsd || netbsd || dragonfly

package pipe

import "golang.org/x/sys/unix"

type mmapAllocator struct{}

// MmapAllocator maps pageable anonymous memory for every buffer.
func MmapAllocator() Allocator {
	return mmapAllocator{}
}

func (mmapAllocator) Alloc(size int) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func (mmapAllocator) Free(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Munmap(b)
}
