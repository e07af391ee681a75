//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package pipe

import "fmt"

// Allocator provides zero-filled storage for pipe buffers.
type Allocator interface {
	Alloc(size int) ([]byte, error)
	Free(b []byte) error
}

type heapAllocator struct{}

// HeapAllocator returns storage from the Go heap.
func HeapAllocator() Allocator {
	return heapAllocator{}
}

func (heapAllocator) Alloc(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func (heapAllocator) Free([]byte) error {
	return nil
}

func newAllocator(name string) (Allocator, error) {
	switch name {
	case AllocatorHeap, "":
		return HeapAllocator(), nil
	case AllocatorMmap:
		return MmapAllocator(), nil
	}
	return nil, fmt.Errorf("unknown allocator %q", name)
}
