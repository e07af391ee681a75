//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build !linux && !darwin && !freebsd && !openbsd && !netbsd && !dragonfly

package pipe

// MmapAllocator falls back to the heap where anonymous mappings are
// not available.
func MmapAllocator() Allocator {
	return HeapAllocator()
}
