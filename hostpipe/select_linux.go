//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux

package hostpipe

import (
	"time"

	"github.com/creack/goselect"
)

// fdSet is a set of file descriptors suitable for a select call
type fdSet struct {
	set goselect.FDSet
	max int
}

func newFDSet(fds ...int) *fdSet {
	s := &fdSet{max: -1}
	s.add(fds...)
	return s
}

func (s *fdSet) add(fds ...int) {
	for _, fd := range fds {
		if fd < 0 {
			continue
		}
		s.set.Set(uintptr(fd))
		if fd > s.max {
			s.max = fd
		}
	}
}

// resultSets contains the result of a selectFDs call.
type resultSets struct {
	readable goselect.FDSet
	writable goselect.FDSet
}

func (r *resultSets) isReadable(fd int) bool {
	return fd >= 0 && r.readable.IsSet(uintptr(fd))
}

func (r *resultSets) isWritable(fd int) bool {
	return fd >= 0 && r.writable.IsSet(uintptr(fd))
}

// selectFDs blocks until a descriptor in rd is readable, one in wr is
// writable or the timeout expires. A negative timeout waits forever.
func selectFDs(rd, wr *fdSet, timeout time.Duration) (resultSets, error) {
	res := resultSets{}
	max := -1
	var rp, wp *goselect.FDSet
	if rd != nil {
		res.readable = rd.set
		rp = &res.readable
		max = rd.max
	}
	if wr != nil {
		res.writable = wr.set
		wp = &res.writable
		if wr.max > max {
			max = wr.max
		}
	}
	err := goselect.Select(max+1, rp, wp, nil, timeout)
	return res, err
}
