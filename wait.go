//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package pipe

import (
	"context"
	"errors"
)

// PollFD is one entry of a Poll call.
type PollFD struct {
	D       *Descriptor
	Events  Events
	Revents Events
}

// ChanWaiter is a Waiter backed by a channel with room for one wakeup,
// so a wakeup that races the wait is not lost.
type ChanWaiter struct {
	C chan struct{}
}

// NewChanWaiter returns a ready to use ChanWaiter.
func NewChanWaiter() *ChanWaiter {
	return &ChanWaiter{C: make(chan struct{}, 1)}
}

// Wake implements Waiter.
func (w *ChanWaiter) Wake() {
	select {
	case w.C <- struct{}{}:
	default:
	}
}

// Poll waits until at least one entry of fds is ready and returns the
// number of ready entries, with Revents filled in. A ctx deadline acts
// as the poll timeout and yields 0; cancellation yields Interrupted.
func Poll(ctx context.Context, fds []PollFD) (int, error) {
	w := NewChanWaiter()
	defer func() {
		for i := range fds {
			fds[i].D.Unpoll(w)
		}
	}()
	for {
		n := 0
		for i := range fds {
			fds[i].Revents = fds[i].D.Poll(fds[i].Events, w)
			if fds[i].Revents != 0 {
				n++
			}
		}
		if n > 0 {
			return n, nil
		}
		select {
		case <-w.C:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return 0, nil
			}
			return 0, &PipeError{code: Interrupted, causedBy: ctx.Err()}
		}
	}
}
