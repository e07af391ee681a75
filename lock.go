//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package pipe

import "context"

// lockLocked takes the advisory lock of e, sleeping while another
// goroutine holds it. The lock is not reentrant.
func (e *Endpoint) lockLocked(ctx context.Context) error {
	for e.state&stateLocked != 0 {
		e.state |= stateLockWanted
		if err := e.sleepLocked(ctx); err != nil {
			return err
		}
	}
	e.state |= stateLocked
	return nil
}

// unlockLocked drops the advisory lock and wakes the goroutines waiting
// for it.
func (e *Endpoint) unlockLocked() {
	e.state &^= stateLocked
	if e.state&stateLockWanted != 0 {
		e.state &^= stateLockWanted
		e.wakeupLocked()
	}
}
