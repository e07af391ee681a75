//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package pipe

import "go.uber.org/zap"

// Close tears the endpoint down. It waits, without a way to be
// interrupted, for the reads and writes in flight on its buffer to
// notice EOF and leave, then marks the peer EOF and detaches from it.
// Closing an already closed endpoint does nothing.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	e.state |= stateEOF
	e.selwakeupLocked()
	for e.busy > 0 {
		e.wakeupLocked()
		e.state |= stateCloseWanted
		e.sleepUninterruptibleLocked()
	}

	if p := e.peer; p != nil {
		p.state |= stateEOF
		p.selwakeupLocked()
		p.wakeupLocked()
		p.peer = nil
		e.peer = nil
	}

	e.sub.lim.Free(e.buf)
	e.sub.log.Debug("pipe endpoint closed", zap.Stringer("pipe", e.id), zap.Int("side", e.side))
	return nil
}
