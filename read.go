//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package pipe

import "context"

// Read drains the buffer of e into p.
//
// It returns as soon as some bytes have been read. With an empty buffer
// it returns (0, nil) once the peer is gone, fails with WouldBlock for a
// non-blocking descriptor, and otherwise sleeps until a writer or a
// close wakes it. Cancelling ctx aborts the sleep with Interrupted.
func (e *Endpoint) Read(ctx context.Context, p []byte, fflag Flags) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, &PipeError{code: BadDescriptor}
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := e.lockLocked(ctx); err != nil {
		return 0, err
	}
	e.busy++

	nread, err := e.readLocked(ctx, p, fflag)
	if err == nil {
		e.atime = e.sub.now()
	}

	if !e.unbusyLocked() && e.state&stateWriteWanted != 0 && e.buf.free() >= PipeBuf {
		e.state &^= stateWriteWanted
		e.wakeupLocked()
	}
	if e.buf.free() >= PipeBuf {
		e.selwakeupLocked()
	}
	return nread, err
}

// readLocked runs with the advisory lock held and always returns with
// it released.
func (e *Endpoint) readLocked(ctx context.Context, p []byte, fflag Flags) (int, error) {
	var nread int
	for nread < len(p) {
		b := e.buf
		if b.cnt > 0 {
			size := min(b.cnt, len(b.storage)-b.out, len(p)-nread)
			src := b.storage[b.out : b.out+size]

			// the advisory lock keeps writers and resizes away from storage
			e.mu.Unlock()
			copy(p[nread:], src)
			e.mu.Lock()

			b.out += size
			if b.out >= len(b.storage) {
				b.out = 0
			}
			b.cnt -= size
			if b.cnt == 0 {
				b.in, b.out = 0, 0
			}
			nread += size
			continue
		}

		if e.state&stateEOF != 0 {
			break
		}
		if e.state&stateWriteWanted != 0 {
			e.state &^= stateWriteWanted
			e.wakeupLocked()
		}
		if nread > 0 {
			break
		}
		if fflag&ONonblock != 0 {
			e.unlockLocked()
			return 0, &PipeError{code: WouldBlock}
		}

		e.unlockLocked()
		e.state |= stateReadWanted
		err := e.sleepLocked(ctx)
		if err == nil {
			err = e.lockLocked(ctx)
		}
		if err != nil {
			return 0, err
		}
	}
	e.unlockLocked()
	return nread, nil
}
