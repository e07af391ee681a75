//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package pipe

import "context"

// Write copies p into the buffer of the peer of e.
//
// A write of at most PipeBuf bytes is transferred in one piece or not
// at all. Larger writes may be split across several rounds and
// interleave with other writers. If some bytes were transferred the
// count is returned without error, whatever stopped the transfer.
func (e *Endpoint) Write(ctx context.Context, p []byte, fflag Flags) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, &PipeError{code: BadDescriptor}
	}
	w := e.peer
	if w == nil || w.state&stateEOF != 0 {
		return 0, &PipeError{code: BrokenPipe}
	}
	w.busy++

	if len(p) > w.buf.Cap() && w.buf.Cap() <= e.sub.cfg.SmallSize && w.buf.cnt == 0 {
		if err := w.lockLocked(ctx); err != nil {
			w.unbusyLocked()
			return 0, err
		}
		// the buffer may have been filled while we slept on the lock
		if w.buf.cnt == 0 && w.state&stateEOF == 0 {
			w.sub.lim.Promote(w.buf, len(p))
		}
		w.unlockLocked()
	}

	nwritten, err := w.writeLocked(ctx, p, fflag)
	if nwritten > 0 {
		err = nil
	}

	if !w.unbusyLocked() && w.buf.cnt > 0 && w.state&stateReadWanted != 0 {
		w.state &^= stateReadWanted
		w.wakeupLocked()
	}
	if err == nil {
		w.mtime = e.sub.now()
	}
	if w.buf.cnt > 0 {
		w.selwakeupLocked()
	}
	return nwritten, err
}

// unbusyLocked drops one in-flight operation and wakes a pending close
// when it was the last. It reports whether it woke the close.
func (e *Endpoint) unbusyLocked() bool {
	e.busy--
	if e.busy == 0 && e.state&stateCloseWanted != 0 {
		e.state &^= stateCloseWanted
		e.wakeupLocked()
		return true
	}
	return false
}

// writeLocked fills the buffer of w, the receiving endpoint. It is
// called with w.busy raised and the advisory lock not held.
func (w *Endpoint) writeLocked(ctx context.Context, p []byte, fflag Flags) (int, error) {
	orig := len(p)
	var nwritten int
	for nwritten < orig {
		if w.state&stateEOF != 0 {
			return nwritten, &PipeError{code: BrokenPipe}
		}

		space := w.buf.free()
		if space < orig-nwritten && orig <= PipeBuf {
			space = 0
		}

		if space > 0 {
			if err := w.lockLocked(ctx); err != nil {
				return nwritten, err
			}
			// space may have shrunk while the lock was contended
			if space > w.buf.free() {
				w.unlockLocked()
				continue
			}

			b := w.buf
			size := min(space, orig-nwritten)
			storage := b.storage
			in := b.in
			segsize := min(len(storage)-in, size)

			w.mu.Unlock()
			copy(storage[in:in+segsize], p[nwritten:nwritten+segsize])
			if segsize < size {
				copy(storage[:size-segsize], p[nwritten+segsize:nwritten+size])
			}
			w.mu.Lock()

			b.in += size
			if b.in >= len(storage) {
				b.in -= len(storage)
			}
			b.cnt += size
			nwritten += size
			w.unlockLocked()
			continue
		}

		if w.state&stateReadWanted != 0 {
			w.state &^= stateReadWanted
			w.wakeupLocked()
		}
		if fflag&ONonblock != 0 {
			return nwritten, &PipeError{code: WouldBlock}
		}
		w.state |= stateWriteWanted
		if err := w.sleepLocked(ctx); err != nil {
			return nwritten, err
		}
		if w.state&stateEOF != 0 {
			return nwritten, &PipeError{code: BrokenPipe}
		}
	}
	return nwritten, nil
}
