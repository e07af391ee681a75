//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package pipe

// Events is a set of readiness conditions.
type Events uint16

const (
	PollIn Events = 1 << iota
	PollRdNorm
	PollOut
	PollWrNorm
	PollHup
	PollNval
)

const (
	pollRead  = PollIn | PollRdNorm
	pollWrite = PollOut | PollWrNorm
)

// Waiter is woken when a polled endpoint may have become ready. Wake is
// called with pipe state locked and must not block. Waiters are compared
// with ==, so a waiter polling again is recorded only once.
type Waiter interface {
	Wake()
}

// Filter selects what a Knote watches.
type Filter int

const (
	// FilterRead fires when there is data to read or the pipe hung up
	FilterRead Filter = iota
	// FilterWrite fires when PipeBuf bytes can be written or the pipe hung up
	FilterWrite
)

// Knote is a persistent readiness registration, the kqueue counterpart
// of a poll Waiter.
type Knote struct {
	Filter Filter
	// Notify, if set, is called every time the note fires. It runs with
	// pipe state locked and must not block.
	Notify func(kn *Knote)

	// Data is the byte count of the last evaluation: bytes readable for
	// FilterRead, bytes writable for FilterWrite.
	Data int
	// EOF is set once the pipe hung up.
	EOF bool

	ep *Endpoint
}

// Poll reports which of events are ready. Hang-up and writability are
// mutually exclusive. When nothing is ready w is recorded on the
// endpoints whose state change could make it ready.
func (e *Endpoint) Poll(events Events, w Waiter) Events {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return PollNval
	}
	var revents Events
	wp := e.peer
	if events&pollRead != 0 {
		if e.buf.cnt > 0 || e.state&stateEOF != 0 {
			revents |= events & pollRead
		}
	}
	if e.state&stateEOF != 0 || wp == nil || wp.state&stateEOF != 0 {
		revents |= PollHup
	} else if events&pollWrite != 0 {
		if wp.buf.free() >= PipeBuf {
			revents |= events & pollWrite
		}
	}

	if revents == 0 && w != nil {
		if events&pollRead != 0 {
			e.recordLocked(w)
		}
		if events&pollWrite != 0 {
			wp.recordLocked(w)
		}
	}
	return revents
}

// recordLocked queues w once, however often it polls.
func (e *Endpoint) recordLocked(w Waiter) {
	e.state |= stateSelectWait
	for i := 0; i < e.waiters.Length(); i++ {
		if e.waiters.Get(i) == w {
			return
		}
	}
	e.waiters.Add(w)
}

// forgetLocked drops w from the queue of e.
func (e *Endpoint) forgetLocked(w Waiter) {
	for n := e.waiters.Length(); n > 0; n-- {
		if q := e.waiters.Remove(); q != w {
			e.waiters.Add(q)
		}
	}
	if e.waiters.Length() == 0 {
		e.state &^= stateSelectWait
	}
}

// Unpoll withdraws a waiter recorded by Poll that no longer waits.
func (e *Endpoint) Unpoll(w Waiter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.forgetLocked(w)
	if e.peer != nil {
		e.peer.forgetLocked(w)
	}
}

// selwakeupLocked notifies every party watching e: poll waiters,
// the SIGIO owner and kqueue notes.
func (e *Endpoint) selwakeupLocked() {
	if e.state&stateSelectWait != 0 {
		e.state &^= stateSelectWait
		for e.waiters.Length() > 0 {
			e.waiters.Remove().(Waiter).Wake()
		}
	}
	if e.state&stateAsync != 0 && e.sigio != 0 {
		e.sub.sink.Deliver(e.sigio, sigIO)
	}
	for _, kn := range e.notes {
		if kn.eventLocked() && kn.Notify != nil {
			kn.Notify(kn)
		}
	}
}

// KQFilter attaches kn. Read notes watch this endpoint's buffer, write
// notes the peer's.
func (e *Endpoint) KQFilter(kn *Knote) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return &PipeError{code: BadDescriptor}
	}
	var target *Endpoint
	switch kn.Filter {
	case FilterRead:
		target = e
	case FilterWrite:
		if e.peer == nil {
			return &PipeError{code: BrokenPipe}
		}
		target = e.peer
	default:
		return &PipeError{code: InvalidArgument}
	}
	kn.ep = target
	target.notes = append(target.notes, kn)
	return nil
}

// Event evaluates the note and reports whether it is active.
func (kn *Knote) Event() bool {
	if kn.ep == nil {
		return false
	}
	kn.ep.mu.Lock()
	defer kn.ep.mu.Unlock()
	return kn.eventLocked()
}

func (kn *Knote) eventLocked() bool {
	ep := kn.ep
	switch kn.Filter {
	case FilterRead:
		kn.Data = ep.buf.cnt
		if ep.state&stateEOF != 0 || ep.peer == nil || ep.peer.state&stateEOF != 0 {
			kn.EOF = true
			return true
		}
		return kn.Data > 0
	case FilterWrite:
		// ep is the receiving side; a write note hangs up with it
		if ep.state&stateEOF != 0 {
			kn.Data = 0
			kn.EOF = true
			return true
		}
		kn.Data = ep.buf.free()
		return kn.Data >= PipeBuf
	}
	return false
}

// Detach removes the note from the endpoint it watches.
func (kn *Knote) Detach() {
	ep := kn.ep
	if ep == nil {
		return
	}
	ep.mu.Lock()
	defer ep.mu.Unlock()
	for i, n := range ep.notes {
		if n == kn {
			ep.notes = append(ep.notes[:i], ep.notes[i+1:]...)
			break
		}
	}
	kn.ep = nil
}
