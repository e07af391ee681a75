//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package pipe

import (
	"context"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/google/uuid"
)

type state uint32

const (
	stateEOF state = 1 << iota
	stateLocked
	stateLockWanted
	stateReadWanted
	stateWriteWanted
	stateAsync
	stateSelectWait
	stateCloseWanted // close is waiting for busy to drop to zero
)

// Endpoint is one end of a pipe. It owns the buffer that its Read
// drains; its Write fills the buffer of the peer.
//
// Both endpoints of a pair share mu. mu is held only for short
// stretches and never across a sleep; longer exclusion over the buffer
// is provided by the LOCKED state bit.
type Endpoint struct {
	mu  *sync.Mutex
	sub *Subsystem

	id   uuid.UUID // shared by the pair
	side int

	buf    *Buffer
	state  state
	peer   *Endpoint
	busy   int
	sigio  Owner
	closed bool

	waiters *queue.Queue // one-shot poll waiters
	notes   []*Knote

	atime time.Time
	mtime time.Time
	ctime time.Time
	cred  Cred

	wchan chan struct{}
}

var _ File = (*Endpoint)(nil)

func newEndpoint(sub *Subsystem, mu *sync.Mutex, id uuid.UUID, side int, cred Cred, buf *Buffer) *Endpoint {
	now := sub.now()
	return &Endpoint{
		mu:      mu,
		sub:     sub,
		id:      id,
		side:    side,
		buf:     buf,
		waiters: queue.New(),
		atime:   now,
		mtime:   now,
		ctime:   now,
		cred:    cred,
		wchan:   make(chan struct{}),
	}
}

// ID returns the identifier shared by both endpoints of the pair.
func (e *Endpoint) ID() uuid.UUID {
	return e.id
}

// wakeupLocked wakes every goroutine sleeping on e.
func (e *Endpoint) wakeupLocked() {
	close(e.wchan)
	e.wchan = make(chan struct{})
}

// sleepLocked waits for the next wakeup on e with mu released. It
// returns Interrupted if ctx is done first.
func (e *Endpoint) sleepLocked(ctx context.Context) error {
	ch := e.wchan
	e.mu.Unlock()
	defer e.mu.Lock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return &PipeError{code: Interrupted, causedBy: ctx.Err()}
	}
}

// sleepUninterruptibleLocked is sleepLocked without a way out.
func (e *Endpoint) sleepUninterruptibleLocked() {
	ch := e.wchan
	e.mu.Unlock()
	<-ch
	e.mu.Lock()
}
