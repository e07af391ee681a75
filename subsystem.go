//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package pipe

import (
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Subsystem creates pipes that share one Limiter, logger and signal sink.
type Subsystem struct {
	cfg   Config
	lim   *Limiter
	alloc Allocator
	log   *zap.Logger
	sink  SignalSink
	now   func() time.Time
}

// Option customizes a Subsystem.
type Option func(*Subsystem)

// WithLogger sets the logger used for pipe lifecycle events.
func WithLogger(log *zap.Logger) Option {
	return func(s *Subsystem) {
		s.log = log
	}
}

// WithSignalSink sets where SIGIO is delivered for async endpoints.
func WithSignalSink(sink SignalSink) Option {
	return func(s *Subsystem) {
		s.sink = sink
	}
}

// WithLimiter shares an existing Limiter instead of creating one.
func WithLimiter(l *Limiter) Option {
	return func(s *Subsystem) {
		s.lim = l
	}
}

// WithAllocator overrides the allocator named in the config.
func WithAllocator(a Allocator) Option {
	return func(s *Subsystem) {
		s.alloc = a
	}
}

// WithClock sets the time source for the endpoint timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Subsystem) {
		s.now = now
	}
}

type discardSignals struct{}

func (discardSignals) Deliver(Owner, syscall.Signal) {}

// New creates a pipe subsystem.
func New(cfg Config, opts ...Option) (*Subsystem, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Subsystem{
		cfg:  cfg,
		log:  zap.NewNop(),
		sink: discardSignals{},
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.lim == nil {
		if s.alloc == nil {
			alloc, err := newAllocator(cfg.Allocator)
			if err != nil {
				return nil, err
			}
			s.alloc = alloc
		}
		s.lim = NewLimiter(cfg, s.alloc, s.log.Named("kva"))
	}
	return s, nil
}

// Limiter returns the resource limiter shared by the pipes of s.
func (s *Subsystem) Limiter() *Limiter {
	return s.lim
}

// Pipe creates a connected pair of endpoints and returns a descriptor
// for each. Both descriptors may be read and written; bytes written to
// one are read from the other.
func (s *Subsystem) Pipe(cred Cred, flags Flags) (*Descriptor, *Descriptor, error) {
	if flags&^validFlags != 0 {
		return nil, nil, &PipeError{code: InvalidArgument}
	}
	rp, wp, err := s.pair(cred)
	if err != nil {
		return nil, nil, err
	}
	return NewDescriptor(rp, flags), NewDescriptor(wp, flags), nil
}

func (s *Subsystem) pair(cred Cred) (*Endpoint, *Endpoint, error) {
	rbuf, err := s.lim.Allocate(s.cfg.SmallSize)
	if err != nil {
		return nil, nil, err
	}
	wbuf, err := s.lim.Allocate(s.cfg.SmallSize)
	if err != nil {
		s.lim.Free(rbuf)
		return nil, nil, err
	}

	mu := &sync.Mutex{}
	id := uuid.New()
	rp := newEndpoint(s, mu, id, 0, cred, rbuf)
	wp := newEndpoint(s, mu, id, 1, cred, wbuf)
	rp.peer = wp
	wp.peer = rp

	s.log.Debug("pipe created", zap.Stringer("pipe", id), zap.Int("size", s.cfg.SmallSize))
	return rp, wp, nil
}
