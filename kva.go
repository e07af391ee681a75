//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package pipe

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Buffer is the circular storage owned by one pipe endpoint.
type Buffer struct {
	storage []byte
	in      int // head: next byte written goes here
	out     int // tail: next byte read comes from here
	cnt     int
	big     bool
}

// Cap returns the capacity of the buffer.
func (b *Buffer) Cap() int {
	return len(b.storage)
}

// Len returns the number of bytes queued.
func (b *Buffer) Len() int {
	return b.cnt
}

func (b *Buffer) free() int {
	return len(b.storage) - b.cnt
}

// Limiter accounts the storage of every pipe buffer against global
// limits. A single Limiter is shared by all pipes of a Subsystem.
type Limiter struct {
	kva atomic.Int64
	big atomic.Int32

	smallSize int
	bigSize   int
	maxBig    int32
	maxKVA    int64

	alloc   Allocator
	log     *zap.Logger
	metrics *limiterMetrics
}

// NewLimiter creates a Limiter with the sizes and limits of cfg.
func NewLimiter(cfg Config, alloc Allocator, log *zap.Logger) *Limiter {
	if alloc == nil {
		alloc = HeapAllocator()
	}
	if log == nil {
		log = zap.NewNop()
	}
	l := &Limiter{
		smallSize: cfg.SmallSize,
		bigSize:   cfg.BigSize,
		maxBig:    int32(cfg.MaxBigBuffers),
		maxKVA:    cfg.MaxKVA,
		alloc:     alloc,
		log:       log,
	}
	l.metrics = newLimiterMetrics(l)
	return l
}

// Usage returns the bytes of storage in use and the number of promoted
// buffers.
func (l *Limiter) Usage() (kva int64, big int) {
	return l.kva.Load(), int(l.big.Load())
}

// reserveKVA adds delta to the storage counter unless that would cross
// the limit.
func (l *Limiter) reserveKVA(delta int64) bool {
	for {
		cur := l.kva.Load()
		next := cur + delta
		if l.maxKVA > 0 && delta > 0 && next > l.maxKVA {
			return false
		}
		if l.kva.CompareAndSwap(cur, next) {
			return true
		}
	}
}

func (l *Limiter) reserveBig() bool {
	for {
		cur := l.big.Load()
		if cur >= l.maxBig {
			return false
		}
		if l.big.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

func (l *Limiter) obtain(size int) ([]byte, error) {
	if !l.reserveKVA(int64(size)) {
		l.metrics.allocFailures.Inc()
		l.log.Warn("pipe kva exhausted", zap.Int("size", size), zap.Int64("limit", l.maxKVA))
		return nil, &PipeError{code: OutOfMemory}
	}
	storage, err := l.alloc.Alloc(size)
	if err != nil {
		l.kva.Add(-int64(size))
		l.metrics.allocFailures.Inc()
		l.log.Warn("pipe buffer allocation failed", zap.Int("size", size), zap.Error(err))
		return nil, &PipeError{code: OutOfMemory, causedBy: err}
	}
	l.metrics.allocs.Inc()
	return storage, nil
}

func (l *Limiter) release(storage []byte) {
	if storage == nil {
		return
	}
	if err := l.alloc.Free(storage); err != nil {
		l.log.Warn("pipe buffer release failed", zap.Int("size", len(storage)), zap.Error(err))
	}
	l.kva.Add(-int64(len(storage)))
}

// Allocate returns an empty buffer with exactly size bytes of storage.
func (l *Limiter) Allocate(size int) (*Buffer, error) {
	storage, err := l.obtain(size)
	if err != nil {
		return nil, err
	}
	return &Buffer{storage: storage}, nil
}

// Resize replaces the storage of an empty buffer. On failure b keeps its
// old storage and size.
func (l *Limiter) Resize(b *Buffer, size int) error {
	if b.cnt != 0 {
		return &PipeError{code: InvalidArgument}
	}
	storage, err := l.obtain(size)
	if err != nil {
		return err
	}
	l.release(b.storage)
	if b.big {
		b.big = false
		l.big.Add(-1)
	}
	b.storage = storage
	b.in, b.out, b.cnt = 0, 0, 0
	return nil
}

// Promote grows an empty small buffer to the big size when a write of
// pending bytes would not fit. It reports whether the buffer grew;
// failure is not an error, the buffer simply keeps its size.
func (l *Limiter) Promote(b *Buffer, pending int) bool {
	if pending <= b.Cap() || b.Cap() > l.smallSize || b.cnt != 0 {
		return false
	}
	if l.maxKVA > 0 && l.kva.Load() > l.maxKVA/2 {
		l.metrics.promotionsDenied.Inc()
		l.log.Debug("pipe promotion denied: kva pressure", zap.Int64("kva", l.kva.Load()))
		return false
	}
	if !l.reserveBig() {
		l.metrics.promotionsDenied.Inc()
		l.log.Debug("pipe promotion denied: big buffer limit", zap.Int32("limit", l.maxBig))
		return false
	}
	if err := l.Resize(b, l.bigSize); err != nil {
		l.big.Add(-1)
		l.metrics.promotionsDenied.Inc()
		l.log.Debug("pipe promotion failed", zap.Error(err))
		return false
	}
	b.big = true
	l.metrics.promotions.Inc()
	l.log.Debug("pipe buffer promoted", zap.Int("size", l.bigSize), zap.Int("pending", pending))
	return true
}

// Free releases the storage of b. It is safe to call more than once.
func (l *Limiter) Free(b *Buffer) {
	if b == nil || b.storage == nil {
		return
	}
	l.release(b.storage)
	if b.big {
		b.big = false
		l.big.Add(-1)
	}
	b.storage = nil
	b.in, b.out, b.cnt = 0, 0, 0
}
