//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package pipe

import (
	"context"
	"io"
	"sync/atomic"
)

// Descriptor is an open reference to a File together with the flags
// that belong to the reference rather than to the file.
type Descriptor struct {
	file   File
	flags  atomic.Uint32
	closed atomic.Bool
}

// NewDescriptor wraps f. Only ONonblock and OCloexec are kept from flags.
func NewDescriptor(f File, flags Flags) *Descriptor {
	d := &Descriptor{file: f}
	d.flags.Store(uint32(flags & validFlags))
	return d
}

// File returns the file the descriptor refers to.
func (d *Descriptor) File() File {
	return d.file
}

// Flags returns the current descriptor flags.
func (d *Descriptor) Flags() Flags {
	return Flags(d.flags.Load())
}

func (d *Descriptor) setFlag(f Flags, on bool) {
	for {
		old := d.flags.Load()
		next := old &^ uint32(f)
		if on {
			next |= uint32(f)
		}
		if d.flags.CompareAndSwap(old, next) {
			return
		}
	}
}

// SetNonblock switches the descriptor between blocking and
// non-blocking mode.
func (d *Descriptor) SetNonblock(nonblocking bool) {
	d.setFlag(ONonblock, nonblocking)
}

// CloseOnExec reports whether the descriptor was created with OCloexec.
func (d *Descriptor) CloseOnExec() bool {
	return d.Flags()&OCloexec != 0
}

// Read reads from the file with the descriptor's flags.
func (d *Descriptor) Read(ctx context.Context, p []byte) (int, error) {
	if d.closed.Load() {
		return 0, &PipeError{code: BadDescriptor}
	}
	return d.file.Read(ctx, p, d.Flags())
}

// Write writes to the file with the descriptor's flags.
func (d *Descriptor) Write(ctx context.Context, p []byte) (int, error) {
	if d.closed.Load() {
		return 0, &PipeError{code: BadDescriptor}
	}
	return d.file.Write(ctx, p, d.Flags())
}

// Ioctl applies FIONBIO to the descriptor and forwards every control
// operation to the file.
func (d *Descriptor) Ioctl(cmd uint, arg *int) error {
	if d.closed.Load() {
		return &PipeError{code: BadDescriptor}
	}
	if cmd == FIONBIO {
		if arg == nil {
			return &PipeError{code: InvalidArgument}
		}
		d.SetNonblock(*arg != 0)
	}
	return d.file.Ioctl(cmd, arg)
}

// Poll reports the ready subset of events, recording w if none is.
func (d *Descriptor) Poll(events Events, w Waiter) Events {
	if d.closed.Load() {
		return PollNval
	}
	return d.file.Poll(events, w)
}

// unpoller is implemented by files that record poll waiters.
type unpoller interface {
	Unpoll(w Waiter)
}

// Unpoll withdraws w from the file if the file recorded it.
func (d *Descriptor) Unpoll(w Waiter) {
	if u, ok := d.file.(unpoller); ok {
		u.Unpoll(w)
	}
}

// KQFilter attaches kn to the file.
func (d *Descriptor) KQFilter(kn *Knote) error {
	if d.closed.Load() {
		return &PipeError{code: BadDescriptor}
	}
	return d.file.KQFilter(kn)
}

// Stat describes the file.
func (d *Descriptor) Stat() (*Stat, error) {
	if d.closed.Load() {
		return nil, &PipeError{code: BadDescriptor}
	}
	return d.file.Stat()
}

// Close closes the file. Further calls do nothing.
func (d *Descriptor) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	return d.file.Close()
}

// Reader returns an io.Reader bound to ctx. End of stream is reported
// as io.EOF.
func (d *Descriptor) Reader(ctx context.Context) io.Reader {
	return &descReader{d: d, ctx: ctx}
}

// Writer returns an io.Writer bound to ctx. It keeps writing until all
// of p is queued or an error stops it.
func (d *Descriptor) Writer(ctx context.Context) io.Writer {
	return &descWriter{d: d, ctx: ctx}
}

type descReader struct {
	d   *Descriptor
	ctx context.Context
}

func (r *descReader) Read(p []byte) (int, error) {
	n, err := r.d.Read(r.ctx, p)
	if n == 0 && err == nil && len(p) > 0 {
		return 0, io.EOF
	}
	return n, err
}

type descWriter struct {
	d   *Descriptor
	ctx context.Context
}

func (w *descWriter) Write(p []byte) (int, error) {
	var total int
	for total < len(p) {
		n, err := w.d.Write(w.ctx, p[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}
