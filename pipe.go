//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package pipe

import (
	"context"
	"io/fs"
	"syscall"
	"time"
)

// PipeBuf is the largest write that is guaranteed to be atomic with
// respect to other writers on the same pipe.
const PipeBuf = 512

const (
	// DefaultSmallSize is the capacity every pipe buffer starts with
	DefaultSmallSize = 16384
	// DefaultBigSize is the capacity a buffer is promoted to on large writes
	DefaultBigSize = 65536
	// DefaultMaxBigBuffers limits how many promoted buffers may exist at once
	DefaultMaxBigBuffers = 32
	// DefaultMaxKVA limits the total bytes of buffer storage (0 means unlimited)
	DefaultMaxKVA = 8 * 1024 * 1024
)

// File is the set of operations a descriptor dispatches to. Pipe
// endpoints implement it; other descriptor kinds (see package hostpipe)
// may implement it too.
type File interface {
	// Read drains up to len(p) bytes. It blocks until at least one byte
	// is available, the other side is gone (returning 0 and no error) or
	// ctx is done. fflag carries the descriptor flags (ONonblock).
	Read(ctx context.Context, p []byte, fflag Flags) (n int, err error)

	// Write queues p for the other side. Writes of at most PipeBuf bytes
	// are never interleaved with other writers.
	Write(ctx context.Context, p []byte, fflag Flags) (n int, err error)

	// Ioctl performs a control operation. arg is both input and output.
	Ioctl(cmd uint, arg *int) error

	// Poll returns the subset of events that are ready. If none is
	// ready, w is recorded and woken on the next state change.
	Poll(events Events, w Waiter) Events

	// KQFilter attaches a kqueue note.
	KQFilter(kn *Knote) error

	// Stat describes the file.
	Stat() (*Stat, error)

	// Close releases the file. Closing twice is a no-op.
	Close() error
}

// Flags are the descriptor flags accepted on creation.
type Flags uint32

const (
	// ONonblock makes Read and Write fail with WouldBlock instead of sleeping
	ONonblock Flags = 1 << iota
	// OCloexec marks the descriptor close-on-exec
	OCloexec
)

const validFlags = ONonblock | OCloexec

// Cred is the credential of the creating process.
type Cred struct {
	UID uint32
	GID uint32
}

// Owner identifies the recipient of SIGIO: a positive value is a process
// id, a negative value a process group id, zero means unset.
type Owner int

// SignalSink delivers signals to processes. It is called with pipe state
// locked and must neither block nor call back into the pipe.
type SignalSink interface {
	Deliver(owner Owner, sig syscall.Signal)
}

// Stat describes a pipe endpoint.
type Stat struct {
	Mode      fs.FileMode
	Size      int64 // bytes queued
	BlockSize int64 // buffer capacity
	Blocks    int64
	Atime     time.Time
	Mtime     time.Time
	Ctime     time.Time
	UID       uint32
	GID       uint32
	Dev       uint64
	Ino       uint64
}

// PipeError is a platform independent error type for pipe operations
type PipeError struct {
	code     PipeErrorCode
	causedBy error
}

// PipeErrorCode is a code to easily identify the type of error
type PipeErrorCode int

const (
	// OutOfMemory buffer storage could not be allocated
	OutOfMemory PipeErrorCode = iota
	// WouldBlock the descriptor is non-blocking and the operation would sleep
	WouldBlock
	// Interrupted a blocking wait was aborted; the call may be retried
	Interrupted
	// BrokenPipe nothing was written because the other side is gone
	BrokenPipe
	// InvalidControl the control operation is not recognized
	InvalidControl
	// InvalidArgument a malformed argument was passed
	InvalidArgument
	// BadDescriptor the descriptor has been closed
	BadDescriptor
	// NotSupported the operation is not available for this kind of file
	NotSupported
)

// NewError builds a PipeError with the given code and cause.
func NewError(code PipeErrorCode, causedBy error) *PipeError {
	return &PipeError{code: code, causedBy: causedBy}
}

// EncodedErrorString returns a string explaining the error code
func (e PipeError) EncodedErrorString() string {
	switch e.code {
	case OutOfMemory:
		return "Cannot allocate pipe buffer"
	case WouldBlock:
		return "Operation would block"
	case Interrupted:
		return "Interrupted"
	case BrokenPipe:
		return "Broken pipe"
	case InvalidControl:
		return "Inappropriate control operation"
	case InvalidArgument:
		return "Invalid argument"
	case BadDescriptor:
		return "Pipe has been closed"
	case NotSupported:
		return "Operation not supported"
	default:
		return "Other error"
	}
}

// Error returns the complete error code with details on the cause of the error
func (e PipeError) Error() string {
	if e.causedBy != nil {
		return e.EncodedErrorString() + ": " + e.causedBy.Error()
	}
	return e.EncodedErrorString()
}

// Code returns an identifier for the kind of error occurred
func (e PipeError) Code() PipeErrorCode {
	return e.code
}

// Errno returns the system error number matching the code.
func (e PipeError) Errno() syscall.Errno {
	switch e.code {
	case OutOfMemory:
		return errnoNoMem
	case WouldBlock:
		return errnoAgain
	case Interrupted:
		return errnoIntr
	case BrokenPipe:
		return errnoPipe
	case InvalidControl:
		return errnoNotty
	case InvalidArgument:
		return errnoInval
	case BadDescriptor:
		return errnoBadf
	default:
		return errnoOpNotSupp
	}
}

// Is reports whether target is the errno of e, so that
// errors.Is(err, unix.EAGAIN) works.
func (e PipeError) Is(target error) bool {
	errno, ok := target.(syscall.Errno)
	return ok && errno == e.Errno()
}

// Unwrap returns the cause of the error, if any.
func (e PipeError) Unwrap() error {
	return e.causedBy
}

// ErrnoError converts a host error number into a PipeError.
func ErrnoError(errno syscall.Errno) error {
	var code PipeErrorCode
	switch errno {
	case 0:
		return nil
	case errnoNoMem:
		code = OutOfMemory
	case errnoAgain:
		code = WouldBlock
	case errnoIntr:
		code = Interrupted
	case errnoPipe:
		code = BrokenPipe
	case errnoNotty:
		code = InvalidControl
	case errnoInval:
		code = InvalidArgument
	case errnoBadf:
		code = BadDescriptor
	default:
		code = NotSupported
	}
	return &PipeError{code: code, causedBy: errno}
}
