//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux

// Package hostpipe exposes pipes of the host kernel through the same File
// interface as the in-process implementation, so both can be driven and
// tested the same way.
package hostpipe

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	pipe "github.com/abakum/go-pipe"
	"golang.org/x/sys/unix"
)

// File is one end of a host pipe. The read end only reads and the write
// end only writes; the other direction fails with BadDescriptor.
type File struct {
	// mu is read-locked around every use of fd and write-locked by Close,
	// so a descriptor number is never used after it was released.
	mu     sync.RWMutex
	fd     int
	closed bool

	// closeSignal is an eventfd made readable by Close, so that callers
	// sleeping in select drop the read lock.
	closeSignal int
	closing     atomic.Bool
}

var _ pipe.File = (*File)(nil)

// New creates a host pipe and returns its read and write descriptors.
func New(flags pipe.Flags) (*pipe.Descriptor, *pipe.Descriptor, error) {
	fds := []int{0, 0}
	if err := unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, nil, hostError(err)
	}
	r, err := newFile(fds[0])
	if err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, nil, err
	}
	w, err := newFile(fds[1])
	if err != nil {
		r.Close()
		unix.Close(fds[1])
		return nil, nil, err
	}
	return pipe.NewDescriptor(r, flags), pipe.NewDescriptor(w, flags), nil
}

func newFile(fd int) (*File, error) {
	sig, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, hostError(err)
	}
	return &File{fd: fd, closeSignal: sig}, nil
}

// FD returns the host file descriptor, or -1 once closed.
func (f *File) FD() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return -1
	}
	return f.fd
}

// withFD runs fn with the descriptor held open.
func (f *File) withFD(fn func(fd int) error) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return pipe.NewError(pipe.BadDescriptor, nil)
	}
	return fn(f.fd)
}

func (f *File) Read(ctx context.Context, p []byte, fflag pipe.Flags) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		var n int
		err := f.withFD(func(fd int) error {
			var err error
			n, err = unix.Read(fd, p)
			return err
		})
		if err == nil {
			return n, nil
		}
		if err != unix.EAGAIN {
			return 0, hostError(err)
		}
		if fflag&pipe.ONonblock != 0 {
			return 0, hostError(err)
		}
		if err := f.wait(ctx, false); err != nil {
			return 0, err
		}
	}
}

func (f *File) Write(ctx context.Context, p []byte, fflag pipe.Flags) (int, error) {
	var nwritten int
	for nwritten < len(p) {
		err := f.withFD(func(fd int) error {
			n, err := unix.Write(fd, p[nwritten:])
			if n > 0 {
				nwritten += n
			}
			return err
		})
		if err == nil {
			continue
		}
		if err != unix.EAGAIN {
			if nwritten > 0 {
				return nwritten, nil
			}
			return 0, hostError(err)
		}
		if fflag&pipe.ONonblock != 0 {
			if nwritten > 0 {
				return nwritten, nil
			}
			return 0, hostError(err)
		}
		if err := f.wait(ctx, true); err != nil {
			if nwritten > 0 {
				return nwritten, nil
			}
			return 0, err
		}
	}
	return nwritten, nil
}

// wait sleeps until the descriptor is ready in the wanted direction, the
// file is closed or ctx is done.
func (f *File) wait(ctx context.Context, write bool) error {
	cancel, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return hostError(err)
	}
	defer unix.Close(cancel)
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		signalFD(cancel)
		close(fired)
	})
	defer func() {
		// cancel must outlive a callback that already started
		if !stop() {
			<-fired
		}
	}()

	return f.withFD(func(fd int) error {
		rd := newFDSet(cancel, f.closeSignal)
		var wr *fdSet
		if write {
			wr = newFDSet(fd)
		} else {
			rd.add(fd)
		}
		for {
			res, err := selectFDs(rd, wr, -1)
			if err == unix.EINTR {
				continue
			}
			if err != nil {
				return hostError(err)
			}
			if res.isReadable(f.closeSignal) {
				return pipe.NewError(pipe.BadDescriptor, nil)
			}
			if res.isReadable(cancel) {
				return pipe.NewError(pipe.Interrupted, ctx.Err())
			}
			return nil
		}
	})
}

func signalFD(fd int) {
	var one = [8]byte{1}
	unix.Write(fd, one[:])
}

// Ioctl forwards the supported control operations to the host.
func (f *File) Ioctl(cmd uint, arg *int) error {
	return f.withFD(func(fd int) error {
		switch cmd {
		case pipe.FIONBIO, pipe.FIOASYNC, pipe.FIONREAD, pipe.SIOCSPGRP, pipe.TIOCSPGRP, pipe.SIOCGPGRP, pipe.TIOCGPGRP:
			if arg == nil {
				return pipe.NewError(pipe.InvalidArgument, nil)
			}
		default:
			return pipe.NewError(pipe.InvalidControl, nil)
		}

		switch cmd {
		case pipe.FIONBIO:
			// host descriptors stay non-blocking; the descriptor flag decides
			return nil
		case pipe.FIOASYNC:
			fl, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
			if err != nil {
				return hostError(err)
			}
			if *arg != 0 {
				fl |= unix.O_ASYNC
			} else {
				fl &^= unix.O_ASYNC
			}
			_, err = unix.FcntlInt(uintptr(fd), unix.F_SETFL, fl)
			return hostError(err)
		case pipe.FIONREAD:
			n, err := unix.IoctlGetInt(fd, unix.TIOCINQ)
			if err != nil {
				return hostError(err)
			}
			*arg = n
			return nil
		case pipe.SIOCSPGRP:
			_, err := unix.FcntlInt(uintptr(fd), unix.F_SETOWN, *arg)
			return hostError(err)
		case pipe.TIOCSPGRP:
			if *arg < 0 {
				return pipe.NewError(pipe.InvalidArgument, nil)
			}
			_, err := unix.FcntlInt(uintptr(fd), unix.F_SETOWN, -*arg)
			return hostError(err)
		case pipe.SIOCGPGRP, pipe.TIOCGPGRP:
			owner, err := unix.FcntlInt(uintptr(fd), unix.F_GETOWN, 0)
			if err != nil {
				return hostError(err)
			}
			if cmd == pipe.TIOCGPGRP {
				owner = -owner
			}
			*arg = owner
		}
		return nil
	})
}

// Poll samples readiness with a zero-timeout select and reports a hang-up
// instead of writability once the other end is gone. w is never
// recorded: callers have to poll again.
func (f *File) Poll(events pipe.Events, w pipe.Waiter) pipe.Events {
	var revents pipe.Events
	err := f.withFD(func(fd int) error {
		res, err := selectFDs(newFDSet(fd), newFDSet(fd), 0)
		if err != nil {
			return err
		}
		// select folds POLLHUP and POLLERR into readiness
		pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN | unix.POLLOUT}}
		if _, err := unix.Poll(pfd, 0); err != nil {
			return err
		}
		if res.isReadable(fd) {
			revents |= events & (pipe.PollIn | pipe.PollRdNorm)
		}
		if pfd[0].Revents&(unix.POLLHUP|unix.POLLERR) != 0 {
			revents |= pipe.PollHup
		} else if res.isWritable(fd) {
			revents |= events & (pipe.PollOut | pipe.PollWrNorm)
		}
		return nil
	})
	if err != nil {
		return pipe.PollNval
	}
	return revents
}

// KQFilter is not available for host pipes.
func (f *File) KQFilter(kn *pipe.Knote) error {
	return pipe.NewError(pipe.NotSupported, nil)
}

func (f *File) Stat() (*pipe.Stat, error) {
	var st unix.Stat_t
	var queued int
	err := f.withFD(func(fd int) error {
		if err := unix.Fstat(fd, &st); err != nil {
			return hostError(err)
		}
		queued, _ = unix.IoctlGetInt(fd, unix.TIOCINQ)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &pipe.Stat{
		Mode:      fs.ModeNamedPipe | fs.FileMode(st.Mode&0o777),
		Size:      int64(queued),
		BlockSize: int64(st.Blksize),
		Blocks:    int64(st.Blocks),
		Atime:     time.Unix(st.Atim.Unix()),
		Mtime:     time.Unix(st.Mtim.Unix()),
		Ctime:     time.Unix(st.Ctim.Unix()),
		UID:       st.Uid,
		GID:       st.Gid,
		Dev:       uint64(st.Dev),
		Ino:       st.Ino,
	}, nil
}

// Close closes the host descriptor. Callers blocked in Read or Write are
// woken first and fail with BadDescriptor.
func (f *File) Close() error {
	if f.closing.Swap(true) {
		return nil
	}
	signalFD(f.closeSignal)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	err := unix.Close(f.fd)
	unix.Close(f.closeSignal)
	return hostError(err)
}

func hostError(err error) error {
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return pipe.ErrnoError(errno)
	}
	return err
}
