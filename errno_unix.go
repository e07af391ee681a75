//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux || darwin || freebsd || openbsd || netbsd || dragonfly

package pipe

import "golang.org/x/sys/unix"

const (
	errnoNoMem     = unix.ENOMEM
	errnoAgain     = unix.EAGAIN
	errnoIntr      = unix.EINTR
	errnoPipe      = unix.EPIPE
	errnoNotty     = unix.ENOTTY
	errnoInval     = unix.EINVAL
	errnoBadf      = unix.EBADF
	errnoOpNotSupp = unix.EOPNOTSUPP
)

const sigIO = unix.SIGIO
