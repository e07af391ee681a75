//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build !linux && !darwin && !freebsd && !openbsd && !netbsd && !dragonfly

package pipe

import "syscall"

const (
	errnoNoMem     = syscall.ENOMEM
	errnoAgain     = syscall.EAGAIN
	errnoIntr      = syscall.EINTR
	errnoPipe      = syscall.EPIPE
	errnoNotty     = syscall.ENOTTY
	errnoInval     = syscall.EINVAL
	errnoBadf      = syscall.EBADF
	errnoOpNotSupp = syscall.EOPNOTSUPP
)

// SIGIO as numbered on the BSDs
const sigIO = syscall.Signal(23)
