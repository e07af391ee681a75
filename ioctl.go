//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package pipe

// Ioctl performs a control operation on the endpoint.
//
//	FIONBIO            accepted; the flag lives on the descriptor
//	FIOASYNC           *arg != 0 enables SIGIO delivery
//	FIONREAD           *arg = bytes queued
//	SIOCSPGRP          owner = *arg (pid, or -pgid)
//	TIOCSPGRP          owner = -*arg (process group)
//	SIOCGPGRP          *arg = owner
//	TIOCGPGRP          *arg = -owner
func (e *Endpoint) Ioctl(cmd uint, arg *int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return &PipeError{code: BadDescriptor}
	}
	switch cmd {
	case FIONBIO, FIOASYNC, FIONREAD, SIOCSPGRP, TIOCSPGRP, SIOCGPGRP, TIOCGPGRP:
		if arg == nil {
			return &PipeError{code: InvalidArgument}
		}
	default:
		return &PipeError{code: InvalidControl}
	}

	switch cmd {
	case FIONBIO:
	case FIOASYNC:
		if *arg != 0 {
			e.state |= stateAsync
		} else {
			e.state &^= stateAsync
		}
	case FIONREAD:
		*arg = e.buf.cnt
	case SIOCSPGRP:
		e.sigio = Owner(*arg)
	case TIOCSPGRP:
		if *arg < 0 {
			return &PipeError{code: InvalidArgument}
		}
		e.sigio = Owner(-*arg)
	case SIOCGPGRP:
		*arg = int(e.sigio)
	case TIOCGPGRP:
		*arg = -int(e.sigio)
	}
	return nil
}
