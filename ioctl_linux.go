//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package pipe

import "golang.org/x/sys/unix"

// Control operations understood by pipe endpoints. FIONBIO and FIOASYNC
// differ between architectures and live in the ioctl_linux_*.go files.
const (
	FIONREAD  uint = unix.TIOCINQ
	TIOCSPGRP uint = unix.TIOCSPGRP
	TIOCGPGRP uint = unix.TIOCGPGRP
	SIOCSPGRP uint = unix.SIOCSPGRP
	SIOCGPGRP uint = unix.SIOCGPGRP
)
