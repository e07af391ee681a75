//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build !linux

package pipe

// Control operations understood by pipe endpoints, numbered as
// <sys/filio.h> and <sys/sockio.h> do on the BSDs.
const (
	FIONBIO   uint = 0x8004667e
	FIOASYNC  uint = 0x8004667d
	FIONREAD  uint = 0x4004667f
	TIOCSPGRP uint = 0x80047476
	TIOCGPGRP uint = 0x40047477
	SIOCSPGRP uint = 0x80047308
	SIOCGPGRP uint = 0x40047309
)
