//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux && (ppc64 || ppc64le || sparc64)

package pipe

const (
	FIONBIO  uint = 0x8004667e
	FIOASYNC uint = 0x8004667d
)
