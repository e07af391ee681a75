//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux && (mips || mipsle || mips64 || mips64le)

package pipe

const (
	FIONBIO  uint = 0x667e
	FIOASYNC uint = 0x667d
)
