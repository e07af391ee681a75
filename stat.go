//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package pipe

import "io/fs"

// Stat describes the endpoint as a FIFO whose size is the number of
// bytes queued and whose block size is the buffer capacity.
func (e *Endpoint) Stat() (*Stat, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, &PipeError{code: BadDescriptor}
	}
	st := &Stat{
		Mode:      fs.ModeNamedPipe,
		Size:      int64(e.buf.cnt),
		BlockSize: int64(e.buf.Cap()),
		Atime:     e.atime,
		Mtime:     e.mtime,
		Ctime:     e.ctime,
		UID:       e.cred.UID,
		GID:       e.cred.GID,
	}
	if st.BlockSize > 0 {
		st.Blocks = (st.Size + st.BlockSize - 1) / st.BlockSize
	}
	return st, nil
}
