//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

/*
Package pipe implements anonymous pipes the way a BSD kernel does: two
connected endpoints, each owning a circular buffer that grows on large
writes, with blocking and non-blocking I/O, atomic small writes,
half-close propagation and poll/kqueue style readiness.

The canonical import for this library is github.com/abakum/go-pipe so
the import line is the following:

	import pipe "github.com/abakum/go-pipe"

Pipes are created through a Subsystem, which owns the accounting of
buffer memory shared by every pipe:

	sub, err := pipe.New(pipe.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}
	r, w, err := sub.Pipe(pipe.Cred{}, 0)
	if err != nil {
		log.Fatal(err)
	}

Both descriptors can be read and written: whatever is written to one is
read from the other. Every blocking call takes a context; cancelling it
plays the role of a signal and makes the call fail with Interrupted:

	n, err := w.Write(ctx, []byte("10,20,30\n\r"))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Sent %v bytes\n", n)

	buff := make([]byte, 100)
	for {
		n, err := r.Read(ctx, buff)
		if err != nil {
			log.Fatal(err)
			break
		}
		if n == 0 {
			fmt.Println("\nEOF")
			break
		}
		fmt.Printf("%v", string(buff[:n]))
	}

As with the read(2) system call, end of stream is a zero length read,
not an error. Descriptor.Reader adapts a descriptor to io.Reader
semantics where end of stream is io.EOF.

Errors are *PipeError values; their Code tells the kind and they match
the corresponding errno with errors.Is:

	if errors.Is(err, unix.EAGAIN) {
		// non-blocking descriptor, nothing to read yet
	}
*/
package pipe
