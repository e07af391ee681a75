//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package pipe_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	pipe "github.com/abakum/go-pipe"
)

func ExampleSubsystem_Pipe() {
	sub, err := pipe.New(pipe.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}
	r, w, err := sub.Pipe(pipe.Cred{}, 0)
	if err != nil {
		log.Fatal(err)
	}
	defer r.Close()

	ctx := context.Background()
	if _, err := w.Write(ctx, []byte("0123456789")); err != nil {
		log.Fatal(err)
	}
	w.Close()

	data, err := io.ReadAll(r.Reader(ctx))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(data))
	// Output: 0123456789
}

func ExampleDescriptor_Ioctl() {
	sub, err := pipe.New(pipe.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}
	r, w, err := sub.Pipe(pipe.Cred{}, 0)
	if err != nil {
		log.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	ctx := context.Background()
	w.Write(ctx, []byte("hello"))

	var queued int
	if err := r.Ioctl(pipe.FIONREAD, &queued); err != nil {
		log.Fatal(err)
	}
	fmt.Println("queued:", queued)

	nonblocking := 1
	r.Ioctl(pipe.FIONBIO, &nonblocking)
	buf := make([]byte, 16)
	n, _ := r.Read(ctx, buf)
	fmt.Println(string(buf[:n]))

	_, err = r.Read(ctx, buf)
	var perr *pipe.PipeError
	if errors.As(err, &perr) && perr.Code() == pipe.WouldBlock {
		fmt.Println("would block")
	}
	// Output:
	// queued: 5
	// hello
	// would block
}
