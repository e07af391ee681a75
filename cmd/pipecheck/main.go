//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// pipecheck is a tool to stress the atomic write guarantee of pipes.
// It starts a number of writers that push PipeBuf sized records into a
// single pipe while one reader checks that no record was torn apart.
// Just run it and it will produce an output like:
//
// $ go run ./cmd/pipecheck -writers 8 -records 1000
// records: 8000 bytes: 4096000 elapsed: 41.2ms
// pipe_kva_bytes 32768
// ...
package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	pipe "github.com/abakum/go-pipe"
	"github.com/abakum/go-pipe/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"
)

func main() {
	writers := flag.Int("writers", 4, "number of concurrent writers")
	records := flag.Int("records", 1000, "records sent by each writer")
	flag.Parse()

	cfg, err := pipe.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Development: cfg.LogDev})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	sub, err := pipe.New(cfg, pipe.WithLogger(logger))
	if err != nil {
		logger.Fatal("cannot create pipe subsystem", zap.Error(err))
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(sub.Limiter())

	res, err := run(context.Background(), sub, *writers, *records)
	if err != nil {
		logger.Error("check failed", zap.Error(err))
		os.Exit(1)
	}
	fmt.Printf("records: %d bytes: %d elapsed: %v\n", res.records, res.bytes, res.elapsed)

	families, err := reg.Gather()
	if err != nil {
		logger.Fatal("cannot gather metrics", zap.Error(err))
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stdout, mf); err != nil {
			logger.Fatal("cannot print metrics", zap.Error(err))
		}
	}
	if res.torn > 0 {
		logger.Error("torn records detected", zap.Int("torn", res.torn))
		os.Exit(1)
	}
}

type result struct {
	records int
	bytes   int64
	torn    int
	elapsed time.Duration
}

// record builds a PipeBuf sized record: the writer id and sequence
// number followed by the writer id repeated as padding.
func record(writer, seq int) []byte {
	rec := bytes.Repeat([]byte{byte(writer)}, pipe.PipeBuf)
	binary.BigEndian.PutUint32(rec[0:4], uint32(writer))
	binary.BigEndian.PutUint32(rec[4:8], uint32(seq))
	return rec
}

// intact reports whether rec is a record as built by record.
func intact(rec []byte) bool {
	writer := binary.BigEndian.Uint32(rec[0:4])
	for _, b := range rec[8:] {
		if b != byte(writer) {
			return false
		}
	}
	return true
}

func run(ctx context.Context, sub *pipe.Subsystem, writers, records int) (*result, error) {
	r, w, err := sub.Pipe(pipe.Cred{UID: uint32(os.Getuid()), GID: uint32(os.Getgid())}, 0)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	start := time.Now()
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for seq := 0; seq < records; seq++ {
				if _, err := w.Write(ctx, record(id, seq)); err != nil {
					errs <- err
					return
				}
			}
		}(i)
	}
	go func() {
		wg.Wait()
		w.Close()
		close(errs)
	}()

	res := &result{}
	rec := make([]byte, pipe.PipeBuf)
	in := r.Reader(ctx)
	for {
		n, err := io.ReadFull(in, rec)
		res.bytes += int64(n)
		if err != nil {
			break
		}
		res.records++
		if !intact(rec) {
			res.torn++
		}
	}
	res.elapsed = time.Since(start)

	if err := <-errs; err != nil {
		return res, err
	}
	return res, nil
}
