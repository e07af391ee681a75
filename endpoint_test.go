//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package pipe

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func newTestSubsystem(t *testing.T, cfg Config, opts ...Option) *Subsystem {
	// endpoints closed by goroutines may log after the test returned,
	// so only warnings reach the test log
	logger := zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
	opts = append([]Option{WithLogger(logger)}, opts...)
	sub, err := New(cfg, opts...)
	require.NoError(t, err)
	return sub
}

// newTestPair returns two connected endpoints; a is used as the writer
// and b as the reader unless a test says otherwise.
func newTestPair(t *testing.T, cfg Config) (a, b *Endpoint) {
	sub := newTestSubsystem(t, cfg)
	b, a, err := sub.pair(Cred{UID: 1000, GID: 100})
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

// eventually fails the test if done is not closed in time.
func eventually(t *testing.T, done <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestScenarioReadWriteAndEOF(t *testing.T) {
	ctx := context.Background()
	a, b := newTestPair(t, testConfig())

	n, err := a.Write(ctx, []byte("0123456789"), 0)
	require.NoError(t, err)
	require.Equal(t, 10, n)

	buf := make([]byte, 5)
	n, err = b.Read(ctx, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "01234", string(buf[:n]))

	var queued int
	require.NoError(t, b.Ioctl(FIONREAD, &queued))
	require.Equal(t, 5, queued)

	n, err = b.Read(ctx, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "56789", string(buf[:n]))

	require.NoError(t, a.Close())
	n, err = b.Read(ctx, buf, 0)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestScenarioWriteAfterReaderClosed(t *testing.T) {
	a, b := newTestPair(t, testConfig())
	require.NoError(t, b.Close())

	n, err := a.Write(context.Background(), []byte{'x'}, 0)
	require.Zero(t, n)
	var perr *PipeError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, BrokenPipe, perr.Code())
	require.ErrorIs(t, err, errnoPipe)
}

func TestScenarioNonblockingReadOfEmptyPipe(t *testing.T) {
	a, _ := newTestPair(t, testConfig())

	start := time.Now()
	n, err := a.Read(context.Background(), make([]byte, 1), ONonblock)
	require.Zero(t, n)
	require.ErrorIs(t, err, errnoAgain)
	require.Less(t, time.Since(start), time.Second)
}

func TestBothEndsCarryData(t *testing.T) {
	ctx := context.Background()
	a, b := newTestPair(t, testConfig())

	_, err := a.Write(ctx, []byte("to b"), 0)
	require.NoError(t, err)
	_, err = b.Write(ctx, []byte("to a"), 0)
	require.NoError(t, err)

	buf := make([]byte, 8)
	n, err := a.Read(ctx, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "to a", string(buf[:n]))
	n, err = b.Read(ctx, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "to b", string(buf[:n]))
}

func TestRoundTripWithWraparound(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.SmallSize = 1024
	cfg.BigSize = 1024
	a, b := newTestPair(t, cfg)

	// move the indices close to the end so that the next write wraps
	_, err := a.Write(ctx, make([]byte, 1000), 0)
	require.NoError(t, err)
	_, err = b.Read(ctx, make([]byte, 900), 0)
	require.NoError(t, err)

	payload := make([]byte, 600)
	for i := range payload {
		payload[i] = byte(i)
	}
	n, err := a.Write(ctx, payload, 0)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, 700, b.buf.Len())
	require.LessOrEqual(t, b.buf.Len(), b.buf.Cap())

	skip := make([]byte, 100)
	n, err = b.Read(ctx, skip, 0)
	require.NoError(t, err)
	require.Equal(t, 100, n)

	got := make([]byte, 600)
	n, err = b.Read(ctx, got, 0)
	require.NoError(t, err)
	require.Equal(t, 600, n)
	require.Equal(t, payload, got)
	require.Zero(t, b.buf.in)
	require.Zero(t, b.buf.out)
}

func TestEOFIsSticky(t *testing.T) {
	ctx := context.Background()
	a, b := newTestPair(t, testConfig())

	_, err := a.Write(ctx, []byte("tail"), 0)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	buf := make([]byte, 10)
	n, err := b.Read(ctx, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "tail", string(buf[:n]))
	for i := 0; i < 3; i++ {
		n, err = b.Read(ctx, buf, ONonblock)
		require.NoError(t, err)
		require.Zero(t, n)
	}
}

func TestZeroLengthRead(t *testing.T) {
	a, _ := newTestPair(t, testConfig())
	n, err := a.Read(context.Background(), nil, 0)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestOperationsOnClosedEndpoint(t *testing.T) {
	a, b := newTestPair(t, testConfig())
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	_, err := a.Read(context.Background(), make([]byte, 1), 0)
	require.ErrorIs(t, err, errnoBadf)
	_, err = a.Write(context.Background(), []byte{1}, 0)
	require.ErrorIs(t, err, errnoBadf)
	_, err = a.Stat()
	require.ErrorIs(t, err, errnoBadf)
	require.Equal(t, PollNval, a.Poll(PollIn, nil))

	// the survivor sees a hang-up
	require.NotZero(t, b.Poll(PollIn|PollOut, nil)&PollHup)
	_, err = b.Write(context.Background(), []byte{1}, 0)
	require.ErrorIs(t, err, errnoPipe)
}

func TestBlockedReaderWokenByWrite(t *testing.T) {
	ctx := context.Background()
	a, b := newTestPair(t, testConfig())

	done := make(chan struct{})
	var got []byte
	go func() {
		defer close(done)
		buf := make([]byte, 10)
		n, err := b.Read(ctx, buf, 0)
		if err == nil {
			got = buf[:n]
		}
	}()
	time.Sleep(20 * time.Millisecond)
	_, err := a.Write(ctx, []byte("wake"), 0)
	require.NoError(t, err)
	eventually(t, done, "reader")
	require.Equal(t, "wake", string(got))
}

func TestBlockedReaderWokenByClose(t *testing.T) {
	a, b := newTestPair(t, testConfig())

	done := make(chan struct{})
	var n int
	var err error
	go func() {
		defer close(done)
		n, err = b.Read(context.Background(), make([]byte, 10), 0)
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, a.Close())
	eventually(t, done, "reader")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestBlockedReadInterrupted(t *testing.T) {
	_, b := newTestPair(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	var err error
	go func() {
		defer close(done)
		_, err = b.Read(ctx, make([]byte, 10), 0)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	eventually(t, done, "interrupted reader")
	require.ErrorIs(t, err, errnoIntr)
	require.ErrorIs(t, err, context.Canceled)

	// the advisory lock was released on the way out
	require.Zero(t, b.state&stateLocked)
	require.Zero(t, b.busy)
}

func fillPipe(t *testing.T, a *Endpoint) int {
	t.Helper()
	var total int
	chunk := make([]byte, PipeBuf)
	for {
		n, err := a.Write(context.Background(), chunk, ONonblock)
		total += n
		if err != nil {
			require.ErrorIs(t, err, errnoAgain)
			return total
		}
	}
}

func TestBlockedWriterWokenWhenSpaceFreed(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.SmallSize = 2048
	cfg.BigSize = 2048
	a, b := newTestPair(t, cfg)

	require.Equal(t, 2048, fillPipe(t, a))

	done := make(chan struct{})
	var err error
	go func() {
		defer close(done)
		_, err = a.Write(ctx, bytes.Repeat([]byte{'w'}, PipeBuf), 0)
	}()
	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("writer did not block on a full pipe")
	default:
	}

	_, rerr := b.Read(ctx, make([]byte, PipeBuf), 0)
	require.NoError(t, rerr)
	eventually(t, done, "writer")
	require.NoError(t, err)
	require.Equal(t, 2048, b.buf.Len())
}

func TestBlockedWriterGetsBrokenPipeOnClose(t *testing.T) {
	cfg := testConfig()
	cfg.SmallSize = 1024
	cfg.BigSize = 1024
	a, b := newTestPair(t, cfg)
	fillPipe(t, a)

	done := make(chan struct{})
	var err error
	go func() {
		defer close(done)
		_, err = a.Write(context.Background(), []byte{1}, 0)
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Close())
	eventually(t, done, "writer")
	require.ErrorIs(t, err, errnoPipe)
}

func TestBlockedWriteInterruptedKeepsPartialCount(t *testing.T) {
	cfg := testConfig()
	cfg.SmallSize = 1024
	cfg.BigSize = 1024
	a, _ := newTestPair(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	var n int
	var err error
	go func() {
		defer close(done)
		n, err = a.Write(ctx, make([]byte, 3000), 0)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	eventually(t, done, "writer")
	// bytes already queued are reported, so the error is dropped
	require.Equal(t, 1024, n)
	require.NoError(t, err)
}

func TestNonblockingWriteOfFullPipe(t *testing.T) {
	cfg := testConfig()
	cfg.SmallSize = 1024
	cfg.BigSize = 1024
	a, _ := newTestPair(t, cfg)
	fillPipe(t, a)

	n, err := a.Write(context.Background(), []byte{1}, ONonblock)
	require.Zero(t, n)
	require.ErrorIs(t, err, errnoAgain)
}

func TestSmallWriteIsNeverSplit(t *testing.T) {
	cfg := testConfig()
	cfg.SmallSize = 1024
	cfg.BigSize = 1024
	a, b := newTestPair(t, cfg)

	_, err := a.Write(context.Background(), make([]byte, 1024-100), 0)
	require.NoError(t, err)

	// 200 bytes do not fit in the 100 left: nothing is transferred
	n, err := a.Write(context.Background(), make([]byte, 200), ONonblock)
	require.Zero(t, n)
	require.ErrorIs(t, err, errnoAgain)
	require.Equal(t, 924, b.buf.Len())

	// a large write takes what fits
	n, err = a.Write(context.Background(), make([]byte, PipeBuf+1), ONonblock)
	require.NoError(t, err)
	require.Equal(t, 100, n)
}

func TestConcurrentSmallWritesDoNotInterleave(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.SmallSize = 2048
	cfg.BigSize = 2048
	a, b := newTestPair(t, cfg)

	const writers = 6
	const records = 200
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id byte) {
			defer wg.Done()
			rec := bytes.Repeat([]byte{id}, PipeBuf)
			for j := 0; j < records; j++ {
				if _, err := a.Write(ctx, rec, 0); err != nil {
					t.Error(err)
					return
				}
			}
		}(byte('a' + i))
	}
	go func() {
		wg.Wait()
		a.Close()
	}()

	var stream []byte
	buf := make([]byte, 700)
	for {
		n, err := b.Read(ctx, buf, 0)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		stream = append(stream, buf[:n]...)
	}
	require.Len(t, stream, writers*records*PipeBuf)
	for off := 0; off < len(stream); off += PipeBuf {
		rec := stream[off : off+PipeBuf]
		require.Equal(t, bytes.Repeat(rec[:1], PipeBuf), rec, "record at %d is torn", off)
	}
}

func TestLargeWritePromotesBuffer(t *testing.T) {
	ctx := context.Background()
	a, b := newTestPair(t, testConfig())

	payload := bytes.Repeat([]byte("0123456789abcdef"), 2*DefaultSmallSize/16)
	n, err := a.Write(ctx, payload, 0)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, DefaultBigSize, b.buf.Cap())
	_, big := a.sub.Limiter().Usage()
	require.Equal(t, 1, big)

	got := make([]byte, len(payload))
	n, err = b.Read(ctx, got, 0)
	require.NoError(t, err)
	require.Equal(t, payload, got[:n])

	require.NoError(t, b.Close())
	_, big = a.sub.Limiter().Usage()
	require.Zero(t, big)
}

func TestLargeWriteWithoutPromotionBlocksUntilRead(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxBigBuffers = 0
	a, b := newTestPair(t, cfg)

	payload := make([]byte, 3*DefaultSmallSize)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	done := make(chan struct{})
	var n int
	var err error
	go func() {
		defer close(done)
		n, err = a.Write(ctx, payload, 0)
	}()

	var got []byte
	buf := make([]byte, 4096)
	for len(got) < len(payload) {
		m, rerr := b.Read(ctx, buf, 0)
		require.NoError(t, rerr)
		got = append(got, buf[:m]...)
	}
	eventually(t, done, "writer")
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, payload, got)
	require.Equal(t, DefaultSmallSize, b.buf.Cap())
}

func TestCloseWaitsForBusyOperations(t *testing.T) {
	_, b := newTestPair(t, testConfig())

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Read(context.Background(), make([]byte, 1), 0)
	}()
	time.Sleep(20 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		b.Close()
	}()
	eventually(t, done, "reader")
	eventually(t, closed, "close")
	require.Zero(t, b.busy)
	require.Nil(t, b.buf.storage)
	kva, _ := b.sub.Limiter().Usage()
	require.Equal(t, int64(DefaultSmallSize), kva, "only the peer's buffer remains")
}

func TestPairCreationFailureLeaksNothing(t *testing.T) {
	cfg := testConfig()
	cfg.MaxKVA = DefaultSmallSize + 1
	sub := newTestSubsystem(t, cfg)

	_, _, err := sub.Pipe(Cred{}, 0)
	require.ErrorIs(t, err, errnoNoMem)
	kva, _ := sub.Limiter().Usage()
	require.Zero(t, kva)

	_, _, err = sub.Pipe(Cred{}, 0x100)
	require.ErrorIs(t, err, errnoInval)
}
