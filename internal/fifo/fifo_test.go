package fifo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewPoolRejectsOverlapLargerThanBuffer(t *testing.T) {
	_, err := NewPool(2, 64, 128)
	require.Error(t, err)
}

func TestAcquireOnEmptyFreelistWithZeroTimeoutReturnsImmediately(t *testing.T) {
	pool, err := NewPool(1, 64, 8)
	require.NoError(t, err)

	buf, ok := pool.Acquire(0)
	require.True(t, ok)

	_, ok = pool.Acquire(0)
	require.False(t, ok, "freelist is empty, timeout=0 must not block")

	pool.Release(buf)
}

func TestAcquireWithPositiveTimeoutWaitsAtMostTimeout(t *testing.T) {
	pool, err := NewPool(1, 64, 8)
	require.NoError(t, err)

	buf, ok := pool.Acquire(0)
	require.True(t, ok)

	start := time.Now()
	_, ok = pool.Acquire(80 * time.Millisecond)
	elapsed := time.Since(start)

	require.False(t, ok)
	require.Less(t, elapsed, 500*time.Millisecond)

	pool.Release(buf)
}

// TestOverlapCarriesTailIntoNextBufferHead is spec §8 scenario 5: two
// 1024-sample buffers with overlap=256 enqueued back to back, neither
// discontinuous; buf2's leading 256 samples must equal buf1's trailing 256.
func TestOverlapCarriesTailIntoNextBufferHead(t *testing.T) {
	pool, err := NewPool(2, 1024, 256)
	require.NoError(t, err)

	buf1, ok := pool.Acquire(0)
	require.True(t, ok)
	for i := 256; i < 1024; i++ {
		buf1.Data[i] = uint16(i)
	}
	buf1.ValidLength = 1024
	buf1Tail := append([]uint16(nil), buf1.Data[768:1024]...)

	require.NoError(t, pool.Enqueue(buf1))

	buf2, ok := pool.Acquire(0)
	require.True(t, ok)
	for i := 256; i < 1024; i++ {
		buf2.Data[i] = uint16(i + 10000)
	}
	buf2.ValidLength = 1024

	require.NoError(t, pool.Enqueue(buf2))

	require.Equal(t, buf1Tail, buf2.Data[0:256])
}

// TestDiscontinuousBufferZerosOverlapAndCarriesDroppedCount is spec §8
// scenario 6: a producer that fails to acquire in time marks the next
// buffer DISCONTINUOUS with a dropped-sample count; Enqueue zeros that
// buffer's overlap region instead of splicing in the previous tail.
func TestDiscontinuousBufferZerosOverlapAndCarriesDroppedCount(t *testing.T) {
	pool, err := NewPool(2, 1024, 256)
	require.NoError(t, err)

	buf1, ok := pool.Acquire(0)
	require.True(t, ok)
	for i := range buf1.Data {
		buf1.Data[i] = 0xFFFF
	}
	buf1.ValidLength = 1024
	require.NoError(t, pool.Enqueue(buf1))

	buf2, ok := pool.Acquire(0)
	require.True(t, ok)
	for i := range buf2.Data {
		buf2.Data[i] = 0xAAAA
	}
	buf2.ValidLength = 1024
	buf2.Flags |= FlagDiscontinuous
	buf2.Dropped = 2048

	require.NoError(t, pool.Enqueue(buf2))

	for i := 0; i < 256; i++ {
		require.Equal(t, uint16(0), buf2.Data[i], "overlap region must be zeroed on a discontinuous buffer")
	}
	require.True(t, buf2.Discontinuous())
	require.Equal(t, 2048, buf2.Dropped)
}

func TestHaltWakesPendingAcquire(t *testing.T) {
	pool, err := NewPool(1, 64, 8)
	require.NoError(t, err)

	buf, ok := pool.Acquire(0)
	require.True(t, ok)
	buf.ValidLength = 64
	require.NoError(t, pool.Enqueue(buf))

	_, ok = pool.Dequeue(0)
	require.True(t, ok)

	done := make(chan struct{})
	go func() {
		_, ok := pool.Acquire(5 * time.Second)
		require.False(t, ok)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	pool.Halt()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Acquire did not wake within one scheduler tick of Halt")
	}
	require.True(t, pool.Halted())
}

func TestEnqueueAfterHaltReturnsBufferToFreelistSilently(t *testing.T) {
	pool, err := NewPool(1, 64, 8)
	require.NoError(t, err)

	buf, ok := pool.Acquire(0)
	require.True(t, ok)
	pool.Halt()

	buf.ValidLength = 64
	err = pool.Enqueue(buf)
	require.NoError(t, err)

	_, ok = pool.Dequeue(0)
	require.False(t, ok, "a halted pool must never hand out queued buffers")
}
