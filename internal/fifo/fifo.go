// Package fifo implements the bounded, overlap-preserving magnitude-buffer
// pool that bridges the SDR capture thread and the demodulator thread
// (spec §4.3, §5).
//
// The teacher repo has no analogue (it consumes already-demodulated text
// lines from an external process), so this is grounded on
// bratwurzt-rtlamr's manual ring-buffer rotation (`copy(raw[:n], raw[n:])`)
// generalized from "shift one flat buffer" to "hand a trailing slice of
// samples from the previous block to the next one," and on the pack's
// general preference (rtlamr, rtltcp) for explicit mutex/condvar
// synchronization over channel-of-everything designs when buffers are
// reused in place rather than copied per message.
package fifo

import (
	"fmt"
	"sync"
	"time"
)

// Flag bits for MagBuf.Flags.
const (
	FlagDiscontinuous uint32 = 1 << iota
)

// MagBuf is one unit of capture handed between producer and demodulator.
// Buffers are allocated once at pool init and cycled through
// free -> acquired -> enqueued -> dequeued -> released -> free for the
// lifetime of the pool; they are never freed until pool teardown.
type MagBuf struct {
	Data []uint16

	TotalLength int
	ValidLength int
	Overlap     int

	SampleTimestamp uint64 // 1/12e6 s units, monotone across non-discontinuous buffers
	SysTimestamp    int64  // wall-clock ms at block start

	Flags uint32

	MeanLevel float64
	MeanPower float64

	Dropped int
}

// Discontinuous reports whether the producer dropped samples before this
// buffer.
func (b *MagBuf) Discontinuous() bool { return b.Flags&FlagDiscontinuous != 0 }

// Pool is a fixed-size pool of MagBuf plus the single-writer queue between
// producer and consumer. One mutex and three condition variables guard it,
// matching spec §5: notEmpty (dequeue waiters), empty (drain waiters), and
// freeNonEmpty (acquire waiters).
type Pool struct {
	mu sync.Mutex

	notEmpty     *sync.Cond
	empty        *sync.Cond
	freeNonEmpty *sync.Cond

	free  []*MagBuf
	queue []*MagBuf

	overlap        int
	overlapScratch []uint16

	halted bool
}

// NewPool allocates n buffers of bufferSize samples each with the given
// overlap and returns a ready-to-use pool. overlap must not exceed
// bufferSize.
func NewPool(n, bufferSize, overlap int) (*Pool, error) {
	if overlap > bufferSize {
		return nil, fmt.Errorf("fifo: overlap %d exceeds buffer size %d", overlap, bufferSize)
	}
	if n <= 0 {
		return nil, fmt.Errorf("fifo: pool size must be positive, got %d", n)
	}

	p := &Pool{
		overlap:        overlap,
		overlapScratch: make([]uint16, overlap),
	}
	p.notEmpty = sync.NewCond(&p.mu)
	p.empty = sync.NewCond(&p.mu)
	p.freeNonEmpty = sync.NewCond(&p.mu)

	for i := 0; i < n; i++ {
		p.free = append(p.free, &MagBuf{
			Data:        make([]uint16, bufferSize),
			TotalLength: bufferSize,
			ValidLength: overlap,
			Overlap:     overlap,
		})
	}
	return p, nil
}

// waitTimeout blocks on cond until ready() is true, the pool halts, or
// timeout elapses, holding mu throughout (per sync.Cond contract). A
// timeout of 0 performs a single non-blocking check. It returns the final
// ready()/halted state without re-acquiring state itself.
func (p *Pool) waitTimeout(cond *sync.Cond, timeout time.Duration, ready func() bool) bool {
	if ready() || p.halted {
		return ready()
	}
	if timeout <= 0 {
		return false
	}

	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		p.mu.Lock()
		cond.Broadcast()
		p.mu.Unlock()
	})
	defer timer.Stop()

	for !ready() && !p.halted && time.Now().Before(deadline) {
		cond.Wait()
	}
	return ready()
}

// Acquire blocks up to timeout for a free buffer. It returns (nil, false)
// on timeout or if the pool is halted. On success the returned buffer has
// ValidLength reset to Overlap and its timestamps/flags/dropped count
// zeroed, ready for the producer to fill.
func (p *Pool) Acquire(timeout time.Duration) (*MagBuf, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.halted {
		return nil, false
	}

	ready := func() bool { return len(p.free) > 0 }
	if !p.waitTimeout(p.freeNonEmpty, timeout, ready) || p.halted {
		return nil, false
	}

	buf := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]

	buf.ValidLength = buf.Overlap
	buf.SampleTimestamp = 0
	buf.SysTimestamp = 0
	buf.Flags = 0
	buf.Dropped = 0
	buf.MeanLevel = 0
	buf.MeanPower = 0

	return buf, true
}

// Enqueue publishes buf to the demodulator. It enforces the overlap
// handoff contract (spec §3, §8): on a discontinuous buffer the leading
// Overlap samples are zeroed; otherwise they are overwritten with the
// trailing Overlap samples saved from the previous enqueue. The new
// trailing overlap is then saved for the next call. If the pool has been
// halted, buf is silently returned to the freelist instead.
func (p *Pool) Enqueue(buf *MagBuf) error {
	if buf.Overlap > buf.ValidLength || buf.ValidLength > buf.TotalLength {
		return fmt.Errorf("fifo: invalid buffer bounds overlap=%d valid=%d total=%d",
			buf.Overlap, buf.ValidLength, buf.TotalLength)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.halted {
		p.free = append(p.free, buf)
		p.freeNonEmpty.Signal()
		return nil
	}

	if buf.Discontinuous() {
		for i := 0; i < buf.Overlap; i++ {
			buf.Data[i] = 0
		}
	} else {
		copy(buf.Data[:buf.Overlap], p.overlapScratch)
	}
	copy(p.overlapScratch, buf.Data[buf.ValidLength-buf.Overlap:buf.ValidLength])

	p.queue = append(p.queue, buf)
	p.notEmpty.Signal()
	return nil
}

// Dequeue blocks up to timeout for a queued buffer, returning (nil, false)
// on timeout or halt.
func (p *Pool) Dequeue(timeout time.Duration) (*MagBuf, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.halted {
		return nil, false
	}

	ready := func() bool { return len(p.queue) > 0 }
	if !p.waitTimeout(p.notEmpty, timeout, ready) || p.halted {
		return nil, false
	}

	buf := p.queue[0]
	p.queue = p.queue[1:]
	if len(p.queue) == 0 {
		p.empty.Broadcast()
	}
	return buf, true
}

// Release returns buf to the freelist, waking one Acquire waiter if the
// freelist had been empty.
func (p *Pool) Release(buf *MagBuf) {
	p.mu.Lock()
	defer p.mu.Unlock()

	wasEmpty := len(p.free) == 0
	p.free = append(p.free, buf)
	if wasEmpty {
		p.freeNonEmpty.Signal()
	}
}

// Drain blocks until the queue is empty or the pool halts.
func (p *Pool) Drain() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) > 0 && !p.halted {
		p.empty.Wait()
	}
}

// Halt is the single cancellation signal for the pool: every queued
// buffer moves to the freelist, the halt flag is set, and all waiters are
// woken. Subsequent Acquire/Dequeue return false immediately; Enqueue
// silently frees its argument.
func (p *Pool) Halt() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.free = append(p.free, p.queue...)
	p.queue = nil
	p.halted = true

	p.notEmpty.Broadcast()
	p.empty.Broadcast()
	p.freeNonEmpty.Broadcast()
}

// Halted reports whether Halt has been called.
func (p *Pool) Halted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.halted
}
