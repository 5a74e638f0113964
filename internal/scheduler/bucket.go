package scheduler

import (
	"context"
	"sync"
	"time"
)

// bucket is a lazily refilled token bucket with a FIFO wait queue.
//
// take consumes a token immediately when one is available and no caller is
// already queued; otherwise the caller joins the queue and is woken by the
// drain goroutine in submission order. Only one drain goroutine runs per
// bucket at a time; it owns queue dispatch, not the token state itself.
type bucket struct {
	mu       sync.Mutex
	capacity float64
	rate     float64 // tokens per second
	tokens   float64
	last     time.Time
	waiters  []*waiter
	draining bool

	poll         time.Duration
	onQueueDepth func(int) // optional gauge hook
}

type waiter struct {
	ch chan struct{}
}

func newBucket(capacity int, rate float64) *bucket {
	if capacity < 1 {
		capacity = 1
	}
	if rate <= 0 {
		rate = 1
	}

	// Poll often enough to hand out single tokens at the configured rate,
	// clamped so slow pools do not sleep past their own refills.
	poll := time.Duration(float64(time.Second) / rate)
	if poll < 5*time.Millisecond {
		poll = 5 * time.Millisecond
	}
	if poll > 100*time.Millisecond {
		poll = 100 * time.Millisecond
	}

	return &bucket{
		capacity: float64(capacity),
		rate:     rate,
		tokens:   float64(capacity),
		last:     time.Now(),
		poll:     poll,
	}
}

// refillLocked adds tokens for the time elapsed since the last refill.
// Caller must hold mu.
func (b *bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.last = now
}

// take blocks until a token is granted or the context is done.
func (b *bucket) take(ctx context.Context) error {
	b.mu.Lock()
	b.refillLocked(time.Now())

	if len(b.waiters) == 0 && b.tokens >= 1 {
		b.tokens--
		b.mu.Unlock()
		return nil
	}

	w := &waiter{ch: make(chan struct{})}
	b.waiters = append(b.waiters, w)
	b.reportDepthLocked()
	if !b.draining {
		b.draining = true
		go b.drain()
	}
	b.mu.Unlock()

	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		b.abandon(w)
		return ctx.Err()
	}
}

// abandon removes a cancelled waiter from the queue. If the drain loop
// already granted the waiter a token, the token is returned to the bucket.
func (b *bucket) abandon(w *waiter) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, q := range b.waiters {
		if q == w {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			b.reportDepthLocked()
			return
		}
	}

	// Not queued anymore: the grant raced the cancellation.
	b.tokens++
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
}

// drain wakes queued waiters in FIFO order as tokens become available.
// Exits once the queue is empty.
func (b *bucket) drain() {
	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	for range ticker.C {
		b.mu.Lock()
		b.refillLocked(time.Now())

		for len(b.waiters) > 0 && b.tokens >= 1 {
			w := b.waiters[0]
			b.waiters = b.waiters[1:]
			b.tokens--
			close(w.ch)
		}
		b.reportDepthLocked()

		if len(b.waiters) == 0 {
			b.draining = false
			b.mu.Unlock()
			return
		}
		b.mu.Unlock()
	}
}

func (b *bucket) reportDepthLocked() {
	if b.onQueueDepth != nil {
		b.onQueueDepth(len(b.waiters))
	}
}
