package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
)

// Latch is a countdown latch. Wait returns once CountDown has been called
// as many times as the initial count.
type Latch struct {
	remaining atomic.Int64
	done      chan struct{}
	once      sync.Once
}

// NewLatch returns a latch initialised to n.
func NewLatch(n int) *Latch {
	l := &Latch{done: make(chan struct{})}
	l.remaining.Store(int64(n))
	if n <= 0 {
		l.once.Do(func() { close(l.done) })
	}
	return l
}

// CountDown decrements the count. Calls past zero are ignored.
func (l *Latch) CountDown() {
	for {
		cur := l.remaining.Load()
		if cur <= 0 {
			return
		}
		if l.remaining.CompareAndSwap(cur, cur-1) {
			if cur == 1 {
				l.once.Do(func() { close(l.done) })
			}
			return
		}
	}
}

// Count returns the remaining count.
func (l *Latch) Count() int { return int(l.remaining.Load()) }

// Wait blocks until the count reaches zero or ctx is done.
func (l *Latch) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
