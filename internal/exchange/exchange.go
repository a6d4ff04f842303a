// Package exchange hands study and assay column summaries to the
// investigation worker. Each key is a write-once slot; readers block until
// the slot is published, failed, or their wait budget runs out.
package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/agilira/go-errors"

	"isatab/internal/observability"
	"isatab/internal/template"
	"isatab/pkg/isa"
)

// Backoff bounds how long Await waits. Each attempt waits twice as long as
// the previous one, capped at MaxInterval, until MaxWait has elapsed.
type Backoff struct {
	Initial     time.Duration
	MaxInterval time.Duration
	MaxWait     time.Duration
}

// DefaultBackoff waits up to five minutes.
var DefaultBackoff = Backoff{
	Initial:     50 * time.Millisecond,
	MaxInterval: 5 * time.Second,
	MaxWait:     5 * time.Minute,
}

type slot struct {
	done    chan struct{}
	summary template.Summary
	err     error
	closed  bool
}

// Exchange is safe for concurrent use.
type Exchange struct {
	mu     sync.Mutex
	slots  map[string]*slot
	logger observability.Logger
}

// New returns an empty exchange. A nil logger discards output.
func New(logger observability.Logger) *Exchange {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Exchange{slots: make(map[string]*slot), logger: logger}
}

// Reserve creates the empty slot for key. Reserving a key twice is an error.
func (x *Exchange) Reserve(key string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.slots[key]; ok {
		return errors.New(isa.ErrCodeExchangeDuplicate, "key already reserved").WithContext("key", key)
	}
	x.slots[key] = &slot{done: make(chan struct{})}
	return nil
}

// Publish stores the summary for key and wakes every waiter.
func (x *Exchange) Publish(key string, s template.Summary) error {
	return x.complete(key, s, nil)
}

// Fail marks key as never going to be published; waiters receive an
// upstream error wrapping cause.
func (x *Exchange) Fail(key string, cause error) error {
	err := errors.Wrap(cause, isa.ErrCodeExchangeUpstream, "upstream worker failed").WithContext("key", key)
	return x.complete(key, template.Summary{}, err)
}

func (x *Exchange) complete(key string, s template.Summary, err error) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	sl, ok := x.slots[key]
	if !ok {
		sl = &slot{done: make(chan struct{})}
		x.slots[key] = sl
	}
	if sl.closed {
		return errors.New(isa.ErrCodeExchangeDuplicate, "key already completed").WithContext("key", key)
	}
	sl.summary, sl.err, sl.closed = s, err, true
	close(sl.done)
	return nil
}

// Lookup returns the summary without waiting.
func (x *Exchange) Lookup(key string) (template.Summary, bool, error) {
	x.mu.Lock()
	sl, ok := x.slots[key]
	x.mu.Unlock()
	if !ok || !sl.closed {
		return template.Summary{}, false, nil
	}
	return sl.summary, true, sl.err
}

// Await blocks until key completes, ctx ends, or the backoff budget is
// spent. An unreserved key is reserved on first wait.
func (x *Exchange) Await(ctx context.Context, key string, b Backoff) (template.Summary, error) {
	x.mu.Lock()
	sl, ok := x.slots[key]
	if !ok {
		sl = &slot{done: make(chan struct{})}
		x.slots[key] = sl
	}
	x.mu.Unlock()

	if b.Initial <= 0 {
		b.Initial = DefaultBackoff.Initial
	}
	if b.MaxInterval <= 0 {
		b.MaxInterval = DefaultBackoff.MaxInterval
	}
	if b.MaxWait <= 0 {
		b.MaxWait = DefaultBackoff.MaxWait
	}
	deadline := time.Now().Add(b.MaxWait)
	interval := b.Initial
	for attempt := 1; ; attempt++ {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return template.Summary{}, errors.New(isa.ErrCodeExchangeTimeout, "timed out waiting for column summary").
				WithContext("key", key).
				WithContext("waited", b.MaxWait.String()).
				WithContext("attempts", attempt-1)
		}
		wait := interval
		if wait > remaining {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-sl.done:
			timer.Stop()
			return sl.summary, sl.err
		case <-ctx.Done():
			timer.Stop()
			return template.Summary{}, ctx.Err()
		case <-timer.C:
			x.logger.Debug("still waiting for column summary", "key", key, "attempt", attempt)
		}
		interval *= 2
		if interval > b.MaxInterval {
			interval = b.MaxInterval
		}
	}
}
