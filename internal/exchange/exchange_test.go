package exchange

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"isatab/internal/template"
	"isatab/pkg/isa"
)

func TestPublishWakesAllWaiters(t *testing.T) {
	x := New(nil)
	if err := x.Reserve("s_1.txt"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	f, _ := isa.NewFactor("dose", nil)
	var wg sync.WaitGroup
	results := make([]template.Summary, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := x.Await(context.Background(), "s_1.txt", Backoff{Initial: time.Millisecond, MaxWait: time.Second})
			if err != nil {
				t.Errorf("await: %v", err)
			}
			results[i] = s
		}(i)
	}
	if err := x.Publish("s_1.txt", template.Summary{Factors: []*isa.Factor{f}}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	wg.Wait()
	for i, s := range results {
		if len(s.Factors) != 1 || s.Factors[0] != f {
			t.Fatalf("waiter %d got %+v", i, s)
		}
	}
}

func TestPublishIsWriteOnce(t *testing.T) {
	x := New(nil)
	_ = x.Reserve("k")
	if err := x.Publish("k", template.Summary{}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := x.Publish("k", template.Summary{}); !isa.HasCode(err, isa.ErrCodeExchangeDuplicate) {
		t.Fatalf("expected duplicate completion error, got %v", err)
	}
	if err := x.Reserve("k"); !isa.HasCode(err, isa.ErrCodeExchangeDuplicate) {
		t.Fatalf("expected duplicate reservation error, got %v", err)
	}
}

func TestAwaitTimesOut(t *testing.T) {
	x := New(nil)
	_ = x.Reserve("k")
	start := time.Now()
	_, err := x.Await(context.Background(), "k", Backoff{Initial: time.Millisecond, MaxInterval: 4 * time.Millisecond, MaxWait: 30 * time.Millisecond})
	if !isa.HasCode(err, isa.ErrCodeExchangeTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Fatalf("returned before the wait budget was spent")
	}
}

func TestFailPropagatesUpstreamError(t *testing.T) {
	x := New(nil)
	_ = x.Reserve("k")
	boom := errors.New("disk full")
	_ = x.Fail("k", boom)
	_, err := x.Await(context.Background(), "k", Backoff{MaxWait: time.Second})
	if !isa.HasCode(err, isa.ErrCodeExchangeUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if _, ok, lerr := x.Lookup("k"); !ok || lerr == nil {
		t.Fatalf("lookup should report completed failure")
	}
}

func TestAwaitHonoursContext(t *testing.T) {
	x := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := x.Await(ctx, "missing", Backoff{MaxWait: time.Second}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
