package pipeline

import (
	"context"
	"sync"
	"time"
)

// RunState describes the lifecycle stage of a write run. States only move
// forward.
type RunState string

const (
	StateScheduled         RunState = "scheduled"
	StateRendering         RunState = "rendering"
	StateWaitingOnExchange RunState = "waiting_on_exchange"
	StateDraining          RunState = "draining"
	StateCompleted         RunState = "completed"
	StateFailed            RunState = "failed"
)

var stateRank = map[RunState]int{
	StateScheduled:         0,
	StateRendering:         1,
	StateWaitingOnExchange: 2,
	StateDraining:          3,
	StateCompleted:         4,
	StateFailed:            4,
}

// Terminal reports whether s ends a run.
func (s RunState) Terminal() bool { return s == StateCompleted || s == StateFailed }

// Transition records when a run entered a state.
type Transition struct {
	State RunState  `json:"state" msgpack:"state"`
	At    time.Time `json:"at" msgpack:"at"`
}

type tracker struct {
	mu          sync.Mutex
	state       RunState
	transitions []Transition
	onChange    func(RunState)
}

func newTracker(onChange func(RunState)) *tracker {
	t := &tracker{state: StateScheduled, onChange: onChange}
	t.transitions = append(t.transitions, Transition{State: StateScheduled, At: time.Now().UTC()})
	return t
}

// advance moves to s if s is later than the current state.
func (t *tracker) advance(s RunState) {
	t.mu.Lock()
	if t.state.Terminal() || stateRank[s] <= stateRank[t.state] {
		t.mu.Unlock()
		return
	}
	t.state = s
	t.transitions = append(t.transitions, Transition{State: s, At: time.Now().UTC()})
	cb := t.onChange
	t.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

func (t *tracker) snapshot() (RunState, []Transition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Transition, len(t.transitions))
	copy(out, t.transitions)
	return t.state, out
}

type trackerKey struct{}

// MarkWaiting is called by producers that are about to block on another
// worker's output; it moves the run to StateWaitingOnExchange.
func MarkWaiting(ctx context.Context) {
	if t, ok := ctx.Value(trackerKey{}).(*tracker); ok {
		t.advance(StateWaitingOnExchange)
	}
}
