package service

import (
	"fmt"
	"log/slog"
)

// State is where a single upload is in the pipeline.
type State int

const (
	StateRequested State = iota
	StateOwnerResolved
	StateAccepted
	StateCompressing
	StateFinalized
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRequested:
		return "requested"
	case StateOwnerResolved:
		return "owner_resolved"
	case StateAccepted:
		return "accepted"
	case StateCompressing:
		return "compressing"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateFinalized || s == StateFailed
}

var next = map[State]State{
	StateRequested:     StateOwnerResolved,
	StateOwnerResolved: StateAccepted,
	StateAccepted:      StateCompressing,
	StateCompressing:   StateFinalized,
}

// CanTransition reports whether from -> to is a legal step. Every non-terminal state may fail.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return next[from] == to
}

// tracker walks one upload through its states and logs every step.
type tracker struct {
	state State
	log   *slog.Logger
}

func newTracker(log *slog.Logger) *tracker {
	t := &tracker{state: StateRequested, log: log}
	t.log.Debug("upload state", "state", t.state.String())
	return t
}

// advance moves to the next state. An illegal step is logged and ignored.
func (t *tracker) advance(to State, attrs ...any) bool {
	if !CanTransition(t.state, to) {
		t.log.Error("illegal upload transition", "from", t.state.String(), "to", to.String())
		return false
	}
	from := t.state
	t.state = to
	t.log.Info("upload state", append([]any{"from", from.String(), "state", to.String()}, attrs...)...)
	return true
}

// fail moves to Failed and logs the classified failure with its internal cause.
func (t *tracker) fail(f *Failure) {
	if t.state.Terminal() {
		return
	}
	from := t.state
	t.state = StateFailed
	t.log.Warn("upload state",
		"from", from.String(),
		"state", StateFailed.String(),
		"kind", string(f.Kind),
		"error", f.cause,
	)
}
