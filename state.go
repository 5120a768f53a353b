package session

import "sync/atomic"

// State is the session's lock-free lifecycle state machine, following the
// same pure-CAS, no-mutex approach as the event loop's state tracker this
// module otherwise draws its run-loop shape from.
type State uint64

const (
	// StateInitializing is the state before Start has completed.
	StateInitializing State = iota
	// StateActive is the normal event-processing state.
	StateActive
	// StatePaused means inbound events are dropped, not queued, until
	// Resume is called (see spec's Paused-state resolution).
	StatePaused
	// StateCompacting is the transient state during ring-snapshot
	// summarization and file rollover.
	StateCompacting
	// StateEnded is terminal.
	StateEnded
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "Initializing"
	case StateActive:
		return "Active"
	case StatePaused:
		return "Paused"
	case StateCompacting:
		return "Compacting"
	case StateEnded:
		return "Ended"
	default:
		return "Unknown"
	}
}

// atomicState wraps a State in an atomic.Uint64 for lock-free transitions.
type atomicState struct {
	v atomic.Uint64
}

func newAtomicState(initial State) *atomicState {
	s := &atomicState{}
	s.v.Store(uint64(initial))
	return s
}

func (s *atomicState) Load() State {
	return State(s.v.Load())
}

func (s *atomicState) Store(state State) {
	s.v.Store(uint64(state))
}

// tryTransition attempts an atomic CAS from one state to another.
func (s *atomicState) tryTransition(from, to State) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// isEnded reports whether the state machine has reached the terminal
// state.
func (s *atomicState) isEnded() bool {
	return s.Load() == StateEnded
}
