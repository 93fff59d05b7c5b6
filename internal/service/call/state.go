// Package call owns the lifecycle of active meeting calls: validation,
// session registration, audio wiring, transcript relay, and teardown.
package call

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a meeting call.
type State int

const (
	// StateIncoming - Call received, nothing decided yet.
	StateIncoming State = iota
	// StateValidating - Checking call type and identity fields.
	StateValidating
	// StateRejected - Call refused during validation. Terminal.
	StateRejected
	// StateRegistered - Session persisted, media not yet answered.
	StateRegistered
	// StateMediaActive - Call answered, audio flowing to STT.
	StateMediaActive
	// StateTerminated - Call ended and torn down. Terminal.
	StateTerminated
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIncoming:
		return "INCOMING"
	case StateValidating:
		return "VALIDATING"
	case StateRejected:
		return "REJECTED"
	case StateRegistered:
		return "REGISTERED"
	case StateMediaActive:
		return "MEDIA_ACTIVE"
	case StateTerminated:
		return "TERMINATED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal (REJECTED or TERMINATED).
func (s State) IsTerminal() bool {
	return s == StateRejected || s == StateTerminated
}

// ErrInvalidTransition is returned for a transition the state machine
// does not permit.
var ErrInvalidTransition = errors.New("invalid call state transition")

// validTransitions lists the permitted state graph:
//
//	INCOMING → VALIDATING → REJECTED
//	                      → REGISTERED → MEDIA_ACTIVE → TERMINATED
//	                        REGISTERED → TERMINATED (answer failed)
var validTransitions = map[State][]State{
	StateIncoming:    {StateValidating},
	StateValidating:  {StateRejected, StateRegistered},
	StateRegistered:  {StateMediaActive, StateTerminated},
	StateMediaActive: {StateTerminated},
}

// Lifecycle tracks the state machine for a single call.
// Thread-safe for concurrent access.
type Lifecycle struct {
	mu     sync.RWMutex
	callID string
	state  State
}

// NewLifecycle creates a call lifecycle in INCOMING state.
func NewLifecycle(callID string) *Lifecycle {
	return &Lifecycle{
		callID: callID,
		state:  StateIncoming,
	}
}

// CallID returns the call ID.
func (l *Lifecycle) CallID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.callID
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsTerminal returns true if the call is in a terminal state.
func (l *Lifecycle) IsTerminal() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.IsTerminal()
}

// Transition moves the lifecycle to the target state, validating the
// move against the state graph.
func (l *Lifecycle) Transition(to State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, allowed := range validTransitions[l.state] {
		if allowed == to {
			l.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.state, to)
}

// Terminate forces the lifecycle into TERMINATED from any non-terminal
// state. Idempotent from terminal states; returns true if the state
// actually changed.
func (l *Lifecycle) Terminate() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateTerminated
	return true
}
