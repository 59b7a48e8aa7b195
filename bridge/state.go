package bridge

import (
	"fmt"
	"sync"

	"github.com/BaSui01/webbridge/types"
)

// SessionState is the lifecycle state of one provider session.
type SessionState int32

const (
	StateUninitialized SessionState = iota
	StateInitializing
	StateAuthenticating
	StateReady
	StateBusy
	StateError
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// validTransitions is the full transition relation. Error is reachable from
// every live state; leaving Error requires a re-initialization, never a
// direct jump back to Ready.
var validTransitions = map[SessionState][]SessionState{
	StateUninitialized:  {StateInitializing},
	StateInitializing:   {StateAuthenticating, StateError},
	StateAuthenticating: {StateReady, StateError},
	StateReady:          {StateBusy, StateError},
	StateBusy:           {StateReady, StateError},
	StateError:          {StateInitializing},
}

// CanTransition reports whether from -> to is a legal state change.
func CanTransition(from, to SessionState) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// stateMachine guards a SessionState behind the transition relation.
type stateMachine struct {
	mu    sync.Mutex
	state SessionState

	// observer is invoked after every successful transition, outside error
	// paths. Optional.
	observer func(SessionState)
}

func (m *stateMachine) Current() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// To performs a transition, failing with ErrInvalidTransition on an illegal
// move so misuse surfaces as a typed error instead of a corrupted session.
func (m *stateMachine) To(next SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !CanTransition(m.state, next) {
		return types.NewError(types.ErrInvalidTransition,
			fmt.Sprintf("illegal session transition %s -> %s", m.state, next))
	}
	m.state = next
	if m.observer != nil {
		m.observer(next)
	}
	return nil
}

// Fail forces the session into Error from any live state. From Uninitialized
// it is a no-op: a session that never started has nothing to poison.
func (m *stateMachine) Fail() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateUninitialized || m.state == StateError {
		return
	}
	m.state = StateError
	if m.observer != nil {
		m.observer(StateError)
	}
}
