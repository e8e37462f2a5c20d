package app

import (
	"sync"

	"github.com/bft-labs/pubship/internal/domain"
	"github.com/bft-labs/pubship/pkg/log"
)

// State represents the lifecycle state of the publisher.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// StateEmitter is called when the lifecycle state changes.
type StateEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Lifecycle manages the publisher's state machine. It guards Start and
// Shutdown against being called in the wrong state and keeps Publish
// confined to StateRunning.
type Lifecycle struct {
	mu      sync.RWMutex
	state   State
	logger  log.Logger
	emitter StateEmitter
}

// NewLifecycle creates a lifecycle manager in StateStopped.
func NewLifecycle(logger log.Logger, emitter StateEmitter) *Lifecycle {
	return &Lifecycle{
		state:   StateStopped,
		logger:  logger,
		emitter: emitter,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo attempts to transition to a new state.
// Returns an error if the transition is not valid.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state

	if !validTransition(oldState, newState) {
		l.mu.Unlock()
		if oldState == StateStopped || oldState == StateCrashed {
			return domain.ErrNotRunning
		}
		return domain.ErrAlreadyRunning
	}

	l.state = newState
	l.mu.Unlock()

	// Emit outside the lock
	if l.emitter != nil {
		l.emitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Info("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)

	return nil
}

// CanStart returns true if Start() can be called.
func (l *Lifecycle) CanStart() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateStopped || l.state == StateCrashed
}

// CanStop returns true if Shutdown() can be called.
func (l *Lifecycle) CanStop() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateRunning || l.state == StateStarting
}

// IsRunning returns true if Publish() calls are currently accepted.
func (l *Lifecycle) IsRunning() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateRunning
}

func validTransition(from, to State) bool {
	switch from {
	case StateStopped:
		return to == StateStarting
	case StateStarting:
		return to == StateRunning || to == StateCrashed
	case StateRunning:
		return to == StateStopping || to == StateCrashed
	case StateStopping:
		return to == StateStopped || to == StateCrashed
	case StateCrashed:
		return to == StateStarting
	default:
		return false
	}
}
