package pubship

import (
	"time"

	"github.com/bft-labs/pubship/internal/app"
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

// StateChangeEvent reports a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// PublishSuccessEvent reports a batch acknowledged by the remote service.
type PublishSuccessEvent struct {
	BatchID      string
	MessageCount int
	ByteSize     int
	Duration     time.Duration
}

// PublishErrorEvent reports one failed send attempt. Retryable attempts
// are followed by a backoff and a re-send; the final failure of a batch
// additionally produces a BatchDroppedEvent.
type PublishErrorEvent struct {
	BatchID      string
	Error        error
	MessageCount int
	Attempt      int
	Retryable    bool
}

// BatchDroppedEvent reports a batch whose messages were lost, either to a
// fatal transport error or to retry-budget exhaustion.
type BatchDroppedEvent struct {
	BatchID      string
	Error        error
	MessageCount int
}

// EventHandler receives publisher events. All methods may be called
// concurrently from dispatcher goroutines.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnPublishSuccess(PublishSuccessEvent)
	OnPublishError(PublishErrorEvent)
	OnBatchDropped(BatchDroppedEvent)
}

// eventEmitterWrapper adapts EventHandler to the internal emitter
// interfaces. A nil handler makes every method a no-op.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnPublishSuccess(batchID string, messageCount, byteSize int, duration time.Duration) {
	if e.handler == nil {
		return
	}
	e.handler.OnPublishSuccess(PublishSuccessEvent{
		BatchID:      batchID,
		MessageCount: messageCount,
		ByteSize:     byteSize,
		Duration:     duration,
	})
}

func (e *eventEmitterWrapper) OnPublishError(batchID string, err error, messageCount, attempt int, retryable bool) {
	if e.handler == nil {
		return
	}
	e.handler.OnPublishError(PublishErrorEvent{
		BatchID:      batchID,
		Error:        err,
		MessageCount: messageCount,
		Attempt:      attempt,
		Retryable:    retryable,
	})
}

func (e *eventEmitterWrapper) OnBatchDropped(batchID string, err error, messageCount int) {
	if e.handler == nil {
		return
	}
	e.handler.OnBatchDropped(BatchDroppedEvent{
		BatchID:      batchID,
		Error:        err,
		MessageCount: messageCount,
	})
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}
