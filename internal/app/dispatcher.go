package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/pubship/internal/domain"
	"github.com/bft-labs/pubship/internal/metrics"
	"github.com/bft-labs/pubship/internal/ports"
	"github.com/bft-labs/pubship/pkg/log"
)

// Flush reasons, logged with every dispatched batch.
const (
	flushReasonCount = "max_count"
	flushReasonBytes = "max_bytes"
	flushReasonDelay = "max_delay"
	flushReasonDrain = "drain"
)

// DispatcherConfig contains the thresholds and retry knobs for the
// dispatcher. All values must be positive; the config layer validates
// them before they get here.
type DispatcherConfig struct {
	MaxBytes int
	MaxCount int
	MaxDelay time.Duration

	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// SendEventEmitter is called as batches resolve. Implementations must be
// safe for concurrent use; calls come from send goroutines.
type SendEventEmitter interface {
	OnPublishSuccess(batchID string, messageCount, byteSize int, duration time.Duration)
	OnPublishError(batchID string, err error, messageCount, attempt int, retryable bool)
	OnBatchDropped(batchID string, err error, messageCount int)
}

// Dispatcher owns the single current batch. Producers append to it under
// the dispatcher's mutex; the moment a threshold trips or the flush timer
// fires, the batch is swapped for a fresh one and handed to a send
// goroutine, so producers never wait on the network. Multiple sends may
// be in flight concurrently.
type Dispatcher struct {
	cfg     DispatcherConfig
	sender  ports.BatchSender
	logger  log.Logger
	emitter SendEventEmitter
	metrics *metrics.Metrics

	// sendCtx lives for the whole dispatcher. Drain does not cancel it:
	// in-flight sends run to completion or retry exhaustion.
	sendCtx context.Context

	mu      sync.Mutex
	current *accumulator
	timer   flushTimer
	gen     uint64
	closed  bool

	inflight sync.WaitGroup
	dropped  atomic.Int64
}

// NewDispatcher creates a dispatcher with an empty current batch.
func NewDispatcher(cfg DispatcherConfig, sender ports.BatchSender, logger log.Logger, emitter SendEventEmitter, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		cfg:     cfg,
		sender:  sender,
		logger:  logger,
		emitter: emitter,
		metrics: m,
		sendCtx: context.Background(),
		current: newAccumulator(cfg.MaxBytes, cfg.MaxCount),
	}
}

// Publish appends a message to the current batch. If the append trips the
// count or byte threshold the batch is flushed synchronously before
// Publish returns; the network call itself happens on a separate
// goroutine. Returns domain.ErrPublisherClosed once Drain has begun.
func (d *Dispatcher) Publish(m domain.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return domain.ErrPublisherClosed
	}

	wasEmpty := d.current.empty()
	if d.current.append(m) {
		reason := flushReasonBytes
		if d.current.batch.Count() >= d.cfg.MaxCount {
			reason = flushReasonCount
		}
		d.flushLocked(reason)
		return nil
	}

	// First message of a fresh batch arms the delay timer.
	if wasEmpty {
		gen := d.gen
		d.timer.arm(d.cfg.MaxDelay, func() { d.onDeadline(gen) })
	}
	return nil
}

// onDeadline is the flush timer callback. The generation check makes a
// fire that raced with a threshold flush a no-op, so a batch can never be
// dispatched twice.
func (d *Dispatcher) onDeadline(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != d.gen || d.closed || d.current.empty() {
		return
	}
	d.flushLocked(flushReasonDelay)
}

// flushLocked swaps the current batch for a fresh one and hands the old
// one to a send goroutine. Caller must hold d.mu.
func (d *Dispatcher) flushLocked(reason string) {
	batch := d.current.take()
	d.current = newAccumulator(d.cfg.MaxBytes, d.cfg.MaxCount)
	d.timer.stop()
	d.gen++

	d.inflight.Add(1)
	go d.send(d.sendCtx, batch, reason)
}

// Drain stops intake, flushes whatever sits in the current batch even if
// below every threshold, and waits for all in-flight sends to resolve or
// exhaust their retry budget. It returns the total number of messages
// dropped over the dispatcher's lifetime; the error is non-nil only when
// ctx expires before the drain completes.
func (d *Dispatcher) Drain(ctx context.Context) (int, error) {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		if !d.current.empty() {
			d.flushLocked(flushReasonDrain)
		} else {
			d.timer.stop()
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return int(d.dropped.Load()), nil
	case <-ctx.Done():
		d.logger.Warn("drain timed out with sends still in flight")
		return int(d.dropped.Load()), domain.ErrShutdownTimeout
	}
}
