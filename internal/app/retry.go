package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/googleapis/gax-go/v2"

	"github.com/bft-labs/pubship/internal/domain"
	"github.com/bft-labs/pubship/pkg/log"
)

// send pushes a closed batch through the transport, retrying transient
// failures with exponential backoff until the attempt budget is spent.
// The batch contents are re-sent unchanged on every attempt. Fatal errors
// drop the batch immediately.
func (d *Dispatcher) send(ctx context.Context, batch *domain.Batch, reason string) {
	defer d.inflight.Done()

	batchID := uuid.NewString()
	d.logger.Debug("dispatching batch",
		log.String("batch_id", batchID),
		log.String("reason", reason),
		log.Int("messages", batch.Count()),
		log.Int("bytes", batch.TotalBytes),
	)

	bo := gax.Backoff{
		Initial:    d.cfg.BackoffInitial,
		Max:        d.cfg.BackoffMax,
		Multiplier: 2,
	}

	start := time.Now()
	for attempt := 1; ; attempt++ {
		err := d.sender.Send(ctx, batch)
		if err == nil {
			elapsed := time.Since(start)
			d.metrics.RecordPublish(batch.Count(), batch.TotalBytes, elapsed)
			if d.emitter != nil {
				d.emitter.OnPublishSuccess(batchID, batch.Count(), batch.TotalBytes, elapsed)
			}
			d.logger.Debug("batch published",
				log.String("batch_id", batchID),
				log.Int("messages", batch.Count()),
				log.Int("attempt", attempt),
				log.Duration("elapsed", elapsed),
			)
			return
		}

		retryable := domain.IsRetryable(err)
		if d.emitter != nil {
			d.emitter.OnPublishError(batchID, err, batch.Count(), attempt, retryable)
		}

		if !retryable {
			d.drop(batchID, batch, err, "permanent send failure")
			return
		}
		if attempt >= d.cfg.MaxAttempts {
			d.drop(batchID, batch, err, "retry budget exhausted")
			return
		}

		d.metrics.RecordRetry()
		pause := bo.Pause()
		d.logger.Warn("send failed, retrying",
			log.String("batch_id", batchID),
			log.Err(err),
			log.Int("attempt", attempt),
			log.Duration("backoff", pause),
		)
		if err := gax.Sleep(ctx, pause); err != nil {
			d.drop(batchID, batch, err, "send context canceled")
			return
		}
	}
}

// drop gives up on a batch. Its messages are not recoverable; the loss is
// counted, logged, and reported to the event handler.
func (d *Dispatcher) drop(batchID string, batch *domain.Batch, err error, why string) {
	d.dropped.Add(int64(batch.Count()))
	d.metrics.RecordDrop(batch.Count())
	if d.emitter != nil {
		d.emitter.OnBatchDropped(batchID, err, batch.Count())
	}
	d.logger.Error("batch dropped",
		log.String("batch_id", batchID),
		log.String("cause", why),
		log.Err(err),
		log.Int("messages", batch.Count()),
	)
}
