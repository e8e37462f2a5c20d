package ports

import (
	"context"

	"github.com/bft-labs/pubship/internal/domain"
)

// BatchSender transmits a closed batch to the remote pub/sub service.
// It is the single effectful operation crossing the process boundary.
//
// Implementations classify transient failures by wrapping the error with
// domain.MarkRetryable; any unwrapped error is treated as fatal and the
// batch is dropped without retry. A nil return acknowledges the whole
// batch.
type BatchSender interface {
	Send(ctx context.Context, batch *domain.Batch) error
}

// SenderFunc adapts a function to the BatchSender interface.
type SenderFunc func(ctx context.Context, batch *domain.Batch) error

// Send calls f(ctx, batch).
func (f SenderFunc) Send(ctx context.Context, batch *domain.Batch) error {
	return f(ctx, batch)
}
