package app

import "github.com/bft-labs/pubship/internal/domain"

// accumulator holds the dispatcher's current batch and its thresholds.
// It is not safe for concurrent use; the dispatcher serializes access
// under its own mutex so that an append and its fullness check are one
// atomic step.
type accumulator struct {
	batch    *domain.Batch
	maxBytes int
	maxCount int
}

func newAccumulator(maxBytes, maxCount int) *accumulator {
	return &accumulator{
		batch:    domain.NewBatch(),
		maxBytes: maxBytes,
		maxCount: maxCount,
	}
}

// append adds a message and reports whether the batch is now full against
// the count or byte threshold. A message whose own size exceeds maxBytes
// is still appended; it forms a one-message batch rather than being
// rejected or split. The delay threshold is owned by the flush timer, not
// checked here.
func (a *accumulator) append(m domain.Message) bool {
	a.batch.Append(m)
	return a.batch.Count() >= a.maxCount || a.batch.TotalBytes >= a.maxBytes
}

func (a *accumulator) empty() bool {
	return a.batch.Empty()
}

// take hands off the accumulated batch. The caller owns it exclusively
// from here on; the accumulator must not be used again.
func (a *accumulator) take() *domain.Batch {
	b := a.batch
	a.batch = nil
	return b
}
