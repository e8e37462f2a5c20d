package domain

import "time"

// Batch is an ordered accumulation of messages sent to the topic in one
// network call. It is mutable while it is the dispatcher's current batch
// and frozen the moment it is handed to a send goroutine.
type Batch struct {
	// Messages in insertion order. Order within a batch is preserved
	// end to end.
	Messages []Message

	// TotalBytes is the exact sum of Message.Size over Messages.
	TotalBytes int

	// CreatedAt is the arrival time of the first message. The flush
	// deadline is CreatedAt plus the configured max delay.
	CreatedAt time.Time
}

// NewBatch creates a new empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Append adds a message to the batch and updates the running totals.
// The first append stamps CreatedAt.
func (b *Batch) Append(m Message) {
	if len(b.Messages) == 0 {
		b.CreatedAt = time.Now()
	}
	b.Messages = append(b.Messages, m)
	b.TotalBytes += m.Size()
}

// Count returns the number of messages in the batch.
func (b *Batch) Count() int {
	return len(b.Messages)
}

// Empty returns true if the batch has no messages.
func (b *Batch) Empty() bool {
	return len(b.Messages) == 0
}
