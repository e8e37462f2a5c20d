// Package domain holds the core entities of the batching publisher:
// messages, batches, and the error taxonomy shared by every layer.
//
// The package has no dependencies on infrastructure. Messages are built
// and validated here, batches track their own counts and byte totals,
// and transport errors are classified as retryable or fatal via the
// RetryableError marker.
package domain
