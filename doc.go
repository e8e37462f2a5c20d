// Package pubship is an embeddable batching publisher for Google Cloud
// Pub/Sub. It accepts a stream of individual messages, groups them into
// batches bounded by byte size, message count, and delay, and ships each
// batch in a single Publish RPC with bounded retry on transient failures.
//
// Example usage:
//
//	cfg := pubship.DefaultConfig()
//	cfg.ProjectID = "my-project"
//	cfg.TopicID = "events"
//
//	pub, err := pubship.New(cfg, pubship.WithLogger(log.NewZerologConsole()))
//	if err != nil {
//	    // handle err
//	}
//	if err := pub.Start(context.Background()); err != nil {
//	    // handle err
//	}
//	defer pub.Shutdown(context.Background())
//
//	pub.Publish([]byte(`{"event":"signup"}`), map[string]any{"source": "web"})
//
// Publish never blocks on the network: the current batch is swapped for a
// fresh one the moment it is flushed, and sends run on their own
// goroutines. Shutdown drains the current batch and waits for every
// in-flight send to resolve or exhaust its retry budget.
package pubship
