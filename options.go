package pubship

import "github.com/bft-labs/pubship/pkg/log"

// Option configures optional behavior of a Publisher.
type Option func(*options)

// options holds the optional configuration for a Publisher instance.
type options struct {
	logger       log.Logger
	eventHandler EventHandler
	transport    Transport
	plugins      []Plugin
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for publisher events. Events are called
// synchronously from dispatcher goroutines, so handlers must be fast and
// safe for concurrent use.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithTransport replaces the built-in Pub/Sub transport. When set,
// ProjectID and TopicID are not required. Use this to publish to a
// different backend or to fake the network in tests.
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithPlugin registers a plugin to be initialized when the publisher
// starts. Plugins are initialized in registration order and shut down in
// reverse order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}
