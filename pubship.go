package pubship

import (
	"context"
	"net/http"
	"sync"

	"github.com/bft-labs/pubship/internal/adapters/pubsub"
	"github.com/bft-labs/pubship/internal/app"
	"github.com/bft-labs/pubship/internal/config"
	"github.com/bft-labs/pubship/internal/domain"
	"github.com/bft-labs/pubship/internal/metrics"
	"github.com/bft-labs/pubship/internal/ports"
	"github.com/bft-labs/pubship/pkg/log"
)

// Config holds the publisher's startup configuration.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = config.Config

// DefaultConfig returns a Config with default thresholds: 1,000,000 bytes,
// 100 messages, 5 seconds. ProjectID and TopicID must be set before Start
// unless a custom Transport is injected.
func DefaultConfig() Config {
	return config.DefaultConfig()
}

// Errors returned by the public API. Check with errors.Is / errors.As.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrClosed          = domain.ErrPublisherClosed
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
)

// ValidationError reports an attribute whose value is not a string.
type ValidationError = domain.ValidationError

// DroppedError reports messages lost to retry exhaustion or fatal
// transport failures; Shutdown returns it when the count is non-zero.
type DroppedError = domain.DroppedError

// Message is a validated outbound record as seen by a custom Transport.
type Message struct {
	Payload    []byte
	Attributes map[string]string
}

// Transport sends one closed batch of messages to the destination in a
// single network call. Message order within the slice must be preserved.
// Wrap transient failures with MarkRetryable; any other error drops the
// batch without retry.
type Transport interface {
	Send(ctx context.Context, messages []Message) error
}

// MarkRetryable wraps err so the dispatcher retries the batch with
// backoff instead of dropping it.
func MarkRetryable(err error) error {
	return domain.MarkRetryable(err)
}

// IsRetryable reports whether err was marked retryable.
func IsRetryable(err error) bool {
	return domain.IsRetryable(err)
}

// Publisher batches messages and ships them to a pub/sub topic.
// Use New() to create an instance, Start() to enter service.
type Publisher struct {
	config config.Config
	opts   options

	lifecycle  *app.Lifecycle
	dispatcher *app.Dispatcher
	metrics    *metrics.Metrics
	logger     log.Logger

	// staticAttrs is the validated static attribute map applied to
	// every message. Populated by the Start() self-test.
	staticAttrs map[string]string

	// sender is the pubsub client when the transport was not injected;
	// closed on shutdown.
	sender *pubsub.Sender

	plugins []Plugin

	mu sync.Mutex
}

// New creates a Publisher with the given configuration.
// The instance is created in StateStopped; call Start() to enter service.
// Returns an error if the configuration is invalid.
func New(cfg Config, opts ...Option) (*Publisher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	p := &Publisher{
		config:  cfg,
		opts:    o,
		logger:  o.logger,
		metrics: metrics.New(),
		plugins: o.plugins,
	}
	p.lifecycle = app.NewLifecycle(o.logger, &eventEmitterWrapper{handler: o.eventHandler})

	return p, nil
}

// Start validates the static attribute map, connects the transport, and
// brings the publisher into service. A non-string static attribute value
// is a fatal startup error: it surfaces here, before the first message
// flows, rather than on some later Publish call.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := p.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	// One-time attribute self-test: build a message from the static
	// configuration with an empty payload.
	static, err := domain.ValidateAttributes(p.config.Attributes)
	if err != nil {
		p.logger.Error("static attribute self-test failed", log.Err(err))
		_ = p.lifecycle.TransitionTo(app.StateCrashed, "attribute self-test failed")
		return err
	}
	p.staticAttrs = static

	sender, err := p.buildSender(ctx)
	if err != nil {
		_ = p.lifecycle.TransitionTo(app.StateCrashed, "transport setup failed")
		return err
	}

	emitter := &eventEmitterWrapper{handler: p.opts.eventHandler}
	p.dispatcher = app.NewDispatcher(app.DispatcherConfig{
		MaxBytes:       p.config.MaxBytes,
		MaxCount:       p.config.MaxCount,
		MaxDelay:       p.config.MaxDelay,
		MaxAttempts:    p.config.MaxAttempts,
		BackoffInitial: p.config.BackoffInitial,
		BackoffMax:     p.config.BackoffMax,
	}, sender, p.logger, emitter, p.metrics)

	pluginCfg := PluginConfig{
		ProjectID: p.config.ProjectID,
		TopicID:   p.config.TopicID,
		Logger:    p.logger,
	}
	for _, plug := range p.plugins {
		if err := plug.Initialize(ctx, pluginCfg); err != nil {
			p.logger.Error("plugin initialization failed",
				log.String("plugin", plug.Name()),
				log.Err(err))
			_ = p.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+plug.Name())
			return err
		}
		p.logger.Info("plugin initialized", log.String("plugin", plug.Name()))
	}

	if err := p.lifecycle.TransitionTo(app.StateRunning, "startup complete"); err != nil {
		return err
	}

	p.logger.Info("publisher started",
		log.String("project", p.config.ProjectID),
		log.String("topic", p.config.TopicID),
		log.Int("max_bytes", p.config.MaxBytes),
		log.Int("max_count", p.config.MaxCount),
		log.Duration("max_delay", p.config.MaxDelay),
	)
	return nil
}

// buildSender returns the injected transport or dials Pub/Sub.
func (p *Publisher) buildSender(ctx context.Context) (ports.BatchSender, error) {
	if p.opts.transport != nil {
		return transportAdapter{t: p.opts.transport}, nil
	}
	if p.config.ProjectID == "" || p.config.TopicID == "" {
		return nil, domain.ErrInvalidConfig
	}
	sender, err := pubsub.NewSender(ctx, p.config.ProjectID, p.config.TopicID, p.config.CredentialsFile, p.logger)
	if err != nil {
		return nil, err
	}
	p.sender = sender
	return sender, nil
}

// Publish validates and enqueues one message. It fails synchronously only
// for validation and lifecycle errors; transport failures are handled
// asynchronously and reported through the event handler and logs.
// If this message fills the current batch, the flush is triggered before
// Publish returns, but the network call never blocks the caller.
func (p *Publisher) Publish(payload []byte, attributes map[string]any) error {
	if !p.lifecycle.IsRunning() {
		return domain.ErrNotRunning
	}

	msg, err := domain.NewMessage(payload, p.staticAttrs, attributes)
	if err != nil {
		return err
	}
	return p.dispatcher.Publish(msg)
}

// Shutdown stops accepting messages, flushes the current batch even if it
// is below every threshold, and waits for all in-flight sends to resolve
// or exhaust their retry budget, bounded by ctx. It returns a
// *DroppedError if any batch was lost during the publisher's lifetime.
func (p *Publisher) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.lifecycle.CanStop() {
		p.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := p.lifecycle.TransitionTo(app.StateStopping, "Shutdown() called"); err != nil {
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()

	dropped, drainErr := p.dispatcher.Drain(ctx)

	// Shut plugins down in reverse registration order.
	for i := len(p.plugins) - 1; i >= 0; i-- {
		if err := p.plugins[i].Shutdown(ctx); err != nil {
			p.logger.Warn("plugin shutdown failed",
				log.String("plugin", p.plugins[i].Name()),
				log.Err(err))
		}
	}

	if p.sender != nil {
		if err := p.sender.Close(); err != nil {
			p.logger.Warn("transport close failed", log.Err(err))
		}
	}

	_ = p.lifecycle.TransitionTo(app.StateStopped, "drain complete")

	if drainErr != nil {
		return drainErr
	}
	if dropped > 0 {
		return &domain.DroppedError{Messages: dropped}
	}
	return nil
}

// State returns the publisher's current lifecycle state.
func (p *Publisher) State() State {
	return convertState(p.lifecycle.State())
}

// MetricsHandler returns an HTTP handler serving the publisher's
// Prometheus metrics.
func (p *Publisher) MetricsHandler() http.Handler {
	return p.metrics.Handler()
}

// transportAdapter bridges a user-supplied Transport to the internal
// sender port.
type transportAdapter struct {
	t Transport
}

func (a transportAdapter) Send(ctx context.Context, batch *domain.Batch) error {
	msgs := make([]Message, len(batch.Messages))
	for i, m := range batch.Messages {
		msgs[i] = Message{Payload: m.Payload, Attributes: m.Attributes}
	}
	return a.t.Send(ctx, msgs)
}
