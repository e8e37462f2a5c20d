package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bft-labs/pubship/internal/domain"
	"github.com/bft-labs/pubship/internal/ports"
	"github.com/bft-labs/pubship/pkg/log"
)

func testConfig() DispatcherConfig {
	return DispatcherConfig{
		MaxBytes:       1_000_000,
		MaxCount:       100,
		MaxDelay:       5 * time.Second,
		MaxAttempts:    3,
		BackoffInitial: time.Millisecond,
		BackoffMax:     5 * time.Millisecond,
	}
}

// captureSender records every delivered batch and can be scripted to fail
// the first N attempts.
type captureSender struct {
	mu       sync.Mutex
	batches  []*domain.Batch
	attempts int

	failFirst int   // attempts to fail before succeeding
	failWith  error // error to fail with

	delivered chan *domain.Batch
}

func newCaptureSender() *captureSender {
	return &captureSender{delivered: make(chan *domain.Batch, 16)}
}

func (s *captureSender) Send(ctx context.Context, batch *domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.attempts <= s.failFirst {
		return s.failWith
	}
	s.batches = append(s.batches, batch)
	s.delivered <- batch
	return nil
}

func (s *captureSender) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *captureSender) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func msg(payload string) domain.Message {
	return domain.Message{Payload: []byte(payload)}
}

func waitBatch(t *testing.T, s *captureSender, timeout time.Duration) *domain.Batch {
	t.Helper()
	select {
	case b := <-s.delivered:
		return b
	case <-time.After(timeout):
		t.Fatalf("no batch delivered within %v", timeout)
		return nil
	}
}

func assertNoBatch(t *testing.T, s *captureSender, window time.Duration) {
	t.Helper()
	select {
	case b := <-s.delivered:
		t.Fatalf("unexpected batch with %d messages", b.Count())
	case <-time.After(window):
	}
}

func TestDispatcher_CountThresholdFlushesSynchronously(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCount = 3
	sender := newCaptureSender()
	d := NewDispatcher(cfg, sender, log.NewNoopLogger(), nil, nil)

	if err := d.Publish(msg("a")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := d.Publish(msg("b")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	assertNoBatch(t, sender, 50*time.Millisecond)

	if err := d.Publish(msg("c")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	b := waitBatch(t, sender, time.Second)
	if b.Count() != 3 {
		t.Fatalf("batch Count() = %d, want 3", b.Count())
	}
	for i, want := range []string{"a", "b", "c"} {
		if got := string(b.Messages[i].Payload); got != want {
			t.Errorf("Messages[%d] = %q, want %q", i, got, want)
		}
	}

	// A fresh batch accumulates immediately; the next message starts it.
	if err := d.Publish(msg("d")); err != nil {
		t.Fatalf("Publish() after flush error = %v", err)
	}
	if _, err := d.Drain(context.Background()); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	b = waitBatch(t, sender, time.Second)
	if b.Count() != 1 || string(b.Messages[0].Payload) != "d" {
		t.Errorf("second batch = %d messages, want [d]", b.Count())
	}
}

func TestDispatcher_ByteThresholdFlushes(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBytes = 10
	sender := newCaptureSender()
	d := NewDispatcher(cfg, sender, log.NewNoopLogger(), nil, nil)

	d.Publish(msg("aaaa"))
	d.Publish(msg("bbbb"))
	assertNoBatch(t, sender, 50*time.Millisecond)

	d.Publish(msg("cccc"))
	b := waitBatch(t, sender, time.Second)
	if b.Count() != 3 {
		t.Errorf("batch Count() = %d, want 3", b.Count())
	}
	if b.TotalBytes != 12 {
		t.Errorf("TotalBytes = %d, want 12", b.TotalBytes)
	}
}

func TestDispatcher_OversizeMessageFormsOwnBatch(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBytes = 10
	sender := newCaptureSender()
	d := NewDispatcher(cfg, sender, log.NewNoopLogger(), nil, nil)

	big := make([]byte, 64)
	if err := d.Publish(domain.Message{Payload: big}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	b := waitBatch(t, sender, time.Second)
	if b.Count() != 1 {
		t.Errorf("batch Count() = %d, want 1", b.Count())
	}
	if b.TotalBytes != 64 {
		t.Errorf("TotalBytes = %d, want 64", b.TotalBytes)
	}
}

func TestDispatcher_DelayFlush(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDelay = 100 * time.Millisecond
	sender := newCaptureSender()
	d := NewDispatcher(cfg, sender, log.NewNoopLogger(), nil, nil)

	d.Publish(msg("only"))

	// Nothing before the deadline.
	assertNoBatch(t, sender, 50*time.Millisecond)

	b := waitBatch(t, sender, time.Second)
	if b.Count() != 1 || string(b.Messages[0].Payload) != "only" {
		t.Errorf("batch = %d messages, want [only]", b.Count())
	}
}

func TestDispatcher_TimerDisarmedByThresholdFlush(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCount = 2
	cfg.MaxDelay = 50 * time.Millisecond
	sender := newCaptureSender()
	d := NewDispatcher(cfg, sender, log.NewNoopLogger(), nil, nil)

	d.Publish(msg("a"))
	d.Publish(msg("b"))

	b := waitBatch(t, sender, time.Second)
	if b.Count() != 2 {
		t.Fatalf("batch Count() = %d, want 2", b.Count())
	}

	// The delay timer must not fire a second, empty flush.
	assertNoBatch(t, sender, 150*time.Millisecond)
	if got := sender.batchCount(); got != 1 {
		t.Errorf("batches delivered = %d, want 1", got)
	}
}

func TestDispatcher_DrainFlushesBelowThreshold(t *testing.T) {
	sender := newCaptureSender()
	d := NewDispatcher(testConfig(), sender, log.NewNoopLogger(), nil, nil)

	for _, p := range []string{"a", "b", "c"} {
		if err := d.Publish(msg(p)); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	dropped, err := d.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if dropped != 0 {
		t.Errorf("dropped = %d, want 0", dropped)
	}
	if got := sender.batchCount(); got != 1 {
		t.Fatalf("batches delivered = %d, want 1", got)
	}
	b := <-sender.delivered
	if b.Count() != 3 {
		t.Errorf("batch Count() = %d, want 3", b.Count())
	}
}

func TestDispatcher_DrainWithoutMessages(t *testing.T) {
	sender := newCaptureSender()
	d := NewDispatcher(testConfig(), sender, log.NewNoopLogger(), nil, nil)

	dropped, err := d.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if dropped != 0 {
		t.Errorf("dropped = %d, want 0", dropped)
	}
	if got := sender.attemptCount(); got != 0 {
		t.Errorf("send attempts = %d, want 0", got)
	}
}

func TestDispatcher_PublishAfterDrainRejected(t *testing.T) {
	sender := newCaptureSender()
	d := NewDispatcher(testConfig(), sender, log.NewNoopLogger(), nil, nil)

	if _, err := d.Drain(context.Background()); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if err := d.Publish(msg("late")); !errors.Is(err, domain.ErrPublisherClosed) {
		t.Errorf("Publish() error = %v, want ErrPublisherClosed", err)
	}
}

func TestDispatcher_RetryThenSuccess(t *testing.T) {
	sender := newCaptureSender()
	sender.failFirst = 2
	sender.failWith = domain.MarkRetryable(errors.New("unavailable"))

	d := NewDispatcher(testConfig(), sender, log.NewNoopLogger(), nil, nil)
	d.Publish(msg("a"))
	d.Publish(msg("b"))

	dropped, err := d.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if dropped != 0 {
		t.Errorf("dropped = %d, want 0", dropped)
	}
	if got := sender.attemptCount(); got != 3 {
		t.Errorf("send attempts = %d, want 3", got)
	}
	// Exactly one delivery, no duplication.
	if got := sender.batchCount(); got != 1 {
		t.Fatalf("batches delivered = %d, want 1", got)
	}
	b := <-sender.delivered
	if b.Count() != 2 {
		t.Errorf("batch Count() = %d, want 2", b.Count())
	}
}

func TestDispatcher_RetryBudgetExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttempts = 2
	sender := newCaptureSender()
	sender.failFirst = 100
	sender.failWith = domain.MarkRetryable(errors.New("unavailable"))

	var droppedEvents atomic.Int64
	emitter := &recordingEmitter{onDropped: func(count int) {
		droppedEvents.Add(int64(count))
	}}

	d := NewDispatcher(cfg, sender, log.NewNoopLogger(), emitter, nil)
	d.Publish(msg("a"))
	d.Publish(msg("b"))
	d.Publish(msg("c"))

	dropped, err := d.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if dropped != 3 {
		t.Errorf("dropped = %d, want 3", dropped)
	}
	if got := sender.attemptCount(); got != 2 {
		t.Errorf("send attempts = %d, want 2", got)
	}
	if got := droppedEvents.Load(); got != 3 {
		t.Errorf("dropped messages reported = %d, want 3", got)
	}
}

func TestDispatcher_FatalErrorNotRetried(t *testing.T) {
	sender := newCaptureSender()
	sender.failFirst = 100
	sender.failWith = errors.New("permission denied")

	d := NewDispatcher(testConfig(), sender, log.NewNoopLogger(), nil, nil)
	d.Publish(msg("a"))

	dropped, err := d.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if got := sender.attemptCount(); got != 1 {
		t.Errorf("send attempts = %d, want 1 (no retry on fatal errors)", got)
	}
}

func TestDispatcher_DrainTimeout(t *testing.T) {
	slow := ports.SenderFunc(func(ctx context.Context, batch *domain.Batch) error {
		time.Sleep(500 * time.Millisecond)
		return nil
	})

	d := NewDispatcher(testConfig(), slow, log.NewNoopLogger(), nil, nil)
	d.Publish(msg("a"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := d.Drain(ctx); !errors.Is(err, domain.ErrShutdownTimeout) {
		t.Errorf("Drain() error = %v, want ErrShutdownTimeout", err)
	}
}

func TestDispatcher_ConcurrentPublish(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCount = 10
	sender := newCaptureSender()
	sender.delivered = make(chan *domain.Batch, 256)

	d := NewDispatcher(cfg, sender, log.NewNoopLogger(), nil, nil)

	const workers = 20
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := d.Publish(msg("x")); err != nil {
					t.Errorf("Publish() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	dropped, err := d.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if dropped != 0 {
		t.Fatalf("dropped = %d, want 0", dropped)
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	total := 0
	for _, b := range sender.batches {
		if b.Count() > cfg.MaxCount {
			t.Errorf("batch Count() = %d, exceeds max %d", b.Count(), cfg.MaxCount)
		}
		total += b.Count()
	}
	if total != workers*perWorker {
		t.Errorf("total messages delivered = %d, want %d", total, workers*perWorker)
	}
}

// recordingEmitter captures dropped-batch callbacks; other events are ignored.
type recordingEmitter struct {
	onDropped func(count int)
}

func (r *recordingEmitter) OnPublishSuccess(batchID string, messageCount, byteSize int, duration time.Duration) {
}

func (r *recordingEmitter) OnPublishError(batchID string, err error, messageCount, attempt int, retryable bool) {
}

func (r *recordingEmitter) OnBatchDropped(batchID string, err error, messageCount int) {
	if r.onDropped != nil {
		r.onDropped(messageCount)
	}
}
