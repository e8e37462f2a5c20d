package app

import "time"

// flushTimer is the one-shot timer backing the delay threshold. It is
// armed when the first message lands in an empty batch and fires at
// created_at + max delay. The dispatcher cancels it when a size or count
// threshold flushes the batch first; a fire that loses that race is
// filtered out by the dispatcher's generation check.
type flushTimer struct {
	t *time.Timer
}

// arm schedules fn after d. Any previously armed timer is stopped first.
func (ft *flushTimer) arm(d time.Duration, fn func()) {
	ft.stop()
	ft.t = time.AfterFunc(d, fn)
}

// stop disarms the timer if armed. Safe to call when never armed.
func (ft *flushTimer) stop() {
	if ft.t != nil {
		ft.t.Stop()
		ft.t = nil
	}
}
