// Package timers owns the auto-close schedule: at most one pending task per
// poll id, replace-on-reschedule, race-free cancellation.
package timers

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type Registry struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	log    *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		timers: make(map[string]*time.Timer),
		log:    log,
	}
}

// Schedule installs fn to run after delay, keyed by poll id. Any pending
// entry for the same id is cancelled first, so two timers never coexist.
func (r *Registry) Schedule(pollID string, delay time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[pollID]; ok {
		t.Stop()
		r.log.Warn("replacing pending timer", zap.String("pollId", pollID))
	}
	r.timers[pollID] = time.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.timers, pollID)
		r.mu.Unlock()
		fn()
	})
	r.log.Debug("timer scheduled", zap.String("pollId", pollID), zap.Duration("delay", delay))
}

// Cancel stops and removes the pending entry for pollID. Returns false when
// there was nothing to cancel, which includes a timer that already fired.
func (r *Registry) Cancel(pollID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[pollID]
	if !ok {
		return false
	}
	t.Stop()
	delete(r.timers, pollID)
	return true
}

// Pending reports how many timers are currently scheduled.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}
