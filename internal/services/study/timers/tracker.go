package timers

import (
	"sync"
	"time"
)

type stopper interface {
	Stop() bool
}

type pendingResume struct {
	handle stopper
}

// Tracker keeps, per user, when the current continuous studying streak
// started and the pending forced-break auto-resume timer, if any.
type Tracker struct {
	mu        sync.Mutex
	streaks   map[string]time.Time
	pending   map[string]*pendingResume
	afterFunc func(time.Duration, func()) stopper
}

// NewTracker returns an empty tracker backed by time.AfterFunc.
func NewTracker() *Tracker {
	return &Tracker{
		streaks: make(map[string]time.Time),
		pending: make(map[string]*pendingResume),
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

// StreakStarted records the start of a studying streak and cancels any
// pending auto-resume for the user.
func (t *Tracker) StreakStarted(userID string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.streaks[userID] = at
	t.disarmLocked(userID)
}

// StreakEnded forgets the user's streak and cancels any pending auto-resume.
func (t *Tracker) StreakEnded(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.streaks, userID)
	t.disarmLocked(userID)
}

// StreakStart returns when the user's current streak started.
func (t *Tracker) StreakStart(userID string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.streaks[userID]
	return at, ok
}

// Observe records at as the streak start when the user has none yet and
// reports whether an entry already existed.
func (t *Tracker) Observe(userID string, at time.Time) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if start, ok := t.streaks[userID]; ok {
		return start, true
	}
	t.streaks[userID] = at
	return at, false
}

// Arm schedules fn to run after d, replacing the user's pending timer.
func (t *Tracker) Arm(userID string, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disarmLocked(userID)

	entry := &pendingResume{}
	entry.handle = t.afterFunc(max(d, 0), func() {
		t.mu.Lock()
		if t.pending[userID] != entry {
			t.mu.Unlock()
			return
		}
		delete(t.pending, userID)
		t.mu.Unlock()
		fn()
	})
	t.pending[userID] = entry
}

// Armed reports whether the user has a pending timer.
func (t *Tracker) Armed(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[userID]
	return ok
}

// Stop cancels every pending timer.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for userID := range t.pending {
		t.disarmLocked(userID)
	}
}

func (t *Tracker) disarmLocked(userID string) {
	entry, ok := t.pending[userID]
	if !ok {
		return
	}
	delete(t.pending, userID)
	if entry.handle != nil {
		entry.handle.Stop()
	}
}
