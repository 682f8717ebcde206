package timers

import (
	"context"
	"sync"
	"time"

	"github.com/louisbranch/study.space/internal/services/study/domain"
)

type fakeService struct {
	mu          sync.Mutex
	sessions    []domain.Session
	profiles    map[string]domain.Profile
	listErr     error
	chargeErr   map[string]error
	enforce     map[string]bool
	forceOK     bool
	charged     []string
	enforced    []string
	forced      []forcedCall
	resumed     []resumeCall
	staleCalls  []string
	staleResult bool
}

type forcedCall struct {
	userID      string
	sessionID   string
	resumeAfter time.Duration
}

type resumeCall struct {
	userID     string
	sessionID  string
	breakStart time.Time
}

func newFakeService() *fakeService {
	return &fakeService{
		profiles:  make(map[string]domain.Profile),
		chargeErr: make(map[string]error),
		enforce:   make(map[string]bool),
		forceOK:   true,
	}
}

func (f *fakeService) ActiveSessions(context.Context) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Session(nil), f.sessions...), nil
}

func (f *fakeService) GetProfile(_ context.Context, userID string) (domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.profiles[userID]
	if !ok {
		return domain.Profile{}, domain.ErrNotFound
	}
	return profile, nil
}

func (f *fakeService) ChargeTick(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charged = append(f.charged, userID)
	return f.chargeErr[userID]
}

func (f *fakeService) EnforceLimit(_ context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enforced = append(f.enforced, userID)
	return f.enforce[userID], nil
}

func (f *fakeService) ForceBreak(_ context.Context, userID, sessionID string, resumeAfter time.Duration) (domain.Session, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced = append(f.forced, forcedCall{userID: userID, sessionID: sessionID, resumeAfter: resumeAfter})
	if !f.forceOK {
		return domain.Session{}, false, nil
	}
	start := time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)
	return domain.Session{
		ID:              sessionID,
		UserID:          userID,
		Status:          domain.StatusBreak,
		ActiveBreakType: domain.BreakForced,
		Breaks:          []domain.BreakEntry{{StartTime: start, Type: domain.BreakForced}},
	}, true, nil
}

func (f *fakeService) AutoResume(_ context.Context, userID, sessionID string, breakStart time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed = append(f.resumed, resumeCall{userID: userID, sessionID: sessionID, breakStart: breakStart})
	return true, nil
}

func (f *fakeService) FinishStale(_ context.Context, userID string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staleCalls = append(f.staleCalls, userID)
	return f.staleResult, nil
}

type manualTimer struct {
	after   time.Duration
	fn      func()
	stopped bool
}

func (m *manualTimer) Stop() bool {
	wasActive := !m.stopped
	m.stopped = true
	return wasActive
}

// manualTimers replaces time.AfterFunc so tests decide when timers fire.
type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (m *manualTimers) afterFunc(d time.Duration, fn func()) stopper {
	m.mu.Lock()
	defer m.mu.Unlock()
	timer := &manualTimer{after: d, fn: fn}
	m.timers = append(m.timers, timer)
	return timer
}

func (m *manualTimers) last() *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.timers) == 0 {
		return nil
	}
	return m.timers[len(m.timers)-1]
}

func (m *manualTimers) fire(timer *manualTimer) {
	if timer != nil && !timer.stopped {
		timer.fn()
	}
}

func newManualTracker() (*Tracker, *manualTimers) {
	timers := &manualTimers{}
	tracker := NewTracker()
	tracker.afterFunc = timers.afterFunc
	return tracker, timers
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
