package domain

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type fakeStore struct {
	mu       sync.Mutex
	users    map[string]User
	profiles map[string]Profile
	sessions map[string]Session
	calls    []AnalysisCall
	applies  int
	applyErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]User),
		profiles: make(map[string]Profile),
		sessions: make(map[string]Session),
	}
}

func (s *fakeStore) GetUser(_ context.Context, userID string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (s *fakeStore) PutUser(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *fakeStore) GetProfile(_ context.Context, userID string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return profile, nil
}

func (s *fakeStore) PutProfile(_ context.Context, profile Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile
	return nil
}

func (s *fakeStore) GetActiveSession(_ context.Context, userID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.Active() {
			return sess.Clone(), nil
		}
	}
	return Session{}, ErrNotFound
}

func (s *fakeStore) GetLatestSession(_ context.Context, userID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *Session
	for _, sess := range s.sessions {
		if sess.UserID != userID {
			continue
		}
		if latest == nil || sess.StartTime.After(latest.StartTime) {
			value := sess
			latest = &value
		}
	}
	if latest == nil {
		return Session{}, ErrNotFound
	}
	return latest.Clone(), nil
}

func (s *fakeStore) ListSessionsByStatus(_ context.Context, statuses ...SessionStatus) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Session
	for _, sess := range s.sessions {
		for _, status := range statuses {
			if sess.Status == status {
				out = append(out, sess.Clone())
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) ListSessionsStartedBetween(_ context.Context, userID string, from, to time.Time) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Session
	for _, sess := range s.sessions {
		if sess.UserID == userID && !sess.StartTime.Before(from) && sess.StartTime.Before(to) {
			out = append(out, sess.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *fakeStore) ListSessionsChargedOn(_ context.Context, userID, day string) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Session
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.ChargedDate == day {
			out = append(out, sess.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *fakeStore) Apply(_ context.Context, m Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return s.applyErr
	}
	if m.NewSession != nil {
		for _, sess := range s.sessions {
			if sess.UserID == m.NewSession.UserID && sess.Active() {
				return ErrSessionConflict
			}
		}
		s.sessions[m.NewSession.ID] = m.NewSession.Clone()
	}
	if m.Session != nil {
		if _, ok := s.sessions[m.Session.ID]; !ok {
			return fmt.Errorf("session %s does not exist", m.Session.ID)
		}
		s.sessions[m.Session.ID] = m.Session.Clone()
	}
	if m.User != nil {
		s.users[m.User.ID] = *m.User
	}
	if m.Profile != nil {
		s.profiles[m.Profile.UserID] = *m.Profile
	}
	if m.Analysis != nil {
		s.calls = append(s.calls, *m.Analysis)
	}
	s.applies++
	return nil
}

func (s *fakeStore) user(id string) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

func (s *fakeStore) profile(id string) Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[id]
}

func (s *fakeStore) session(id string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id].Clone()
}

func (s *fakeStore) activeCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.Active() {
			count++
		}
	}
	return count
}

type recordingPublisher struct {
	mu        sync.Mutex
	events    map[string][]Event
	broadcast []Event
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{events: make(map[string][]Event)}
}

func (p *recordingPublisher) PublishToUser(userID string, event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[userID] = append(p.events[userID], event)
}

func (p *recordingPublisher) Broadcast(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcast = append(p.broadcast, event)
}

func (p *recordingPublisher) types(userID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events[userID]))
	for _, event := range p.events[userID] {
		out = append(out, event.Type)
	}
	return out
}

func (p *recordingPublisher) count(userID, eventType string) int {
	n := 0
	for _, t := range p.types(userID) {
		if t == eventType {
			n++
		}
	}
	return n
}

type recordingStreaks struct {
	mu      sync.Mutex
	started map[string]time.Time
	ended   []string
}

func newRecordingStreaks() *recordingStreaks {
	return &recordingStreaks{started: make(map[string]time.Time)}
}

func (r *recordingStreaks) StreakStarted(userID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started[userID] = at
}

func (r *recordingStreaks) StreakEnded(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.started, userID)
	r.ended = append(r.ended, userID)
}

func (r *recordingStreaks) streakStart(userID string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.started[userID]
	return at, ok
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now}
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

type fakeAnalyzer struct {
	mu       sync.Mutex
	results  []Observation
	err      error
	requests []AnalysisRequest
}

func (a *fakeAnalyzer) Analyze(_ context.Context, req AnalysisRequest) (Observation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	if a.err != nil {
		return Observation{}, a.err
	}
	if len(a.results) == 0 {
		return Observation{}, fmt.Errorf("no observation queued")
	}
	obs := a.results[0]
	a.results = a.results[1:]
	return obs, nil
}

type staticMessages struct{}

func (staticMessages) Feedback(locale string, kind FeedbackKind, distraction Distraction) string {
	return locale + ":" + string(kind)
}

func sequentialIDGenerator(ids ...string) func() (string, error) {
	var mu sync.Mutex
	next := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(ids) {
			next++
			return fmt.Sprintf("id-%d", next), nil
		}
		value := ids[next]
		next++
		return value, nil
	}
}

type harness struct {
	svc       *Service
	store     *fakeStore
	publisher *recordingPublisher
	streaks   *recordingStreaks
	clock     *testClock
	analyzer  *fakeAnalyzer
}

var testStart = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func newHarness(cfg AppConfig) *harness {
	h := &harness{
		store:     newFakeStore(),
		publisher: newRecordingPublisher(),
		streaks:   newRecordingStreaks(),
		clock:     newTestClock(testStart),
		analyzer:  &fakeAnalyzer{},
	}
	h.svc = NewService(Deps{
		Store:     h.store,
		Config:    StaticConfig(cfg),
		Publisher: h.publisher,
		Analyzer:  h.analyzer,
		Messages:  staticMessages{},
		Streaks:   h.streaks,
		Clock:     h.clock.Now,
		NewID:     sequentialIDGenerator(),
	})
	return h
}

func (h *harness) addTrialUser(id string) {
	trialEnds := testStart.Add(7 * 24 * time.Hour)
	h.store.users[id] = User{ID: id, Plan: PlanNone, TrialEndsAt: &trialEnds, CreatedAt: testStart}
}

func (h *harness) addPlanUser(id string, plan PlanID) {
	h.store.users[id] = User{ID: id, Plan: plan, CreatedAt: testStart}
}
