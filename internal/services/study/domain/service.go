package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/study.space/internal/platform/id"
	"github.com/louisbranch/study.space/internal/platform/timeouts"
)

var tracer = otel.Tracer("study.space/study")

// StreakObserver is told when a continuous studying streak starts or ends.
// It is called with the user lock held and must not call back into Service.
type StreakObserver interface {
	StreakStarted(userID string, at time.Time)
	StreakEnded(userID string)
}

type nopStreaks struct{}

func (nopStreaks) StreakStarted(string, time.Time) {}
func (nopStreaks) StreakEnded(string)              {}

// Deps wires a Service. Store and Config are required.
type Deps struct {
	Store     Store
	Config    ConfigSource
	Publisher Publisher
	Analyzer  Analyzer
	Messages  Messages
	Streaks   StreakObserver
	// Location decides calendar days for budgets and daily counters.
	Location *time.Location
	Clock    func() time.Time
	NewID    func() (string, error)
	// AnalysisTimeout caps one vision call including provider retries.
	AnalysisTimeout time.Duration
}

// Service owns the study session state machine and the time budget ledger.
type Service struct {
	store     Store
	config    ConfigSource
	publisher Publisher
	analyzer  Analyzer
	messages  Messages
	streaks   StreakObserver
	loc       *time.Location
	clock     func() time.Time
	newID     func() (string, error)
	locks     userLocks

	analysisTimeout time.Duration
}

// NewService constructs study domain use-cases.
func NewService(deps Deps) *Service {
	s := &Service{
		store:     deps.Store,
		config:    deps.Config,
		publisher: deps.Publisher,
		analyzer:  deps.Analyzer,
		messages:  deps.Messages,
		streaks:   deps.Streaks,
		loc:       deps.Location,
		clock:     deps.Clock,
		newID:     deps.NewID,

		analysisTimeout: deps.AnalysisTimeout,
	}
	if s.analysisTimeout <= 0 {
		s.analysisTimeout = timeouts.AnalysisCall
	}
	if s.config == nil {
		s.config = StaticConfig(DefaultAppConfig())
	}
	if s.publisher == nil {
		s.publisher = nopPublisher{}
	}
	if s.streaks == nil {
		s.streaks = nopStreaks{}
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.newID == nil {
		s.newID = id.NewID
	}
	s.locks.deliver = s.publisher.PublishToUser
	return s
}

// Location is the time zone calendar days are computed in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Now returns the service clock in UTC.
func (s *Service) Now() time.Time {
	return s.now()
}

// Start opens a studying session. Quota is checked before the conflict check.
func (s *Service) Start(ctx context.Context, userID string) (sess Session, err error) {
	ctx, span := tracer.Start(ctx, "study.start_session")
	defer endSpan(span, &err)

	userID, err = requireUserID(userID)
	if err != nil {
		return Session{}, err
	}
	unlock := s.locks.lock(userID)
	defer unlock()

	now := s.now()
	cfg := s.config.Current()
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if user.ActivePlan(now) == PlanNone {
		return Session{}, ErrTrialExpired
	}
	status, budgetChanged, err := s.refreshBudget(ctx, &user, cfg, now, nil)
	if err != nil {
		return Session{}, err
	}
	if status.RemainingSeconds <= 0 {
		if budgetChanged {
			if err := s.apply(ctx, "save budget", Mutation{User: &user}); err != nil {
				return Session{}, err
			}
		}
		return Session{}, dailyLimitExceeded(status)
	}

	if _, err := s.store.GetActiveSession(ctx, userID); err == nil {
		return Session{}, ErrSessionConflict
	} else if !errors.Is(err, ErrNotFound) {
		return Session{}, persistence("load active session", err)
	}

	profile, err := s.loadOrNewProfile(ctx, userID, now)
	if err != nil {
		return Session{}, err
	}
	profile.rollDay(now, s.loc)

	sessionID, err := s.newID()
	if err != nil {
		return Session{}, err
	}
	sess = Session{
		ID:             sessionID,
		UserID:         userID,
		StartTime:      now,
		Status:         StatusStudying,
		LastActivity:   now,
		LastFocusTime:  now,
		CurrentRank:    MaxRank,
		ChargedThrough: now,
	}
	m := Mutation{NewSession: &sess, Profile: &profile}
	if budgetChanged {
		m.User = &user
	}
	if err := s.apply(ctx, "create session", m); err != nil {
		return Session{}, err
	}

	s.streaks.StreakStarted(userID, now)
	s.publishSession(userID, sess)
	return sess, nil
}

// Stop finishes the active session. With no active session it returns the
// most recent finished one unchanged, so repeated stops are safe.
func (s *Service) Stop(ctx context.Context, userID string) (sess Session, err error) {
	ctx, span := tracer.Start(ctx, "study.stop_session")
	defer endSpan(span, &err)

	userID, err = requireUserID(userID)
	if err != nil {
		return Session{}, err
	}
	unlock := s.locks.lock(userID)
	defer unlock()

	sess, err = s.store.GetActiveSession(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		latest, latestErr := s.store.GetLatestSession(ctx, userID)
		if latestErr != nil {
			if errors.Is(latestErr, ErrNotFound) {
				return Session{}, ErrNotFound
			}
			return Session{}, persistence("load latest session", latestErr)
		}
		return latest, nil
	}
	if err != nil {
		return Session{}, persistence("load active session", err)
	}

	if err := s.finishLocked(ctx, &sess, nil, s.now(), FinishStopped); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// StartBreak moves a studying session into a user-requested break.
func (s *Service) StartBreak(ctx context.Context, userID string, breakType string) (sess Session, err error) {
	ctx, span := tracer.Start(ctx, "study.start_break")
	defer endSpan(span, &err)

	userID, err = requireUserID(userID)
	if err != nil {
		return Session{}, err
	}
	kind, err := ParseBreakType(breakType)
	if err != nil {
		return Session{}, err
	}
	unlock := s.locks.lock(userID)
	defer unlock()

	sess, err = s.activeSession(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if sess.Status != StatusStudying {
		return Session{}, ErrNoActiveStudySession
	}
	if err := s.breakLocked(ctx, &sess, kind, s.now()); err != nil {
		return Session{}, err
	}
	s.publishSession(userID, sess)
	return sess, nil
}

// ForceBreak starts a forced break on sessionID if it is still studying. It
// reports false when the session moved on since the caller looked.
func (s *Service) ForceBreak(ctx context.Context, userID, sessionID string, resumeAfter time.Duration) (sess Session, ok bool, err error) {
	ctx, span := tracer.Start(ctx, "study.force_break")
	defer endSpan(span, &err)

	unlock := s.locks.lock(userID)
	defer unlock()

	sess, err = s.activeSession(ctx, userID)
	if errors.Is(err, ErrNoActiveStudySession) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}
	if sess.ID != sessionID || sess.Status != StatusStudying {
		return sess, false, nil
	}

	now := s.now()
	if err := s.breakLocked(ctx, &sess, BreakForced, now); err != nil {
		return Session{}, false, err
	}
	s.publishToUser(userID, Event{Type: EventForcedBreak, Payload: ForcedBreakEvent{
		Session:      sess.Clone(),
		BreakMinutes: int(resumeAfter / time.Minute),
		ResumeAt:     now.Add(resumeAfter),
	}})
	return sess, true, nil
}

func (s *Service) breakLocked(ctx context.Context, sess *Session, kind BreakType, now time.Time) error {
	cfg := s.config.Current()
	user, err := s.loadUser(ctx, sess.UserID)
	if err != nil {
		return err
	}
	if _, err := s.chargeStudying(ctx, sess, &user, cfg, now); err != nil {
		return err
	}
	sess.openBreak(now, kind)
	if err := s.apply(ctx, "start break", Mutation{Session: sess, User: &user}); err != nil {
		return err
	}
	s.streaks.StreakEnded(sess.UserID)
	return nil
}

// Resume returns a session on break to studying and closes the break.
func (s *Service) Resume(ctx context.Context, userID string) (sess Session, err error) {
	ctx, span := tracer.Start(ctx, "study.resume")
	defer endSpan(span, &err)

	userID, err = requireUserID(userID)
	if err != nil {
		return Session{}, err
	}
	unlock := s.locks.lock(userID)
	defer unlock()

	sess, err = s.activeSession(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if sess.Status != StatusBreak {
		return Session{}, ErrNoActiveStudySession
	}
	if err := s.resumeLocked(ctx, &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// AutoResume ends a forced break, but only the exact break identified by
// sessionID and breakStart. Anything else is a stale timer and a no-op.
func (s *Service) AutoResume(ctx context.Context, userID, sessionID string, breakStart time.Time) (resumed bool, err error) {
	ctx, span := tracer.Start(ctx, "study.auto_resume")
	defer endSpan(span, &err)

	unlock := s.locks.lock(userID)
	defer unlock()

	sess, err := s.activeSession(ctx, userID)
	if errors.Is(err, ErrNoActiveStudySession) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if sess.ID != sessionID || sess.Status != StatusBreak || sess.ActiveBreakType != BreakForced {
		return false, nil
	}
	open, ok := sess.OpenBreak()
	if !ok || !open.StartTime.Equal(breakStart) {
		return false, nil
	}
	if err := s.resumeLocked(ctx, &sess); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) resumeLocked(ctx context.Context, sess *Session) error {
	now := s.now()
	sess.resume(now)
	if err := s.apply(ctx, "resume session", Mutation{Session: sess}); err != nil {
		return err
	}
	s.streaks.StreakStarted(sess.UserID, now)
	s.publishSession(sess.UserID, *sess)
	return nil
}

// GetCurrent returns the active session, or nil when the user is idle.
func (s *Service) GetCurrent(ctx context.Context, userID string) (*Session, error) {
	userID, err := requireUserID(userID)
	if err != nil {
		return nil, err
	}
	sess, err := s.store.GetActiveSession(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence("load active session", err)
	}
	return &sess, nil
}

// FinishStale finishes the user's active session when it has seen no
// activity for staleAfter. The end time is the last activity, not now.
func (s *Service) FinishStale(ctx context.Context, userID string, staleAfter time.Duration) (finished bool, err error) {
	ctx, span := tracer.Start(ctx, "study.finish_stale")
	defer endSpan(span, &err)

	unlock := s.locks.lock(userID)
	defer unlock()

	sess, err := s.activeSession(ctx, userID)
	if errors.Is(err, ErrNoActiveStudySession) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if s.now().Sub(sess.LastActivity) < staleAfter {
		return false, nil
	}
	if err := s.finishLocked(ctx, &sess, nil, sess.LastActivity, FinishStale); err != nil {
		return false, err
	}
	return true, nil
}

// finishLocked is the single terminal path. It charges studying time up to
// end, closes any open break, reconciles focused time against the budget
// and rolls focus totals into the profile. A nil user is loaded from the
// store; callers that already charged an in-memory copy pass it in.
func (s *Service) finishLocked(ctx context.Context, sess *Session, user *User, end time.Time, reason FinishReason) error {
	cfg := s.config.Current()
	if user == nil {
		loaded, err := s.loadUser(ctx, sess.UserID)
		if err != nil {
			return err
		}
		user = &loaded
	}
	profile, err := s.loadOrNewProfile(ctx, sess.UserID, end)
	if err != nil {
		return err
	}

	var status BudgetStatus
	if sess.Status == StatusStudying {
		status, err = s.chargeStudying(ctx, sess, user, cfg, end)
	} else {
		status, _, err = s.refreshBudget(ctx, user, cfg, s.now(), sess)
	}
	if err != nil {
		return err
	}
	refundChargedAfter(sess, user, status, end)
	sess.closeOpenBreak(end)
	sess.Status = StatusFinished
	sess.ActiveBreakType = ""
	sess.EndTime = &end
	sess.LastActivity = end
	sess.FinishReason = reason

	interval := cfg.Plan(user.ActivePlan(sess.StartTime)).AnalysisInterval()
	focused := sess.FocusedSeconds(interval)
	if extra := focused - sess.ChargedSeconds; extra > 0 {
		sess.addCharge(status.Date, decreaseRemainingSeconds(user, extra))
	}

	profile.rollDay(s.now(), s.loc)
	profile.TotalFocusSeconds += focused
	profile.DailyFocusSeconds += focused

	if err := s.apply(ctx, "finish session", Mutation{Session: sess, User: user, Profile: &profile}); err != nil {
		return err
	}

	s.streaks.StreakEnded(sess.UserID)
	s.publishSession(sess.UserID, *sess)
	s.publishTime(*sess, user.Budget.DailyRemainingSeconds)
	return nil
}

// ListSessions returns sessions started in [from, to).
func (s *Service) ListSessions(ctx context.Context, userID string, from, to time.Time) ([]Session, error) {
	userID, err := requireUserID(userID)
	if err != nil {
		return nil, err
	}
	if !from.Before(to) {
		return nil, ErrInvalidTimeWindow
	}
	sessions, err := s.store.ListSessionsStartedBetween(ctx, userID, from.UTC(), to.UTC())
	if err != nil {
		return nil, persistence("list sessions", err)
	}
	return sessions, nil
}

// ActiveSessions lists every studying or break session.
func (s *Service) ActiveSessions(ctx context.Context) ([]Session, error) {
	sessions, err := s.store.ListSessionsByStatus(ctx, StatusStudying, StatusBreak)
	if err != nil {
		return nil, persistence("list active sessions", err)
	}
	return sessions, nil
}

// GetProfile returns the user's profile.
func (s *Service) GetProfile(ctx context.Context, userID string) (Profile, error) {
	userID, err := requireUserID(userID)
	if err != nil {
		return Profile{}, err
	}
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return Profile{}, persistence("load profile", err)
	}
	return profile, nil
}

// UpdateProfile applies administrative profile settings, creating the
// profile when missing.
func (s *Service) UpdateProfile(ctx context.Context, in ProfileSettings) (Profile, error) {
	userID, err := requireUserID(in.UserID)
	if err != nil {
		return Profile{}, err
	}
	unlock := s.locks.lock(userID)
	defer unlock()

	now := s.now()
	profile, err := s.loadOrNewProfile(ctx, userID, now)
	if err != nil {
		return Profile{}, err
	}
	if err := in.apply(&profile); err != nil {
		return Profile{}, err
	}
	profile.UpdatedAt = now
	if err := s.store.PutProfile(ctx, profile); err != nil {
		return Profile{}, persistence("save profile", err)
	}
	s.publishToUser(userID, Event{Type: EventProfileUpdated, Payload: ProfileEvent{Profile: profile, PreviousStage: profile.Stage}})
	return profile, nil
}

// GetUser returns the user's subscription record.
func (s *Service) GetUser(ctx context.Context, userID string) (User, error) {
	userID, err := requireUserID(userID)
	if err != nil {
		return User{}, err
	}
	return s.loadUser(ctx, userID)
}

// PutUser creates or updates a user's subscription. A changed plan marks
// the cached budget spent so the next lookup recomputes it from today's
// charged sessions.
func (s *Service) PutUser(ctx context.Context, in UserInput) (User, error) {
	userID, err := requireUserID(in.ID)
	if err != nil {
		return User{}, err
	}
	plan, err := ParseSubscriptionPlan(in.Plan)
	if err != nil {
		return User{}, err
	}
	unlock := s.locks.lock(userID)
	defer unlock()

	now := s.now()
	user, err := s.store.GetUser(ctx, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		user = User{ID: userID, CreatedAt: now}
	case err != nil:
		return User{}, persistence("load user", err)
	}
	if user.Plan != plan || !sameTime(user.SubscriptionExpiresAt, in.SubscriptionExpiresAt) || !sameTime(user.TrialEndsAt, in.TrialEndsAt) {
		user.Budget.DailyRemainingSeconds = 0
	}
	user.Plan = plan
	user.SubscriptionExpiresAt = utcPtr(in.SubscriptionExpiresAt)
	user.TrialEndsAt = utcPtr(in.TrialEndsAt)
	user.UpdatedAt = now
	if err := s.store.PutUser(ctx, user); err != nil {
		return User{}, persistence("save user", err)
	}
	return user, nil
}

func (s *Service) loadUser(ctx context.Context, userID string) (User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return User{}, persistence("load user", err)
	}
	return user, nil
}

func (s *Service) loadOrNewProfile(ctx context.Context, userID string, now time.Time) (Profile, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return NewProfile(userID, now), nil
	}
	if err != nil {
		return Profile{}, persistence("load profile", err)
	}
	return profile, nil
}

func (s *Service) apply(ctx context.Context, op string, m Mutation) error {
	if err := s.store.Apply(ctx, m); err != nil {
		return persistence(op, err)
	}
	return nil
}

// publishToUser delivers evt once the user's lock is released, or now when
// it is not held.
func (s *Service) publishToUser(userID string, evt Event) {
	if !s.locks.queue(userID, evt) {
		s.publisher.PublishToUser(userID, evt)
	}
}

func (s *Service) publishSession(userID string, sess Session) {
	s.publishToUser(userID, Event{Type: EventSessionUpdated, Payload: SessionEvent{Session: sess.Clone()}})
}

func (s *Service) publishTime(sess Session, remaining int64) {
	s.publishToUser(sess.UserID, Event{Type: EventTimeUpdated, Payload: TimeEvent{
		SessionID:        sess.ID,
		Status:           sess.Status,
		RemainingSeconds: remaining,
		ChargedSeconds:   sess.ChargedSeconds,
	}})
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

func requireUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrUserIDRequired
	}
	return userID, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	value := t.UTC()
	return &value
}

func endSpan(span trace.Span, err *error) {
	if err != nil && *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
