package domain

import (
	"context"
	"errors"
	"time"
)

// Budget returns the ledger view for the user, refreshing the cached value
// when the day rolled over or the budget is spent.
func (s *Service) Budget(ctx context.Context, userID string) (BudgetStatus, error) {
	userID, err := requireUserID(userID)
	if err != nil {
		return BudgetStatus{}, err
	}
	unlock := s.locks.lock(userID)
	defer unlock()

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return BudgetStatus{}, err
	}
	status, changed, err := s.refreshBudget(ctx, &user, s.config.Current(), s.now(), nil)
	if err != nil {
		return BudgetStatus{}, err
	}
	if changed {
		if err := s.apply(ctx, "save budget", Mutation{User: &user}); err != nil {
			return BudgetStatus{}, err
		}
	}
	return status, nil
}

// ChargeTick charges studying wall time since the last charge and finishes
// the session once the budget reaches zero. Sessions not studying are left
// alone.
func (s *Service) ChargeTick(ctx context.Context, userID string) error {
	unlock := s.locks.lock(userID)
	defer unlock()

	sess, err := s.activeSession(ctx, userID)
	if errors.Is(err, ErrNoActiveStudySession) {
		return nil
	}
	if err != nil {
		return err
	}
	if sess.Status != StatusStudying {
		return nil
	}

	now := s.now()
	cfg := s.config.Current()
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := s.chargeStudying(ctx, &sess, &user, cfg, now); err != nil {
		return err
	}
	if user.Budget.DailyRemainingSeconds <= 0 {
		return s.finishLocked(ctx, &sess, &user, now, FinishDailyLimit)
	}
	if err := s.apply(ctx, "charge session", Mutation{Session: &sess, User: &user}); err != nil {
		return err
	}
	s.publishTime(sess, user.Budget.DailyRemainingSeconds)
	return nil
}

// EnforceLimit finishes an active session whose plan lapsed or whose daily
// budget is spent. It reports whether the session was finished.
func (s *Service) EnforceLimit(ctx context.Context, userID string) (bool, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	sess, err := s.activeSession(ctx, userID)
	if errors.Is(err, ErrNoActiveStudySession) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	now := s.now()
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if user.ActivePlan(now) == PlanNone {
		return true, s.finishLocked(ctx, &sess, &user, now, FinishPlanExpired)
	}
	status, changed, err := s.refreshBudget(ctx, &user, s.config.Current(), now, &sess)
	if err != nil {
		return false, err
	}
	if status.RemainingSeconds <= 0 {
		return true, s.finishLocked(ctx, &sess, &user, now, FinishDailyLimit)
	}
	if changed {
		return false, s.apply(ctx, "save budget", Mutation{User: &user})
	}
	return false, nil
}

// refreshBudget returns the user's remaining seconds. On a new calendar day
// the budget resets to the full allotment; when the cached value is spent
// it is recomputed as allotment minus what today's sessions charged, which
// picks up plan upgrades. Otherwise the cached value is trusted. current,
// when set, is an in-memory session whose charges supersede its stored copy.
func (s *Service) refreshBudget(ctx context.Context, user *User, cfg AppConfig, now time.Time, current *Session) (BudgetStatus, bool, error) {
	plan := user.ActivePlan(now)
	limit := cfg.Plan(plan).DailySeconds()
	today := dayKey(now, s.loc)

	changed := false
	if user.Budget.LastResetDate != today || user.Budget.DailyRemainingSeconds <= 0 {
		remaining := limit
		if user.Budget.LastResetDate == today {
			used, err := s.usedToday(ctx, user.ID, now, current)
			if err != nil {
				return BudgetStatus{}, false, err
			}
			remaining = limit - used
		}
		remaining = max(remaining, 0)
		changed = remaining != user.Budget.DailyRemainingSeconds || user.Budget.LastResetDate != today
		user.Budget = TimeBudget{DailyRemainingSeconds: remaining, LastResetDate: today}
	}

	remaining := user.Budget.DailyRemainingSeconds
	return BudgetStatus{
		Plan:             plan,
		Date:             today,
		LimitSeconds:     limit,
		UsedSeconds:      max(limit-remaining, 0),
		RemainingSeconds: remaining,
	}, changed, nil
}

// usedToday sums what sessions took from today's budget. A session that
// crossed midnight only counts the seconds charged after the rollover.
func (s *Service) usedToday(ctx context.Context, userID string, now time.Time, current *Session) (int64, error) {
	today := dayKey(now, s.loc)
	sessions, err := s.store.ListSessionsChargedOn(ctx, userID, today)
	if err != nil {
		return 0, persistence("list sessions for budget", err)
	}
	var used int64
	for _, sess := range sessions {
		if current != nil && sess.ID == current.ID {
			continue
		}
		used += sess.ChargedDaySeconds
	}
	if current != nil && current.ChargedDate == today {
		used += current.ChargedDaySeconds
	}
	return used, nil
}

// chargeStudying charges whole seconds of studying time between
// ChargedThrough and until. ChargedThrough advances by the whole seconds
// elapsed even when the budget could not cover them. The budget day is
// always the current one, even when until lies in the past.
func (s *Service) chargeStudying(ctx context.Context, sess *Session, user *User, cfg AppConfig, until time.Time) (BudgetStatus, error) {
	status, _, err := s.refreshBudget(ctx, user, cfg, s.now(), sess)
	if err != nil {
		return BudgetStatus{}, err
	}
	elapsed := int64(until.Sub(sess.ChargedThrough) / time.Second)
	if elapsed <= 0 {
		return status, nil
	}
	sess.ChargedThrough = sess.ChargedThrough.Add(time.Duration(elapsed) * time.Second)
	charged := decreaseRemainingSeconds(user, elapsed)
	sess.addCharge(status.Date, charged)
	status.RemainingSeconds = user.Budget.DailyRemainingSeconds
	status.UsedSeconds += charged
	return status, nil
}

// refundChargedAfter gives back seconds charged past end. Only what was
// taken from today's budget returns to it; the session total always drops.
func refundChargedAfter(sess *Session, user *User, status BudgetStatus, end time.Time) {
	over := int64(sess.ChargedThrough.Sub(end) / time.Second)
	if over <= 0 {
		return
	}
	sess.ChargedThrough = sess.ChargedThrough.Add(-time.Duration(over) * time.Second)
	refund := min(over, sess.ChargedSeconds)
	sess.ChargedSeconds -= refund
	if sess.ChargedDate != status.Date {
		return
	}
	credit := min(refund, sess.ChargedDaySeconds)
	sess.ChargedDaySeconds -= credit
	user.Budget.DailyRemainingSeconds = min(user.Budget.DailyRemainingSeconds+credit, status.LimitSeconds)
}

// decreaseRemainingSeconds takes up to seconds from the budget, never going
// below zero, and returns what was actually taken.
func decreaseRemainingSeconds(user *User, seconds int64) int64 {
	if seconds <= 0 {
		return 0
	}
	taken := min(seconds, user.Budget.DailyRemainingSeconds)
	if taken < 0 {
		taken = 0
	}
	user.Budget.DailyRemainingSeconds -= taken
	return taken
}
