package domain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/study.space/internal/platform/errors"
)

func TestStartCreatesStudyingSessionAtMaxRank(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addTrialUser("user-1")

	sess, err := h.svc.Start(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if sess.Status != StatusStudying || sess.CurrentRank != MaxRank {
		t.Fatalf("session = %+v, want studying at rank %d", sess, MaxRank)
	}
	if !sess.LastActivity.Equal(testStart) || !sess.ChargedThrough.Equal(testStart) {
		t.Fatalf("timestamps = %v / %v, want %v", sess.LastActivity, sess.ChargedThrough, testStart)
	}
	if got := h.store.user("user-1").Budget; got.DailyRemainingSeconds != 3*3600 || got.LastResetDate != "2026-03-02" {
		t.Fatalf("budget = %+v, want 3h for 2026-03-02", got)
	}
	if _, ok := h.streaks.streakStart("user-1"); !ok {
		t.Fatal("expected streak to start")
	}
	if h.publisher.count("user-1", EventSessionUpdated) != 1 {
		t.Fatalf("events = %v", h.publisher.types("user-1"))
	}
}

func TestStartRejectsSecondActiveSession(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addTrialUser("user-1")

	if _, err := h.svc.Start(context.Background(), "user-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err := h.svc.Start(context.Background(), "user-1")
	if !errors.Is(err, ErrSessionConflict) {
		t.Fatalf("second start err = %v, want session conflict", err)
	}
	if got := h.store.activeCount("user-1"); got != 1 {
		t.Fatalf("active sessions = %d, want 1", got)
	}
}

func TestConcurrentStartsKeepOneActiveSession(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addTrialUser("user-1")

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.svc.Start(context.Background(), "user-1"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("successful starts = %d, want 1", successes)
	}
	if got := h.store.activeCount("user-1"); got != 1 {
		t.Fatalf("active sessions = %d, want 1", got)
	}
}

func TestStartWithoutPlanIsTrialExpired(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	expired := testStart.Add(-time.Hour)
	h.store.users["user-1"] = User{ID: "user-1", Plan: PlanNone, TrialEndsAt: &expired}

	_, err := h.svc.Start(context.Background(), "user-1")
	if apperrors.CodeOf(err) != apperrors.CodeTrialExpired {
		t.Fatalf("err = %v, want TRIAL_EXPIRED", err)
	}
}

func TestStartWithSpentBudgetReportsNumbers(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addPlanUser("user-1", PlanStandard)
	prior := Session{
		ID:                "old",
		UserID:            "user-1",
		StartTime:         testStart.Add(-3 * time.Hour),
		Status:            StatusFinished,
		ChargedSeconds:    2 * 3600,
		ChargedDate:       "2026-03-02",
		ChargedDaySeconds: 2 * 3600,
	}
	h.store.sessions[prior.ID] = prior
	u := h.store.users["user-1"]
	u.Budget = TimeBudget{DailyRemainingSeconds: 0, LastResetDate: "2026-03-02"}
	h.store.users["user-1"] = u

	_, err := h.svc.Start(context.Background(), "user-1")
	domainErr, ok := apperrors.As(err)
	if !ok || domainErr.Code != apperrors.CodeDailyLimitExceeded {
		t.Fatalf("err = %v, want DAILY_LIMIT_EXCEEDED", err)
	}
	want := map[string]string{"limit_seconds": "7200", "used_seconds": "7200", "remaining_seconds": "0"}
	for key, value := range want {
		if domainErr.Metadata[key] != value {
			t.Fatalf("metadata[%s] = %q, want %q", key, domainErr.Metadata[key], value)
		}
	}
}

func TestStartRollsDailyProfileCounters(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addTrialUser("user-1")
	h.store.profiles["user-1"] = Profile{
		UserID:              "user-1",
		Stage:               StageCaveMaster,
		TotalSpiritualPower: 900,
		DailySpiritualPower: 300,
		DailyFocusSeconds:   600,
		TotalFocusSeconds:   6000,
		LastFocusUpdate:     testStart.Add(-24 * time.Hour),
	}

	if _, err := h.svc.Start(context.Background(), "user-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	got := h.store.profile("user-1")
	if got.DailySpiritualPower != 0 || got.DailyFocusSeconds != 0 {
		t.Fatalf("daily counters = %d/%d, want zero", got.DailySpiritualPower, got.DailyFocusSeconds)
	}
	if got.TotalSpiritualPower != 900 || got.TotalFocusSeconds != 6000 || got.Stage != StageCaveMaster {
		t.Fatalf("totals changed: %+v", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addTrialUser("user-1")
	ctx := context.Background()

	started, err := h.svc.Start(ctx, "user-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.Advance(10 * time.Minute)

	first, err := h.svc.Stop(ctx, "user-1")
	if err != nil {
		t.Fatalf("first stop: %v", err)
	}
	budgetAfterFirst := h.store.user("user-1").Budget
	profileAfterFirst := h.store.profile("user-1")

	h.clock.Advance(time.Minute)
	second, err := h.svc.Stop(ctx, "user-1")
	if err != nil {
		t.Fatalf("second stop: %v", err)
	}

	if first.ID != started.ID || second.ID != started.ID {
		t.Fatalf("stopped ids = %q/%q, want %q", first.ID, second.ID, started.ID)
	}
	if second.Status != StatusFinished || !second.EndTime.Equal(*first.EndTime) || second.ChargedSeconds != first.ChargedSeconds {
		t.Fatalf("second stop changed the record: first=%+v second=%+v", first, second)
	}
	if got := h.store.user("user-1").Budget; got != budgetAfterFirst {
		t.Fatalf("budget changed on second stop: %+v -> %+v", budgetAfterFirst, got)
	}
	if got := h.store.profile("user-1"); got.TotalFocusSeconds != profileAfterFirst.TotalFocusSeconds {
		t.Fatalf("focus seconds changed on second stop")
	}
	if first.ChargedSeconds != 600 || budgetAfterFirst.DailyRemainingSeconds != 3*3600-600 {
		t.Fatalf("charged = %d remaining = %d", first.ChargedSeconds, budgetAfterFirst.DailyRemainingSeconds)
	}
}

func TestStopWithoutAnySessionIsNotFound(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addTrialUser("user-1")

	if _, err := h.svc.Stop(context.Background(), "user-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestStopChargesFocusedRemainder(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addTrialUser("user-1")
	ctx := context.Background()

	sess, err := h.svc.Start(ctx, "user-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	stored := h.store.session(sess.ID)
	// Eight focused samples at the trial's 15 s interval: 120 focused seconds
	// while only 60 s of wall time will have elapsed.
	for i := range 8 {
		stored.FocusHistory = append(stored.FocusHistory, FocusSample{Timestamp: testStart.Add(time.Duration(i) * time.Second), IsFocused: true, IsOnSeat: true})
	}
	stored.FocusHistory = append(stored.FocusHistory, FocusSample{Timestamp: testStart, IsFocused: false, IsOnSeat: true})
	h.store.sessions[sess.ID] = stored

	h.clock.Advance(time.Minute)
	stopped, err := h.svc.Stop(ctx, "user-1")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped.ChargedSeconds != 120 {
		t.Fatalf("charged = %d, want 120", stopped.ChargedSeconds)
	}
	if got := h.store.profile("user-1").TotalFocusSeconds; got != 120 {
		t.Fatalf("total focus seconds = %d, want 120", got)
	}
	if got := h.store.user("user-1").Budget.DailyRemainingSeconds; got != 3*3600-120 {
		t.Fatalf("remaining = %d", got)
	}
}

func TestWaterBreakScenario(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addTrialUser("user-1")
	ctx := context.Background()

	if _, err := h.svc.Start(ctx, "user-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.Advance(5 * time.Minute)

	sess, err := h.svc.StartBreak(ctx, "user-1", "water")
	if err != nil {
		t.Fatalf("start break: %v", err)
	}
	if sess.Status != StatusBreak || sess.ActiveBreakType != BreakWater {
		t.Fatalf("session = %+v, want water break", sess)
	}
	if len(sess.Breaks) != 1 || sess.Breaks[0].EndTime != nil {
		t.Fatalf("breaks = %+v, want one open entry", sess.Breaks)
	}
	if _, ok := h.streaks.streakStart("user-1"); ok {
		t.Fatal("expected streak cleared by manual break")
	}

	_, err = h.svc.StartBreak(ctx, "user-1", "water")
	if !errors.Is(err, ErrNoActiveStudySession) {
		t.Fatalf("second break err = %v, want no active study session", err)
	}
}

func TestStartBreakValidatesType(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addTrialUser("user-1")
	if _, err := h.svc.Start(context.Background(), "user-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	tests := []struct {
		raw  string
		code apperrors.Code
	}{
		{"", apperrors.CodeBreakTypeMissing},
		{"  ", apperrors.CodeBreakTypeMissing},
		{"nap", apperrors.CodeValidationFailed},
		{"forced", apperrors.CodeValidationFailed},
	}
	for _, tc := range tests {
		_, err := h.svc.StartBreak(context.Background(), "user-1", tc.raw)
		if got := apperrors.CodeOf(err); got != tc.code {
			t.Errorf("StartBreak(%q) code = %s, want %s", tc.raw, got, tc.code)
		}
	}
}

func TestBreakTimeIsNotCharged(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addTrialUser("user-1")
	ctx := context.Background()

	if _, err := h.svc.Start(ctx, "user-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.Advance(2 * time.Minute)
	if _, err := h.svc.StartBreak(ctx, "user-1", "meal"); err != nil {
		t.Fatalf("break: %v", err)
	}
	h.clock.Advance(20 * time.Minute)
	if err := h.svc.ChargeTick(ctx, "user-1"); err != nil {
		t.Fatalf("tick during break: %v", err)
	}
	if _, err := h.svc.Resume(ctx, "user-1"); err != nil {
		t.Fatalf("resume: %v", err)
	}
	h.clock.Advance(3 * time.Minute)
	stopped, err := h.svc.Stop(ctx, "user-1")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped.ChargedSeconds != 5*60 {
		t.Fatalf("charged = %d, want %d", stopped.ChargedSeconds, 5*60)
	}
}

func TestEveryResumePathClosesBreak(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addTrialUser("user-1")
	ctx := context.Background()

	if _, err := h.svc.Start(ctx, "user-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.Advance(time.Minute)
	if _, err := h.svc.StartBreak(ctx, "user-1", "toilet"); err != nil {
		t.Fatalf("break: %v", err)
	}
	h.clock.Advance(time.Minute)
	manual, err := h.svc.Resume(ctx, "user-1")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	assertNoOpenBreak(t, manual)
	if manual.ActiveBreakType != "" || manual.Status != StatusStudying {
		t.Fatalf("session = %+v, want studying without break type", manual)
	}

	h.clock.Advance(time.Minute)
	forced, ok, err := h.svc.ForceBreak(ctx, "user-1", manual.ID, time.Minute)
	if err != nil || !ok {
		t.Fatalf("force break: ok=%v err=%v", ok, err)
	}
	open, _ := forced.OpenBreak()
	h.clock.Advance(time.Minute)
	resumed, err := h.svc.AutoResume(ctx, "user-1", forced.ID, open.StartTime)
	if err != nil || !resumed {
		t.Fatalf("auto resume: resumed=%v err=%v", resumed, err)
	}
	current, err := h.svc.GetCurrent(ctx, "user-1")
	if err != nil || current == nil {
		t.Fatalf("get current: %v", err)
	}
	assertNoOpenBreak(t, *current)
	if len(current.Breaks) != 2 {
		t.Fatalf("breaks = %d, want 2", len(current.Breaks))
	}
}

func assertNoOpenBreak(t *testing.T, sess Session) {
	t.Helper()
	for i, entry := range sess.Breaks {
		if entry.EndTime == nil {
			t.Fatalf("break %d has no end time after resume", i)
		}
	}
}

func TestResumeRequiresBreak(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addTrialUser("user-1")
	if _, err := h.svc.Start(context.Background(), "user-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := h.svc.Resume(context.Background(), "user-1"); !errors.Is(err, ErrNoActiveStudySession) {
		t.Fatalf("err = %v, want no active study session", err)
	}
}

func TestAutoResumeIgnoresStaleTimers(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addTrialUser("user-1")
	ctx := context.Background()

	sess, err := h.svc.Start(ctx, "user-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	forced, ok, err := h.svc.ForceBreak(ctx, "user-1", sess.ID, time.Minute)
	if err != nil || !ok {
		t.Fatalf("force break: ok=%v err=%v", ok, err)
	}
	open, _ := forced.OpenBreak()

	h.clock.Advance(10 * time.Second)
	if _, err := h.svc.Resume(ctx, "user-1"); err != nil {
		t.Fatalf("manual resume: %v", err)
	}
	h.clock.Advance(10 * time.Second)
	if _, err := h.svc.StartBreak(ctx, "user-1", "rest"); err != nil {
		t.Fatalf("manual break: %v", err)
	}

	resumed, err := h.svc.AutoResume(ctx, "user-1", sess.ID, open.StartTime)
	if err != nil {
		t.Fatalf("auto resume: %v", err)
	}
	if resumed {
		t.Fatal("expected stale auto resume to be a no-op")
	}
	current, _ := h.svc.GetCurrent(ctx, "user-1")
	if current.Status != StatusBreak || current.ActiveBreakType != BreakRest {
		t.Fatalf("session = %+v, want manual rest break untouched", current)
	}

	if _, err := h.svc.Stop(ctx, "user-1"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if resumed, _ := h.svc.AutoResume(ctx, "user-1", sess.ID, open.StartTime); resumed {
		t.Fatal("expected auto resume after stop to be a no-op")
	}
}

func TestForceBreakPublishesDistinctEvent(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addTrialUser("user-1")
	ctx := context.Background()

	sess, err := h.svc.Start(ctx, "user-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	before := h.publisher.count("user-1", EventSessionUpdated)
	if _, ok, err := h.svc.ForceBreak(ctx, "user-1", sess.ID, 10*time.Minute); err != nil || !ok {
		t.Fatalf("force break: ok=%v err=%v", ok, err)
	}
	if h.publisher.count("user-1", EventForcedBreak) != 1 {
		t.Fatalf("events = %v, want one forced break", h.publisher.types("user-1"))
	}
	if h.publisher.count("user-1", EventSessionUpdated) != before {
		t.Fatal("forced break should not publish session.updated")
	}

	if _, ok, _ := h.svc.ForceBreak(ctx, "user-1", sess.ID, 10*time.Minute); ok {
		t.Fatal("expected second forced break on a break session to be rejected")
	}
}

func TestFinishStaleUsesLastActivity(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addTrialUser("user-1")
	ctx := context.Background()

	sess, err := h.svc.Start(ctx, "user-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	lastActivity := sess.LastActivity

	h.clock.Advance(29 * time.Minute)
	if finished, err := h.svc.FinishStale(ctx, "user-1", 30*time.Minute); err != nil || finished {
		t.Fatalf("early sweep: finished=%v err=%v", finished, err)
	}

	h.clock.Advance(2 * time.Minute)
	finished, err := h.svc.FinishStale(ctx, "user-1", 30*time.Minute)
	if err != nil || !finished {
		t.Fatalf("sweep: finished=%v err=%v", finished, err)
	}
	got := h.store.session(sess.ID)
	if got.Status != StatusFinished || got.FinishReason != FinishStale {
		t.Fatalf("session = %+v, want finished as stale", got)
	}
	if !got.EndTime.Equal(lastActivity) {
		t.Fatalf("end time = %v, want last activity %v", got.EndTime, lastActivity)
	}
}

func TestFinishStaleRefundsIdleCharge(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addTrialUser("user-1")
	ctx := context.Background()

	sess, err := h.svc.Start(ctx, "user-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.Advance(40 * time.Minute)
	if err := h.svc.ChargeTick(ctx, "user-1"); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got := h.store.user("user-1").Budget.DailyRemainingSeconds; got != 3*3600-2400 {
		t.Fatalf("remaining before sweep = %d", got)
	}

	if finished, err := h.svc.FinishStale(ctx, "user-1", 30*time.Minute); err != nil || !finished {
		t.Fatalf("sweep: finished=%v err=%v", finished, err)
	}
	got := h.store.session(sess.ID)
	if got.ChargedSeconds != 0 || got.ChargedDaySeconds != 0 {
		t.Fatalf("charged = %d/%d, want idle time refunded", got.ChargedSeconds, got.ChargedDaySeconds)
	}
	if !got.ChargedThrough.Equal(*got.EndTime) {
		t.Fatalf("charged through = %v, want end %v", got.ChargedThrough, got.EndTime)
	}
	if remaining := h.store.user("user-1").Budget.DailyRemainingSeconds; remaining != 3*3600 {
		t.Fatalf("remaining = %d, want full budget back", remaining)
	}
}

func TestFinishStaleClosesOpenBreak(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addTrialUser("user-1")
	ctx := context.Background()

	if _, err := h.svc.Start(ctx, "user-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.Advance(time.Minute)
	sess, err := h.svc.StartBreak(ctx, "user-1", "other")
	if err != nil {
		t.Fatalf("break: %v", err)
	}
	h.clock.Advance(45 * time.Minute)
	if finished, err := h.svc.FinishStale(ctx, "user-1", 30*time.Minute); err != nil || !finished {
		t.Fatalf("sweep: finished=%v err=%v", finished, err)
	}
	got := h.store.session(sess.ID)
	assertNoOpenBreak(t, got)
	if !got.Breaks[0].EndTime.Equal(sess.LastActivity) {
		t.Fatalf("break end = %v, want %v", got.Breaks[0].EndTime, sess.LastActivity)
	}
}

func TestGetCurrentReturnsNilWhenIdle(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	current, err := h.svc.GetCurrent(context.Background(), "user-1")
	if err != nil || current != nil {
		t.Fatalf("current = %+v err = %v, want nil", current, err)
	}
	if _, err := h.svc.GetCurrent(context.Background(), " "); !errors.Is(err, ErrUserIDRequired) {
		t.Fatalf("blank user err = %v", err)
	}
}

func TestPersistenceFailureIsWrapped(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addTrialUser("user-1")
	h.store.applyErr = errors.New("disk full")

	_, err := h.svc.Start(context.Background(), "user-1")
	if apperrors.CodeOf(err) != apperrors.CodePersistenceFailed {
		t.Fatalf("err = %v, want PERSISTENCE_FAILED", err)
	}
	if got := h.store.activeCount("user-1"); got != 0 {
		t.Fatalf("active sessions = %d, want 0", got)
	}
}

func TestPutUserResetsBudgetOnPlanChange(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addPlanUser("user-1", PlanStandard)
	u := h.store.users["user-1"]
	u.Budget = TimeBudget{DailyRemainingSeconds: 0, LastResetDate: "2026-03-02"}
	h.store.users["user-1"] = u

	updated, err := h.svc.PutUser(context.Background(), UserInput{ID: "user-1", Plan: "pro"})
	if err != nil {
		t.Fatalf("put user: %v", err)
	}
	if updated.Plan != PlanPro || updated.Budget.DailyRemainingSeconds != 0 {
		t.Fatalf("user = %+v, want pro with budget marked for recompute", updated)
	}

	status, err := h.svc.Budget(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("budget: %v", err)
	}
	if status.Plan != PlanPro || status.RemainingSeconds != 5*3600 {
		t.Fatalf("status = %+v, want pro with 5h", status)
	}

	if _, err := h.svc.PutUser(context.Background(), UserInput{ID: "user-1", Plan: "platinum"}); !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("err = %v, want invalid plan", err)
	}
}

func TestUpdateProfileAppliesSettings(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	work, rest, locale := 1, 2, "pt-BR"

	profile, err := h.svc.UpdateProfile(context.Background(), ProfileSettings{
		UserID:                       "user-1",
		Locale:                       &locale,
		WorkMinutesBeforeForcedBreak: &work,
		ForcedBreakMinutes:           &rest,
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if profile.Locale != "pt-BR" || profile.WorkMinutesBeforeForcedBreak != 1 || profile.ForcedBreakMinutes != 2 {
		t.Fatalf("profile = %+v", profile)
	}
	if profile.Stage != StageStoneMonkey {
		t.Fatalf("stage = %s, want %s", profile.Stage, StageStoneMonkey)
	}

	negative := -1
	_, err = h.svc.UpdateProfile(context.Background(), ProfileSettings{UserID: "user-1", ForcedBreakMinutes: &negative})
	if apperrors.CodeOf(err) != apperrors.CodeValidationFailed {
		t.Fatalf("err = %v, want validation failure", err)
	}
}

func TestListSessionsValidatesWindow(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addTrialUser("user-1")
	ctx := context.Background()
	if _, err := h.svc.Start(ctx, "user-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	sessions, err := h.svc.ListSessions(ctx, "user-1", testStart.Add(-time.Hour), testStart.Add(time.Hour))
	if err != nil || len(sessions) != 1 {
		t.Fatalf("sessions = %d err = %v, want 1", len(sessions), err)
	}
	if _, err := h.svc.ListSessions(ctx, "user-1", testStart, testStart); !errors.Is(err, ErrInvalidTimeWindow) {
		t.Fatalf("err = %v, want invalid window", err)
	}
}

type blockingPublisher struct {
	entered chan struct{}
	release chan struct{}
}

func (p *blockingPublisher) PublishToUser(string, Event) {
	select {
	case p.entered <- struct{}{}:
	default:
	}
	<-p.release
}

func (p *blockingPublisher) Broadcast(Event) {}

func TestPublishRunsAfterUserLockIsReleased(t *testing.T) {
	t.Parallel()

	h := newHarness(DefaultAppConfig())
	h.addTrialUser("user-1")
	pub := &blockingPublisher{entered: make(chan struct{}, 1), release: make(chan struct{})}
	svc := NewService(Deps{Store: h.store, Publisher: pub, Clock: h.clock.Now, NewID: sequentialIDGenerator()})
	ctx := context.Background()

	startErr := make(chan error, 1)
	go func() {
		_, err := svc.Start(ctx, "user-1")
		startErr <- err
	}()
	select {
	case <-pub.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("start never published")
	}

	budgetErr := make(chan error, 1)
	go func() {
		_, err := svc.Budget(ctx, "user-1")
		budgetErr <- err
	}()
	select {
	case err := <-budgetErr:
		if err != nil {
			t.Fatalf("budget: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("user lock still held while a publish was blocked")
	}

	close(pub.release)
	if err := <-startErr; err != nil {
		t.Fatalf("start: %v", err)
	}
}
