package app

import (
	"context"
	"time"

	"github.com/louisbranch/study.space/internal/services/study/domain"
)

var testNow = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

type fakeStudy struct {
	startFn   func(ctx context.Context, userID string) (domain.Session, error)
	currentFn func(ctx context.Context, userID string) (*domain.Session, error)
	analyzeFn func(ctx context.Context, userID string, image domain.Image) (domain.AnalysisResult, error)
	listFn    func(ctx context.Context, userID string, from, to time.Time) ([]domain.Session, error)
	profileFn func(ctx context.Context, userID string) (domain.Profile, error)
	putUserFn func(ctx context.Context, in domain.UserInput) (domain.User, error)
	breakType string
}

func (f *fakeStudy) Start(ctx context.Context, userID string) (domain.Session, error) {
	if f.startFn != nil {
		return f.startFn(ctx, userID)
	}
	return domain.Session{ID: "s-1", UserID: userID, Status: domain.StatusStudying, StartTime: testNow, CurrentRank: domain.MaxRank}, nil
}

func (f *fakeStudy) Stop(_ context.Context, userID string) (domain.Session, error) {
	end := testNow
	return domain.Session{ID: "s-1", UserID: userID, Status: domain.StatusFinished, EndTime: &end}, nil
}

func (f *fakeStudy) StartBreak(_ context.Context, userID, breakType string) (domain.Session, error) {
	f.breakType = breakType
	kind, err := domain.ParseBreakType(breakType)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{ID: "s-1", UserID: userID, Status: domain.StatusBreak, ActiveBreakType: kind}, nil
}

func (f *fakeStudy) Resume(_ context.Context, userID string) (domain.Session, error) {
	return domain.Session{ID: "s-1", UserID: userID, Status: domain.StatusStudying}, nil
}

func (f *fakeStudy) GetCurrent(ctx context.Context, userID string) (*domain.Session, error) {
	if f.currentFn != nil {
		return f.currentFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeStudy) Analyze(ctx context.Context, userID string, image domain.Image) (domain.AnalysisResult, error) {
	if f.analyzeFn != nil {
		return f.analyzeFn(ctx, userID, image)
	}
	return domain.AnalysisResult{}, nil
}

func (f *fakeStudy) ListSessions(ctx context.Context, userID string, from, to time.Time) ([]domain.Session, error) {
	if f.listFn != nil {
		return f.listFn(ctx, userID, from, to)
	}
	return nil, nil
}

func (f *fakeStudy) Budget(context.Context, string) (domain.BudgetStatus, error) {
	return domain.BudgetStatus{Plan: domain.PlanTrial, Date: "2026-03-02", LimitSeconds: 10800, UsedSeconds: 600, RemainingSeconds: 10200}, nil
}

func (f *fakeStudy) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	if f.profileFn != nil {
		return f.profileFn(ctx, userID)
	}
	return domain.NewProfile(userID, testNow), nil
}

func (f *fakeStudy) UpdateProfile(_ context.Context, in domain.ProfileSettings) (domain.Profile, error) {
	p := domain.NewProfile(in.UserID, testNow)
	if in.Locale != nil {
		p.Locale = *in.Locale
	}
	return p, nil
}

func (f *fakeStudy) GetUser(_ context.Context, userID string) (domain.User, error) {
	if userID == "missing" {
		return domain.User{}, domain.ErrNotFound
	}
	return domain.User{ID: userID, Plan: domain.PlanStandard}, nil
}

func (f *fakeStudy) PutUser(ctx context.Context, in domain.UserInput) (domain.User, error) {
	if f.putUserFn != nil {
		return f.putUserFn(ctx, in)
	}
	plan, err := domain.ParseSubscriptionPlan(in.Plan)
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: in.ID, Plan: plan, TrialEndsAt: in.TrialEndsAt}, nil
}

func (f *fakeStudy) Now() time.Time { return testNow }

type fakeConfig struct {
	cfg     domain.AppConfig
	updates int
}

func (f *fakeConfig) Current() domain.AppConfig { return f.cfg.Clone() }

func (f *fakeConfig) Update(_ context.Context, cfg domain.AppConfig) (domain.AppConfig, error) {
	if err := cfg.Validate(); err != nil {
		return domain.AppConfig{}, err
	}
	f.cfg = cfg.Clone()
	f.updates++
	return f.cfg.Clone(), nil
}
