package domain

import "time"

// User carries the subscription state and the cached daily budget.
type User struct {
	ID                    string
	Plan                  PlanID
	SubscriptionExpiresAt *time.Time
	TrialEndsAt           *time.Time
	Budget                TimeBudget
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// TimeBudget is the cached remaining allotment for one calendar day.
type TimeBudget struct {
	DailyRemainingSeconds int64
	LastResetDate         string
}

// ActivePlan resolves the plan in effect at now: a paid subscription wins
// over a trial, and an expired trial leaves PlanNone.
func (u User) ActivePlan(now time.Time) PlanID {
	if u.Plan == PlanStandard || u.Plan == PlanPro {
		if u.SubscriptionExpiresAt == nil || now.Before(*u.SubscriptionExpiresAt) {
			return u.Plan
		}
	}
	if u.TrialEndsAt != nil && now.Before(*u.TrialEndsAt) {
		return PlanTrial
	}
	return PlanNone
}

// BudgetStatus is the ledger view of one user's day.
type BudgetStatus struct {
	Plan             PlanID
	Date             string
	LimitSeconds     int64
	UsedSeconds      int64
	RemainingSeconds int64
}

// UserInput describes an administrative user upsert.
type UserInput struct {
	ID                    string
	Plan                  string
	SubscriptionExpiresAt *time.Time
	TrialEndsAt           *time.Time
}

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.DateOnly)
}

func dayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
