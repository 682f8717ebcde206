package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/study.space/internal/services/study/domain"
)

const userColumns = `id, plan, subscription_expires_at, trial_ends_at, daily_remaining_seconds, last_reset_date, created_at, updated_at`

// GetUser loads one user record.
func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	if err := s.ready(ctx); err != nil {
		return domain.User{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// PutUser upserts one user record.
func (s *Store) PutUser(ctx context.Context, user domain.User) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return putUserExec(ctx, s.sqlDB, user)
}

func putUserExec(ctx context.Context, db execer, user domain.User) error {
	if user.ID == "" {
		return fmt.Errorf("user id is required")
	}
	_, err := db.ExecContext(ctx, `
INSERT INTO users (`+userColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    plan = excluded.plan,
    subscription_expires_at = excluded.subscription_expires_at,
    trial_ends_at = excluded.trial_ends_at,
    daily_remaining_seconds = excluded.daily_remaining_seconds,
    last_reset_date = excluded.last_reset_date,
    updated_at = excluded.updated_at
`,
		user.ID,
		string(user.Plan),
		toNullMillis(user.SubscriptionExpiresAt),
		toNullMillis(user.TrialEndsAt),
		user.Budget.DailyRemainingSeconds,
		user.Budget.LastResetDate,
		toMillis(user.CreatedAt),
		toMillis(user.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		user                  domain.User
		plan                  string
		subscriptionExpiresAt sql.NullInt64
		trialEndsAt           sql.NullInt64
		createdAt             int64
		updatedAt             int64
	)
	if err := row.Scan(
		&user.ID,
		&plan,
		&subscriptionExpiresAt,
		&trialEndsAt,
		&user.Budget.DailyRemainingSeconds,
		&user.Budget.LastResetDate,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.User{}, err
	}
	user.Plan = domain.PlanID(plan)
	user.SubscriptionExpiresAt = fromNullMillis(subscriptionExpiresAt)
	user.TrialEndsAt = fromNullMillis(trialEndsAt)
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return user, nil
}

const profileColumns = `user_id, display_name, locale, total_spiritual_power, daily_spiritual_power, total_focus_seconds, daily_focus_seconds, stage, last_focus_update, work_minutes_before_forced_break, forced_break_minutes, updated_at`

// GetProfile loads one gamification profile.
func (s *Store) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Profile{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID)
	var (
		profile         domain.Profile
		stage           string
		lastFocusUpdate int64
		updatedAt       int64
	)
	err := row.Scan(
		&profile.UserID,
		&profile.DisplayName,
		&profile.Locale,
		&profile.TotalSpiritualPower,
		&profile.DailySpiritualPower,
		&profile.TotalFocusSeconds,
		&profile.DailyFocusSeconds,
		&stage,
		&lastFocusUpdate,
		&profile.WorkMinutesBeforeForcedBreak,
		&profile.ForcedBreakMinutes,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Profile{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	profile.Stage = domain.Stage(stage)
	profile.LastFocusUpdate = fromMillis(lastFocusUpdate)
	profile.UpdatedAt = fromMillis(updatedAt)
	return profile, nil
}

// PutProfile upserts one gamification profile.
func (s *Store) PutProfile(ctx context.Context, profile domain.Profile) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return putProfileExec(ctx, s.sqlDB, profile)
}

func putProfileExec(ctx context.Context, db execer, profile domain.Profile) error {
	if profile.UserID == "" {
		return fmt.Errorf("profile user id is required")
	}
	_, err := db.ExecContext(ctx, `
INSERT INTO profiles (`+profileColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
    display_name = excluded.display_name,
    locale = excluded.locale,
    total_spiritual_power = excluded.total_spiritual_power,
    daily_spiritual_power = excluded.daily_spiritual_power,
    total_focus_seconds = excluded.total_focus_seconds,
    daily_focus_seconds = excluded.daily_focus_seconds,
    stage = excluded.stage,
    last_focus_update = excluded.last_focus_update,
    work_minutes_before_forced_break = excluded.work_minutes_before_forced_break,
    forced_break_minutes = excluded.forced_break_minutes,
    updated_at = excluded.updated_at
`,
		profile.UserID,
		profile.DisplayName,
		profile.Locale,
		profile.TotalSpiritualPower,
		profile.DailySpiritualPower,
		profile.TotalFocusSeconds,
		profile.DailyFocusSeconds,
		string(profile.Stage),
		toMillis(profile.LastFocusUpdate),
		profile.WorkMinutesBeforeForcedBreak,
		profile.ForcedBreakMinutes,
		toMillis(profile.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	return nil
}
