package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/study.space/internal/services/study/domain"
)

// GetAppConfig loads the saved configuration. Plans without a saved row
// are absent from the map and fall back to the built-in table.
func (s *Store) GetAppConfig(ctx context.Context) (domain.AppConfig, error) {
	if err := s.ready(ctx); err != nil {
		return domain.AppConfig{}, err
	}

	var (
		cfg       domain.AppConfig
		updatedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT cave_master_goal, monkey_king_goal, total_monkey_king_goal, positive_feedback_seconds, updated_at
FROM app_settings WHERE id = 1
`).Scan(&cfg.Goals.CaveMaster, &cfg.Goals.MonkeyKing, &cfg.Goals.TotalMonkeyKing, &cfg.PositiveFeedbackSeconds, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AppConfig{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.AppConfig{}, fmt.Errorf("get app settings: %w", err)
	}
	cfg.UpdatedAt = fromMillis(updatedAt)

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT plan, name, daily_hours, analysis_interval_seconds FROM plan_limits ORDER BY plan`)
	if err != nil {
		return domain.AppConfig{}, fmt.Errorf("list plan limits: %w", err)
	}
	defer rows.Close()

	cfg.Plans = make(map[domain.PlanID]domain.PlanLimits)
	for rows.Next() {
		var (
			row  domain.PlanLimits
			plan string
		)
		if err := rows.Scan(&plan, &row.Name, &row.DailyHours, &row.AnalysisIntervalSeconds); err != nil {
			return domain.AppConfig{}, fmt.Errorf("scan plan limits: %w", err)
		}
		row.Plan = domain.PlanID(plan)
		cfg.Plans[row.Plan] = row
	}
	if err := rows.Err(); err != nil {
		return domain.AppConfig{}, fmt.Errorf("iterate plan limits: %w", err)
	}
	return cfg, nil
}

// PutAppConfig replaces the saved configuration.
func (s *Store) PutAppConfig(ctx context.Context, cfg domain.AppConfig) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin config write: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback config write: %v", cause, rollbackErr)
		}
		return cause
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO app_settings (id, cave_master_goal, monkey_king_goal, total_monkey_king_goal, positive_feedback_seconds, updated_at)
VALUES (1, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    cave_master_goal = excluded.cave_master_goal,
    monkey_king_goal = excluded.monkey_king_goal,
    total_monkey_king_goal = excluded.total_monkey_king_goal,
    positive_feedback_seconds = excluded.positive_feedback_seconds,
    updated_at = excluded.updated_at
`, cfg.Goals.CaveMaster, cfg.Goals.MonkeyKing, cfg.Goals.TotalMonkeyKing, cfg.PositiveFeedbackSeconds, toMillis(cfg.UpdatedAt)); err != nil {
		return rollbackWith(fmt.Errorf("put app settings: %w", err))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM plan_limits`); err != nil {
		return rollbackWith(fmt.Errorf("clear plan limits: %w", err))
	}
	for id, row := range cfg.Plans {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO plan_limits (plan, name, daily_hours, analysis_interval_seconds)
VALUES (?, ?, ?, ?)
`, string(id), row.Name, row.DailyHours, row.AnalysisIntervalSeconds); err != nil {
			return rollbackWith(fmt.Errorf("put plan limits %s: %w", id, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit config write: %w", err)
	}
	return nil
}
