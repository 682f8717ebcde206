package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/study.space/internal/services/study/domain"
)

const sessionColumns = `id, user_id, start_time, end_time, status, active_break_type, breaks_json, focus_history_json, last_activity, consecutive_distractions, last_focus_time, last_positive_feedback_time, current_rank, charged_seconds, charged_through, charged_date, charged_day_seconds, finish_reason`

type breakJSON struct {
	Start int64  `json:"start"`
	End   *int64 `json:"end,omitempty"`
	Type  string `json:"type"`
}

type sampleJSON struct {
	At      int64 `json:"at"`
	Focused bool  `json:"focused"`
	OnSeat  bool  `json:"on_seat"`
}

// GetActiveSession returns the user's studying or break session.
func (s *Store) GetActiveSession(ctx context.Context, userID string) (domain.Session, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Session{}, err
	}
	return getSession(ctx, s.sqlDB, `SELECT `+sessionColumns+` FROM study_sessions WHERE user_id = ? AND status IN ('studying', 'break')`, userID)
}

// GetLatestSession returns the user's most recently started session.
func (s *Store) GetLatestSession(ctx context.Context, userID string) (domain.Session, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Session{}, err
	}
	return getSession(ctx, s.sqlDB, `SELECT `+sessionColumns+` FROM study_sessions WHERE user_id = ? ORDER BY start_time DESC, id DESC LIMIT 1`, userID)
}

func getSession(ctx context.Context, db queryer, query string, args ...any) (domain.Session, error) {
	sess, err := scanSession(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// ListSessionsByStatus lists sessions in any of the given statuses.
func (s *Store) ListSessionsByStatus(ctx context.Context, statuses ...domain.SessionStatus) ([]domain.Session, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	args := make([]any, 0, len(statuses))
	for _, status := range statuses {
		args = append(args, string(status))
	}
	return listSessions(ctx, s.sqlDB, `SELECT `+sessionColumns+` FROM study_sessions WHERE status IN (`+placeholders+`) ORDER BY start_time, id`, args...)
}

// ListSessionsStartedBetween lists the user's sessions started in [from, to).
func (s *Store) ListSessionsStartedBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.Session, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return listSessions(ctx, s.sqlDB, `SELECT `+sessionColumns+` FROM study_sessions WHERE user_id = ? AND start_time >= ? AND start_time < ? ORDER BY start_time, id`,
		userID, toMillis(from), toMillis(to))
}

// ListSessionsChargedOn lists the user's sessions whose latest budget charge
// fell on day.
func (s *Store) ListSessionsChargedOn(ctx context.Context, userID, day string) ([]domain.Session, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return listSessions(ctx, s.sqlDB, `SELECT `+sessionColumns+` FROM study_sessions WHERE user_id = ? AND charged_date = ? ORDER BY start_time, id`,
		userID, day)
}

func listSessions(ctx context.Context, db queryer, query string, args ...any) ([]domain.Session, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// Apply writes every record of m in one transaction.
func (s *Store) Apply(ctx context.Context, m domain.Mutation) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin study write: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback study write: %v", cause, rollbackErr)
		}
		return cause
	}

	if m.NewSession != nil {
		if err := insertSessionExec(ctx, tx, *m.NewSession); err != nil {
			if isUniqueConstraintError(err) {
				return rollbackWith(domain.ErrSessionConflict)
			}
			return rollbackWith(err)
		}
	}
	if m.Session != nil {
		if err := updateSessionExec(ctx, tx, *m.Session); err != nil {
			return rollbackWith(err)
		}
	}
	if m.User != nil {
		if err := putUserExec(ctx, tx, *m.User); err != nil {
			return rollbackWith(err)
		}
	}
	if m.Profile != nil {
		if err := putProfileExec(ctx, tx, *m.Profile); err != nil {
			return rollbackWith(err)
		}
	}
	if m.Analysis != nil {
		if err := insertAnalysisExec(ctx, tx, *m.Analysis); err != nil {
			return rollbackWith(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit study write: %w", err)
	}
	return nil
}

func insertSessionExec(ctx context.Context, db execer, sess domain.Session) error {
	args, err := sessionArgs(sess)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `INSERT INTO study_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func updateSessionExec(ctx context.Context, db execer, sess domain.Session) error {
	args, err := sessionArgs(sess)
	if err != nil {
		return err
	}
	// id moves to the end for the WHERE clause; user_id and start_time are immutable.
	update := append(append([]any{}, args[4:]...), args[3], args[0])
	result, err := db.ExecContext(ctx, `
UPDATE study_sessions SET
    status = ?,
    active_break_type = ?,
    breaks_json = ?,
    focus_history_json = ?,
    last_activity = ?,
    consecutive_distractions = ?,
    last_focus_time = ?,
    last_positive_feedback_time = ?,
    current_rank = ?,
    charged_seconds = ?,
    charged_through = ?,
    charged_date = ?,
    charged_day_seconds = ?,
    finish_reason = ?,
    end_time = ?
WHERE id = ?
`, update...)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func sessionArgs(sess domain.Session) ([]any, error) {
	if sess.ID == "" || sess.UserID == "" {
		return nil, fmt.Errorf("session id and user id are required")
	}
	breaks := make([]breakJSON, 0, len(sess.Breaks))
	for _, entry := range sess.Breaks {
		item := breakJSON{Start: toMillis(entry.StartTime), Type: string(entry.Type)}
		if entry.EndTime != nil {
			end := toMillis(*entry.EndTime)
			item.End = &end
		}
		breaks = append(breaks, item)
	}
	breaksJSON, err := json.Marshal(breaks)
	if err != nil {
		return nil, fmt.Errorf("encode breaks: %w", err)
	}
	samples := make([]sampleJSON, 0, len(sess.FocusHistory))
	for _, sample := range sess.FocusHistory {
		samples = append(samples, sampleJSON{At: toMillis(sample.Timestamp), Focused: sample.IsFocused, OnSeat: sample.IsOnSeat})
	}
	samplesJSON, err := json.Marshal(samples)
	if err != nil {
		return nil, fmt.Errorf("encode focus history: %w", err)
	}

	return []any{
		sess.ID,
		sess.UserID,
		toMillis(sess.StartTime),
		toNullMillis(sess.EndTime),
		string(sess.Status),
		string(sess.ActiveBreakType),
		string(breaksJSON),
		string(samplesJSON),
		toMillis(sess.LastActivity),
		sess.ConsecutiveDistractions,
		toMillis(sess.LastFocusTime),
		toMillis(sess.LastPositiveFeedbackTime),
		sess.CurrentRank,
		sess.ChargedSeconds,
		toMillis(sess.ChargedThrough),
		sess.ChargedDate,
		sess.ChargedDaySeconds,
		string(sess.FinishReason),
	}, nil
}

func scanSession(row rowScanner) (domain.Session, error) {
	var (
		sess                     domain.Session
		startTime                int64
		endTime                  sql.NullInt64
		status                   string
		activeBreakType          string
		breaksRaw                string
		samplesRaw               string
		lastActivity             int64
		lastFocusTime            int64
		lastPositiveFeedbackTime int64
		chargedThrough           int64
		finishReason             string
	)
	if err := row.Scan(
		&sess.ID,
		&sess.UserID,
		&startTime,
		&endTime,
		&status,
		&activeBreakType,
		&breaksRaw,
		&samplesRaw,
		&lastActivity,
		&sess.ConsecutiveDistractions,
		&lastFocusTime,
		&lastPositiveFeedbackTime,
		&sess.CurrentRank,
		&sess.ChargedSeconds,
		&chargedThrough,
		&sess.ChargedDate,
		&sess.ChargedDaySeconds,
		&finishReason,
	); err != nil {
		return domain.Session{}, err
	}

	var breaks []breakJSON
	if err := json.Unmarshal([]byte(breaksRaw), &breaks); err != nil {
		return domain.Session{}, fmt.Errorf("decode breaks: %w", err)
	}
	sess.Breaks = make([]domain.BreakEntry, 0, len(breaks))
	for _, item := range breaks {
		entry := domain.BreakEntry{StartTime: fromMillis(item.Start), Type: domain.BreakType(item.Type)}
		if item.End != nil {
			end := fromMillis(*item.End)
			entry.EndTime = &end
		}
		sess.Breaks = append(sess.Breaks, entry)
	}
	var samples []sampleJSON
	if err := json.Unmarshal([]byte(samplesRaw), &samples); err != nil {
		return domain.Session{}, fmt.Errorf("decode focus history: %w", err)
	}
	for _, item := range samples {
		sess.FocusHistory = append(sess.FocusHistory, domain.FocusSample{Timestamp: fromMillis(item.At), IsFocused: item.Focused, IsOnSeat: item.OnSeat})
	}

	sess.StartTime = fromMillis(startTime)
	sess.EndTime = fromNullMillis(endTime)
	sess.Status = domain.SessionStatus(status)
	sess.ActiveBreakType = domain.BreakType(activeBreakType)
	sess.LastActivity = fromMillis(lastActivity)
	sess.LastFocusTime = fromMillis(lastFocusTime)
	sess.LastPositiveFeedbackTime = fromMillis(lastPositiveFeedbackTime)
	sess.ChargedThrough = fromMillis(chargedThrough)
	sess.FinishReason = domain.FinishReason(finishReason)
	return sess, nil
}
