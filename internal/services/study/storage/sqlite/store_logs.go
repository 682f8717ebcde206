package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/study.space/internal/platform/llm"
	"github.com/louisbranch/study.space/internal/services/study/domain"
	"github.com/louisbranch/study.space/internal/services/study/storage"
)

func insertAnalysisExec(ctx context.Context, db execer, call domain.AnalysisCall) error {
	if call.ID == "" || call.SessionID == "" {
		return fmt.Errorf("analysis call id and session id are required")
	}
	_, err := db.ExecContext(ctx, `
INSERT INTO analysis_calls (id, session_id, user_id, status, is_focused, is_on_seat, distraction, input_tokens, output_tokens, total_tokens, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		call.ID,
		call.SessionID,
		call.UserID,
		string(call.Status),
		boolToInt(call.IsFocused),
		boolToInt(call.IsOnSeat),
		string(call.Distraction),
		call.Usage.Input,
		call.Usage.Output,
		call.Usage.Total,
		toMillis(call.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert analysis call: %w", err)
	}
	return nil
}

// ListAnalysisCalls returns the analysis log of one session, oldest first.
func (s *Store) ListAnalysisCalls(ctx context.Context, sessionID string) ([]domain.AnalysisCall, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, session_id, user_id, status, is_focused, is_on_seat, distraction, input_tokens, output_tokens, total_tokens, created_at
FROM analysis_calls
WHERE session_id = ?
ORDER BY created_at, id
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list analysis calls: %w", err)
	}
	defer rows.Close()

	var calls []domain.AnalysisCall
	for rows.Next() {
		var (
			call        domain.AnalysisCall
			status      string
			focused     int
			onSeat      int
			distraction string
			createdAt   int64
		)
		if err := rows.Scan(
			&call.ID,
			&call.SessionID,
			&call.UserID,
			&status,
			&focused,
			&onSeat,
			&distraction,
			&call.Usage.Input,
			&call.Usage.Output,
			&call.Usage.Total,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan analysis call: %w", err)
		}
		call.Status = domain.SessionStatus(status)
		call.IsFocused = focused == 1
		call.IsOnSeat = onSeat == 1
		call.Distraction = domain.Distraction(distraction)
		call.CreatedAt = fromMillis(createdAt)
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis calls: %w", err)
	}
	return calls, nil
}

// RecordLLMRequest appends one provider request to the request log.
func (s *Store) RecordLLMRequest(ctx context.Context, rec llm.RequestRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO llm_requests (provider, model, purpose, input_tokens, output_tokens, latency_ms, success, error_message, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		rec.Provider,
		rec.Model,
		rec.Purpose,
		rec.InputTokens,
		rec.OutputTokens,
		rec.LatencyMs,
		boolToInt(rec.Success),
		rec.ErrorMessage,
		toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("record llm request: %w", err)
	}
	return nil
}

// ListLLMUsage aggregates the request log since the given instant.
func (s *Store) ListLLMUsage(ctx context.Context, since time.Time) ([]storage.LLMUsage, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT provider, model, purpose,
       COUNT(*),
       COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(input_tokens), 0),
       COALESCE(SUM(output_tokens), 0),
       CAST(COALESCE(AVG(latency_ms), 0) AS INTEGER)
FROM llm_requests
WHERE created_at >= ?
GROUP BY provider, model, purpose
ORDER BY provider, model, purpose
`, toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("list llm usage: %w", err)
	}
	defer rows.Close()

	var usage []storage.LLMUsage
	for rows.Next() {
		var row storage.LLMUsage
		if err := rows.Scan(
			&row.Provider,
			&row.Model,
			&row.Purpose,
			&row.Requests,
			&row.Failures,
			&row.InputTokens,
			&row.OutputTokens,
			&row.AvgLatencyMs,
		); err != nil {
			return nil, fmt.Errorf("scan llm usage: %w", err)
		}
		usage = append(usage, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate llm usage: %w", err)
	}
	return usage, nil
}
