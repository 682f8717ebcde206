// Package wire holds the JSON shapes shared by the HTTP API and the
// realtime channel.
package wire

import (
	"time"

	"github.com/louisbranch/study.space/internal/services/study/domain"
)

// Break is one entry of a session's break history.
type Break struct {
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Type      string     `json:"type"`
}

// FocusSample is one analysis observation.
type FocusSample struct {
	Timestamp time.Time `json:"timestamp"`
	IsFocused bool      `json:"is_focused"`
	IsOnSeat  bool      `json:"is_on_seat"`
}

// Session is the client view of a study session.
type Session struct {
	ID                       string        `json:"id"`
	UserID                   string        `json:"user_id"`
	StartTime                time.Time     `json:"start_time"`
	EndTime                  *time.Time    `json:"end_time,omitempty"`
	Status                   string        `json:"status"`
	ActiveBreakType          string        `json:"active_break_type,omitempty"`
	Breaks                   []Break       `json:"breaks"`
	FocusHistory             []FocusSample `json:"focus_history"`
	LastActivity             time.Time     `json:"last_activity"`
	ConsecutiveDistractions  int           `json:"consecutive_distractions"`
	LastFocusTime            time.Time     `json:"last_focus_time"`
	LastPositiveFeedbackTime *time.Time    `json:"last_positive_feedback_time,omitempty"`
	CurrentRank              int           `json:"current_rank"`
	ChargedSeconds           int64         `json:"charged_seconds"`
	FinishReason             string        `json:"finish_reason,omitempty"`
}

// NewSession converts a domain session.
func NewSession(s domain.Session) Session {
	out := Session{
		ID:                      s.ID,
		UserID:                  s.UserID,
		StartTime:               s.StartTime,
		EndTime:                 s.EndTime,
		Status:                  string(s.Status),
		ActiveBreakType:         string(s.ActiveBreakType),
		Breaks:                  make([]Break, 0, len(s.Breaks)),
		FocusHistory:            make([]FocusSample, 0, len(s.FocusHistory)),
		LastActivity:            s.LastActivity,
		ConsecutiveDistractions: s.ConsecutiveDistractions,
		LastFocusTime:           s.LastFocusTime,
		CurrentRank:             s.CurrentRank,
		ChargedSeconds:          s.ChargedSeconds,
		FinishReason:            string(s.FinishReason),
	}
	if !s.LastPositiveFeedbackTime.IsZero() {
		t := s.LastPositiveFeedbackTime
		out.LastPositiveFeedbackTime = &t
	}
	for _, entry := range s.Breaks {
		out.Breaks = append(out.Breaks, Break{StartTime: entry.StartTime, EndTime: entry.EndTime, Type: string(entry.Type)})
	}
	for _, sample := range s.FocusHistory {
		out.FocusHistory = append(out.FocusHistory, FocusSample{Timestamp: sample.Timestamp, IsFocused: sample.IsFocused, IsOnSeat: sample.IsOnSeat})
	}
	return out
}

// NewSessions converts a slice of domain sessions.
func NewSessions(sessions []domain.Session) []Session {
	out := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, NewSession(s))
	}
	return out
}

// Profile is the client view of the gamification profile.
type Profile struct {
	UserID                       string    `json:"user_id"`
	DisplayName                  string    `json:"display_name,omitempty"`
	Locale                       string    `json:"locale"`
	TotalSpiritualPower          int64     `json:"total_spiritual_power"`
	DailySpiritualPower          int64     `json:"daily_spiritual_power"`
	TotalFocusSeconds            int64     `json:"total_focus_seconds"`
	DailyFocusSeconds            int64     `json:"daily_focus_seconds"`
	Stage                        string    `json:"stage"`
	LastFocusUpdate              time.Time `json:"last_focus_update"`
	WorkMinutesBeforeForcedBreak int       `json:"work_minutes_before_forced_break"`
	ForcedBreakMinutes           int       `json:"forced_break_minutes"`
}

// NewProfile converts a domain profile.
func NewProfile(p domain.Profile) Profile {
	return Profile{
		UserID:                       p.UserID,
		DisplayName:                  p.DisplayName,
		Locale:                       p.Locale,
		TotalSpiritualPower:          p.TotalSpiritualPower,
		DailySpiritualPower:          p.DailySpiritualPower,
		TotalFocusSeconds:            p.TotalFocusSeconds,
		DailyFocusSeconds:            p.DailyFocusSeconds,
		Stage:                        string(p.Stage),
		LastFocusUpdate:              p.LastFocusUpdate,
		WorkMinutesBeforeForcedBreak: p.WorkMinutesBeforeForcedBreak,
		ForcedBreakMinutes:           p.ForcedBreakMinutes,
	}
}

// Budget is the ledger view of one day.
type Budget struct {
	Plan             string `json:"plan"`
	Date             string `json:"date"`
	LimitSeconds     int64  `json:"limit_seconds"`
	UsedSeconds      int64  `json:"used_seconds"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

// NewBudget converts a ledger status.
func NewBudget(b domain.BudgetStatus) Budget {
	return Budget{
		Plan:             string(b.Plan),
		Date:             b.Date,
		LimitSeconds:     b.LimitSeconds,
		UsedSeconds:      b.UsedSeconds,
		RemainingSeconds: b.RemainingSeconds,
	}
}

// Usage is the token cost of one analysis.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

func newUsage(u *domain.TokenUsage) *Usage {
	if u == nil {
		return nil
	}
	return &Usage{InputTokens: u.Input, OutputTokens: u.Output, TotalTokens: u.Total}
}

// Feedback is what the client should say and play.
type Feedback struct {
	Kind      string `json:"kind,omitempty"`
	Speak     bool   `json:"speak"`
	Message   string `json:"message,omitempty"`
	Animation string `json:"animation,omitempty"`
}

func newFeedback(f domain.Feedback) Feedback {
	return Feedback{Kind: string(f.Kind), Speak: f.Speak, Message: f.Message, Animation: f.Animation}
}

// Analysis is the response to one analyzed frame.
type Analysis struct {
	Session             Session  `json:"session"`
	IsFocused           bool     `json:"is_focused"`
	IsOnSeat            bool     `json:"is_on_seat"`
	Distraction         string   `json:"distraction,omitempty"`
	Feedback            Feedback `json:"feedback"`
	Usage               Usage    `json:"usage"`
	Stage               string   `json:"stage"`
	StageChanged        bool     `json:"stage_changed"`
	NextAnalysisSeconds int      `json:"next_analysis_seconds"`
}

// NewAnalysis converts an analysis result.
func NewAnalysis(r domain.AnalysisResult) Analysis {
	return Analysis{
		Session:             NewSession(r.Session),
		IsFocused:           r.Observation.IsFocused,
		IsOnSeat:            r.Observation.IsOnSeat,
		Distraction:         string(r.Observation.Distraction),
		Feedback:            newFeedback(r.Feedback),
		Usage:               Usage{InputTokens: r.Observation.Usage.Input, OutputTokens: r.Observation.Usage.Output, TotalTokens: r.Observation.Usage.Total},
		Stage:               string(r.Stage),
		StageChanged:        r.StageChanged,
		NextAnalysisSeconds: r.NextAnalysisSeconds,
	}
}

// PlanLimits is one row of the plan table.
type PlanLimits struct {
	Name                    string  `json:"name" yaml:"name,omitempty"`
	DailyHours              float64 `json:"daily_hours" yaml:"daily_hours"`
	AnalysisIntervalSeconds int     `json:"analysis_interval_seconds" yaml:"analysis_interval_seconds"`
}

// Goals are the stage thresholds.
type Goals struct {
	CaveMaster      int64 `json:"cave_master" yaml:"cave_master"`
	MonkeyKing      int64 `json:"monkey_king" yaml:"monkey_king"`
	TotalMonkeyKing int64 `json:"total_monkey_king" yaml:"total_monkey_king"`
}

// Config is the admin-editable configuration.
type Config struct {
	Plans                   map[string]PlanLimits `json:"plans" yaml:"plans"`
	Goals                   Goals                 `json:"goals" yaml:"goals"`
	PositiveFeedbackSeconds int                   `json:"positive_feedback_seconds" yaml:"positive_feedback_seconds"`
	UpdatedAt               *time.Time            `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// NewConfig converts the effective configuration, filling every plan row.
func NewConfig(c domain.AppConfig) Config {
	out := Config{
		Plans: make(map[string]PlanLimits),
		Goals: Goals{
			CaveMaster:      c.Goals.CaveMaster,
			MonkeyKing:      c.Goals.MonkeyKing,
			TotalMonkeyKing: c.Goals.TotalMonkeyKing,
		},
		PositiveFeedbackSeconds: c.PositiveFeedbackSeconds,
	}
	for _, id := range []domain.PlanID{domain.PlanTrial, domain.PlanStandard, domain.PlanPro} {
		row := c.Plan(id)
		out.Plans[string(id)] = PlanLimits{Name: row.Name, DailyHours: row.DailyHours, AnalysisIntervalSeconds: row.AnalysisIntervalSeconds}
	}
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

// Domain converts the wire configuration back, validating plan ids.
func (c Config) Domain() (domain.AppConfig, error) {
	out := domain.AppConfig{
		Plans: make(map[domain.PlanID]domain.PlanLimits, len(c.Plans)),
		Goals: domain.Goals{
			CaveMaster:      c.Goals.CaveMaster,
			MonkeyKing:      c.Goals.MonkeyKing,
			TotalMonkeyKing: c.Goals.TotalMonkeyKing,
		},
		PositiveFeedbackSeconds: c.PositiveFeedbackSeconds,
	}
	for raw, row := range c.Plans {
		id, err := domain.ParseConfigPlan(raw)
		if err != nil {
			return domain.AppConfig{}, err
		}
		out.Plans[id] = domain.PlanLimits{Plan: id, Name: row.Name, DailyHours: row.DailyHours, AnalysisIntervalSeconds: row.AnalysisIntervalSeconds}
	}
	return out, nil
}
