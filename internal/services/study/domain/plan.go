package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "github.com/louisbranch/study.space/internal/platform/errors"
)

// PlanID identifies a subscription tier. PlanTrial is never stored on a
// user; it is derived from the trial end date.
type PlanID string

const (
	PlanNone     PlanID = "none"
	PlanTrial    PlanID = "trial"
	PlanStandard PlanID = "standard"
	PlanPro      PlanID = "pro"
)

// ParseSubscriptionPlan accepts the plans that can be stored on a user.
func ParseSubscriptionPlan(raw string) (PlanID, error) {
	switch PlanID(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PlanNone:
		return PlanNone, nil
	case PlanStandard:
		return PlanStandard, nil
	case PlanPro:
		return PlanPro, nil
	default:
		return "", ErrInvalidPlan
	}
}

// ParseConfigPlan accepts the plans that carry a limits row.
func ParseConfigPlan(raw string) (PlanID, error) {
	switch id := PlanID(strings.ToLower(strings.TrimSpace(raw))); id {
	case PlanTrial, PlanStandard, PlanPro:
		return id, nil
	default:
		return "", ErrInvalidPlan
	}
}

// PlanLimits is one row of the plan table.
type PlanLimits struct {
	Plan                    PlanID
	Name                    string
	DailyHours              float64
	AnalysisIntervalSeconds int
}

// DailySeconds converts the daily allotment to seconds.
func (l PlanLimits) DailySeconds() int64 {
	return int64(math.Round(l.DailyHours * 3600))
}

// AnalysisInterval is how often the client captures a frame.
func (l PlanLimits) AnalysisInterval() time.Duration {
	return time.Duration(l.AnalysisIntervalSeconds) * time.Second
}

var defaultPlans = map[PlanID]PlanLimits{
	PlanTrial:    {Plan: PlanTrial, Name: "Trial", DailyHours: 3, AnalysisIntervalSeconds: 15},
	PlanStandard: {Plan: PlanStandard, Name: "Standard", DailyHours: 2, AnalysisIntervalSeconds: 30},
	PlanPro:      {Plan: PlanPro, Name: "Pro", DailyHours: 5, AnalysisIntervalSeconds: 15},
}

const fallbackIntervalSeconds = 30

// DefaultPlans returns a copy of the built-in plan table.
func DefaultPlans() map[PlanID]PlanLimits {
	out := make(map[PlanID]PlanLimits, len(defaultPlans))
	for id, row := range defaultPlans {
		out[id] = row
	}
	return out
}

// AppConfig is the admin-editable configuration consumed by the core.
type AppConfig struct {
	Plans                   map[PlanID]PlanLimits
	Goals                   Goals
	PositiveFeedbackSeconds int
	UpdatedAt               time.Time
}

// DefaultAppConfig is used until an administrator saves a configuration.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Plans:                   DefaultPlans(),
		Goals:                   DefaultGoals(),
		PositiveFeedbackSeconds: 120,
	}
}

// Plan resolves the limits row for a plan. Missing rows and unset intervals
// fall back to the built-in table; PlanNone has a zero allotment.
func (c AppConfig) Plan(id PlanID) PlanLimits {
	def, known := defaultPlans[id]
	if !known {
		return PlanLimits{Plan: PlanNone, Name: "None", AnalysisIntervalSeconds: fallbackIntervalSeconds}
	}
	row, ok := c.Plans[id]
	if !ok {
		return def
	}
	row.Plan = id
	if row.Name == "" {
		row.Name = def.Name
	}
	if row.AnalysisIntervalSeconds <= 0 {
		row.AnalysisIntervalSeconds = def.AnalysisIntervalSeconds
	}
	return row
}

// PositiveFeedbackInterval gates how often focused praise may be spoken.
func (c AppConfig) PositiveFeedbackInterval() time.Duration {
	return time.Duration(c.PositiveFeedbackSeconds) * time.Second
}

// Clone returns a copy that shares no maps with c.
func (c AppConfig) Clone() AppConfig {
	out := c
	out.Plans = make(map[PlanID]PlanLimits, len(c.Plans))
	for id, row := range c.Plans {
		out.Plans[id] = row
	}
	return out
}

// Validate rejects configurations the core cannot run with.
func (c AppConfig) Validate() error {
	for id, row := range c.Plans {
		if _, err := ParseConfigPlan(string(id)); err != nil {
			return apperrors.New(apperrors.CodeValidationFailed, fmt.Sprintf("unknown plan %q", id))
		}
		if row.DailyHours < 0 || row.DailyHours > 24 {
			return apperrors.New(apperrors.CodeValidationFailed, fmt.Sprintf("plan %s: daily hours must be between 0 and 24", id))
		}
		if row.AnalysisIntervalSeconds < 0 || row.AnalysisIntervalSeconds > 600 {
			return apperrors.New(apperrors.CodeValidationFailed, fmt.Sprintf("plan %s: analysis interval must be between 0 and 600 seconds", id))
		}
	}
	if err := c.Goals.Validate(); err != nil {
		return err
	}
	if c.PositiveFeedbackSeconds < 0 {
		return apperrors.New(apperrors.CodeValidationFailed, "positive feedback interval must not be negative")
	}
	return nil
}

// ConfigSource serves the current configuration snapshot.
type ConfigSource interface {
	Current() AppConfig
}

// StaticConfig serves a fixed configuration.
type StaticConfig AppConfig

// Current returns the fixed configuration.
func (c StaticConfig) Current() AppConfig {
	return AppConfig(c).Clone()
}
