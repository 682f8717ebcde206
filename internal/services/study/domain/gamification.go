package domain

import (
	"strings"
	"time"

	apperrors "github.com/louisbranch/study.space/internal/platform/errors"
)

// Stage is a gamification level. Stages only move forward.
type Stage string

const (
	StageStoneMonkey     Stage = "STONE_MONKEY"
	StageCaveMaster      Stage = "CAVE_MASTER"
	StageMonkeyKing      Stage = "MONKEY_KING"
	StageTotalMonkeyKing Stage = "TOTAL_MONKEY_KING"
)

var stageOrder = []Stage{StageStoneMonkey, StageCaveMaster, StageMonkeyKing, StageTotalMonkeyKing}

// Level is the zero-based position of the stage, or -1 when unknown.
func (s Stage) Level() int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// Goals are the cumulative spiritual power needed to enter each stage.
type Goals struct {
	CaveMaster      int64
	MonkeyKing      int64
	TotalMonkeyKing int64
}

// DefaultGoals is used until an administrator configures goals.
func DefaultGoals() Goals {
	return Goals{CaveMaster: 50_000, MonkeyKing: 250_000, TotalMonkeyKing: 1_000_000}
}

// Validate requires positive, non-decreasing thresholds.
func (g Goals) Validate() error {
	if g.CaveMaster <= 0 || g.MonkeyKing < g.CaveMaster || g.TotalMonkeyKing < g.MonkeyKing {
		return apperrors.New(apperrors.CodeValidationFailed, "goals must be positive and non-decreasing by stage")
	}
	return nil
}

// Profile is the child's gamification and forced-rest profile.
type Profile struct {
	UserID              string
	DisplayName         string
	Locale              string
	TotalSpiritualPower int64
	DailySpiritualPower int64
	TotalFocusSeconds   int64
	DailyFocusSeconds   int64
	Stage               Stage
	LastFocusUpdate     time.Time
	// WorkMinutesBeforeForcedBreak of zero disables forced rest.
	WorkMinutesBeforeForcedBreak int
	ForcedBreakMinutes           int
	UpdatedAt                    time.Time
}

const (
	defaultWorkMinutes        = 50
	defaultForcedBreakMinutes = 10
)

// NewProfile returns the profile a user gets before any settings are saved.
func NewProfile(userID string, now time.Time) Profile {
	return Profile{
		UserID:                       userID,
		Locale:                       "en",
		Stage:                        StageStoneMonkey,
		LastFocusUpdate:              now,
		WorkMinutesBeforeForcedBreak: defaultWorkMinutes,
		ForcedBreakMinutes:           defaultForcedBreakMinutes,
		UpdatedAt:                    now,
	}
}

// ForcedRestEnabled reports whether the scheduler should watch this profile.
func (p Profile) ForcedRestEnabled() bool {
	return p.WorkMinutesBeforeForcedBreak > 0 && p.ForcedBreakMinutes > 0
}

// rollDay zeroes the daily counters when now falls on a later calendar day
// than the last focus update.
func (p *Profile) rollDay(now time.Time, loc *time.Location) {
	if dayKey(p.LastFocusUpdate, loc) != dayKey(now, loc) {
		p.DailySpiritualPower = 0
		p.DailyFocusSeconds = 0
	}
	p.LastFocusUpdate = now
	p.UpdatedAt = now
}

// addSpiritualPower credits tokens and advances at most one stage. It
// reports whether the stage changed.
func (p *Profile) addSpiritualPower(tokens int64, goals Goals) bool {
	if tokens <= 0 {
		return false
	}
	p.TotalSpiritualPower += tokens
	p.DailySpiritualPower += tokens

	before := p.Stage
	if p.Stage == StageStoneMonkey || p.Stage.Level() < 0 {
		if p.TotalSpiritualPower >= goals.CaveMaster {
			p.Stage = StageCaveMaster
		} else {
			p.Stage = StageStoneMonkey
		}
	} else if p.Stage == StageCaveMaster {
		if p.TotalSpiritualPower >= goals.MonkeyKing {
			p.Stage = StageMonkeyKing
		}
	} else if p.Stage == StageMonkeyKing {
		if p.TotalSpiritualPower >= goals.TotalMonkeyKing {
			p.Stage = StageTotalMonkeyKing
		}
	}
	return p.Stage != before
}

// ProfileSettings is an administrative profile update. Nil fields are kept.
type ProfileSettings struct {
	UserID                       string
	DisplayName                  *string
	Locale                       *string
	WorkMinutesBeforeForcedBreak *int
	ForcedBreakMinutes           *int
}

func (in ProfileSettings) apply(p *Profile) error {
	if in.DisplayName != nil {
		p.DisplayName = strings.TrimSpace(*in.DisplayName)
	}
	if in.Locale != nil {
		p.Locale = strings.TrimSpace(*in.Locale)
	}
	if in.WorkMinutesBeforeForcedBreak != nil {
		if *in.WorkMinutesBeforeForcedBreak < 0 {
			return apperrors.New(apperrors.CodeValidationFailed, "work minutes must not be negative")
		}
		p.WorkMinutesBeforeForcedBreak = *in.WorkMinutesBeforeForcedBreak
	}
	if in.ForcedBreakMinutes != nil {
		if *in.ForcedBreakMinutes < 0 {
			return apperrors.New(apperrors.CodeValidationFailed, "forced break minutes must not be negative")
		}
		p.ForcedBreakMinutes = *in.ForcedBreakMinutes
	}
	return nil
}
