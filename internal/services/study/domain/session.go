package domain

import (
	"strings"
	"time"
)

// SessionStatus is the lifecycle state of a study session.
type SessionStatus string

const (
	StatusStudying SessionStatus = "studying"
	StatusBreak    SessionStatus = "break"
	StatusFinished SessionStatus = "finished"
)

// BreakType names why a break was taken.
type BreakType string

const (
	BreakWater  BreakType = "water"
	BreakToilet BreakType = "toilet"
	BreakRest   BreakType = "rest"
	BreakMeal   BreakType = "meal"
	BreakOther  BreakType = "other"
	// BreakForced is only ever started by the forced-rest scheduler.
	BreakForced BreakType = "forced"
)

// ParseBreakType validates a break type requested by a user.
func ParseBreakType(raw string) (BreakType, error) {
	value := BreakType(strings.ToLower(strings.TrimSpace(raw)))
	switch value {
	case "":
		return "", ErrBreakTypeMissing
	case BreakWater, BreakToilet, BreakRest, BreakMeal, BreakOther:
		return value, nil
	default:
		return "", ErrInvalidBreakType
	}
}

// FinishReason records which path ended a session.
type FinishReason string

const (
	FinishStopped     FinishReason = "stopped"
	FinishStale       FinishReason = "stale"
	FinishDailyLimit  FinishReason = "daily_limit"
	FinishPlanExpired FinishReason = "plan_expired"
)

// Rank bounds. New sessions start at MaxRank.
const (
	MinRank = 1
	MaxRank = 5
)

// BreakEntry is one break in a session; EndTime is nil while it is open.
type BreakEntry struct {
	StartTime time.Time
	EndTime   *time.Time
	Type      BreakType
}

// FocusSample is one analysis observation.
type FocusSample struct {
	Timestamp time.Time
	IsFocused bool
	IsOnSeat  bool
}

// Session is one study session. At most one session per user is active
// (studying or break) at a time.
type Session struct {
	ID                       string
	UserID                   string
	StartTime                time.Time
	EndTime                  *time.Time
	Status                   SessionStatus
	ActiveBreakType          BreakType
	Breaks                   []BreakEntry
	FocusHistory             []FocusSample
	LastActivity             time.Time
	ConsecutiveDistractions  int
	LastFocusTime            time.Time
	LastPositiveFeedbackTime time.Time
	CurrentRank              int
	// ChargedSeconds is what this session has taken from the daily budget.
	ChargedSeconds int64
	// ChargedThrough is the instant studying time has been charged up to.
	ChargedThrough time.Time
	// ChargedDate is the budget day (YYYY-MM-DD) of the latest charge and
	// ChargedDaySeconds what was taken from that day's budget.
	ChargedDate       string
	ChargedDaySeconds int64
	FinishReason      FinishReason
}

// Active reports whether the session is studying or on a break.
func (s Session) Active() bool {
	return s.Status == StatusStudying || s.Status == StatusBreak
}

// OpenBreak returns the break without an end time, if any.
func (s Session) OpenBreak() (BreakEntry, bool) {
	if idx := s.openBreakIndex(); idx >= 0 {
		return s.Breaks[idx], true
	}
	return BreakEntry{}, false
}

func (s Session) openBreakIndex() int {
	for i := len(s.Breaks) - 1; i >= 0; i-- {
		if s.Breaks[i].EndTime == nil {
			return i
		}
	}
	return -1
}

// LastBreakEnd is when the most recent closed break ended.
func (s Session) LastBreakEnd() (time.Time, bool) {
	for i := len(s.Breaks) - 1; i >= 0; i-- {
		if s.Breaks[i].EndTime != nil {
			return *s.Breaks[i].EndTime, true
		}
	}
	return time.Time{}, false
}

// FocusedSeconds counts focused, on-seat samples times the sampling interval.
func (s Session) FocusedSeconds(interval time.Duration) int64 {
	var samples int64
	for _, sample := range s.FocusHistory {
		if sample.IsFocused && sample.IsOnSeat {
			samples++
		}
	}
	return samples * int64(interval/time.Second)
}

func (s *Session) closeOpenBreak(at time.Time) {
	for i := range s.Breaks {
		if s.Breaks[i].EndTime == nil {
			end := at
			s.Breaks[i].EndTime = &end
		}
	}
}

func (s *Session) openBreak(at time.Time, breakType BreakType) {
	s.closeOpenBreak(at)
	s.Breaks = append(s.Breaks, BreakEntry{StartTime: at, Type: breakType})
	s.ActiveBreakType = breakType
	s.Status = StatusBreak
	s.LastActivity = at
}

func (s *Session) addCharge(day string, seconds int64) {
	if s.ChargedDate != day {
		s.ChargedDate = day
		s.ChargedDaySeconds = 0
	}
	s.ChargedDaySeconds += seconds
	s.ChargedSeconds += seconds
}

func (s *Session) resume(at time.Time) {
	s.closeOpenBreak(at)
	s.ActiveBreakType = ""
	s.Status = StatusStudying
	s.ChargedThrough = at
	s.LastActivity = at
}

func (s *Session) lowerRank() {
	if s.CurrentRank > MinRank {
		s.CurrentRank--
	}
}

func (s *Session) raiseRank() {
	if s.CurrentRank < MaxRank {
		s.CurrentRank++
	}
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	out := s
	out.EndTime = cloneTime(s.EndTime)
	out.Breaks = make([]BreakEntry, len(s.Breaks))
	for i, entry := range s.Breaks {
		entry.EndTime = cloneTime(entry.EndTime)
		out.Breaks[i] = entry
	}
	out.FocusHistory = append([]FocusSample(nil), s.FocusHistory...)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	value := *t
	return &value
}
