package wire

import (
	"time"

	"github.com/louisbranch/study.space/internal/services/study/domain"
)

// SessionEvent is the payload of session.updated.
type SessionEvent struct {
	Session  Session   `json:"session"`
	Usage    *Usage    `json:"usage,omitempty"`
	Feedback *Feedback `json:"feedback,omitempty"`
}

// ForcedBreakEvent is the payload of session.forced_break.
type ForcedBreakEvent struct {
	Session      Session   `json:"session"`
	BreakMinutes int       `json:"break_minutes"`
	ResumeAt     time.Time `json:"resume_at"`
}

// ProfileEvent is the payload of profile.updated.
type ProfileEvent struct {
	Profile       Profile `json:"profile"`
	PreviousStage string  `json:"previous_stage,omitempty"`
}

// TimeEvent is the payload of time.updated.
type TimeEvent struct {
	SessionID        string `json:"session_id"`
	Status           string `json:"status"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	ChargedSeconds   int64  `json:"charged_seconds"`
}

// EventPayload converts a domain event payload into its JSON shape.
// Unknown payloads pass through untouched.
func EventPayload(evt domain.Event) any {
	switch p := evt.Payload.(type) {
	case domain.SessionEvent:
		out := SessionEvent{Session: NewSession(p.Session), Usage: newUsage(p.Usage)}
		if p.Feedback != nil {
			fb := newFeedback(*p.Feedback)
			out.Feedback = &fb
		}
		return out
	case domain.ForcedBreakEvent:
		return ForcedBreakEvent{Session: NewSession(p.Session), BreakMinutes: p.BreakMinutes, ResumeAt: p.ResumeAt}
	case domain.ProfileEvent:
		return ProfileEvent{Profile: NewProfile(p.Profile), PreviousStage: string(p.PreviousStage)}
	case domain.TimeEvent:
		return TimeEvent{SessionID: p.SessionID, Status: string(p.Status), RemainingSeconds: p.RemainingSeconds, ChargedSeconds: p.ChargedSeconds}
	case domain.ConfigEvent:
		return NewConfig(p.Config)
	default:
		return evt.Payload
	}
}
