package domain

import "time"

// Realtime event types.
const (
	EventSessionUpdated = "session.updated"
	EventForcedBreak    = "session.forced_break"
	EventProfileUpdated = "profile.updated"
	EventTimeUpdated    = "time.updated"
	EventConfigUpdated  = "config.updated"
)

// Event is one realtime notification. Payload is one of the *Event structs
// below.
type Event struct {
	Type    string
	Payload any
}

// SessionEvent accompanies session.updated.
type SessionEvent struct {
	Session  Session
	Usage    *TokenUsage
	Feedback *Feedback
}

// ForcedBreakEvent accompanies session.forced_break.
type ForcedBreakEvent struct {
	Session      Session
	BreakMinutes int
	ResumeAt     time.Time
}

// ProfileEvent accompanies profile.updated.
type ProfileEvent struct {
	Profile       Profile
	PreviousStage Stage
}

// TimeEvent accompanies time.updated.
type TimeEvent struct {
	SessionID        string
	Status           SessionStatus
	RemainingSeconds int64
	ChargedSeconds   int64
}

// ConfigEvent accompanies config.updated.
type ConfigEvent struct {
	Config AppConfig
}

// Publisher delivers events to connected clients. Delivery is
// fire-and-forget.
type Publisher interface {
	PublishToUser(userID string, event Event)
	Broadcast(event Event)
}

type nopPublisher struct{}

func (nopPublisher) PublishToUser(string, Event) {}
func (nopPublisher) Broadcast(Event)             {}
