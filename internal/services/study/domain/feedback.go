package domain

import (
	"math"
	"time"
)

// FeedbackKind selects which message, if any, the client should speak.
type FeedbackKind string

const (
	FeedbackNone         FeedbackKind = ""
	FeedbackReturnToSeat FeedbackKind = "return_to_seat"
	FeedbackDistracted   FeedbackKind = "distracted"
	FeedbackPositive     FeedbackKind = "positive"
)

// Animation keys played alongside spoken feedback.
const (
	AnimationReturnToSeat = "return_to_seat"
	AnimationDistracted   = "distracted"
	AnimationCelebrate    = "celebrate"
)

// Feedback is the decision for one analysis.
type Feedback struct {
	Kind      FeedbackKind
	Speak     bool
	Message   string
	Animation string
}

// Messages renders localized feedback text.
type Messages interface {
	Feedback(locale string, kind FeedbackKind, distraction Distraction) string
}

// distractionThreshold is how many consecutive distracted samples add up to
// roughly one minute at the given capture interval.
func distractionThreshold(interval time.Duration) int {
	seconds := interval.Seconds()
	if seconds <= 0 {
		return 1
	}
	return max(1, int(math.Round(60/seconds)))
}

// decideFeedback advances the session's feedback counters for one
// observation and returns the kind of feedback to speak.
func decideFeedback(sess *Session, obs Observation, interval, positiveInterval time.Duration, now time.Time) FeedbackKind {
	switch {
	case !obs.IsOnSeat:
		sess.ConsecutiveDistractions = 0
		sess.LastFocusTime = now
		sess.lowerRank()
		return FeedbackReturnToSeat

	case !obs.IsFocused:
		sess.ConsecutiveDistractions++
		sess.LastFocusTime = now
		if sess.ConsecutiveDistractions < distractionThreshold(interval) {
			return FeedbackNone
		}
		sess.ConsecutiveDistractions = 0
		sess.lowerRank()
		return FeedbackDistracted

	default:
		sess.ConsecutiveDistractions = 0
		// Both gates must pass so praise does not fire right after a
		// distraction clears.
		if now.Sub(sess.LastFocusTime) < positiveInterval {
			return FeedbackNone
		}
		if !sess.LastPositiveFeedbackTime.IsZero() && now.Sub(sess.LastPositiveFeedbackTime) < positiveInterval {
			return FeedbackNone
		}
		sess.LastPositiveFeedbackTime = now
		sess.raiseRank()
		return FeedbackPositive
	}
}

func (s *Service) renderFeedback(kind FeedbackKind, obs Observation, locale string) Feedback {
	if kind == FeedbackNone {
		return Feedback{}
	}
	fb := Feedback{Kind: kind, Speak: true}
	switch kind {
	case FeedbackReturnToSeat:
		fb.Animation = AnimationReturnToSeat
	case FeedbackDistracted:
		fb.Animation = AnimationDistracted
		fb.Message = obs.Message
	case FeedbackPositive:
		fb.Animation = AnimationCelebrate
	}
	if fb.Message == "" && s.messages != nil {
		fb.Message = s.messages.Feedback(locale, kind, obs.Distraction)
	}
	return fb
}
