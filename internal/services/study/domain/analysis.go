package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/louisbranch/study.space/internal/platform/errors"
)

// Distraction is the optional reason an observation was not focused.
type Distraction string

const (
	DistractionPhone    Distraction = "phone"
	DistractionSleeping Distraction = "sleeping"
	DistractionTalking  Distraction = "talking"
	DistractionPlaying  Distraction = "playing"
	DistractionAway     Distraction = "away"
	DistractionOther    Distraction = "other"
)

// ParseDistraction maps free text to a known subtype; unknown values become
// DistractionOther and empty input stays empty.
func ParseDistraction(raw string) Distraction {
	value := Distraction(strings.ToLower(strings.TrimSpace(raw)))
	switch value {
	case "":
		return ""
	case DistractionPhone, DistractionSleeping, DistractionTalking, DistractionPlaying, DistractionAway, DistractionOther:
		return value
	default:
		return DistractionOther
	}
}

// Image is one captured frame.
type Image struct {
	MediaType string
	Data      []byte
}

// TokenUsage is the cost of one AI call.
type TokenUsage struct {
	Input  int64
	Output int64
	Total  int64
}

// Observation is what the vision collaborator saw in a frame.
type Observation struct {
	IsFocused   bool
	IsOnSeat    bool
	Distraction Distraction
	Message     string
	Usage       TokenUsage
}

// AnalysisRequest is the input handed to the vision collaborator.
type AnalysisRequest struct {
	Image   Image
	Profile Profile
	Rank    int
	Plan    PlanID
}

// Analyzer classifies a frame. Failures are hard failures for that call.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (Observation, error)
}

// AnalysisCall is the persisted record of one analysis.
type AnalysisCall struct {
	ID          string
	SessionID   string
	UserID      string
	Status      SessionStatus
	IsFocused   bool
	IsOnSeat    bool
	Distraction Distraction
	Usage       TokenUsage
	CreatedAt   time.Time
}

// AnalysisResult is returned to the caller of Analyze.
type AnalysisResult struct {
	Session             Session
	Observation         Observation
	Feedback            Feedback
	Stage               Stage
	StageChanged        bool
	NextAnalysisSeconds int
}

// Analyze sends a frame to the vision collaborator and applies the result
// to the caller's active session. The AI call runs without holding the
// user lock; the session is re-read afterwards.
func (s *Service) Analyze(ctx context.Context, userID string, image Image) (result AnalysisResult, err error) {
	ctx, span := tracer.Start(ctx, "study.analyze")
	defer endSpan(span, &err)

	userID, err = requireUserID(userID)
	if err != nil {
		return AnalysisResult{}, err
	}
	if len(image.Data) == 0 {
		return AnalysisResult{}, ErrImageMissing
	}
	if s.analyzer == nil {
		return AnalysisResult{}, apperrors.New(apperrors.CodeAnalysisFailed, "analyzer is not configured")
	}

	req, sessionID, err := s.analysisRequest(ctx, userID, image)
	if err != nil {
		return AnalysisResult{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.analysisTimeout)
	obs, err := s.analyzer.Analyze(callCtx, req)
	cancel()
	if err != nil {
		return AnalysisResult{}, apperrors.Wrap(apperrors.CodeAnalysisFailed, "analyze frame", err)
	}
	obs.Distraction = ParseDistraction(string(obs.Distraction))

	return s.applyObservation(ctx, userID, sessionID, obs)
}

func (s *Service) analysisRequest(ctx context.Context, userID string, image Image) (AnalysisRequest, string, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	sess, err := s.activeSession(ctx, userID)
	if err != nil {
		return AnalysisRequest{}, "", err
	}
	now := s.now()
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return AnalysisRequest{}, "", err
	}
	profile, err := s.loadOrNewProfile(ctx, userID, now)
	if err != nil {
		return AnalysisRequest{}, "", err
	}
	return AnalysisRequest{
		Image:   image,
		Profile: profile,
		Rank:    sess.CurrentRank,
		Plan:    user.ActivePlan(now),
	}, sess.ID, nil
}

func (s *Service) applyObservation(ctx context.Context, userID, sessionID string, obs Observation) (AnalysisResult, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	sess, err := s.activeSession(ctx, userID)
	if err != nil {
		return AnalysisResult{}, err
	}
	// The session ended or was replaced while the AI call was in flight.
	if sess.ID != sessionID {
		return AnalysisResult{}, ErrNoActiveStudySession
	}

	now := s.now()
	cfg := s.config.Current()
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return AnalysisResult{}, err
	}
	profile, err := s.loadOrNewProfile(ctx, userID, now)
	if err != nil {
		return AnalysisResult{}, err
	}
	limits := cfg.Plan(user.ActivePlan(now))
	interval := limits.AnalysisInterval()

	callID, err := s.newID()
	if err != nil {
		return AnalysisResult{}, err
	}
	call := AnalysisCall{
		ID:          callID,
		SessionID:   sess.ID,
		UserID:      userID,
		Status:      sess.Status,
		IsFocused:   obs.IsFocused,
		IsOnSeat:    obs.IsOnSeat,
		Distraction: obs.Distraction,
		Usage:       obs.Usage,
		CreatedAt:   now,
	}

	result := AnalysisResult{Observation: obs, NextAnalysisSeconds: limits.AnalysisIntervalSeconds}
	sess.LastActivity = now

	if sess.Status == StatusBreak {
		if err := s.apply(ctx, "record break analysis", Mutation{Session: &sess, Analysis: &call}); err != nil {
			return AnalysisResult{}, err
		}
		result.Session = sess
		result.Stage = profile.Stage
		s.publishToUser(userID, Event{Type: EventSessionUpdated, Payload: SessionEvent{Session: sess.Clone(), Usage: &obs.Usage}})
		return result, nil
	}

	previousStage := profile.Stage
	profile.rollDay(now, s.loc)
	if obs.IsFocused && obs.IsOnSeat && obs.Usage.Total > 0 {
		result.StageChanged = profile.addSpiritualPower(obs.Usage.Total, cfg.Goals)
	}

	sess.FocusHistory = append(sess.FocusHistory, FocusSample{
		Timestamp: now,
		IsFocused: obs.IsFocused,
		IsOnSeat:  obs.IsOnSeat,
	})
	kind := decideFeedback(&sess, obs, interval, cfg.PositiveFeedbackInterval(), now)
	result.Feedback = s.renderFeedback(kind, obs, profile.Locale)

	if err := s.apply(ctx, "record analysis", Mutation{Session: &sess, Profile: &profile, Analysis: &call}); err != nil {
		return AnalysisResult{}, err
	}

	result.Session = sess
	result.Stage = profile.Stage
	s.publishToUser(userID, Event{Type: EventSessionUpdated, Payload: SessionEvent{
		Session:  sess.Clone(),
		Usage:    &obs.Usage,
		Feedback: &result.Feedback,
	}})
	if result.StageChanged {
		s.publishToUser(userID, Event{Type: EventProfileUpdated, Payload: ProfileEvent{Profile: profile, PreviousStage: previousStage}})
	}
	return result, nil
}

// activeSession loads the user's active session, mapping a miss to
// ErrNoActiveStudySession.
func (s *Service) activeSession(ctx context.Context, userID string) (Session, error) {
	sess, err := s.store.GetActiveSession(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrNoActiveStudySession
		}
		return Session{}, persistence("load active session", err)
	}
	return sess, nil
}
