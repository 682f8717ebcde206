package timers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/louisbranch/study.space/internal/platform/timeouts"
	"github.com/louisbranch/study.space/internal/services/study/domain"
)

// ForcedRest sends children on a forced break after a continuous studying
// streak and brings them back when the break is over.
type ForcedRest struct {
	svc     Service
	tracker *Tracker
	clock   func() time.Time
}

// NewForcedRest builds the scheduler. A nil clock uses time.Now.
func NewForcedRest(svc Service, tracker *Tracker, clock func() time.Time) *ForcedRest {
	if clock == nil {
		clock = time.Now
	}
	return &ForcedRest{svc: svc, tracker: tracker, clock: clock}
}

// Check looks at one studying session. The first sighting of a streak only
// records it; once the streak reaches the profile's work duration the
// session is put on a forced break and an auto-resume is armed.
func (f *ForcedRest) Check(ctx context.Context, sess domain.Session) error {
	if sess.Status != domain.StatusStudying {
		return nil
	}
	profile, err := f.svc.GetProfile(ctx, sess.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !profile.ForcedRestEnabled() {
		return nil
	}

	now := f.clock().UTC()
	start, seen := f.tracker.Observe(sess.UserID, now)
	if !seen {
		return nil
	}
	work := time.Duration(profile.WorkMinutesBeforeForcedBreak) * time.Minute
	if now.Sub(start) < work {
		return nil
	}

	rest := time.Duration(profile.ForcedBreakMinutes) * time.Minute
	updated, ok, err := f.svc.ForceBreak(ctx, sess.UserID, sess.ID, rest)
	if err != nil || !ok {
		return err
	}
	open, ok := updated.OpenBreak()
	if !ok {
		return nil
	}
	f.arm(sess.UserID, sess.ID, open.StartTime, rest)
	return nil
}

// Rearm restores the auto-resume for a session persisted in a forced break.
// A break that is already over resumes right away.
func (f *ForcedRest) Rearm(ctx context.Context, sess domain.Session) error {
	if sess.Status != domain.StatusBreak || sess.ActiveBreakType != domain.BreakForced {
		return nil
	}
	open, ok := sess.OpenBreak()
	if !ok {
		return nil
	}
	profile, err := f.svc.GetProfile(ctx, sess.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if errors.Is(err, domain.ErrNotFound) {
		profile = domain.NewProfile(sess.UserID, open.StartTime)
	}
	resumeAt := open.StartTime.Add(time.Duration(profile.ForcedBreakMinutes) * time.Minute)
	f.arm(sess.UserID, sess.ID, open.StartTime, resumeAt.Sub(f.clock()))
	return nil
}

func (f *ForcedRest) arm(userID, sessionID string, breakStart time.Time, after time.Duration) {
	f.tracker.Arm(userID, after, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.BackgroundUser)
		defer cancel()
		if _, err := f.svc.AutoResume(ctx, userID, sessionID, breakStart); err != nil {
			log.Printf("forced rest: auto resume user %s: %v", userID, err)
		}
	})
}
