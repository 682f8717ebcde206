package timers

import (
	"context"
	"time"

	"github.com/louisbranch/study.space/internal/services/study/domain"
)

// DefaultStaleAfter is how long a session may go without activity before
// the sweeper finishes it.
const DefaultStaleAfter = 30 * time.Minute

// Sweeper finishes sessions whose client went away.
type Sweeper struct {
	svc        Service
	staleAfter time.Duration
	clock      func() time.Time
}

// NewSweeper builds a sweeper; a non-positive staleAfter uses the default.
func NewSweeper(svc Service, staleAfter time.Duration, clock func() time.Time) *Sweeper {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if clock == nil {
		clock = time.Now
	}
	return &Sweeper{svc: svc, staleAfter: staleAfter, clock: clock}
}

// Sweep finishes sess when it looks stale. The service re-checks under
// the user lock.
func (s *Sweeper) Sweep(ctx context.Context, sess domain.Session) (bool, error) {
	if s.clock().Sub(sess.LastActivity) < s.staleAfter {
		return false, nil
	}
	return s.svc.FinishStale(ctx, sess.UserID, s.staleAfter)
}
