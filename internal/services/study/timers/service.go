package timers

import (
	"context"
	"time"

	"github.com/louisbranch/study.space/internal/services/study/domain"
)

// Service is the part of the study domain the background clocks drive.
// Every method re-reads the session under the user lock, so the snapshot
// the clocks iterate over may be stale.
type Service interface {
	ActiveSessions(ctx context.Context) ([]domain.Session, error)
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
	ChargeTick(ctx context.Context, userID string) error
	EnforceLimit(ctx context.Context, userID string) (bool, error)
	ForceBreak(ctx context.Context, userID, sessionID string, resumeAfter time.Duration) (domain.Session, bool, error)
	AutoResume(ctx context.Context, userID, sessionID string, breakStart time.Time) (bool, error)
	FinishStale(ctx context.Context, userID string, staleAfter time.Duration) (bool, error)
}
