package domain

import (
	"context"
	"time"
)

// Mutation is the set of records one transition writes. Nil fields are
// left untouched; the store applies the rest atomically.
type Mutation struct {
	// NewSession is inserted; the store reports ErrSessionConflict when
	// the user already has an active session.
	NewSession *Session
	Session    *Session
	User       *User
	Profile    *Profile
	Analysis   *AnalysisCall
}

// Store is the domain persistence boundary. Lookups report ErrNotFound for
// missing records.
type Store interface {
	GetUser(ctx context.Context, userID string) (User, error)
	PutUser(ctx context.Context, user User) error
	GetProfile(ctx context.Context, userID string) (Profile, error)
	PutProfile(ctx context.Context, profile Profile) error
	GetActiveSession(ctx context.Context, userID string) (Session, error)
	GetLatestSession(ctx context.Context, userID string) (Session, error)
	ListSessionsByStatus(ctx context.Context, statuses ...SessionStatus) ([]Session, error)
	ListSessionsStartedBetween(ctx context.Context, userID string, from, to time.Time) ([]Session, error)
	// ListSessionsChargedOn lists the user's sessions whose latest budget
	// charge fell on day (YYYY-MM-DD).
	ListSessionsChargedOn(ctx context.Context, userID, day string) ([]Session, error)
	Apply(ctx context.Context, m Mutation) error
}
