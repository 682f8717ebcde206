package timers

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/study.space/internal/platform/timeouts"
	"github.com/louisbranch/study.space/internal/services/study/domain"
)

const (
	defaultChargeInterval = time.Second
	defaultLimitInterval  = 30 * time.Second
	defaultSweepInterval  = time.Minute
	defaultConcurrency    = 8
)

// Config controls the background clocks.
type Config struct {
	ChargeInterval time.Duration
	LimitInterval  time.Duration
	SweepInterval  time.Duration
	StaleAfter     time.Duration
	// Concurrency bounds how many users one tick works on at once.
	Concurrency int
}

func (c Config) normalized() Config {
	if c.ChargeInterval <= 0 {
		c.ChargeInterval = defaultChargeInterval
	}
	if c.LimitInterval <= 0 {
		c.LimitInterval = defaultLimitInterval
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaultSweepInterval
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	return c
}

// Driver owns the tickers. A failure for one user is logged and never
// stops the tick or the other users.
type Driver struct {
	svc        Service
	tracker    *Tracker
	forcedRest *ForcedRest
	sweeper    *Sweeper
	cfg        Config
	clock      func() time.Time
}

// NewDriver wires the clocks around svc. tracker must be the same one the
// domain service reports streaks to.
func NewDriver(svc Service, tracker *Tracker, cfg Config, clock func() time.Time) *Driver {
	if clock == nil {
		clock = time.Now
	}
	cfg = cfg.normalized()
	return &Driver{
		svc:        svc,
		tracker:    tracker,
		forcedRest: NewForcedRest(svc, tracker, clock),
		sweeper:    NewSweeper(svc, cfg.StaleAfter, clock),
		cfg:        cfg,
		clock:      clock,
	}
}

// Run recovers process-local state and then runs the three clocks until
// ctx is canceled. Pending auto-resume timers are canceled on return.
func (d *Driver) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer d.tracker.Stop()

	if err := d.Recover(ctx); err != nil {
		log.Printf("timers: recover: %v", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.loop(ctx, d.cfg.ChargeInterval, d.ChargeTick) })
	g.Go(func() error { return d.loop(ctx, d.cfg.LimitInterval, d.LimitTick) })
	g.Go(func() error { return d.loop(ctx, d.cfg.SweepInterval, d.SweepTick) })
	return g.Wait()
}

func (d *Driver) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tick(ctx)
		}
	}
}

// Recover rebuilds streaks for studying sessions and re-arms auto-resume
// timers for sessions that were left in a forced break.
func (d *Driver) Recover(ctx context.Context) error {
	sessions, err := d.svc.ActiveSessions(ctx)
	if err != nil {
		return fmt.Errorf("list active sessions: %w", err)
	}
	rearmed := 0
	for _, sess := range sessions {
		switch sess.Status {
		case domain.StatusStudying:
			start := sess.StartTime
			if end, ok := sess.LastBreakEnd(); ok {
				start = end
			}
			d.tracker.StreakStarted(sess.UserID, start)
		case domain.StatusBreak:
			if err := d.forcedRest.Rearm(ctx, sess); err != nil {
				log.Printf("timers: rearm user %s: %v", sess.UserID, err)
				continue
			}
			if sess.ActiveBreakType == domain.BreakForced {
				rearmed++
			}
		}
	}
	log.Printf("timers: recovered %d active sessions, %d forced breaks", len(sessions), rearmed)
	return nil
}

// ChargeTick charges studying time for every studying session.
func (d *Driver) ChargeTick(ctx context.Context) {
	d.forEachActive(ctx, "charge", func(ctx context.Context, sess domain.Session) error {
		if sess.Status != domain.StatusStudying {
			return nil
		}
		return d.svc.ChargeTick(ctx, sess.UserID)
	})
}

// LimitTick finishes sessions over budget or without a plan, then runs
// the forced-rest check on the studying ones that remain.
func (d *Driver) LimitTick(ctx context.Context) {
	d.forEachActive(ctx, "limit", func(ctx context.Context, sess domain.Session) error {
		finished, err := d.svc.EnforceLimit(ctx, sess.UserID)
		if err != nil || finished {
			return err
		}
		return d.forcedRest.Check(ctx, sess)
	})
}

// SweepTick finishes stale sessions.
func (d *Driver) SweepTick(ctx context.Context) {
	d.forEachActive(ctx, "sweep", func(ctx context.Context, sess domain.Session) error {
		finished, err := d.sweeper.Sweep(ctx, sess)
		if finished {
			log.Printf("sweep: finished stale session %s for user %s", sess.ID, sess.UserID)
		}
		return err
	})
}

func (d *Driver) forEachActive(ctx context.Context, name string, fn func(context.Context, domain.Session) error) {
	sessions, err := d.svc.ActiveSessions(ctx)
	if err != nil {
		log.Printf("%s: list active sessions: %v", name, err)
		return
	}

	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)
	for _, sess := range sessions {
		g.Go(func() error {
			userCtx, cancel := context.WithTimeout(ctx, timeouts.BackgroundUser)
			defer cancel()
			if err := fn(userCtx, sess); err != nil {
				log.Printf("%s: user %s: %v", name, sess.UserID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
