// Package appconfig serves the admin-editable plan table, stage goals and
// feedback cadence. The snapshot is loaded once and replaced on update.
package appconfig

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/louisbranch/study.space/internal/platform/errors"
	"github.com/louisbranch/study.space/internal/services/study/domain"
	"github.com/louisbranch/study.space/internal/services/study/storage"
)

// Service implements domain.ConfigSource over a ConfigStore.
type Service struct {
	store     storage.ConfigStore
	defaults  domain.AppConfig
	publisher domain.Publisher
	clock     func() time.Time

	mu      sync.RWMutex
	current domain.AppConfig
	loaded  bool
}

var _ domain.ConfigSource = (*Service)(nil)

// New creates a config service that serves defaults until Load runs.
func New(store storage.ConfigStore, defaults domain.AppConfig, publisher domain.Publisher, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store:     store,
		defaults:  defaults.Clone(),
		publisher: publisher,
		clock:     clock,
		current:   defaults.Clone(),
	}
}

// Load reads the stored configuration, saving the defaults when none exists.
func (s *Service) Load(ctx context.Context) error {
	if s.store == nil {
		return errors.New("config store is required")
	}
	cfg, err := s.store.GetAppConfig(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		cfg = s.defaults.Clone()
		cfg.UpdatedAt = s.clock().UTC()
		if err := s.store.PutAppConfig(ctx, cfg); err != nil {
			return apperrors.Wrap(apperrors.CodePersistenceFailed, "save default config", err)
		}
	} else if err != nil {
		return apperrors.Wrap(apperrors.CodePersistenceFailed, "load config", err)
	}

	s.mu.Lock()
	s.current = cfg.Clone()
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// Loaded reports whether Load has succeeded.
func (s *Service) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Current returns a copy of the cached configuration.
func (s *Service) Current() domain.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Update validates and persists cfg, then tells every socket.
func (s *Service) Update(ctx context.Context, cfg domain.AppConfig) (domain.AppConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceLocked(ctx, cfg)
}

// UpdatePlan replaces one plan row.
func (s *Service) UpdatePlan(ctx context.Context, id domain.PlanID, limits domain.PlanLimits) (domain.AppConfig, error) {
	if _, err := domain.ParseConfigPlan(string(id)); err != nil {
		return domain.AppConfig{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current.Clone()
	limits.Plan = id
	next.Plans[id] = limits
	return s.replaceLocked(ctx, next)
}

// UpdateGoals replaces the stage thresholds.
func (s *Service) UpdateGoals(ctx context.Context, goals domain.Goals) (domain.AppConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current.Clone()
	next.Goals = goals
	return s.replaceLocked(ctx, next)
}

func (s *Service) replaceLocked(ctx context.Context, cfg domain.AppConfig) (domain.AppConfig, error) {
	if err := cfg.Validate(); err != nil {
		return domain.AppConfig{}, err
	}
	next := cfg.Clone()
	for id, row := range next.Plans {
		row.Plan = id
		next.Plans[id] = row
	}
	next.UpdatedAt = s.clock().UTC()
	if err := s.store.PutAppConfig(ctx, next); err != nil {
		return domain.AppConfig{}, apperrors.Wrap(apperrors.CodePersistenceFailed, "save config", err)
	}
	s.current = next
	s.loaded = true

	if s.publisher != nil {
		s.publisher.Broadcast(domain.Event{Type: domain.EventConfigUpdated, Payload: domain.ConfigEvent{Config: next.Clone()}})
	}
	return next.Clone(), nil
}
