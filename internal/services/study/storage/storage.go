// Package storage defines the persistence records the study service keeps
// beside the domain store.
package storage

import (
	"context"
	"time"

	"github.com/louisbranch/study.space/internal/services/study/domain"
)

// ConfigStore persists the admin-editable configuration. GetAppConfig
// reports domain.ErrNotFound until one has been saved.
type ConfigStore interface {
	GetAppConfig(ctx context.Context) (domain.AppConfig, error)
	PutAppConfig(ctx context.Context, cfg domain.AppConfig) error
}

// LLMUsage aggregates provider requests for one provider, model and purpose.
type LLMUsage struct {
	Provider     string
	Model        string
	Purpose      string
	Requests     int64
	Failures     int64
	InputTokens  int64
	OutputTokens int64
	AvgLatencyMs int64
}

// UsageStore reads back the provider request log.
type UsageStore interface {
	ListLLMUsage(ctx context.Context, since time.Time) ([]LLMUsage, error)
}

// AnalysisStore reads back the per-session analysis log.
type AnalysisStore interface {
	ListAnalysisCalls(ctx context.Context, sessionID string) ([]domain.AnalysisCall, error)
}
