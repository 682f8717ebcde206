package llm

import (
	"context"
	"log"
	"time"
)

// RequestRecord describes one provider round trip.
type RequestRecord struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	CreatedAt    time.Time
}

// RequestRecorder persists request records.
type RequestRecorder interface {
	RecordLLMRequest(ctx context.Context, rec RequestRecord) error
}

// LoggingProvider records every request through a RequestRecorder.
type LoggingProvider struct {
	inner    Provider
	provider string
	recorder RequestRecorder
	now      func() time.Time
}

// WithLogging wraps a Provider with request recording. A nil recorder
// returns p unchanged.
func WithLogging(p Provider, providerName string, recorder RequestRecorder) Provider {
	if recorder == nil {
		return p
	}
	return &LoggingProvider{inner: p, provider: providerName, recorder: recorder, now: time.Now}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := l.now()
	resp, err := l.inner.Generate(ctx, req)

	rec := RequestRecord{
		Provider:  l.provider,
		Model:     l.inner.ModelID(),
		Purpose:   PurposeFrom(ctx),
		LatencyMs: l.now().Sub(start).Milliseconds(),
		Success:   err == nil,
		CreatedAt: start.UTC(),
	}
	if resp != nil {
		rec.InputTokens = resp.Usage.InputTokens
		rec.OutputTokens = resp.Usage.OutputTokens
		if resp.Model != "" {
			rec.Model = resp.Model
		}
	}
	if err != nil {
		rec.ErrorMessage = err.Error()
	}

	// The caller may already be gone; the record should still land.
	if recErr := l.recorder.RecordLLMRequest(context.WithoutCancel(ctx), rec); recErr != nil {
		log.Printf("llm: record request: %v", recErr)
	}

	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}
