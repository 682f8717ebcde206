package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

type recordingRecorder struct {
	mu      sync.Mutex
	records []RequestRecord
	err     error
}

func (r *recordingRecorder) RecordLLMRequest(_ context.Context, rec RequestRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return r.err
}

func TestLoggingRecordsSuccess(t *testing.T) {
	mock := NewMockProvider(MockResponse{
		Content: json.RawMessage(`{}`),
		Usage:   Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	})
	rec := &recordingRecorder{}
	p := WithLogging(mock, ProviderMock, rec)

	ctx := WithPurpose(context.Background(), "focus-analysis")
	if _, err := p.Generate(ctx, Request{}); err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(rec.records) != 1 {
		t.Fatalf("records = %d, want 1", len(rec.records))
	}
	got := rec.records[0]
	if !got.Success || got.Purpose != "focus-analysis" || got.InputTokens != 10 || got.OutputTokens != 5 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Provider != ProviderMock || got.Model != "mock" {
		t.Fatalf("provider/model = %q/%q", got.Provider, got.Model)
	}
}

func TestLoggingRecordsFailureAndKeepsError(t *testing.T) {
	want := &ErrProviderUnavailable{Err: errors.New("down")}
	mock := NewMockProvider(MockResponse{Err: want})
	rec := &recordingRecorder{err: errors.New("disk full")}
	p := WithLogging(mock, ProviderMock, rec)

	_, err := p.Generate(context.Background(), Request{})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
	if len(rec.records) != 1 || rec.records[0].Success || rec.records[0].ErrorMessage == "" {
		t.Fatalf("unexpected records: %+v", rec.records)
	}
	if rec.records[0].Purpose != "unknown" {
		t.Fatalf("purpose = %q, want unknown", rec.records[0].Purpose)
	}
}

func TestLoggingNilRecorderReturnsInner(t *testing.T) {
	mock := NewMockProvider()
	if p := WithLogging(mock, ProviderMock, nil); p != Provider(mock) {
		t.Fatal("expected inner provider unchanged")
	}
}
