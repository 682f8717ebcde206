// Package vision turns webcam frames into focus observations using a hosted
// multimodal model.
package vision

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/louisbranch/study.space/internal/platform/llm"
	"github.com/louisbranch/study.space/internal/services/study/domain"
)

const (
	// Purpose tags every request in the LLM request log.
	Purpose = "focus-analysis"

	defaultMaxTokens   = 256
	defaultTemperature = 0.2
)

// Config tunes the request sent to the provider.
type Config struct {
	MaxTokens   int
	Temperature float64
}

func (c Config) normalized() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		c.Temperature = defaultTemperature
	}
	return c
}

// Analyzer implements domain.Analyzer on top of an llm.Provider.
type Analyzer struct {
	provider llm.Provider
	config   Config
}

var _ domain.Analyzer = (*Analyzer)(nil)

// New creates an Analyzer. A bare mock provider gets a focused fallback so
// local runs work without credentials.
func New(provider llm.Provider, cfg Config) *Analyzer {
	if mock, ok := provider.(*llm.MockProvider); ok {
		mock.SetFallback(llm.MockResponse{
			Content: json.RawMessage(`{"is_focused":true,"is_on_seat":true,"distraction":"none","message":""}`),
			Usage:   llm.Usage{InputTokens: 1, OutputTokens: 1, TotalTokens: 2},
		})
	}
	return &Analyzer{provider: provider, config: cfg.normalized()}
}

type observationOutput struct {
	IsFocused   bool   `json:"is_focused"`
	IsOnSeat    bool   `json:"is_on_seat"`
	Distraction string `json:"distraction"`
	Message     string `json:"message"`
}

// Analyze asks the model for a verdict on one frame.
func (a *Analyzer) Analyze(ctx context.Context, req domain.AnalysisRequest) (domain.Observation, error) {
	if len(req.Image.Data) == 0 {
		return domain.Observation{}, domain.ErrImageMissing
	}
	ctx = llm.WithPurpose(ctx, Purpose)

	mediaType := req.Image.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	resp, err := a.provider.Generate(ctx, llm.Request{
		System: systemPrompt,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: buildUserMessage(req),
			Images:  []llm.Image{{MediaType: mediaType, Data: req.Image.Data}},
		}},
		Schema:      ObservationSchema,
		MaxTokens:   a.config.MaxTokens,
		Temperature: a.config.Temperature,
	})
	if err != nil {
		return domain.Observation{}, fmt.Errorf("vision generation failed: %w", err)
	}
	if err := llm.Validate(ObservationSchema, resp.Content); err != nil {
		return domain.Observation{}, err
	}

	var raw observationOutput
	if err := json.Unmarshal(resp.Content, &raw); err != nil {
		return domain.Observation{}, fmt.Errorf("parse vision response: %w", err)
	}

	obs := domain.Observation{
		IsFocused: raw.IsFocused,
		IsOnSeat:  raw.IsOnSeat,
		Message:   raw.Message,
		Usage: domain.TokenUsage{
			Input:  int64(resp.Usage.InputTokens),
			Output: int64(resp.Usage.OutputTokens),
			Total:  int64(resp.Usage.TotalTokens),
		},
	}
	if obs.Usage.Total == 0 {
		obs.Usage.Total = obs.Usage.Input + obs.Usage.Output
	}
	if !obs.IsFocused && raw.Distraction != "none" {
		obs.Distraction = domain.ParseDistraction(raw.Distraction)
	}
	if !obs.IsOnSeat {
		obs.IsFocused = false
		obs.Distraction = domain.DistractionAway
	}
	return obs, nil
}
