package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

func newTestAnthropicProvider(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := anthropic.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(server.URL),
		option.WithMaxRetries(0),
	)
	return &AnthropicProvider{client: &client, model: "claude-haiku-4-5-20251001"}
}

func writeAnthropicMessage(w http.ResponseWriter, text, stopReason string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":          "msg_test",
		"type":        "message",
		"role":        "assistant",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"model":       "claude-haiku-4-5-20251001",
		"stop_reason": stopReason,
		"usage":       map[string]any{"input_tokens": 1200, "output_tokens": 40},
	})
}

func TestAnthropicProviderSendsImageBlock(t *testing.T) {
	frame := []byte{0xff, 0xd8, 0xff, 0xe0}
	var gotType, gotMedia, gotData string

	p := newTestAnthropicProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Content []struct {
					Type   string `json:"type"`
					Source struct {
						MediaType string `json:"media_type"`
						Data      string `json:"data"`
					} `json:"source"`
				} `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(body.Messages) == 1 && len(body.Messages[0].Content) > 0 {
			first := body.Messages[0].Content[0]
			gotType, gotMedia, gotData = first.Type, first.Source.MediaType, first.Source.Data
		}
		writeAnthropicMessage(w, `{"is_focused":true}`, "end_turn")
	})

	resp, err := p.Generate(context.Background(), Request{
		System: "Observe the student.",
		Messages: []Message{{
			Role:    RoleUser,
			Content: "Classify this frame.",
			Images:  []Image{{MediaType: "image/jpeg", Data: frame}},
		}},
		MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if gotType != "image" || gotMedia != "image/jpeg" {
		t.Fatalf("first block = %q/%q, want image/image/jpeg", gotType, gotMedia)
	}
	if gotData != base64.StdEncoding.EncodeToString(frame) {
		t.Fatalf("image data = %q", gotData)
	}
	if resp.Usage.TotalTokens != 1240 {
		t.Fatalf("total tokens = %d, want 1240", resp.Usage.TotalTokens)
	}
	if string(resp.Content) != `{"is_focused":true}` {
		t.Fatalf("content = %s", resp.Content)
	}
}

func TestAnthropicProviderRateLimit(t *testing.T) {
	p := newTestAnthropicProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "rate_limit_error", "message": "slow down"},
		})
	})

	_, err := p.Generate(context.Background(), Request{
		Messages:  []Message{{Role: RoleUser, Content: "hi"}},
		MaxTokens: 16,
	})
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got %T: %v", err, err)
	}
}

func TestAnthropicProviderMaxTokens(t *testing.T) {
	p := newTestAnthropicProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeAnthropicMessage(w, `{"is_foc`, "max_tokens")
	})

	_, err := p.Generate(context.Background(), Request{
		Messages:  []Message{{Role: RoleUser, Content: "hi"}},
		MaxTokens: 4,
	})
	var maxTok *ErrMaxTokensExceeded
	if !errors.As(err, &maxTok) {
		t.Fatalf("expected ErrMaxTokensExceeded, got %T: %v", err, err)
	}
}

func TestResolveModel(t *testing.T) {
	if got := resolveModel("claude-haiku", anthropicModels); got != "claude-haiku-4-5-20251001" {
		t.Fatalf("resolveModel = %q", got)
	}
	if got := resolveModel("claude-custom-1", anthropicModels); got != "claude-custom-1" {
		t.Fatalf("pass-through = %q", got)
	}
}
