package llm

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/teamquery-ai/teamquery/pkg/config"
)

func TestNewClient_OpenAI(t *testing.T) {
	client, err := NewClient(config.LLMConfig{
		Provider: "openai",
		Model:    "gpt-4o",
		APIKey:   "test-key",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.GetModel() != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %q", client.GetModel())
	}
}

func TestNewClient_OpenAICustomBaseURL(t *testing.T) {
	client, err := NewClient(config.LLMConfig{
		Provider: "openai",
		Model:    "local-model",
		BaseURL:  "http://localhost:8000/v1/",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.GetEndpoint() != "http://localhost:8000/v1" {
		t.Errorf("expected trailing slash trimmed, got %q", client.GetEndpoint())
	}
}

func TestNewClient_Anthropic(t *testing.T) {
	client, err := NewClient(config.LLMConfig{
		Provider: "anthropic",
		Model:    "claude-sonnet-4-5",
		APIKey:   "test-key",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.GetModel() != "claude-sonnet-4-5" {
		t.Errorf("expected model claude-sonnet-4-5, got %q", client.GetModel())
	}
}

func TestNewClient_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LLMConfig
	}{
		{name: "unknown provider", cfg: config.LLMConfig{Provider: "bard", Model: "m"}},
		{name: "openai missing model", cfg: config.LLMConfig{Provider: "openai"}},
		{name: "anthropic missing key", cfg: config.LLMConfig{Provider: "anthropic", Model: "m"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClient(tt.cfg, zap.NewNop()); err == nil {
				t.Error("expected error, got none")
			}
		})
	}
}

func TestMockClient(t *testing.T) {
	mock := NewMockClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return "SELECT 1", nil
	}

	got, err := mock.GenerateResponse(context.Background(), "q", "s", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "SELECT 1" {
		t.Errorf("expected configured response, got %q", got)
	}
	if mock.GenerateResponseCalls != 1 {
		t.Errorf("expected 1 call, got %d", mock.GenerateResponseCalls)
	}
}
