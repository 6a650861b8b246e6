package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("CHAT_STREAM_TIMEOUT", "")
	cfg := Load()
	if cfg.AIProvider != "ollama" || cfg.DefaultModel() != "llama3:latest" {
		t.Fatalf("unexpected provider defaults: %q %q", cfg.AIProvider, cfg.DefaultModel())
	}
	if cfg.ChatStreamTimeout != 5*time.Minute || cfg.ChatMaxOutputTokens != 8192 {
		t.Fatalf("unexpected stream defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AI_PROVIDER", "OpenRouter")
	t.Setenv("OPENROUTER_MODEL", "meta/llama")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("CHAT_STREAM_TIMEOUT", "45s")
	t.Setenv("CHAT_STREAM_REQUIRE_AUTH", "true")
	t.Setenv("CHAT_HISTORY_LIMIT", "not-a-number")

	cfg := Load()
	if cfg.DefaultModel() != "meta/llama" {
		t.Fatalf("unexpected default model %q", cfg.DefaultModel())
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.ChatStreamTimeout != 45*time.Second || !cfg.ChatStreamRequireAuth || cfg.ChatHistoryLimit != 0 {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
}

func TestLoadWorkerSettings(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("WORKER_MAX_RETRIES", "")
	t.Setenv("OPENROUTER_API_KEY", "k")

	cfg := Load()
	if cfg.WorkerConcurrency != 8 || cfg.WorkerMaxRetries != 2 {
		t.Fatalf("unexpected worker settings %d/%d", cfg.WorkerConcurrency, cfg.WorkerMaxRetries)
	}
	if s := cfg.AISettings(); s.OpenRouterAPIKey != "k" || s.OllamaModel != cfg.OllamaModel {
		t.Fatalf("unexpected ai settings %+v", s)
	}
}
