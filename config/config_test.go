package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ServerPort != ":8090" {
		t.Errorf("ServerPort = %q, want :8090", cfg.ServerPort)
	}
	if cfg.ConfidenceThreshold != 0.5 {
		t.Errorf("ConfidenceThreshold = %v, want 0.5", cfg.ConfidenceThreshold)
	}
	if cfg.MaxDetections != 50 {
		t.Errorf("MaxDetections = %d, want 50", cfg.MaxDetections)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
	}
	if !cfg.Layers.Pattern || !cfg.Layers.Specialized {
		t.Error("pattern and specialized layers must default to enabled")
	}
	if cfg.Layers.LLM {
		t.Error("llm layer must default to disabled")
	}
	if cfg.Obscure.TokenStore.Backend != "memory" {
		t.Errorf("token store backend = %q, want memory", cfg.Obscure.TokenStore.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold above one", func(c *Config) { c.ConfidenceThreshold = 1.5 }},
		{"negative threshold", func(c *Config) { c.ConfidenceThreshold = -0.1 }},
		{"zero max detections", func(c *Config) { c.MaxDetections = 0 }},
		{"zero layer timeout", func(c *Config) { c.LayerTimeout = 0 }},
		{"unknown token backend", func(c *Config) { c.Obscure.TokenStore.Backend = "redis" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9999")
	t.Setenv("CONFIDENCE_THRESHOLD", "0.7")
	t.Setenv("LAYER_LLM", "true")
	t.Setenv("ENSEMBLE_ENABLED", "false")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TOKEN_STORE_BACKEND", "sqlite")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.ServerPort != ":9999" {
		t.Errorf("ServerPort = %q, want :9999", cfg.ServerPort)
	}
	if cfg.ConfidenceThreshold != 0.7 {
		t.Errorf("ConfidenceThreshold = %v, want 0.7", cfg.ConfidenceThreshold)
	}
	if !cfg.Layers.LLM {
		t.Error("LAYER_LLM=true must enable the llm layer")
	}
	if cfg.EnsembleEnabled {
		t.Error("ENSEMBLE_ENABLED=false must disable ensembling")
	}
	if !cfg.OpenAIProvider.Enabled || cfg.OpenAIProvider.APIKey != "sk-test" {
		t.Error("OPENAI_API_KEY must enable the OpenAI provider")
	}
	if cfg.Obscure.TokenStore.Backend != "sqlite" {
		t.Errorf("token store backend = %q, want sqlite", cfg.Obscure.TokenStore.Backend)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"server_port": ":7070", "max_detections": 10}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg := DefaultConfig()
	LoadFromFile(path, cfg)

	if cfg.ServerPort != ":7070" {
		t.Errorf("ServerPort = %q, want :7070", cfg.ServerPort)
	}
	if cfg.MaxDetections != 10 {
		t.Errorf("MaxDetections = %d, want 10", cfg.MaxDetections)
	}
	// Untouched fields keep their defaults.
	if cfg.ConfidenceThreshold != 0.5 {
		t.Errorf("ConfidenceThreshold = %v, want default 0.5", cfg.ConfidenceThreshold)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	LoadFromFile("/nonexistent/config.json", cfg)
	if cfg.ServerPort != ":8090" {
		t.Error("missing config file must leave defaults intact")
	}
}
