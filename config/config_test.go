package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr :8080, got %s", cfg.Server.Addr)
	}
	if cfg.Enrich.MaxContentLength != 10000 {
		t.Errorf("expected default max_content_length 10000, got %d", cfg.Enrich.MaxContentLength)
	}
	if cfg.Enrich.MaxAttempts != 3 {
		t.Errorf("expected default max_attempts 3, got %d", cfg.Enrich.MaxAttempts)
	}
	if cfg.LLM.Endpoint != "http://localhost:11434/v1" {
		t.Errorf("expected default endpoint http://localhost:11434/v1, got %s", cfg.LLM.Endpoint)
	}
	if cfg.NATS.URL != "" {
		t.Error("expected NATS disabled by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing server addr",
			modify:  func(c *Config) { c.Server.Addr = "" },
			wantErr: true,
		},
		{
			name:    "bad enrich attempts",
			modify:  func(c *Config) { c.Enrich.MaxAttempts = 0 },
			wantErr: true,
		},
		{
			name:    "bad chunker bounds",
			modify:  func(c *Config) { c.Chunker.TargetTokens = 2000 },
			wantErr: true,
		},
		{
			name:    "missing llm model",
			modify:  func(c *Config) { c.LLM.Model = "" },
			wantErr: true,
		},
		{
			name:    "watch dir unset skips watch validation",
			modify:  func(c *Config) { c.Watch.Debounce = 0 },
			wantErr: false,
		},
		{
			name: "watch dir set enforces watch validation",
			modify: func(c *Config) {
				c.Watch.Dir = "/tmp/docs"
				c.Watch.Debounce = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docqa.yaml")

	content := `
server:
  addr: ":9999"
enrich:
  max_content_length: 5000
llm:
  model: mistral
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Server.Addr != ":9999" {
		t.Errorf("addr = %s, want :9999", cfg.Server.Addr)
	}
	if cfg.Enrich.MaxContentLength != 5000 {
		t.Errorf("max_content_length = %d, want 5000", cfg.Enrich.MaxContentLength)
	}
	if cfg.Enrich.Timeout != 10*time.Second {
		t.Errorf("timeout = %s, want default 10s", cfg.Enrich.Timeout)
	}
	if cfg.LLM.Model != "mistral" {
		t.Errorf("model = %s, want mistral", cfg.LLM.Model)
	}
	// Unset fields keep their defaults.
	if cfg.Enrich.MaxAttempts != 3 {
		t.Errorf("max_attempts = %d, want default 3", cfg.Enrich.MaxAttempts)
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/docqa.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(APIKeyEnv, "from-env")
	t.Setenv("DOCQA_LLM_MODEL", "phi3")
	t.Setenv("DOCQA_ADDR", ":7777")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want env value", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "phi3" {
		t.Errorf("Model = %q, want phi3", cfg.LLM.Model)
	}
	if cfg.Server.Addr != ":7777" {
		t.Errorf("Addr = %q, want :7777", cfg.Server.Addr)
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "docqa.yaml")

	cfg := DefaultConfig()
	cfg.Server.Addr = ":4321"
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Server.Addr != ":4321" {
		t.Errorf("addr = %s after round trip", loaded.Server.Addr)
	}
}
