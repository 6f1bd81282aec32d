// Package config provides configuration loading for docqa.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/docuchat/docqa/enrich"
	"github.com/docuchat/docqa/llm"
	"github.com/docuchat/docqa/source/chunker"
	"github.com/docuchat/docqa/watcher"
)

// APIKeyEnv is the environment variable read for the LLM API key. Keys never
// appear in config files.
const APIKeyEnv = "DOCQA_API_KEY"

// Config represents the complete docqa configuration.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Enrich  enrich.Config  `yaml:"enrich"`
	Chunker chunker.Config `yaml:"chunker"`
	LLM     llm.Config     `yaml:"llm"`
	Watch   watcher.Config `yaml:"watch"`
	NATS    NATSConfig     `yaml:"nats"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr"`

	// IngestTimeout bounds document ingestion including link enrichment.
	IngestTimeout time.Duration `yaml:"ingest_timeout"`

	// AskTimeout bounds question answering including the LLM call.
	AskTimeout time.Duration `yaml:"ask_timeout"`
}

// NATSConfig configures ingest event publication.
type NATSConfig struct {
	// URL is the NATS server URL. Empty disables event publication.
	URL string `yaml:"url"`

	// SubjectPrefix is the subject prefix for ingest events.
	SubjectPrefix string `yaml:"subject_prefix"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          ":8080",
			IngestTimeout: 2 * time.Minute,
			AskTimeout:    3 * time.Minute,
		},
		Enrich:  enrich.DefaultConfig(),
		Chunker: chunker.DefaultConfig(),
		LLM:     llm.DefaultConfig(),
		Watch:   watcher.DefaultConfig(),
		NATS: NATSConfig{
			SubjectPrefix: "docs",
		},
	}
}

// Validate checks that the configuration is valid. The watch section is only
// validated when a directory is set, since watching is optional.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if err := c.Enrich.Validate(); err != nil {
		return fmt.Errorf("enrich: %w", err)
	}
	if err := c.Chunker.Validate(); err != nil {
		return fmt.Errorf("chunker: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if c.Watch.Dir != "" {
		if err := c.Watch.Validate(); err != nil {
			return fmt.Errorf("watch: %w", err)
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file layered over defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load returns the configuration from path when given, defaults otherwise,
// with environment overrides applied and the result validated.
func Load(path string) (*Config, error) {
	var config *Config
	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	} else {
		config = DefaultConfig()
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() {
	if key := os.Getenv(APIKeyEnv); key != "" {
		c.LLM.APIKey = key
	}
	if endpoint := os.Getenv("DOCQA_LLM_ENDPOINT"); endpoint != "" {
		c.LLM.Endpoint = endpoint
	}
	if model := os.Getenv("DOCQA_LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if addr := os.Getenv("DOCQA_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if url := os.Getenv("DOCQA_NATS_URL"); url != "" {
		c.NATS.URL = url
	}
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
