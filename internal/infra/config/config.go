// Package config loads and validates the YAML application configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"grumpstudio/internal/domain"
)

// BackendConfig locates the streaming backend.
type BackendConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Provider    string        `yaml:"provider"`
	ModelID     string        `yaml:"model_id"`
	SessionType string        `yaml:"session_type"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
}

// EngineConfig tunes the conversation engine.
type EngineConfig struct {
	BlockCap      int           `yaml:"block_cap"`       // live blocks retained, 0 = default
	MemoryTimeout time.Duration `yaml:"memory_timeout"`  // advisory memory fetch bound
	FrameInterval time.Duration `yaml:"frame_interval"`  // scroll coalescing interval
	DefaultMode   string        `yaml:"default_mode"`    // initial UI mode
	SkillIDs      []string      `yaml:"enabled_skills"`  // forwarded capability IDs
	WorkspaceRoot string        `yaml:"workspace_root"`
}

// SessionConfig locates session persistence.
type SessionConfig struct {
	DBPath string `yaml:"db_path"`
}

// MemoryConfig locates the memory retrieval service.
type MemoryConfig struct {
	BaseURL string `yaml:"base_url"` // empty = memory disabled
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	Output string `yaml:"output"` // stdout, stderr, or a file path
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // stdout, noop
}

// BreakerConfig tunes the transport circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// Config is the top-level application configuration.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Engine  EngineConfig  `yaml:"engine"`
	Session SessionConfig `yaml:"session"`
	Memory  MemoryConfig  `yaml:"memory"`
	Logger  LoggerConfig  `yaml:"logger"`
	Tracer  TracerConfig  `yaml:"tracer"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:     "http://localhost:8321",
			Provider:    "anthropic",
			ModelID:     "claude-sonnet-4-5",
			SessionType: "chat",
			ConnTimeout: 30 * time.Second,
		},
		Engine: EngineConfig{
			BlockCap:      200,
			MemoryTimeout: 1500 * time.Millisecond,
			FrameInterval: 16 * time.Millisecond,
			DefaultMode:   "normal",
		},
		Session: SessionConfig{DBPath: "sessions.db"},
		Logger:  LoggerConfig{Level: "info", Format: "text", Output: "stderr"},
		Tracer:  TracerConfig{Enabled: false, Exporter: "noop"},
	}
}

// Load reads a YAML config file, expanding ${ENV} references, and applies
// defaults for unset fields. A missing path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, domain.WrapOp("config.Load", fmt.Errorf("%w: %v", domain.ErrConfigLoad, err))
	}

	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, domain.WrapOp("config.Load", fmt.Errorf("%w: %v", domain.ErrConfigLoad, err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return domain.NewDomainError("config.Validate", domain.ErrConfigLoad, "backend.base_url is required")
	}
	if c.Engine.BlockCap < 0 {
		return domain.NewDomainError("config.Validate", domain.ErrConfigLoad, "engine.block_cap must be >= 0")
	}
	if c.Engine.MemoryTimeout < 0 || c.Engine.FrameInterval < 0 {
		return domain.NewDomainError("config.Validate", domain.ErrConfigLoad, "engine timeouts must be >= 0")
	}
	switch c.Logger.Format {
	case "", "text", "json":
	default:
		return domain.NewDomainError("config.Validate", domain.ErrConfigLoad,
			fmt.Sprintf("logger.format %q is not text or json", c.Logger.Format))
	}
	return nil
}
