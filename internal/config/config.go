// Package config holds promptd's runtime settings. Values are layered:
// Default, then an optional file (Load), then PROMPTD_* environment
// variables (ApplyEnv), then command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"promptd/internal/catalog"
	"promptd/internal/runner"
)

// EnvPrefix prefixes every environment override, e.g. PROMPTD_MODELS_DIR.
const EnvPrefix = "PROMPTD"

// Config holds runtime parameters for the service.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr" envconfig:"ADDR"`
	ModelsDir    string `json:"models_dir" yaml:"models_dir" toml:"models_dir" envconfig:"MODELS_DIR"`
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model" envconfig:"DEFAULT_MODEL"`
	// CatalogFile adds descriptors from a yaml/json/toml file.
	CatalogFile string `json:"catalog_file" yaml:"catalog_file" toml:"catalog_file" envconfig:"CATALOG_FILE"`
	// ScanLocal registers stray *.gguf files in ModelsDir as local models.
	ScanLocal bool `json:"scan_local" yaml:"scan_local" toml:"scan_local" envconfig:"SCAN_LOCAL"`
	// LlamaBin is an explicit llama.cpp binary; siblings are derived from it.
	LlamaBin string `json:"llama_bin" yaml:"llama_bin" toml:"llama_bin" envconfig:"LLAMA_BIN"`
	HubURL   string `json:"hub_url" yaml:"hub_url" toml:"hub_url" envconfig:"HUB_URL"`

	Strategy           string `json:"strategy" yaml:"strategy" toml:"strategy" envconfig:"STRATEGY"`
	ServerHost         string `json:"server_host" yaml:"server_host" toml:"server_host" envconfig:"SERVER_HOST"`
	ServerPort         int    `json:"server_port" yaml:"server_port" toml:"server_port" envconfig:"SERVER_PORT"`
	ReadyAttempts      int    `json:"ready_attempts" yaml:"ready_attempts" toml:"ready_attempts" envconfig:"READY_ATTEMPTS"`
	ReadyIntervalMS    int    `json:"ready_interval_ms" yaml:"ready_interval_ms" toml:"ready_interval_ms" envconfig:"READY_INTERVAL_MS"`
	IdleTimeoutSeconds int    `json:"idle_timeout_seconds" yaml:"idle_timeout_seconds" toml:"idle_timeout_seconds" envconfig:"IDLE_TIMEOUT_SECONDS"`

	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens" envconfig:"MAX_TOKENS"`
	Temperature float64 `json:"temperature" yaml:"temperature" toml:"temperature" envconfig:"TEMPERATURE"`
	TopP        float64 `json:"top_p" yaml:"top_p" toml:"top_p" envconfig:"TOP_P"`
	ContextSize int     `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size" envconfig:"CTX_SIZE"`
	GPULayers   int     `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers" envconfig:"GPU_LAYERS"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format" envconfig:"LOG_FORMAT"`

	MaxBodyBytes       int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled" envconfig:"CORS_ENABLED"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins" envconfig:"CORS_ALLOWED_ORIGINS"`
	CORSAllowedMethods []string `json:"cors_allowed_methods" yaml:"cors_allowed_methods" toml:"cors_allowed_methods" envconfig:"CORS_ALLOWED_METHODS"`
	CORSAllowedHeaders []string `json:"cors_allowed_headers" yaml:"cors_allowed_headers" toml:"cors_allowed_headers" envconfig:"CORS_ALLOWED_HEADERS"`
}

// Default returns the settings a fresh install starts with.
func Default() Config {
	p := runner.DefaultParams()
	return Config{
		Addr:               "127.0.0.1:8080",
		ModelsDir:          "~/models/llm",
		DefaultModel:       catalog.DefaultModelID,
		Strategy:           string(runner.StrategyServer),
		ServerHost:         runner.DefaultHost,
		ServerPort:         50951,
		ReadyAttempts:      runner.DefaultReadyAttempts,
		ReadyIntervalMS:    int(runner.DefaultReadyInterval / time.Millisecond),
		IdleTimeoutSeconds: 90,
		MaxTokens:          p.MaxTokens,
		Temperature:        p.Temperature,
		TopP:               p.TopP,
		ContextSize:        p.ContextSize,
		GPULayers:          p.GPULayers,
		LogLevel:           "info",
		LogFormat:          "console",
		MaxBodyBytes:       1 << 20,
		CORSAllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization"},
	}
}

// ApplyEnv overrides cfg with PROMPTD_* environment variables. Unset
// variables leave the current value alone.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}

// Validate rejects settings the runtime cannot work with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ModelsDir) == "" {
		return fmt.Errorf("models_dir is empty")
	}
	if _, err := runner.ParseStrategy(c.Strategy); err != nil {
		return err
	}
	for name, v := range map[string]int{
		"max_tokens":        c.MaxTokens,
		"ctx_size":          c.ContextSize,
		"ready_attempts":    c.ReadyAttempts,
		"ready_interval_ms": c.ReadyIntervalMS,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if c.Temperature < 0 {
		return fmt.Errorf("temperature must not be negative, got %g", c.Temperature)
	}
	if c.TopP <= 0 || c.TopP > 1 {
		return fmt.Errorf("top_p must be in (0, 1], got %g", c.TopP)
	}
	if c.GPULayers < 0 {
		return fmt.Errorf("gpu_layers must not be negative, got %d", c.GPULayers)
	}
	if c.ServerPort < 0 || c.ServerPort > 65535 {
		return fmt.Errorf("server_port out of range: %d", c.ServerPort)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// Params projects the generation settings.
func (c Config) Params() runner.Params {
	return runner.Params{
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		TopP:        c.TopP,
		ContextSize: c.ContextSize,
		GPULayers:   c.GPULayers,
	}
}

// IdleTimeout converts IdleTimeoutSeconds; zero or less disables eviction.
func (c Config) IdleTimeout() time.Duration {
	if c.IdleTimeoutSeconds <= 0 {
		return -1
	}
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// ReadyInterval converts ReadyIntervalMS.
func (c Config) ReadyInterval() time.Duration {
	return time.Duration(c.ReadyIntervalMS) * time.Millisecond
}

// SplitCSV splits a comma separated flag value, dropping empty items.
func SplitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
