// Package config loads service configuration from an optional YAML file
// overlaid with environment variables.
package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Playground PlaygroundConfig `koanf:"playground"`
	Storage    StorageConfig    `koanf:"storage"`
	Providers  ProvidersConfig  `koanf:"providers"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
	// RequestTimeout bounds non-streaming handlers; streaming completions
	// are exempt.
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// PlaygroundConfig holds defaults applied when a span does not name a
// provider or model.
type PlaygroundConfig struct {
	DefaultProvider string `koanf:"default_provider"`
	DefaultModel    string `koanf:"default_model"`
}

type StorageConfig struct {
	Driver string `koanf:"driver"` // sqlite, postgres, memory
	DSN    string `koanf:"dsn"`

	Retention RetentionConfig `koanf:"retention"`
}

// RetentionConfig controls the background sweep of saved prompts.
// A zero MaxAge disables the sweep.
type RetentionConfig struct {
	MaxAge        time.Duration `koanf:"max_age"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

type ProvidersConfig struct {
	OpenAI      OpenAIConfig      `koanf:"openai"`
	AzureOpenAI AzureOpenAIConfig `koanf:"azure_openai"`
	Anthropic   AnthropicConfig   `koanf:"anthropic"`

	// AllowPrivateEndpoints permits replaying against loopback or private
	// base URLs, e.g. a local model server.
	AllowPrivateEndpoints bool `koanf:"allow_private_endpoints"`
}

type OpenAIConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
}

type AzureOpenAIConfig struct {
	APIKey     string `koanf:"api_key"`
	BaseURL    string `koanf:"base_url"`
	APIVersion string `koanf:"api_version"`
}

type AnthropicConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
}

type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads config.yaml when present, overlays PLAYGROUND_* environment
// variables, and applies defaults.
func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// Missing file is fine, env vars alone can configure the service.
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Env overrides file config: PLAYGROUND_SERVER__PORT -> server.port.
	if err := k.Load(env.Provider("PLAYGROUND_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "PLAYGROUND_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Providers.OpenAI.APIKey = substituteEnvVars(cfg.Providers.OpenAI.APIKey)
	cfg.Providers.AzureOpenAI.APIKey = substituteEnvVars(cfg.Providers.AzureOpenAI.APIKey)
	cfg.Providers.Anthropic.APIKey = substituteEnvVars(cfg.Providers.Anthropic.APIKey)

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"server.port":                    8080,
		"server.request_timeout":         "30s",
		"playground.default_provider":    "openai",
		"playground.default_model":       "gpt-4o",
		"storage.driver":                 "memory",
		"storage.retention.sweep_interval": "1h",
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
