// Package config handles loading and validating gateway configuration.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Supported values for AI_PROVIDER.
const (
	ProviderAzure        = "azure"
	ProviderDigitalOcean = "digitalocean"
)

// envKeys maps the flat environment variable surface onto koanf key paths.
// Unknown environment variables are ignored.
var envKeys = map[string]string{
	"AI_PROVIDER":                     "provider",
	"AZURE_OPENAI_ENDPOINT":           "azure.endpoint",
	"AZURE_OPENAI_API_KEY":            "azure.api_key",
	"AZURE_OPENAI_MODEL":              "azure.model",
	"AZURE_OPENAI_API_VERSION":        "azure.api_version",
	"DIGITALOCEAN_INFERENCE_ENDPOINT": "digitalocean.endpoint",
	"DIGITALOCEAN_API_KEY":            "digitalocean.api_key",
	"DIGITALOCEAN_MODEL":              "digitalocean.model",
	"DEFAULT_SYSTEM_PROMPT":           "system_prompt",
	"API_HOST":                        "server.host",
	"API_PORT":                        "server.port",
	"CORS_ORIGINS":                    "server.cors_origins",
	"LOG_LEVEL":                       "log.level",
}

// Config is the top-level configuration for the gateway. It is built once at
// startup and read-only afterwards.
type Config struct {
	Provider     string             `koanf:"provider"`
	Azure        AzureConfig        `koanf:"azure"`
	DigitalOcean DigitalOceanConfig `koanf:"digitalocean"`
	SystemPrompt string             `koanf:"system_prompt"`
	Server       ServerConfig       `koanf:"server"`
	Log          LogConfig          `koanf:"log"`
}

// AzureConfig holds the settings for the Azure / OpenAI-compatible upstream.
type AzureConfig struct {
	Endpoint   string `koanf:"endpoint"`
	APIKey     string `koanf:"api_key"`
	Model      string `koanf:"model"`
	APIVersion string `koanf:"api_version"`
}

// DigitalOceanConfig holds the settings for the DigitalOcean inference upstream.
type DigitalOceanConfig struct {
	Endpoint string `koanf:"endpoint"`
	APIKey   string `koanf:"api_key"`
	Model    string `koanf:"model"`
}

// ServerConfig defines listener and CORS configuration. Origins is the parsed
// form of the cors_origins value, in declaration order.
type ServerConfig struct {
	Host        string   `koanf:"host"`
	Port        int      `koanf:"port"`
	CORSOrigins string   `koanf:"cors_origins"`
	Origins     []string `koanf:"-"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level string `koanf:"level"`
}

// Load reads configuration from an optional YAML file, layers environment
// variables on top, applies defaults, and validates the result. A .env file in
// the working directory is loaded into the process environment first (ignored
// if absent). path may be empty, in which case only the environment is read.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %q: %w", path, err)
		}
	}

	// Environment variables override file values. The callback translates the
	// flat variable names into koanf key paths; returning "" drops variables
	// the gateway does not know about.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.Server.Origins = parseOrigins(cfg.Server.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderAzure
	}
	if c.Azure.Model == "" {
		c.Azure.Model = "gpt-4"
	}
	if c.Azure.APIVersion == "" {
		c.Azure.APIVersion = "2024-02-15-preview"
	}
	if c.DigitalOcean.Endpoint == "" {
		c.DigitalOcean.Endpoint = "https://inference.do-ai.run/v1"
	}
	if c.DigitalOcean.Model == "" {
		c.DigitalOcean.Model = "openai-gpt-4o"
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = "You are a helpful AI assistant."
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.CORSOrigins == "" {
		c.Server.CORSOrigins = "*"
	}
	if c.Log.Level == "" {
		c.Log.Level = "INFO"
	}
}

// Validate performs the fatal startup checks. Missing credentials are not
// fatal here: the health endpoint must keep serving without them, and the
// upstream call fails on its own when a key is actually needed.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderAzure, ProviderDigitalOcean:
	default:
		return fmt.Errorf("invalid AI_PROVIDER %q: must be %q or %q", c.Provider, ProviderAzure, ProviderDigitalOcean)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be a valid TCP port, got %d", c.Server.Port)
	}

	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ModelName returns the configured model for the active provider. It is also
// the fallback reported to callers when the upstream omits a model field.
func (c Config) ModelName() string {
	if c.Provider == ProviderDigitalOcean {
		return c.DigitalOcean.Model
	}
	return c.Azure.Model
}

// ParseLogLevel converts a LOG_LEVEL value into a slog level. WARNING is
// accepted alongside WARN for compatibility with the original deployment.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", level)
	}
}

// parseOrigins splits a CORS_ORIGINS value into an ordered origin list. The
// wildcard stays a single entry; comma-separated lists are trimmed but not
// deduplicated, preserving declaration order.
func parseOrigins(value string) []string {
	if value == "*" {
		return []string{"*"}
	}

	parts := strings.Split(value, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		origins = append(origins, strings.TrimSpace(part))
	}
	return origins
}
