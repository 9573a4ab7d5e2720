// ABOUTME: Configuration loading and parsing for cpx-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete cpx-gateway configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Static   StaticConfig   `yaml:"static"`
	Database DatabaseConfig `yaml:"database"`
	Seed     SeedConfig     `yaml:"seed"`
	Agents   AgentsConfig   `yaml:"agents"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// StaticConfig holds the static file roots and available locales.
// AgentRoot is consulted first; ContribRoot is the fallback tree.
type StaticConfig struct {
	AgentRoot   string   `yaml:"agent_root"`
	ContribRoot string   `yaml:"contrib_root"`
	Locales     []string `yaml:"locales"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SeedConfig points at the optional TOML fixture file loaded on first run.
type SeedConfig struct {
	Path string `yaml:"path"`
}

// AgentsConfig holds agent connection timing configuration.
type AgentsConfig struct {
	APITimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	APITimeoutRaw string `yaml:"api_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultAPITimeout is used when agents.api_timeout is not configured.
const DefaultAPITimeout = 10 * time.Second

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Static.AgentRoot == "" {
		return fmt.Errorf("static.agent_root is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	if cfg.Agents.APITimeoutRaw == "" {
		cfg.Agents.APITimeout = DefaultAPITimeout
		return nil
	}

	d, err := time.ParseDuration(cfg.Agents.APITimeoutRaw)
	if err != nil {
		return fmt.Errorf("parsing api_timeout %q: %w", cfg.Agents.APITimeoutRaw, err)
	}
	cfg.Agents.APITimeout = d
	return nil
}
