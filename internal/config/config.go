// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Agent     AgentConfig     `mapstructure:"agent" yaml:"agent"`
	Oracle    OracleConfig    `mapstructure:"oracle" yaml:"oracle"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge" yaml:"knowledge"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig describes how to reach the debuggable browser. The browser is
// expected to already be running with --remote-debugging-port; webclaw attaches
// to it rather than launching its own.
type BrowserConfig struct {
	Host           string        `mapstructure:"host" yaml:"host"`
	Port           int           `mapstructure:"port" yaml:"port"`
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
	TypeDelay      time.Duration `mapstructure:"type_delay" yaml:"type_delay"`
	PageTextLimit  int           `mapstructure:"page_text_limit" yaml:"page_text_limit"`
}

// Endpoint returns the HTTP introspection base, e.g. "http://localhost:9222".
func (b BrowserConfig) Endpoint() string {
	return fmt.Sprintf("http://%s:%d", b.Host, b.Port)
}

// AgentConfig tunes the autonomous loop.
type AgentConfig struct {
	MaxSteps      int           `mapstructure:"max_steps" yaml:"max_steps"`
	LoopThreshold int           `mapstructure:"loop_threshold" yaml:"loop_threshold"`
	SettleTime    time.Duration `mapstructure:"settle_time" yaml:"settle_time"`
}

// OracleProvider defines the supported decision oracle backends.
type OracleProvider string

const (
	ProviderAnthropic OracleProvider = "anthropic"
)

// OracleConfig configures the decision oracle client.
type OracleConfig struct {
	Provider    OracleProvider `mapstructure:"provider" yaml:"provider"`
	Model       string         `mapstructure:"model" yaml:"model"`
	APIKey      string         `mapstructure:"api_key" yaml:"-"`
	APITimeout  time.Duration  `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxTokens   int            `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float32        `mapstructure:"temperature" yaml:"temperature"`
}

// KnowledgeConfig locates the persistent knowledge document.
type KnowledgeConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "webclaw")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.host", "localhost")
	v.SetDefault("browser.port", 9222)
	v.SetDefault("browser.command_timeout", "30s")
	v.SetDefault("browser.type_delay", "30ms")
	v.SetDefault("browser.page_text_limit", 4000)

	// -- Agent --
	v.SetDefault("agent.max_steps", 15)
	v.SetDefault("agent.loop_threshold", 3)
	v.SetDefault("agent.settle_time", "1s")

	// -- Oracle --
	v.SetDefault("oracle.provider", "anthropic")
	v.SetDefault("oracle.model", "claude-sonnet-4-20250514")
	v.SetDefault("oracle.api_timeout", "90s")
	v.SetDefault("oracle.max_tokens", 1024)
	v.SetDefault("oracle.temperature", 0.2)

	// -- Knowledge --
	v.SetDefault("knowledge.path", "")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("oracle.api_key", "ANTHROPIC_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Unmarshal can miss a bound env var when no other oracle key is set.
	if cfg.Oracle.APIKey == "" {
		cfg.Oracle.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	if cfg.Knowledge.Path == "" {
		cfg.Knowledge.Path = DefaultKnowledgePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// DefaultKnowledgePath resolves ~/.webclaw/knowledge.json, falling back to a
// relative path when the home directory cannot be determined.
func DefaultKnowledgePath() string {
	home, err := homedir.Dir()
	if err != nil {
		return filepath.Join(".webclaw", "knowledge.json")
	}
	return filepath.Join(home, ".webclaw", "knowledge.json")
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Browser.Port <= 0 || c.Browser.Port > 65535 {
		return fmt.Errorf("browser.port must be a valid TCP port")
	}
	if c.Browser.CommandTimeout <= 0 {
		return fmt.Errorf("browser.command_timeout must be a positive duration")
	}
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be greater than 0")
	}
	if c.Agent.LoopThreshold < 2 {
		return fmt.Errorf("agent.loop_threshold must be at least 2")
	}
	if c.Agent.SettleTime < 0 {
		return fmt.Errorf("agent.settle_time must not be negative")
	}
	if err := c.Oracle.Validate(); err != nil {
		return fmt.Errorf("oracle configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the OracleConfig settings.
func (o *OracleConfig) Validate() error {
	if o.Provider == "" {
		return fmt.Errorf("oracle.provider is required")
	}
	if o.Model == "" {
		return fmt.Errorf("oracle.model is required")
	}
	if o.MaxTokens <= 0 {
		return fmt.Errorf("oracle.max_tokens must be greater than 0")
	}
	return nil
}
