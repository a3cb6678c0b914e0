package config

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides,
// e.g. DIAGRAMBOX_SANDBOX_IMAGE.
const EnvPrefix = "DIAGRAMBOX"

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	MCP     MCPConfig     `mapstructure:"mcp"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the web form server configuration
type ServerConfig struct {
	HTTPPort             int `mapstructure:"http_port"`
	ReadHeaderTimeoutSec int `mapstructure:"read_header_timeout_sec"`
	// RateLimitPerMin bounds generate requests per client IP; 0 disables it.
	RateLimitPerMin int `mapstructure:"rate_limit_per_min"`
	RateLimitBurst  int `mapstructure:"rate_limit_burst"`
}

// MCPConfig holds the protocol server configuration
type MCPConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// SandboxConfig holds sandbox configuration
type SandboxConfig struct {
	Backend            string `mapstructure:"backend"`
	Image              string `mapstructure:"image"`
	Workdir            string `mapstructure:"workdir"`
	Interpreter        string `mapstructure:"interpreter"`
	TimeoutSec         int    `mapstructure:"timeout_sec"`
	TempDir            string `mapstructure:"temp_dir"`
	EnableLocalBackend bool   `mapstructure:"enable_local_backend"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration from ./config.yaml
// or ./config/config.yaml, falling back to defaults when neither exists.
func New() (*Config, error) {
	return Load("")
}

// Load reads configuration from the given file, or searches the default
// locations when file is empty.
func Load(file string) (*Config, error) {
	// A missing .env is not an error.
	_ = godotenv.Load()

	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", 8501)
	v.SetDefault("server.read_header_timeout_sec", 10)
	v.SetDefault("server.rate_limit_per_min", 0)
	v.SetDefault("server.rate_limit_burst", 5)

	v.SetDefault("mcp.transport", "stdio")
	v.SetDefault("mcp.http_port", 8080)

	v.SetDefault("sandbox.backend", "docker")
	v.SetDefault("sandbox.image", "mcp/aws-diagram:latest")
	v.SetDefault("sandbox.workdir", "/workspace")
	v.SetDefault("sandbox.interpreter", "python")
	v.SetDefault("sandbox.timeout_sec", 120)
	v.SetDefault("sandbox.temp_dir", "")
	v.SetDefault("sandbox.enable_local_backend", false)

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid server.http_port: %d", c.Server.HTTPPort)
	}

	if c.Server.ReadHeaderTimeoutSec <= 0 {
		return fmt.Errorf("server.read_header_timeout_sec must be positive, got: %d", c.Server.ReadHeaderTimeoutSec)
	}

	if c.Server.RateLimitPerMin < 0 {
		return fmt.Errorf("server.rate_limit_per_min must not be negative, got: %d", c.Server.RateLimitPerMin)
	}

	if c.Server.RateLimitPerMin > 0 && c.Server.RateLimitBurst <= 0 {
		return fmt.Errorf("server.rate_limit_burst must be positive when rate limiting is enabled, got: %d", c.Server.RateLimitBurst)
	}

	if c.MCP.Transport != "stdio" && c.MCP.Transport != "http" {
		return fmt.Errorf("invalid mcp.transport: %s, must be 'stdio' or 'http'", c.MCP.Transport)
	}

	if c.MCP.Transport == "http" && (c.MCP.HTTPPort <= 0 || c.MCP.HTTPPort > 65535) {
		return fmt.Errorf("invalid mcp.http_port: %d", c.MCP.HTTPPort)
	}

	if c.Sandbox.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", c.Sandbox.TimeoutSec)
	}

	if c.Sandbox.Image == "" {
		return fmt.Errorf("sandbox.image must not be empty")
	}

	if c.Sandbox.Interpreter == "" {
		return fmt.Errorf("sandbox.interpreter must not be empty")
	}

	// The workdir lives inside a Linux container, so it is checked with
	// slash-separated rules regardless of the host OS.
	if !path.IsAbs(c.Sandbox.Workdir) {
		return fmt.Errorf("sandbox.workdir must be an absolute path, got: %q", c.Sandbox.Workdir)
	}

	supportedBackends := map[string]bool{
		"docker":     true,
		"podman":     true,
		"docker-api": true,
		"local":      c.Sandbox.EnableLocalBackend, // local only enabled if specifically allowed
	}

	if !supportedBackends[c.Sandbox.Backend] {
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	switch c.Logging.Mode {
	case "production", "development":
	default:
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	return nil
}

// GetTimeout returns the sandbox execution timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}

// GetReadHeaderTimeout returns the web server header read timeout
func (c *Config) GetReadHeaderTimeout() time.Duration {
	return time.Duration(c.Server.ReadHeaderTimeoutSec) * time.Second
}
