package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:             8501,
			ReadHeaderTimeoutSec: 10,
		},
		MCP: MCPConfig{
			Transport: "stdio",
			HTTPPort:  8080,
		},
		Sandbox: SandboxConfig{
			Backend:     "docker",
			Image:       "mcp/aws-diagram:latest",
			Workdir:     "/workspace",
			Interpreter: "python",
			TimeoutSec:  120,
		},
		Logging: LoggingConfig{
			Mode:  "production",
			Level: "info",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		require.NoError(t, validConfig().validate())
	})

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"InvalidServerPort", func(c *Config) { c.Server.HTTPPort = 0 }, "invalid server.http_port"},
		{"InvalidReadHeaderTimeout", func(c *Config) { c.Server.ReadHeaderTimeoutSec = -1 }, "server.read_header_timeout_sec must be positive"},
		{"NegativeRateLimit", func(c *Config) { c.Server.RateLimitPerMin = -1 }, "server.rate_limit_per_min must not be negative"},
		{"RateLimitWithoutBurst", func(c *Config) { c.Server.RateLimitPerMin = 10; c.Server.RateLimitBurst = 0 }, "server.rate_limit_burst must be positive"},
		{"InvalidMCPTransport", func(c *Config) { c.MCP.Transport = "grpc" }, "invalid mcp.transport"},
		{"InvalidMCPPortForHTTP", func(c *Config) { c.MCP.Transport = "http"; c.MCP.HTTPPort = 70000 }, "invalid mcp.http_port"},
		{"InvalidSandboxTimeout", func(c *Config) { c.Sandbox.TimeoutSec = 0 }, "sandbox.timeout_sec must be positive"},
		{"EmptyImage", func(c *Config) { c.Sandbox.Image = "" }, "sandbox.image must not be empty"},
		{"EmptyInterpreter", func(c *Config) { c.Sandbox.Interpreter = "" }, "sandbox.interpreter must not be empty"},
		{"RelativeWorkdir", func(c *Config) { c.Sandbox.Workdir = "workspace" }, "sandbox.workdir must be an absolute path"},
		{"UnknownBackend", func(c *Config) { c.Sandbox.Backend = "kubernetes" }, "unsupported sandbox.backend"},
		{"LocalBackendNotEnabled", func(c *Config) { c.Sandbox.Backend = "local" }, "unsupported sandbox.backend"},
		{"InvalidLoggingMode", func(c *Config) { c.Logging.Mode = "verbose" }, "invalid logging.mode"},
		{"InvalidLogLevel", func(c *Config) { c.Logging.Level = "trace" }, "invalid logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("ValidBackendWhenLocalEnabled", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.Backend = "local"
		cfg.Sandbox.EnableLocalBackend = true
		require.NoError(t, cfg.validate())
	})

	t.Run("DockerAPIBackend", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.Backend = "docker-api"
		require.NoError(t, cfg.validate())
	})
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 8501, cfg.Server.HTTPPort)
	assert.Equal(t, 0, cfg.Server.RateLimitPerMin)
	assert.Equal(t, 5, cfg.Server.RateLimitBurst)
	assert.Equal(t, "stdio", cfg.MCP.Transport)
	assert.Equal(t, "docker", cfg.Sandbox.Backend)
	assert.Equal(t, "mcp/aws-diagram:latest", cfg.Sandbox.Image)
	assert.Equal(t, "/workspace", cfg.Sandbox.Workdir)
	assert.Equal(t, "python", cfg.Sandbox.Interpreter)
	assert.Equal(t, 120*time.Second, cfg.GetTimeout())
	assert.Equal(t, 10*time.Second, cfg.GetReadHeaderTimeout())
	assert.Equal(t, "production", cfg.Logging.Mode)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")

	doc := map[string]any{
		"sandbox": map[string]any{
			"backend":     "podman",
			"image":       "registry.local/diagrams:1.2",
			"timeout_sec": 30,
		},
		"logging": map[string]any{
			"mode":  "development",
			"level": "debug",
		},
	}
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, data, 0o600))

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, "podman", cfg.Sandbox.Backend)
	assert.Equal(t, "registry.local/diagrams:1.2", cfg.Sandbox.Image)
	assert.Equal(t, 30*time.Second, cfg.GetTimeout())
	assert.Equal(t, "development", cfg.Logging.Mode)
	// untouched keys keep their defaults
	assert.Equal(t, "/workspace", cfg.Sandbox.Workdir)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DIAGRAMBOX_SANDBOX_IMAGE", "example/diagrams:dev")
	t.Setenv("DIAGRAMBOX_MCP_TRANSPORT", "http")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "example/diagrams:dev", cfg.Sandbox.Image)
	assert.Equal(t, "http", cfg.MCP.Transport)
}

func TestLoadErrors(t *testing.T) {
	t.Run("MissingExplicitFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})

	t.Run("InvalidValues", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(file, []byte("sandbox:\n  timeout_sec: -5\n"), 0o600))

		_, err := Load(file)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config validation error")
	})
}
