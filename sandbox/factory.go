package sandbox

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/isdmx/diagrambox/config"
)

// NewRunnerConfig extracts the runner settings from the application config
func NewRunnerConfig(cfg *config.Config) *Config {
	return &Config{
		Image:       cfg.Sandbox.Image,
		Workdir:     cfg.Sandbox.Workdir,
		Interpreter: cfg.Sandbox.Interpreter,
		Timeout:     cfg.GetTimeout(),
		TempDir:     cfg.Sandbox.TempDir,
	}
}

// NewRunner creates the runner for the configured backend
func NewRunner(logger *zap.Logger, cfg *config.Config) (Runner, error) {
	runnerConfig := NewRunnerConfig(cfg)

	switch cfg.Sandbox.Backend {
	case "docker":
		return NewDockerRunner(logger, runnerConfig), nil
	case "podman":
		return NewPodmanRunner(logger, runnerConfig), nil
	case "docker-api":
		cli, err := NewDockerAPIClient()
		if err != nil {
			return nil, err
		}
		return NewDockerAPIRunner(logger, runnerConfig, cli), nil
	case "local":
		if !cfg.Sandbox.EnableLocalBackend {
			return nil, fmt.Errorf("local backend is disabled, set sandbox.enable_local_backend to use it")
		}
		return NewLocalRunner(logger, runnerConfig), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Sandbox.Backend)
	}
}
