package sandbox

import (
	"context"

	"go.uber.org/zap"
)

// PodmanRunner implements Runner using the podman CLI. The invocation has the
// same shape as the docker one.
type PodmanRunner struct {
	runner
	binary string
}

// NewPodmanRunner creates a new PodmanRunner with default implementations and optional interfaces
func NewPodmanRunner(logger *zap.Logger, config *Config, opts ...Option) *PodmanRunner {
	return &PodmanRunner{
		runner: newRunner(logger, config, "podman", opts...),
		binary: "podman",
	}
}

// Run writes the script to a fresh workspace and runs it in a podman container
func (p *PodmanRunner) Run(ctx context.Context, req Request) Result {
	return p.run(ctx, req, p.invoke)
}

func (p *PodmanRunner) invoke(ctx context.Context, hostDir, runID string) (stdout, stderr string, exitCode int, err error) {
	name := containerName(runID)

	stdout, stderr, exitCode, err = p.cmdRunner.RunCommand(ctx, "", containerRunArgs(p.binary, name, hostDir, p.config))
	if ctx.Err() != nil {
		stopContainer(p.cmdRunner, p.logger, p.binary, name)
	}

	return stdout, stderr, exitCode, err
}
