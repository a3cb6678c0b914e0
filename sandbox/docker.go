// Package sandbox runs diagram scripts in isolated containers.
//
// The DockerRunner drives the docker CLI: the workspace is bind-mounted at
// the configured in-container path, which is also the working directory, and
// the script is run with the image's interpreter.
package sandbox

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// stopTimeout bounds the best-effort container stop after a timeout.
const stopTimeout = 15 * time.Second

// DockerRunner implements Runner using the docker CLI
type DockerRunner struct {
	runner
	binary string
}

// NewDockerRunner creates a new DockerRunner with default implementations and optional interfaces
func NewDockerRunner(logger *zap.Logger, config *Config, opts ...Option) *DockerRunner {
	return &DockerRunner{
		runner: newRunner(logger, config, "docker", opts...),
		binary: "docker",
	}
}

// Run writes the script to a fresh workspace and runs it in a container
func (d *DockerRunner) Run(ctx context.Context, req Request) Result {
	return d.run(ctx, req, d.invoke)
}

func (d *DockerRunner) invoke(ctx context.Context, hostDir, runID string) (stdout, stderr string, exitCode int, err error) {
	name := containerName(runID)
	args := containerRunArgs(d.binary, name, hostDir, d.config)

	stdout, stderr, exitCode, err = d.cmdRunner.RunCommand(ctx, "", args)

	// Killing the CLI client does not stop the container.
	if ctx.Err() != nil {
		stopContainer(d.cmdRunner, d.logger, d.binary, name)
	}

	return stdout, stderr, exitCode, err
}

// containerRunArgs builds the "run" invocation shared by the docker and
// podman CLIs.
func containerRunArgs(binary, name, hostDir string, config *Config) []string {
	return []string{
		binary, "run",
		"--rm",
		"--name", name,
		"-v", hostDir + ":" + config.Workdir,
		"-w", config.Workdir,
		config.Image,
		config.Interpreter, scriptPathIn(config.Workdir),
	}
}

func stopContainer(cmdRunner CommandRunner, logger *zap.Logger, binary, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	_, stderr, exitCode, err := cmdRunner.RunCommand(ctx, "", []string{binary, "stop", "-t", "2", name})
	if err != nil || exitCode != 0 {
		logger.Warn("failed to stop container after timeout",
			zap.String("container", name),
			zap.Int("exit_code", exitCode),
			zap.String("stderr", stderr),
			zap.Error(err))
	}
}
