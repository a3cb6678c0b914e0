package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"
)

// DockerAPI is the subset of the Docker Engine client used by DockerAPIRunner.
type DockerAPI interface {
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// DockerAPIRunner implements Runner against the Docker Engine API instead of
// the CLI. The container is configured exactly like the CLI backend.
type DockerAPIRunner struct {
	runner
	api DockerAPI
}

// NewDockerAPIRunner creates a DockerAPIRunner talking to api
func NewDockerAPIRunner(logger *zap.Logger, config *Config, api DockerAPI, opts ...Option) *DockerAPIRunner {
	return &DockerAPIRunner{
		runner: newRunner(logger, config, "docker-api", opts...),
		api:    api,
	}
}

// NewDockerAPIClient creates an Engine API client from the DOCKER_* environment
func NewDockerAPIClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return cli, nil
}

// Run writes the script to a fresh workspace and runs it in a container
func (d *DockerAPIRunner) Run(ctx context.Context, req Request) Result {
	return d.run(ctx, req, d.invoke)
}

func (d *DockerAPIRunner) invoke(ctx context.Context, hostDir, runID string) (stdout, stderr string, exitCode int, err error) {
	containerConfig := &container.Config{
		Image:        d.config.Image,
		Cmd:          []string{d.config.Interpreter, scriptPathIn(d.config.Workdir)},
		WorkingDir:   d.config.Workdir,
		AttachStdout: true,
		AttachStderr: true,
	}
	hostConfig := &container.HostConfig{
		Binds: []string{hostDir + ":" + d.config.Workdir},
	}
	name := containerName(runID)

	resp, err := d.api.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, name)
	if cerrdefs.IsNotFound(err) {
		if pullErr := d.pullImage(ctx); pullErr != nil {
			return "", "", -1, pullErr
		}
		resp, err = d.api.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, name)
	}
	if err != nil {
		return "", "", -1, fmt.Errorf("failed to create container: %w", err)
	}
	defer d.removeContainer(resp.ID)

	if err := d.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", "", -1, fmt.Errorf("failed to start container: %w", err)
	}

	statusCh, errCh := d.api.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return "", "", -1, fmt.Errorf("error waiting for container: %w", err)
	case status := <-statusCh:
		if status.Error != nil {
			return "", "", -1, fmt.Errorf("error waiting for container: %s", status.Error.Message)
		}
		exitCode = int(status.StatusCode)
	case <-ctx.Done():
		return "", "", -1, ctx.Err()
	}

	logs, err := d.api.ContainerLogs(ctx, resp.ID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", -1, fmt.Errorf("failed to read container logs: %w", err)
	}
	defer logs.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, logs); err != nil {
		return "", "", -1, fmt.Errorf("failed to demultiplex container logs: %w", err)
	}

	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}

func (d *DockerAPIRunner) pullImage(ctx context.Context) error {
	d.logger.Info("pulling sandbox image", zap.String("image", d.config.Image))

	pull, err := d.api.ImagePull(ctx, d.config.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer pull.Close()

	if _, err := io.Copy(io.Discard, pull); err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	return nil
}

// removeContainer force-removes the container, which also kills it when the
// run timed out. It uses its own context since ctx may already be done.
func (d *DockerAPIRunner) removeContainer(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := d.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		d.logger.Warn("failed to remove container", zap.String("container", id), zap.Error(err))
	}
}
