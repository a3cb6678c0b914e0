package sandbox

import (
	"context"

	"go.uber.org/zap"
)

// LocalRunner implements Runner by running the script on the host with the
// configured interpreter (for development only, there is no isolation).
type LocalRunner struct {
	runner
}

// NewLocalRunner creates a new LocalRunner with default implementations and optional interfaces
func NewLocalRunner(logger *zap.Logger, config *Config, opts ...Option) *LocalRunner {
	return &LocalRunner{
		runner: newRunner(logger, config, "local", opts...),
	}
}

// Run writes the script to a fresh workspace and runs it in place
// (WARNING: This is not secure and should only be used for development)
func (l *LocalRunner) Run(ctx context.Context, req Request) Result {
	return l.run(ctx, req, l.invoke)
}

func (l *LocalRunner) invoke(ctx context.Context, hostDir, _ string) (stdout, stderr string, exitCode int, err error) {
	return l.cmdRunner.RunCommand(ctx, hostDir, []string{l.config.Interpreter, ScriptFileName})
}
