package sandbox

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds configuration shared by all runners
type Config struct {
	Image       string
	Workdir     string
	Interpreter string
	Timeout     time.Duration
	TempDir     string
}

// invokeFunc starts the sandboxed script for one workspace and waits for it.
type invokeFunc func(ctx context.Context, hostDir, runID string) (stdout, stderr string, exitCode int, err error)

// runner carries the workspace and result handling common to every backend.
type runner struct {
	logger    *zap.Logger
	config    *Config
	backend   string
	cmdRunner CommandRunner
	fs        FileSystem
	newID     func() string
}

// Option configures a runner
type Option func(*runner)

// WithCommandRunner sets the CommandRunner used to start processes
func WithCommandRunner(cmdRunner CommandRunner) Option {
	return func(r *runner) {
		r.cmdRunner = cmdRunner
	}
}

// WithFileSystem sets the FileSystem used for workspaces
func WithFileSystem(fs FileSystem) Option {
	return func(r *runner) {
		r.fs = fs
	}
}

// WithIDGenerator sets the generator for run ids and container names
func WithIDGenerator(newID func() string) Option {
	return func(r *runner) {
		r.newID = newID
	}
}

func newRunner(logger *zap.Logger, config *Config, backend string, opts ...Option) runner {
	r := runner{
		logger:    logger,
		config:    config,
		backend:   backend,
		cmdRunner: &RealCommandRunner{},
		fs:        &RealFileSystem{},
		newID:     uuid.NewString,
	}

	for _, opt := range opts {
		opt(&r)
	}

	return r
}

// run executes one request through invoke. It recovers from every failure
// and reports it in the returned Result.
func (r *runner) run(ctx context.Context, req Request, invoke invokeFunc) (result Result) {
	start := time.Now()
	runID := r.newID()
	log := r.logger.With(
		zap.String("run_id", runID),
		zap.String("backend", r.backend),
		zap.String("format", req.Format),
	)

	defer func() {
		if p := recover(); p != nil {
			log.Error("sandbox run panicked", zap.Any("panic", p))
			result = Result{Workdir: result.Workdir, Error: fmt.Sprintf("sandbox run panicked: %v", p)}
		}
		result.Duration = time.Since(start)

		log.Info("sandbox run finished",
			zap.Bool("ok", result.OK),
			zap.Int("exit_code", result.ExitCode),
			zap.String("workdir", result.Workdir),
			zap.String("output_path", result.OutputPath),
			zap.String("error", result.Error),
			zap.Int("stdout_len", len(result.Stdout)),
			zap.Int("stderr_len", len(result.Stderr)),
			zap.Duration("duration", result.Duration))
	}()

	if !ValidFormat(req.Format) {
		return Result{Error: fmt.Sprintf("unsupported format: %q, must be %q or %q", req.Format, FormatPNG, FormatSVG)}
	}

	workdir, err := r.prepareWorkspace(req.Script)
	if err != nil {
		return Result{Workdir: workdir, Error: err.Error()}
	}
	result.Workdir = workdir

	log.Debug("sandbox run starting", zap.String("workdir", workdir))

	runCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	stdout, stderr, exitCode, err := invoke(runCtx, workdir, runID)

	if ctxErr := runCtx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return Result{Workdir: workdir, ExitCode: -1, Error: fmt.Sprintf("execution timed out after %s", r.config.Timeout)}
		}
		return Result{Workdir: workdir, ExitCode: -1, Error: fmt.Sprintf("execution canceled: %v", ctxErr)}
	}

	if err != nil {
		return Result{Workdir: workdir, ExitCode: -1, Error: fmt.Sprintf("failed to run sandbox: %v", err)}
	}

	return Result{
		OK:         exitCode == 0,
		ExitCode:   exitCode,
		Stdout:     stdout,
		Stderr:     stderr,
		OutputPath: Locate(r.fs, workdir, req.OutputName, req.Format),
		Workdir:    workdir,
	}
}

// prepareWorkspace creates a fresh workspace and writes the script into it.
// The workspace is intentionally left on disk after the run so callers can
// read the produced image.
func (r *runner) prepareWorkspace(script string) (string, error) {
	dir, err := r.fs.MkdirTemp(r.config.TempDir, WorkspacePrefix+"*")
	if err != nil {
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}

	// Docker bind mounts need an absolute host path.
	if abs, absErr := filepath.Abs(dir); absErr == nil {
		dir = abs
	}

	scriptPath := filepath.Join(dir, ScriptFileName)
	if err := r.fs.WriteFile(scriptPath, []byte(script), FilePermission); err != nil {
		return dir, fmt.Errorf("failed to write script: %w", err)
	}

	return dir, nil
}

// Locate returns the produced image in dir: "<name>.<format>" when present,
// otherwise "diagram.<format>", otherwise "".
func Locate(fs FileSystem, dir, name, format string) string {
	candidates := []string{
		filepath.Join(dir, OutputFileName(name, format)),
		filepath.Join(dir, FallbackOutputName+"."+format),
	}

	for _, candidate := range candidates {
		if ok, err := fs.FileExists(candidate); err == nil && ok {
			return candidate
		}
	}

	return ""
}

// OutputFileName returns the expected image file name for a requested base
// name. Directory components are dropped so the name stays in the workspace.
func OutputFileName(name, format string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = DefaultOutputName
	}
	return name + "." + format
}

// containerName derives the sandbox container name for a run.
func containerName(runID string) string {
	return "diagrambox-" + runID
}

// scriptPathIn returns the script path inside the container.
func scriptPathIn(workdir string) string {
	return strings.TrimSuffix(workdir, "/") + "/" + ScriptFileName
}
