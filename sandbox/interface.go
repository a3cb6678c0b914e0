package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Output formats accepted by the runner.
const (
	FormatPNG = "png"
	FormatSVG = "svg"
)

// Workspace conventions shared with the sandboxed script.
const (
	ScriptFileName     = "diagram_code.py"
	WorkspacePrefix    = "mcp_diagrams_"
	FallbackOutputName = "diagram"
	DefaultOutputName  = "diagram"
)

// File permission constants
const (
	FilePermission = 0o644
)

// waitDelay bounds how long a killed process may keep its output pipes open.
const waitDelay = 5 * time.Second

// Request is one diagram generation request.
type Request struct {
	Script     string
	OutputName string
	Format     string
}

// Result is the outcome of one sandbox invocation. An empty OutputPath means
// no image was found. Error carries write, launch, and timeout failures;
// a non-zero exit status alone leaves it empty.
type Result struct {
	OK         bool
	ExitCode   int
	Stdout     string
	Stderr     string
	OutputPath string
	Workdir    string
	Error      string
	Duration   time.Duration
}

// HasOutput reports whether an image was produced.
func (r Result) HasOutput() bool {
	return r.OutputPath != ""
}

// Runner runs a diagram script in a sandbox. Run never returns an error:
// every failure is reported through the Result.
type Runner interface {
	Run(ctx context.Context, req Request) Result
}

// ValidFormat reports whether format is a supported output format.
func ValidFormat(format string) bool {
	return format == FormatPNG || format == FormatSVG
}

// MIMEType returns the media type for an output format.
func MIMEType(format string) string {
	switch format {
	case FormatSVG:
		return "image/svg+xml"
	default:
		return "image/png"
	}
}

// CommandRunner defines an interface for executing system commands
type CommandRunner interface {
	RunCommand(ctx context.Context, dir string, args []string) (stdout, stderr string, exitCode int, err error)
}

// RealCommandRunner implements CommandRunner using actual exec commands
type RealCommandRunner struct{}

// RunCommand executes the given command with arguments in dir. A non-zero
// exit is reported through exitCode; err is set only when the process could
// not be run at all.
func (RealCommandRunner) RunCommand(ctx context.Context, dir string, args []string) (stdout, stderr string, exitCode int, err error) {
	if len(args) < 1 {
		return "", "", 0, fmt.Errorf("no command provided")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // arguments are built by the runner
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err = cmd.Run()

	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return stdoutBuf.String(), stderrBuf.String(), exitError.ExitCode(), nil
		}
		return stdoutBuf.String(), stderrBuf.String(), -1, err
	}

	return stdoutBuf.String(), stderrBuf.String(), 0, nil
}

// FileSystem defines an interface for file system operations
type FileSystem interface {
	MkdirTemp(dir, pattern string) (string, error)
	WriteFile(filename string, data []byte, perm os.FileMode) error
	ReadFile(filename string) ([]byte, error)
	FileExists(path string) (bool, error)
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// FileExists reports whether path exists and is a regular file.
func (RealFileSystem) FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}
