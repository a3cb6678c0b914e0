package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/diagrambox/config"
	"github.com/isdmx/diagrambox/sandbox"
)

// MockRunner implements sandbox.Runner for testing
type MockRunner struct {
	result   sandbox.Result
	requests []sandbox.Request
}

func (m *MockRunner) Run(_ context.Context, req sandbox.Request) sandbox.Result {
	m.requests = append(m.requests, req)
	return m.result
}

func testConfig() *config.Config {
	return &config.Config{
		MCP: config.MCPConfig{
			Transport: "stdio",
			HTTPPort:  8080,
		},
		Sandbox: config.SandboxConfig{
			Backend:     "docker",
			Image:       "mcp/aws-diagram:latest",
			Workdir:     "/workspace",
			Interpreter: "python",
			TimeoutSec:  120,
		},
		Logging: config.LoggingConfig{
			Mode:  "production",
			Level: "info",
		},
	}
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func textOf(t *testing.T, content mcp.Content) string {
	t.Helper()
	text, ok := content.(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", content)
	return text.Text
}

func TestNewMCPServer(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := testConfig()
	runner := &MockRunner{}

	server, err := New(cfg, logger, runner)
	require.NoError(t, err)
	require.NotNil(t, server)
	assert.Equal(t, cfg, server.config)
	assert.Equal(t, logger, server.logger)
	assert.Equal(t, runner, server.runner)
	assert.NotNil(t, server.GetMCPServer())
}

func TestToolsAreListed(t *testing.T) {
	server, err := New(testConfig(), zaptest.NewLogger(t), &MockRunner{})
	require.NoError(t, err)

	resp := server.GetMCPServer().HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), ToolGenerateDiagram)
	assert.Contains(t, string(raw), ToolGetDiagramExample)
}

func TestHandleGenerateDiagram(t *testing.T) {
	t.Run("PNGReturnedAsImage", func(t *testing.T) {
		png := []byte("\x89PNG\r\n\x1a\nfake")
		path := filepath.Join(t.TempDir(), "arch.png")
		require.NoError(t, os.WriteFile(path, png, 0o600))

		runner := &MockRunner{result: sandbox.Result{OK: true, Stdout: "rendered", OutputPath: path}}
		server, err := New(testConfig(), zaptest.NewLogger(t), runner)
		require.NoError(t, err)

		result, err := server.handleGenerateDiagram(context.Background(), callRequest(ToolGenerateDiagram, map[string]any{
			"code":     "print('x')",
			"filename": "arch",
		}))
		require.NoError(t, err)
		require.False(t, result.IsError)
		require.Len(t, result.Content, 2)

		summary := textOf(t, result.Content[0])
		assert.Contains(t, summary, "exit_ok: true")
		assert.Contains(t, summary, "output_path: "+path)
		assert.Contains(t, summary, "stdout:\nrendered")

		image, ok := result.Content[1].(mcp.ImageContent)
		require.True(t, ok)
		assert.Equal(t, "image/png", image.MIMEType)
		assert.Equal(t, base64.StdEncoding.EncodeToString(png), image.Data)

		require.Len(t, runner.requests, 1)
		assert.Equal(t, sandbox.Request{Script: "print('x')", OutputName: "arch", Format: "png"}, runner.requests[0])
	})

	t.Run("SVGReturnedAsMarkup", func(t *testing.T) {
		svg := "<svg><text>db</text></svg>"
		path := filepath.Join(t.TempDir(), "diagram.svg")
		require.NoError(t, os.WriteFile(path, []byte(svg), 0o600))

		server, err := New(testConfig(), zaptest.NewLogger(t), &MockRunner{result: sandbox.Result{OK: true, OutputPath: path}})
		require.NoError(t, err)

		result, err := server.handleGenerateDiagram(context.Background(), callRequest(ToolGenerateDiagram, map[string]any{
			"code":   "x",
			"format": "svg",
		}))
		require.NoError(t, err)
		require.Len(t, result.Content, 2)
		assert.Equal(t, svg, textOf(t, result.Content[1]))
	})

	t.Run("DefaultsApplied", func(t *testing.T) {
		runner := &MockRunner{}
		server, err := New(testConfig(), zaptest.NewLogger(t), runner)
		require.NoError(t, err)

		_, err = server.handleGenerateDiagram(context.Background(), callRequest(ToolGenerateDiagram, map[string]any{"code": "x"}))
		require.NoError(t, err)

		require.Len(t, runner.requests, 1)
		assert.Equal(t, "diagram", runner.requests[0].OutputName)
		assert.Equal(t, "png", runner.requests[0].Format)
	})

	t.Run("NoImageIsToolError", func(t *testing.T) {
		server, err := New(testConfig(), zaptest.NewLogger(t), &MockRunner{result: sandbox.Result{
			Stderr: "Traceback",
			Error:  "execution timed out after 2m0s",
		}})
		require.NoError(t, err)

		result, err := server.handleGenerateDiagram(context.Background(), callRequest(ToolGenerateDiagram, map[string]any{"code": "x"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)

		text := textOf(t, result.Content[0])
		assert.Contains(t, text, "exit_ok: false")
		assert.Contains(t, text, "error: execution timed out after 2m0s")
		assert.Contains(t, text, "stderr:\nTraceback")
		assert.Contains(t, text, "No output image found.")
	})

	t.Run("UnreadableImageIsToolError", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "gone.png")
		server, err := New(testConfig(), zaptest.NewLogger(t), &MockRunner{result: sandbox.Result{OK: true, OutputPath: missing}})
		require.NoError(t, err)

		result, err := server.handleGenerateDiagram(context.Background(), callRequest(ToolGenerateDiagram, map[string]any{"code": "x"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, textOf(t, result.Content[0]), "Failed to read")
	})

	t.Run("MissingCode", func(t *testing.T) {
		runner := &MockRunner{}
		server, err := New(testConfig(), zaptest.NewLogger(t), runner)
		require.NoError(t, err)

		_, err = server.handleGenerateDiagram(context.Background(), callRequest(ToolGenerateDiagram, map[string]any{}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "code parameter is required")
		assert.Empty(t, runner.requests)
	})

	t.Run("InvalidFormat", func(t *testing.T) {
		runner := &MockRunner{}
		server, err := New(testConfig(), zaptest.NewLogger(t), runner)
		require.NoError(t, err)

		_, err = server.handleGenerateDiagram(context.Background(), callRequest(ToolGenerateDiagram, map[string]any{
			"code":   "x",
			"format": "jpg",
		}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid format")
		assert.Empty(t, runner.requests)
	})
}

func TestHandleGetDiagramExample(t *testing.T) {
	server, err := New(testConfig(), zaptest.NewLogger(t), &MockRunner{})
	require.NoError(t, err)

	result, err := server.handleGetDiagramExample(context.Background(), callRequest(ToolGetDiagramExample, nil))
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.Equal(t, sandbox.ExampleScript, textOf(t, result.Content[0]))
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "exit_ok: true", summarize(sandbox.Result{OK: true}))
	assert.Equal(t, "exit_ok: false\nstdout:\n\n\nstderr:\nboom", summarize(sandbox.Result{Stdout: "\n", Stderr: "boom"}))
}
