// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes diagram generation as MCP tools. The
// protocol itself is handled entirely by mark3labs/mcp-go; this package only
// registers the tools and hands control to the library's entry points.
package mcpserver

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/diagrambox/config"
	"github.com/isdmx/diagrambox/sandbox"
)

// Tool names
const (
	ToolGenerateDiagram   = "generate_diagram"
	ToolGetDiagramExample = "get_diagram_example"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	runner    sandbox.Runner
	fs        sandbox.FileSystem
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, runner sandbox.Runner) (*MCPServer, error) {
	s := &MCPServer{
		config: cfg,
		logger: logger,
		runner: runner,
		fs:     &sandbox.RealFileSystem{},
	}

	logger.Info("configuration loaded",
		zap.String("mcp.transport", s.config.MCP.Transport),
		zap.Int("mcp.http_port", s.config.MCP.HTTPPort),
		zap.String("sandbox.backend", s.config.Sandbox.Backend),
		zap.String("sandbox.image", s.config.Sandbox.Image),
		zap.Int("sandbox.timeout_sec", s.config.Sandbox.TimeoutSec),
	)

	s.mcpServer = server.NewMCPServer("diagrambox", "1.0.0", server.WithToolCapabilities(false))

	s.registerGenerateDiagramTool()
	s.registerGetDiagramExampleTool()

	return s, nil
}

// registerGenerateDiagramTool registers the generate_diagram tool
func (s *MCPServer) registerGenerateDiagramTool() {
	tool := mcp.Tool{
		Name: ToolGenerateDiagram,
		Description: "Render a diagram from Python diagrams DSL code. The code runs in a sandboxed container " +
			"and must write <filename>.<format> (or diagram.<format>) to its working directory.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Python code using the diagrams package",
				},
				"filename": map[string]any{
					"type":        "string",
					"description": "Output file name without extension",
					"default":     sandbox.DefaultOutputName,
				},
				"format": map[string]any{
					"type":        "string",
					"description": "Output image format",
					"enum":        []string{sandbox.FormatPNG, sandbox.FormatSVG},
					"default":     sandbox.FormatPNG,
				},
			},
			Required: []string{"code"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleGenerateDiagram)
}

// registerGetDiagramExampleTool registers the get_diagram_example tool
func (s *MCPServer) registerGetDiagramExampleTool() {
	tool := mcp.Tool{
		Name:        ToolGetDiagramExample,
		Description: "Return a working example of diagrams DSL code",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}

	s.mcpServer.AddTool(tool, s.handleGetDiagramExample)
}

// handleGenerateDiagram handles the generate_diagram tool
func (s *MCPServer) handleGenerateDiagram(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	req := sandbox.Request{
		Script:     code,
		OutputName: request.GetString("filename", sandbox.DefaultOutputName),
		Format:     request.GetString("format", sandbox.FormatPNG),
	}

	if !sandbox.ValidFormat(req.Format) {
		return nil, fmt.Errorf("invalid format: %s, must be one of: png, svg", req.Format)
	}

	s.logger.Info("diagram generation requested",
		zap.String("filename", req.OutputName),
		zap.String("format", req.Format))

	result := s.runner.Run(ctx, req)

	summary := summarize(result)

	if !result.HasOutput() {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{
					Type: "text",
					Text: summary + "\nNo output image found.",
				},
			},
			IsError: true,
		}, nil
	}

	content, err := s.fs.ReadFile(result.OutputPath)
	if err != nil {
		s.logger.Error("failed to read generated image", zap.String("path", result.OutputPath), zap.Error(err))
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{
					Type: "text",
					Text: summary + fmt.Sprintf("\nFailed to read %s: %v", result.OutputPath, err),
				},
			},
			IsError: true,
		}, nil
	}

	var image mcp.Content
	switch req.Format {
	case sandbox.FormatSVG:
		image = mcp.TextContent{Type: "text", Text: string(content)}
	default:
		image = mcp.ImageContent{
			Type:     "image",
			Data:     base64.StdEncoding.EncodeToString(content),
			MIMEType: sandbox.MIMEType(req.Format),
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: summary},
			image,
		},
	}, nil
}

// handleGetDiagramExample handles the get_diagram_example tool
func (*MCPServer) handleGetDiagramExample(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: sandbox.ExampleScript},
		},
	}, nil
}

// summarize renders the run outcome as the text part of a tool result
func summarize(result sandbox.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "exit_ok: %t\n", result.OK)
	if result.OutputPath != "" {
		fmt.Fprintf(&b, "output_path: %s\n", result.OutputPath)
	}
	if result.Error != "" {
		fmt.Fprintf(&b, "error: %s\n", result.Error)
	}
	if result.Stdout != "" {
		fmt.Fprintf(&b, "stdout:\n%s\n", result.Stdout)
	}
	if result.Stderr != "" {
		fmt.Fprintf(&b, "stderr:\n%s\n", result.Stderr)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ServeStdio hands control to the mcp-go stdio server
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP hands control to the mcp-go streamable HTTP server
func (s *MCPServer) ServeHTTP() error {
	port := s.config.MCP.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
