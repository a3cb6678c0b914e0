// Package main is the entry point for the diagram MCP server.
//
// diagram-mcp takes no arguments. It loads the shared configuration and
// hands control to the mark3labs/mcp-go server (stdio or streamable HTTP,
// per mcp.transport), which exposes the generate_diagram and
// get_diagram_example tools. Diagrams are rendered by the same sandbox
// runner the web form uses.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main
