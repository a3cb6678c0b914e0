// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes diagram generation over MCP using the
// mark3labs/mcp-go library, which owns the protocol, transports and request
// dispatch. Two tools are registered: generate_diagram, which runs a
// diagrams script through the sandbox runner and returns the image, and
// get_diagram_example, which returns a starter script.
//
// Usage:
//
//	server, err := mcpserver.New(cfg, logger, runner)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or server.ServeHTTP()
package mcpserver
