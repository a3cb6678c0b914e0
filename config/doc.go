// Package config provides application configuration management.
//
// The config package loads and validates the configuration shared by the
// web form and the MCP launcher: the web server port, the MCP transport,
// the sandbox backend and container image, and logging settings. Values
// come from config.yaml, then DIAGRAMBOX_* environment variables (a local
// .env file is honored), then built-in defaults.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Sandbox image: %s\n", cfg.Sandbox.Image)
package config
