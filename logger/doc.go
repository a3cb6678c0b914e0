// Package logger builds the zap logger shared by diagram-web and diagram-mcp.
//
// Entries go to stderr and carry a service=diagrambox field. "production"
// mode emits JSON with ISO8601 timestamps; "development" emits colored
// console output.
//
//	log, err := logger.New("development", "debug")
//	if err != nil {
//	    panic(err)
//	}
//	log.Info("diagram generated", zap.String("path", path))
package logger
