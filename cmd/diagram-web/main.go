// Package main is the entry point for the diagram web form.
//
// diagram-web serves a single page where a diagrams script can be edited,
// run in the sandbox container, and the resulting PNG or SVG viewed.
package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/diagrambox/config"
	"github.com/isdmx/diagrambox/logger"
	"github.com/isdmx/diagrambox/sandbox"
	"github.com/isdmx/diagrambox/webui"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.New,
			logger.NewFromConfig,
			sandbox.NewRunner,
			webui.New,
		),

		fx.Invoke(func(lc fx.Lifecycle, server *webui.Server) {
			lc.Append(fx.Hook{
				OnStart: server.Start,
				OnStop:  server.Stop,
			})
		}),

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	app.Run()
}
