package webui

import (
	"context"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/diagrambox/config"
	"github.com/isdmx/diagrambox/sandbox"
)

// maxFormBytes caps the size of a submitted form.
const maxFormBytes = 1 << 20

//go:embed templates/page.html
var templateFS embed.FS

var formats = []string{sandbox.FormatPNG, sandbox.FormatSVG}

// Server serves the diagram form and renders generation results
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	runner     sandbox.Runner
	fs         sandbox.FileSystem
	page       *template.Template
	limiter    *ipLimiter
	httpServer *http.Server
}

// pageData is the view model for page.html
type pageData struct {
	Image      string
	Script     string
	OutputName string
	Format     string
	Formats    []string

	Submitted    bool
	Result       sandbox.Result
	ImageDataURI template.URL
	SVG          template.HTML
	ImageError   string
}

// New creates a new Server
func New(cfg *config.Config, logger *zap.Logger, runner sandbox.Runner) (*Server, error) {
	page, err := template.ParseFS(templateFS, "templates/page.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}

	s := &Server{
		config: cfg,
		logger: logger,
		runner: runner,
		fs:     &sandbox.RealFileSystem{},
		page:   page,
	}

	if cfg.Server.RateLimitPerMin > 0 {
		s.limiter = newIPLimiter(cfg.Server.RateLimitPerMin, cfg.Server.RateLimitBurst, logger)
	}

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.HTTPPort),
		Handler:           s.Handler(),
		ReadHeaderTimeout: cfg.GetReadHeaderTimeout(),
	}

	logger.Info("configuration loaded",
		zap.Int("server.http_port", cfg.Server.HTTPPort),
		zap.Int("server.rate_limit_per_min", cfg.Server.RateLimitPerMin),
		zap.String("sandbox.backend", cfg.Sandbox.Backend),
		zap.String("sandbox.image", cfg.Sandbox.Image),
		zap.String("sandbox.workdir", cfg.Sandbox.Workdir),
		zap.Int("sandbox.timeout_sec", cfg.Sandbox.TimeoutSec),
		zap.String("sandbox.temp_dir", cfg.Sandbox.TempDir),
	)

	return s, nil
}

// Handler returns the HTTP routes of the form
func (s *Server) Handler() http.Handler {
	generate := s.handleGenerate
	if s.limiter != nil {
		generate = s.limiter.wrap(generate)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /generate", generate)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start listens on the configured port and serves in the background
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	s.logger.Info("starting web form", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("web form server stopped", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping web form")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.render(w, pageData{
		Script:     sandbox.ExampleScript,
		OutputName: sandbox.DefaultOutputName,
		Format:     sandbox.FormatPNG,
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	req := sandbox.Request{
		Script:     r.PostFormValue("script"),
		OutputName: r.PostFormValue("output_name"),
		Format:     r.PostFormValue("format"),
	}

	if !sandbox.ValidFormat(req.Format) {
		http.Error(w, fmt.Sprintf("invalid format %q, must be png or svg", req.Format), http.StatusBadRequest)
		return
	}

	requestID := uuid.NewString()
	log := s.logger.With(zap.String("request_id", requestID))
	log.Info("diagram generation requested",
		zap.String("output_name", req.OutputName),
		zap.String("format", req.Format),
		zap.Int("script_len", len(req.Script)))

	// A run cannot be canceled once the container has started.
	result := s.runner.Run(context.WithoutCancel(r.Context()), req)

	data := pageData{
		Script:     req.Script,
		OutputName: req.OutputName,
		Format:     req.Format,
		Submitted:  true,
		Result:     result,
	}

	if result.HasOutput() {
		s.embedImage(&data, log)
	}

	log.Info("diagram generation completed",
		zap.Bool("ok", result.OK),
		zap.Bool("has_output", result.HasOutput()),
		zap.Duration("duration", result.Duration))

	s.render(w, data)
}

// embedImage inlines the produced image: PNG as a data URI, SVG as markup.
func (s *Server) embedImage(data *pageData, log *zap.Logger) {
	content, err := s.fs.ReadFile(data.Result.OutputPath)
	if err != nil {
		log.Warn("failed to read generated image", zap.String("path", data.Result.OutputPath), zap.Error(err))
		data.ImageError = err.Error()
		return
	}

	switch data.Format {
	case sandbox.FormatSVG:
		data.SVG = template.HTML(content) //nolint:gosec // the image is rendered by the user's own script
	default:
		data.ImageDataURI = template.URL("data:" + sandbox.MIMEType(data.Format) + ";base64," + base64.StdEncoding.EncodeToString(content)) //nolint:gosec // base64 payload
	}
}

func (s *Server) render(w http.ResponseWriter, data pageData) {
	data.Image = s.config.Sandbox.Image
	data.Formats = formats

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		s.logger.Error("failed to render page", zap.Error(err))
	}
}
