// Package web serves a read-mostly inspector for a live editing session: a
// markdown scene report, JSON and STL downloads, a command endpoint and a
// websocket stream of frames. The server also drives the session's frame loop.
package web

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hpungsan/blockcad/internal/command"
	"github.com/hpungsan/blockcad/internal/editor"
	"github.com/hpungsan/blockcad/internal/extension"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// heartbeatFrames is how often an unchanged frame is still broadcast.
const heartbeatFrames = 60

// Options configures NewServer.
type Options struct {
	Session  *editor.Session
	Commands *command.Dispatcher
	// DB is the optional journal; when set the report lists recent exports.
	DB      *sql.DB
	Logger  *slog.Logger
	Version string
	Bind    string
	Port    int
	// FrameInterval is the frame loop period; zero means 60 Hz.
	FrameInterval time.Duration
}

// Server is the inspector HTTP server plus the frame loop and plugin watcher it drives.
type Server struct {
	HTTP     *http.Server
	handlers *Handlers
	loop     *editor.Loop
	logger   *slog.Logger
}

// NewServer creates and configures the HTTP server for a session.
func NewServer(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	commands := opts.Commands
	if commands == nil {
		commands = command.NewDispatcher(nil)
	}

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static sub-FS: %w", err)
	}

	hub := NewHub()
	h := &Handlers{
		session:  opts.Session,
		commands: commands,
		db:       opts.DB,
		renderer: NewRenderer(templateSub, opts.Version, logger),
		hub:      hub,
		logger:   logger,
		version:  opts.Version,
	}
	opts.Session.Do(func(s *editor.Session) {
		s.OnFrame(hub.frameObserver(heartbeatFrames))
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Bind, opts.Port),
		Handler:           securityHeaders(h.routes(staticSub)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{
		HTTP:     srv,
		handlers: h,
		loop:     &editor.Loop{Session: opts.Session, Interval: opts.FrameInterval},
		logger:   logger,
	}, nil
}

func (h *Handlers) routes(static fs.FS) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.HandleReport)
	mux.HandleFunc("GET /report.md", h.HandleReportMarkdown)
	mux.HandleFunc("GET /scene", h.HandleScene)
	mux.HandleFunc("GET /scene.stl", h.HandleSceneSTL)
	mux.HandleFunc("POST /command", h.HandleCommand)
	mux.HandleFunc("GET /ws", h.HandleWS)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	return mux
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler { return s.HTTP.Handler }

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'; connect-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run serves HTTP, ticks the frame loop, and watches the configured plugin
// directory until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if dir := s.handlers.session.Config().PluginDir; dir != "" {
		queue := func(path string) {
			s.handlers.session.Do(func(sess *editor.Session) { sess.QueuePlugin(path) })
		}
		w, err := extension.NewWatcher(dir, queue, s.logger)
		if err != nil {
			s.logger.Warn("plugin directory not watched", "dir", dir, "error", err)
		} else {
			s.logger.Info("watching plugin directory", "dir", w.Dir())
			go func() { _ = w.Run(ctx) }()
		}
	}

	go func() { _ = s.loop.Run(ctx) }()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.HTTP.ListenAndServe()
	}()

	s.logger.Info("blockcad inspector running", "url", "http://"+s.HTTP.Addr)
	if strings.Contains(s.HTTP.Addr, "0.0.0.0") || strings.Contains(s.HTTP.Addr, "::") {
		s.logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.HTTP.Shutdown(shutdownCtx)
	}
}
