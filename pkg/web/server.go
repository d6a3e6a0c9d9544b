// Package web serves the observer surface: game state and calibration as
// JSON, Prometheus metrics, and a websocket stream of pipeline updates for
// renderers.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-putt/internal/log"
	"github.com/teslashibe/go-putt/pkg/game"
	"github.com/teslashibe/go-putt/pkg/hub"
	"github.com/teslashibe/go-putt/pkg/pipeline"
	"github.com/teslashibe/go-putt/pkg/planar"
	"github.com/teslashibe/go-putt/pkg/scorebook"
)

// Controller is the part of the pipeline the API drives.
type Controller interface {
	ResetLevel() error
	NewGame() error
	Transform() *planar.Transform
}

// Scores is the read side of the scorebook.
type Scores interface {
	Game(ctx context.Context, sessionID string) (scorebook.Game, error)
	Recent(ctx context.Context, limit int) ([]scorebook.Game, error)
	Best(ctx context.Context, limit int) ([]scorebook.Game, error)
}

// Config is the listener configuration.
type Config struct {
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`
	// AllowOrigins is passed to the CORS middleware.
	AllowOrigins string `json:"allow_origins" yaml:"allow_origins" mapstructure:"allow_origins"`
}

// DefaultConfig listens on :8080 for any origin.
func DefaultConfig() Config {
	return Config{Addr: ":8080", AllowOrigins: "*"}
}

// Deps are the server's collaborators. Controller is required; Scores and
// Gatherer are optional.
type Deps struct {
	Controller Controller
	Levels     []game.Level
	Scores     Scores
	Gatherer   prometheus.Gatherer
	Logger     *slog.Logger
}

// Server is the web observer server
type Server struct {
	app    *fiber.App
	cfg    Config
	hub    *hub.Hub
	ctrl   Controller
	scores Scores
	logger *slog.Logger

	// State
	mu     sync.RWMutex
	latest *pipeline.Update
	levels []game.Level
}

// NewServer creates the server and its routes.
func NewServer(cfg Config, d Deps) (*Server, error) {
	if d.Controller == nil {
		return nil, errors.New("web: controller is required")
	}
	logger := log.Or(d.Logger, "web")
	s := &Server{
		cfg:    cfg,
		hub:    hub.New("state", logger),
		ctrl:   d.Controller,
		scores: d.Scores,
		logger: logger,
		levels: d.Levels,
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-putt",
		DisableStartupMessage: true,
	})

	app.Use(cors.New(cors.Config{AllowOrigins: cfg.AllowOrigins}))

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/state", s.handleState)
	api.Get("/levels", s.handleLevels)
	api.Get("/calibration", s.handleCalibration)
	api.Get("/camera/presets", s.handleCameraPresets)
	api.Post("/game/reset", s.handleReset)
	api.Post("/game/new", s.handleNewGame)
	api.Get("/scores", s.handleRecentScores)
	api.Get("/scores/best", s.handleBestScores)
	api.Get("/scores/:session", s.handleGameScore)

	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(s.handleStateWS))

	s.app = app
	return s, nil
}

// App exposes the fiber app, for tests.
func (s *Server) App() *fiber.App { return s.app }

// Hub returns the state hub.
func (s *Server) Hub() *hub.Hub { return s.hub }

// Publish records u as the latest state and broadcasts it.
func (s *Server) Publish(u pipeline.Update) {
	s.mu.Lock()
	s.latest = &u
	if len(u.Levels) > 0 {
		s.levels = u.Levels
	}
	s.mu.Unlock()

	if err := s.hub.BroadcastJSON(u); err != nil {
		s.logger.Warn("encoding update", "error", err)
	}
}

// Forward publishes every update taken from the mailbox until ctx is done.
func (s *Server) Forward(ctx context.Context, updates *pipeline.Mailbox[pipeline.Update]) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates.C():
			s.Publish(u)
		}
	}
}

// Serve runs the hub, forwards updates (when non-nil) and serves on ln
// until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener, updates *pipeline.Mailbox[pipeline.Update]) error {
	go s.hub.Run(ctx)
	if updates != nil {
		go s.Forward(ctx, updates)
	}
	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			s.logger.Warn("shutdown", "error", err)
		}
	}()

	s.logger.Info("web server listening", "addr", ln.Addr().String())
	if err := s.app.Listener(ln); err != nil {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, updates *pipeline.Mailbox[pipeline.Update]) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln, updates)
}
