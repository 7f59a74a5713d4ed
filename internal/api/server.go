package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-climate/internal/analysis"
	"github.com/nerrad567/gray-logic-climate/internal/command"
	"github.com/nerrad567/gray-logic-climate/internal/device"
	"github.com/nerrad567/gray-logic-climate/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-climate/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-climate/internal/telemetry"
)

const (
	// gracefulShutdownTimeout bounds how long Close waits for in-flight requests.
	gracefulShutdownTimeout = 10 * time.Second

	defaultPollInterval = time.Minute
)

// Registry is the read side of the device registry.
type Registry interface {
	List() []device.DeviceUnit
	Get(id string) (*device.DeviceUnit, error)
	Overview() device.Overview
	Outdoor() *device.OutdoorConditions
}

// Commander issues control commands.
type Commander interface {
	Issue(deviceID string, kind device.CommandKind, value any) (*command.Handle, error)
}

// Poller starts and stops telemetry subscriptions.
type Poller interface {
	Start(deviceID string, sources []telemetry.Source, interval time.Duration) error
	Stop(deviceID string)
	Status(deviceID string) (telemetry.Status, error)
}

// Analyzer runs a multi-source analysis for one unit.
type Analyzer interface {
	Run(ctx context.Context, deviceID string, w analysis.Window) (analysis.Result, error)
}

// SessionSetter accepts a session token handed over by the login flow.
type SessionSetter interface {
	SetToken(ctx context.Context, token string) error
}

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	WS     config.WebSocketConfig
	Logger *logging.Logger

	Registry Registry
	Commands Commander
	Poller   Poller
	Analysis Analyzer

	// Sources is the source set started by POST /devices/{id}/polling.
	Sources func() []telemetry.Source
	// PollInterval is used when a polling request names no interval.
	PollInterval time.Duration
	// AnalysisTimeout bounds an analysis request that names no timeout.
	AnalysisTimeout time.Duration

	// Sessions is nil when tokens come from OAuth2 or static config.
	Sessions SessionSetter
	// Metrics serves GET /metrics; nil disables the route.
	Metrics http.Handler
	// Checks are run by GET /health, keyed by dependency name.
	Checks map[string]HealthCheck

	Version string
}

// Server is the HTTP and WebSocket surface for presentation clients.
type Server struct {
	deps   Deps
	logger *logging.Logger
	hub    *Hub
	server *http.Server
	cancel context.CancelFunc
}

// New creates a server. Nothing listens until Start.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Registry == nil:
		return nil, fmt.Errorf("device registry is required")
	case deps.Commands == nil:
		return nil, fmt.Errorf("command dispatcher is required")
	case deps.Poller == nil || deps.Sources == nil:
		return nil, fmt.Errorf("telemetry poller and sources are required")
	case deps.Analysis == nil:
		return nil, fmt.Errorf("analysis orchestrator is required")
	}
	if deps.PollInterval <= 0 {
		deps.PollInterval = defaultPollInterval
	}
	if deps.AnalysisTimeout <= 0 {
		deps.AnalysisTimeout = analysis.DefaultSourceTimeout
	}

	return &Server{
		deps:   deps,
		logger: deps.Logger,
		hub:    NewHub(deps.WS, deps.Logger),
	}, nil
}

// Hub returns the WebSocket hub so registry and dispatcher events can be
// fed into it.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening in the background.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	cfg := s.deps.Config
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "address", s.server.Addr, "cert", cfg.TLS.CertFile)
			err = s.server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Close stops the hub and shuts the listener down, waiting up to 10 seconds
// for in-flight requests.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
