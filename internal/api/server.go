package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/quietlawn/rachio-bridge/internal/bridge"
	"github.com/quietlawn/rachio-bridge/internal/history"
	"github.com/quietlawn/rachio-bridge/internal/infrastructure/config"
	"github.com/quietlawn/rachio-bridge/internal/infrastructure/database"
	"github.com/quietlawn/rachio-bridge/internal/infrastructure/logging"
	"github.com/quietlawn/rachio-bridge/internal/infrastructure/mqtt"
	"github.com/quietlawn/rachio-bridge/internal/rachio"
	"github.com/quietlawn/rachio-bridge/internal/webhook"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// CloudClient is the slice of the cloud API client the server issues
// commands through. Declared here so tests can substitute a fake.
type CloudClient interface {
	StopWatering(ctx context.Context, deviceID string) error
	EnableDevice(ctx context.Context, deviceID string) error
	DisableDevice(ctx context.Context, deviceID string) error
	SetRainDelay(ctx context.Context, deviceID string, duration int) error
	StartZone(ctx context.Context, zoneID string, duration int) error
	StartZones(ctx context.Context, starts []rachio.ZoneStart) error
	RateLimit() *rachio.RateLimitTracker
}

// SyncTrigger requests an out-of-band reconciliation run. Satisfied by
// reconcile.Reconciler.
type SyncTrigger interface {
	TriggerSync() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	ImageProxy config.ImageProxyConfig
	Logger     *logging.Logger
	Store      *bridge.Store
	Cloud      CloudClient
	Webhooks   *webhook.Router
	ExternalID string // expected external ID on inbound events
	Sync       SyncTrigger
	History    history.Repository // optional: /devices/{uid}/history
	Recorder   *history.Recorder  // optional: webhook outcome log
	MQTT       *mqtt.Client       // optional: metrics only
	DB         *database.DB       // optional: metrics only

	// DefaultRuntime is the zone run duration in seconds applied when a
	// run request carries none.
	DefaultRuntime int

	Version string
}

// Server is the bridge's HTTP server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	imgCfg     config.ImageProxyConfig
	logger     *logging.Logger
	store      *bridge.Store
	cloud      CloudClient
	webhooks   *webhook.Router
	externalID string
	sync       SyncTrigger
	historyDB  history.Repository
	recorder   *history.Recorder
	mqtt       *mqtt.Client
	db         *database.DB

	defaultRuntime int
	version        string
	startTime      time.Time

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, store, cloud client)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("entity store is required")
	}
	if deps.Cloud == nil {
		return nil, fmt.Errorf("cloud client is required")
	}
	if deps.Webhooks == nil {
		return nil, fmt.Errorf("webhook router is required")
	}

	s := &Server{
		cfg:            deps.Config,
		wsCfg:          deps.WS,
		imgCfg:         deps.ImageProxy,
		logger:         deps.Logger,
		store:          deps.Store,
		cloud:          deps.Cloud,
		webhooks:       deps.Webhooks,
		externalID:     deps.ExternalID,
		sync:           deps.Sync,
		historyDB:      deps.History,
		recorder:       deps.Recorder,
		mqtt:           deps.MQTT,
		db:             deps.DB,
		defaultRuntime: deps.DefaultRuntime,
		version:        deps.Version,
		startTime:      time.Now(),
	}

	return s, nil
}

// Hub returns the WebSocket hub. Nil until Start() has run; callers that
// need the hub as a change observer should use NewHub and inject it via
// SetHub before Start.
func (s *Server) Hub() *Hub {
	return s.hub
}

// SetHub injects an externally created hub. Must be called before Start.
func (s *Server) SetHub(hub *Hub) {
	s.hub = hub
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the HTTP
// listener in a background goroutine. The server can be stopped with
// Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	// Create WebSocket hub (unless one was injected via SetHub)
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	go s.hub.Run(srvCtx)

	// Build router
	router := s.buildRouter()

	// Create HTTP server
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	// Start listening in background
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
