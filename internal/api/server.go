// Package api provides the HTTP REST API and WebSocket server for the show core.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-showcore/internal/execution"
	"github.com/nerrad567/gray-logic-showcore/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-showcore/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-showcore/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-showcore/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-showcore/internal/session"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// SessionStore is the read side of the session history.
// *session.SQLiteRepository satisfies it.
type SessionStore interface {
	Get(ctx context.Context, id string) (*session.Record, error)
	List(ctx context.Context, limit int) ([]session.Record, error)
	ListByContext(ctx context.Context, contextID string, limit int) ([]session.Record, error)
}

// ConnectionStatus reports whether an optional backend is connected.
// *mqtt.Client and *influxdb.Client satisfy it.
type ConnectionStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Playback config.PlaybackConfig
	Logger   *logging.Logger
	Manager  *execution.Manager
	Sessions SessionStore     // optional: history endpoints answer 503 without it
	Metrics  *metrics.Metrics // optional: /metrics is not mounted without it
	DB       *database.DB     // optional: pool stats in /status
	MQTT     ConnectionStatus // optional
	InfluxDB ConnectionStatus // optional
	Version  string
}

// Server is the HTTP API server for the show core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	playCfg   config.PlaybackConfig
	logger    *logging.Logger
	manager   *execution.Manager
	sessions  SessionStore
	metrics   *metrics.Metrics
	db        *database.DB
	mqtt      ConnectionStatus
	influx    ConnectionStatus
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	detach    []func()
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, manager)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Manager == nil {
		return nil, fmt.Errorf("execution manager is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		playCfg:   deps.Playback,
		logger:    deps.Logger,
		manager:   deps.Manager,
		sessions:  deps.Sessions,
		metrics:   deps.Metrics,
		db:        deps.DB,
		mqtt:      deps.MQTT,
		influx:    deps.InfluxDB,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, attaches the hub to the manager's events,
// and launches the HTTP listener in a background goroutine. The server
// can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for the hub and background goroutines
//
// Returns:
//   - error: Currently always nil; listener errors are logged
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	s.attachEvents()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// attachEvents relays the manager's events to WebSocket subscribers.
func (s *Server) attachEvents() {
	s.detach = append(s.detach,
		s.manager.OnTick(func(set execution.ElementSet) {
			if len(set) == 0 {
				return
			}
			s.hub.Broadcast(ChannelTick, TickEvent{Elements: set.Sorted()})
		}),
		s.manager.OnContextCreated(func(c execution.Context) {
			s.hub.Broadcast(ChannelContextCreated, toContextResponse(execution.Describe(c)))
		}),
		s.manager.OnContextReleased(func(c execution.Context) {
			s.hub.Broadcast(ChannelContextReleased, ContextResponse{ID: c.ID(), Name: c.Name()})
		}),
		s.manager.OnSessionStarted(func(ev execution.SessionEvent) {
			s.hub.Broadcast(ChannelSessionStarted, toSessionEvent(ev))
		}),
		s.manager.OnSessionEnded(func(ev execution.SessionEvent) {
			s.hub.Broadcast(ChannelSessionEnded, toSessionEvent(ev))
		}),
		s.manager.OnNotice(func(ev execution.NoticeEvent) {
			s.hub.Broadcast(ChannelContextNotice, NoticeEvent{
				ContextID:   ev.ContextID,
				ContextName: ev.ContextName,
				Level:       ev.Level,
				Text:        ev.Text,
			})
		}),
	)
}

// Close gracefully shuts down the API server.
//
// It detaches from the manager, then waits up to 10 seconds for in-flight
// requests to complete before forcefully closing remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	for _, fn := range s.detach {
		fn()
	}
	s.detach = nil

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
