package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/packetninja/dpbridge/internal/bridge"
	"github.com/packetninja/dpbridge/internal/infrastructure/config"
	"github.com/packetninja/dpbridge/internal/infrastructure/logging"
	"github.com/packetninja/dpbridge/internal/infrastructure/mqtt"
	"github.com/packetninja/dpbridge/internal/profile"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Bridge   *bridge.Manager
	Registry *profile.Registry
	MQTT     *mqtt.Client // optional; WebSocket state relay is disabled without it
	Version  string
}

// Server is the operational HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	bridge   *bridge.Manager
	registry *profile.Registry
	mqtt     *mqtt.Client
	version  string
	server   *http.Server
	hub      *Hub
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge manager is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("profile registry is required")
	}

	return &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		bridge:   deps.Bridge,
		registry: deps.Registry,
		mqtt:     deps.MQTT,
		version:  deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, subscribes to the
// bridge's state and affinity topics for real-time WebSocket relay, and
// launches the HTTP listener in a background goroutine. The server is
// stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	if err := s.subscribeStateUpdates(); err != nil {
		s.logger.Warn("failed to subscribe to state updates for WebSocket", "error", err)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
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

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

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

// subscribeStateUpdates relays the bridge's normalized state and
// affinity publications to WebSocket clients.
func (s *Server) subscribeStateUpdates() error {
	if s.mqtt == nil {
		return nil
	}
	topics := mqtt.Topics{}

	relay := func(channel string) mqtt.MessageHandler {
		return func(t string, payload []byte) error {
			if s.hub == nil {
				return nil
			}
			var msg map[string]any
			if err := json.Unmarshal(payload, &msg); err != nil {
				s.logger.Warn("failed to parse message for WebSocket relay",
					"topic", t, "error", err)
				return nil
			}
			s.hub.Broadcast(channel, msg)
			return nil
		}
	}

	if err := s.mqtt.Subscribe(topics.AllStates(), 1, relay("device.state")); err != nil {
		return err
	}
	return s.mqtt.Subscribe(topics.AllAffinities(), 1, relay("device.affinity"))
}
