// Package api provides the HTTP REST API and WebSocket server for Keylock Core.
//
// It exposes room, node, key and permission management to the admin UI,
// the access ledger for review, and a WebSocket feed of live decisions
// and staged scans. Access decisions themselves never pass through this
// package; doors are answered over MQTT by the gateway.
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

	"github.com/keylock-project/keylock-core/internal/access"
	"github.com/keylock-project/keylock-core/internal/infrastructure/config"
	"github.com/keylock-project/keylock-core/internal/infrastructure/logging"
	"github.com/keylock-project/keylock-core/internal/key"
	"github.com/keylock-project/keylock-core/internal/ledger"
	"github.com/keylock-project/keylock-core/internal/node"
	"github.com/keylock-project/keylock-core/internal/room"
	"github.com/keylock-project/keylock-core/internal/scanstage"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// NodeCommander sends admin commands to door nodes.
// Implemented by the gateway; declared here so the API does not need the
// gateway's full surface.
type NodeCommander interface {
	SendAdminCommand(nodeID, command string, cardID *string) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	Rooms     room.Repository
	Nodes     node.Repository
	Keys      key.Repository
	Perms     access.PermissionRepository
	Ledger    ledger.Repository
	Stage     *scanstage.Cache
	Commander NodeCommander
	// ExternalHub, if set, is used instead of creating a new hub. The
	// gateway needs the hub before the server starts.
	ExternalHub *Hub
	Version     string
}

// Server is the HTTP API server for Keylock Core.
type Server struct {
	cfg       config.APIConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	rooms     room.Repository
	nodes     node.Repository
	keys      key.Repository
	perms     access.PermissionRepository
	ledger    ledger.Repository
	stage     *scanstage.Cache
	commander NodeCommander
	version   string

	server      *http.Server
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Rooms == nil || deps.Nodes == nil || deps.Keys == nil || deps.Perms == nil || deps.Ledger == nil {
		return nil, fmt.Errorf("all repositories are required")
	}
	if deps.Stage == nil {
		return nil, fmt.Errorf("scan cache is required")
	}
	// Commander is optional. Enrollment commands fail with 502 without it,
	// but everything else still works.

	s := &Server{
		cfg:       deps.Config,
		secCfg:    deps.Security,
		logger:    deps.Logger.With("component", "api"),
		rooms:     deps.Rooms,
		nodes:     deps.Nodes,
		keys:      deps.Keys,
		perms:     deps.Perms,
		ledger:    deps.Ledger,
		stage:     deps.Stage,
		commander: deps.Commander,
		version:   deps.Version,
	}

	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and launches the HTTP listener in a
// background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.logger)
	}
	if !s.externalHub {
		go s.hub.Run(srvCtx)
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
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Hub returns the WebSocket hub, creating it if needed.
// Used to hand the hub to the gateway as its event sink.
func (s *Server) Hub() *Hub {
	if s.hub == nil {
		s.hub = NewHub(s.logger)
	}
	return s.hub
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
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
