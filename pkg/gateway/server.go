// Package gateway exposes the orchestrator over HTTP: buffered and streaming
// instruction endpoints, session management, a websocket transport, health,
// and metrics.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/shubcodes/fw-intellibrowse-agent/internal/observability"
	"github.com/shubcodes/fw-intellibrowse-agent/pkg/orchestrator"
)

// Server is the HTTP gateway.
type Server struct {
	host     string
	port     int
	orch     *orchestrator.Orchestrator
	server   *http.Server
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// Config holds gateway configuration.
type Config struct {
	Host         string
	Port         int
	Orchestrator *orchestrator.Orchestrator
	Logger       zerolog.Logger
}

// NewServer creates a gateway server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}

	return &Server{
		host:   cfg.Host,
		port:   cfg.Port,
		orch:   cfg.Orchestrator,
		logger: cfg.Logger,
		upgrader: websocket.Upgrader{
			// The gateway is a single-user service bound to loopback by
			// default and carries no cookie-based auth, so origin checks
			// would only break local tooling.
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}, nil
}

// Handler builds the route table. Exposed separately so tests can drive the
// mux without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/instructions", s.handleInstruction)
	mux.HandleFunc("POST /v1/instructions/stream", s.handleInstructionStream)
	mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.Handle("GET /metrics", observability.MetricsHandler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": s.orch.SessionCount(),
		})
	})

	return mux
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: s.Handler(),
	}

	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting gateway server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	s.logger.Info().Msg("Shutting down gateway server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Gateway server stopped")
	return nil
}
