// ABOUTME: Gateway coordinates the HTTP and websocket surfaces
// ABOUTME: Owns route registration, server lifecycle, and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/muse-gateway/internal/auth"
	"github.com/2389/muse-gateway/internal/config"
	"github.com/2389/muse-gateway/internal/conversation"
	"github.com/2389/muse-gateway/internal/store"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server and the
// drain of in-flight turns.
const shutdownTimeout = 15 * time.Second

// Gateway owns the outward-facing surfaces: the JSON HTTP API and the
// websocket session endpoint. Everything it needs is injected at
// construction; it holds no process-wide state.
type Gateway struct {
	cfg        *config.Config
	store      store.Store
	verifier   *auth.JWTVerifier
	orch       *conversation.Orchestrator
	hub        *SessionHub
	httpServer *http.Server
	logger     *slog.Logger

	tokenLifetime time.Duration
}

// New creates a gateway with all routes registered.
func New(cfg *config.Config, st store.Store, verifier *auth.JWTVerifier, orch *conversation.Orchestrator, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		cfg:           cfg,
		store:         st,
		verifier:      verifier,
		orch:          orch,
		hub:           NewSessionHub(logger),
		logger:        logger.With("component", "gateway"),
		tokenLifetime: cfg.Auth.TokenLifetime,
	}
	if g.tokenLifetime <= 0 {
		g.tokenLifetime = auth.DefaultTokenLifetime
	}

	mux := http.NewServeMux()
	g.registerRoutes(mux)

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return g
}

// registerRoutes wires every endpoint onto the mux. Auth endpoints and
// the health check are open; everything else sits behind the JWT
// middleware.
func (g *Gateway) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", g.handleHealth)

	mux.HandleFunc("/auth/register", g.handleRegister)
	mux.HandleFunc("/auth/login", g.handleLogin)

	authMiddleware := auth.HTTPAuthMiddleware(g.store, g.verifier)
	mux.Handle("/auth/me", authMiddleware(http.HandlerFunc(g.handleMe)))
	mux.Handle("/api/conversations", authMiddleware(http.HandlerFunc(g.handleConversations)))
	mux.Handle("/api/conversations/", authMiddleware(http.HandlerFunc(g.handleConversationRoutes)))

	// The websocket endpoint authenticates during its own handshake, so
	// it is registered without the bearer middleware.
	mux.HandleFunc("/ws", g.handleWebSocket)
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully: stop accepting connections, drain in-flight turns.
func (g *Gateway) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", g.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.httpServer.Addr, err)
	}
	g.logger.Info("http server listening", "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := g.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	return g.shutdown()
}

func (g *Gateway) shutdown() error {
	g.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
		g.logger.Error("http shutdown failed", "error", err)
	}
	if err := g.orch.Drain(shutdownCtx); err != nil {
		return fmt.Errorf("draining turns: %w", err)
	}
	g.logger.Info("shutdown complete")
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
