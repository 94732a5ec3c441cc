// Package server exposes the ledger over HTTP and websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
	"github.com/Degen-Markets/degen-markets-solana/internal/server/handler"
	"github.com/Degen-Markets/degen-markets-solana/internal/server/middleware"
	"github.com/Degen-Markets/degen-markets-solana/internal/server/ws"
)

// Config holds the HTTP server settings.
type Config struct {
	Port        int
	CORSOrigins []string
	// MaxSkew bounds X-Timestamp drift on signed requests.
	MaxSkew time.Duration
	// RateLimit requests per RateWindow per client; zero disables limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates the endpoint handlers.
type Handlers struct {
	Health   *handler.HealthHandler
	Pools    *handler.PoolHandler
	Entries  *handler.EntryHandler
	Accounts *handler.AccountHandler
}

// Deps are the optional collaborators of the middleware chain.
type Deps struct {
	Replay   domain.ReplayGuard
	Limiter  domain.RateLimiter
	Observer middleware.RequestObserver
	Metrics  http.Handler
	Hub      *ws.Hub
}

// Server is the HTTP + websocket API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware chain.
func NewServer(cfg Config, h Handlers, deps Deps, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           NewHandler(cfg, h, deps, logger),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed handler. Tests drive it through httptest.
func NewHandler(cfg Config, h Handlers, deps Deps, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)

	mux.HandleFunc("POST /api/pools", h.Pools.CreatePool)
	mux.HandleFunc("GET /api/pools/{pool}", h.Pools.GetPool)
	mux.HandleFunc("PUT /api/pools/{pool}/paused", h.Pools.SetPaused)
	mux.HandleFunc("PUT /api/pools/{pool}/winner", h.Pools.SetWinner)
	mux.HandleFunc("POST /api/pools/{pool}/fund", h.Pools.FundPool)
	mux.HandleFunc("GET /api/pools/{pool}/settlement", h.Pools.Settlement)
	mux.HandleFunc("POST /api/pools/{pool}/archive", h.Pools.Archive)
	mux.HandleFunc("GET /api/pools/{pool}/archive", h.Pools.ArchivedSummary)
	mux.HandleFunc("POST /api/pools/{pool}/options", h.Pools.CreateOption)
	mux.HandleFunc("GET /api/pools/{pool}/options", h.Pools.ListOptions)

	mux.HandleFunc("POST /api/entries", h.Entries.EnterPool)
	mux.HandleFunc("GET /api/entries/{entry}", h.Entries.GetEntry)
	mux.HandleFunc("POST /api/entries/{entry}/close", h.Entries.CloseEntry)
	mux.HandleFunc("GET /api/options/{option}/entries", h.Entries.ListEntries)
	mux.HandleFunc("POST /api/claims", h.Entries.Claim)
	mux.HandleFunc("GET /api/derive/entry", h.Entries.DeriveEntry)

	mux.HandleFunc("POST /api/transfers", h.Accounts.Transfer)
	mux.HandleFunc("POST /api/faucet", h.Accounts.Faucet)
	mux.HandleFunc("GET /api/accounts/{address}/balance", h.Accounts.Balance)

	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}
	if deps.Hub != nil {
		mux.HandleFunc("GET /ws", deps.Hub.HandleWS)
	}

	// Outermost first: CORS, logging, rate limit, signature, route capture.
	var chain http.Handler = middleware.Route(mux)
	chain = middleware.Signature(middleware.SignatureConfig{
		MaxSkew: cfg.MaxSkew,
		Guard:   deps.Replay,
	}, logger)(chain)
	if deps.Limiter != nil && cfg.RateLimit > 0 {
		chain = middleware.RateLimit(deps.Limiter, cfg.RateLimit, cfg.RateWindow, logger)(chain)
	}
	chain = middleware.Logging(logger, deps.Observer)(chain)
	chain = middleware.CORS(cfg.CORSOrigins)(chain)
	return chain
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
