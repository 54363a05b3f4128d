// Package api provides the HTTP surface of the booking engine.
//
// It exposes the channel webhook, an operator send endpoint, escalation
// notification listings and a health check. The webhook applies message-ID
// deduplication and the per-business rate limit before the message reaches
// the conversation engine.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mesieou/simple-booking-sub004/internal/messaging"
	"github.com/mesieou/simple-booking-sub004/internal/orchestrator"
	"github.com/mesieou/simple-booking-sub004/internal/ratelimit"
	"github.com/mesieou/simple-booking-sub004/internal/store"
)

// DefaultAddr is the default listen address.
const DefaultAddr = ":8080"

// Opts holds configuration options for the server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server wires HTTP handlers to the conversation engine.
type Server struct {
	addr       string
	engine     *orchestrator.Engine
	msgService messaging.Service
	store      store.Store
	limiter    *ratelimit.Limiter
	httpServer *http.Server
}

// NewServer creates a Server.
func NewServer(engine *orchestrator.Engine, msgService messaging.Service, st store.Store, limiter *ratelimit.Limiter, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		addr:       cfg.Addr,
		engine:     engine,
		msgService: msgService,
		store:      st,
		limiter:    limiter,
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhooks/whatsapp", s.webhookHandler)
	mux.HandleFunc("/send", s.sendHandler)
	mux.HandleFunc("/notifications", s.notificationsHandler)
	mux.HandleFunc("/health", s.healthHandler)

	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown failed: %w", err)
	}
	slog.Info("API server stopped")
	return nil
}
