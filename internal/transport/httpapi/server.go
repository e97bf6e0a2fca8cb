// Package httpapi exposes the planner, chat and ingestion services over
// HTTP plus a per-user websocket push channel.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sandevgo/momentum/internal/config"
	"github.com/sandevgo/momentum/pkg/log"
)

// Server is the HTTP front of the application. It satisfies srv.Service
// so the process lifecycle in cmd can manage it.
type Server struct {
	httpServer *http.Server
	handler    *Handler
}

func NewServer(cfg *config.AppConfig, handler *Handler) *Server {
	mux := http.NewServeMux()
	handler.Register(mux)

	return &Server{
		handler: handler,
		httpServer: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.FromCtx(ctx).Info().Msg("http server shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}
