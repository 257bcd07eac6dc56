// Package server hosts the HTTP surface: the signed webhook endpoint,
// a health check, and a small read-only admin/introspection API.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/iemarjay/reviewbot/internal/config"
	"github.com/iemarjay/reviewbot/internal/ingest"
	"github.com/iemarjay/reviewbot/internal/queueadapter"
	"github.com/iemarjay/reviewbot/internal/store"
)

// Server hosts the webhook intake and admin API.
type Server struct {
	cfg            *config.Config
	router         *mux.Router
	httpServer     *http.Server
	store          *store.Store
	queue          *queueadapter.Queue
	asynqInspector *asynq.Inspector
	webhookHandler *ingest.Handler
}

// New wires the webhook handler and admin routes against their
// collaborators and builds the underlying http.Server.
func New(cfg *config.Config, st *store.Store, gate *ingest.Gate, queue *queueadapter.Queue) *Server {
	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		store:  st,
		queue:  queue,
		asynqInspector: asynq.NewInspector(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}),
		webhookHandler: ingest.NewHandler(cfg.GitHubWebhookSecret, gate, queue),
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start listens for HTTP requests until a SIGINT/SIGTERM triggers a
// graceful shutdown.
func (s *Server) Start() error {
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("server shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		s.httpServer.SetKeepAlivesEnabled(false)
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
		if err := s.queue.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close queue client")
		}
		close(done)
	}()

	log.Info().Str("port", s.cfg.Port).Msg("server starting")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-done
	log.Info().Msg("server stopped")
	return nil
}
