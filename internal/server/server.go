// Package server exposes the bot's HTTP surface: the GREEN-API webhook,
// health and Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"port-ops-bot/internal/alerts"
	"port-ops-bot/internal/common/config"
	"port-ops-bot/internal/common/logger"
	"port-ops-bot/internal/models"
)

// Processor runs one inbound question through the pipeline.
type Processor interface {
	Process(ctx context.Context, q models.InboundQuery) string
}

// Sender delivers a reply to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID, message string) error
}

// HealthChecker pings one backing store.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server is the bot's HTTP frontend.
type Server struct {
	cfg       config.Config
	processor Processor
	sender    Sender
	dedup     *redis.Client
	stores    map[string]HealthChecker
	notifier  *alerts.Notifier
	logger    logger.Logger

	httpServer     *http.Server
	processTimeout time.Duration
	wg             sync.WaitGroup
}

// New builds the server. dedup and notifier may be nil; stores maps a store
// name to its health check.
func New(cfg config.Config, processor Processor, sender Sender, dedup *redis.Client, stores map[string]HealthChecker, notifier *alerts.Notifier, log logger.Logger) *Server {
	s := &Server{
		cfg:            cfg,
		processor:      processor,
		sender:         sender,
		dedup:          dedup,
		stores:         stores,
		notifier:       notifier,
		logger:         log,
		processTimeout: 60 * time.Second,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/green/webhook", s.handleWebhook)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  msOrDefault(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: msOrDefault(cfg.Server.WriteTimeout, 15*time.Second),
	}
	return s
}

// Handler exposes the routed mux. Test hook.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("http server starting", map[string]interface{}{
		"addr": s.httpServer.Addr,
	})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight message
// processing to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("shutdown deadline reached with messages in flight", nil)
	}
	return err
}

func msOrDefault(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
