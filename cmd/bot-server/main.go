package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"port-ops-bot/internal/ai/gemini"
	"port-ops-bot/internal/alerts"
	"port-ops-bot/internal/audit"
	commonaws "port-ops-bot/internal/common/aws"
	"port-ops-bot/internal/common/config"
	"port-ops-bot/internal/common/database"
	"port-ops-bot/internal/common/logger"
	"port-ops-bot/internal/common/observability"
	"port-ops-bot/internal/gateway/greenapi"
	"port-ops-bot/internal/knowledge"
	"port-ops-bot/internal/pipeline"
	"port-ops-bot/internal/pipeline/classify"
	"port-ops-bot/internal/pipeline/dispatch"
	"port-ops-bot/internal/pipeline/fallback"
	"port-ops-bot/internal/pipeline/resolve"
	"port-ops-bot/internal/pipeline/respond"
	"port-ops-bot/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := logger.NewZapAdapter(zapLogger)

	log.Info("starting bot server", map[string]interface{}{
		"app":         cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := connectPostgres(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres unavailable", zap.Error(err))
	}
	defer pg.Close()

	rd, err := connectRedis(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("redis unavailable", zap.Error(err))
	}
	defer rd.Close()

	var searcher *knowledge.Searcher
	if cfg.Knowledge.Enabled {
		es, err := connectElasticsearch(ctx, cfg, zapLogger)
		if err != nil {
			// Knowledge only enriches the fallback context; start without it.
			zapLogger.Warn("elasticsearch unavailable, knowledge search disabled", zap.Error(err))
		} else {
			searcher = knowledge.NewSearcher(es.Client, cfg.Knowledge, log)
		}
	}

	dispatcher := dispatch.NewHandler(dispatch.Config{
		QueryTimeout: time.Duration(cfg.Pipeline.QueryTimeout) * time.Millisecond,
	}, pg.DB, log)

	var fb pipeline.FallbackHandler
	if cfg.Gemini.APIKey != "" {
		generator, err := gemini.NewGenerator(ctx, cfg.Gemini, log)
		if err != nil {
			zapLogger.Warn("gemini unavailable, generative fallback disabled", zap.Error(err))
		} else {
			var ks fallback.KnowledgeSearcher
			if searcher != nil {
				ks = searcher
			}
			fb = fallback.NewHandler(fallback.Config{
				Timeout:     time.Duration(cfg.Pipeline.FallbackTimeout) * time.Millisecond,
				YearsBack:   cfg.Pipeline.MetricsYearsBack,
				MaxRows:     cfg.Pipeline.MetricsMaxRows,
				CacheTTL:    time.Duration(cfg.Pipeline.ContextCacheTTL) * time.Second,
				MaxSections: cfg.Knowledge.MaxSections,
			}, generator, dispatcher, ks, rd.Client, log)
		}
	} else {
		zapLogger.Warn("no gemini api key configured, generative fallback disabled")
	}

	recorder := audit.NewRecorder(pg.DB,
		time.Duration(cfg.Pipeline.QueryTimeout)*time.Millisecond, log)
	defer recorder.Drain()

	pipe := pipeline.New(
		classify.New(),
		resolve.New(nil),
		dispatcher,
		fb,
		respond.New(),
		recorder,
		log,
	).WithObservability(obs)

	sender := greenapi.NewClient(cfg.GreenAPI, log)

	notifier := buildNotifier(ctx, cfg, log, zapLogger)

	srv := server.New(*cfg, pipe, sender, rd.Client, map[string]server.HealthChecker{
		"postgres": pg,
		"redis":    rd,
	}, notifier, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received", nil)
	case err := <-errCh:
		if err != nil {
			zapLogger.Error("http server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Millisecond)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("shutdown incomplete", zap.Error(err))
	}
	log.Info("bot server stopped", nil)
}

func connectPostgres(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (*database.PostgresClient, error) {
	var client *database.PostgresClient
	err := retryWithBackoff(ctx, 5, func() error {
		var err error
		client, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return client.Ping(ctx)
	}, zapLogger, "postgres")
	return client, err
}

func connectRedis(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (*database.RedisClient, error) {
	var client *database.RedisClient
	err := retryWithBackoff(ctx, 5, func() error {
		var err error
		client, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return client.Ping(ctx)
	}, zapLogger, "redis")
	return client, err
}

func connectElasticsearch(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (*database.ElasticsearchClient, error) {
	var client *database.ElasticsearchClient
	err := retryWithBackoff(ctx, 3, func() error {
		var err error
		client, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return client.Ping()
	}, zapLogger, "elasticsearch")
	return client, err
}

func buildNotifier(ctx context.Context, cfg *config.Config, log logger.Logger, zapLogger *zap.Logger) *alerts.Notifier {
	if !cfg.Alerts.Enabled {
		return nil
	}
	snsClient, err := commonaws.NewSNSClient(ctx, cfg.Alerts.Region)
	if err != nil {
		zapLogger.Warn("sns client unavailable", zap.Error(err))
	}
	sesClient, err := commonaws.NewSESClient(ctx, cfg.Alerts.Region)
	if err != nil {
		zapLogger.Warn("ses client unavailable", zap.Error(err))
	}
	var pub alerts.Publisher
	if snsClient != nil {
		pub = snsClient
	}
	var mail alerts.Mailer
	if sesClient != nil {
		mail = sesClient
	}
	return alerts.NewNotifier(cfg.Alerts, pub, mail, log)
}

// retryWithBackoff retries op with exponential backoff, seeded at one second.
func retryWithBackoff(ctx context.Context, attempts int, op func() error, zapLogger *zap.Logger, name string) error {
	backoff := time.Second
	var err error
	for i := 1; i <= attempts; i++ {
		if err = op(); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		zapLogger.Warn("connection attempt failed, retrying",
			zap.String("target", name),
			zap.Int("attempt", i),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("connect %s after %d attempts: %w", name, attempts, err)
}
