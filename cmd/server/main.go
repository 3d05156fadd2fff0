// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"demo-backend/internal/common/auth"
	"demo-backend/internal/common/aws"
	"demo-backend/internal/common/config"
	"demo-backend/internal/common/database"
	"demo-backend/internal/common/logger"
	"demo-backend/internal/common/observability"
	"demo-backend/internal/demorequest"
	"demo-backend/internal/provisioning"
	"demo-backend/internal/server"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting demo-backend...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, cfg.Observability.JaegerEndpoint)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (optional audit sink) ---
	var audit demorequest.AuditIndexer
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		audit = demorequest.NewElasticsearchAuditIndexer(esClient, cfg.Database.Elasticsearch.AuditIndex)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Init SES notifier (optional) ---
	var notifier demorequest.Notifier
	if cfg.Notifications.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client initialization failed", zap.Error(err))
		}
		notifier = demorequest.NewEmailNotifier(sesClient, cfg.Notifications.Email.FromEmail)
		zapLog.Info("SES notifier initialized")
	}

	verifier := auth.NewKeycloakVerifier(cfg.Auth, redisClient.Client, log)
	provisioner := provisioning.NewClient(cfg.Provisioning)

	demoCfg := demorequest.ConfigFromApp(cfg)
	if err := demoCfg.Validate(); err != nil {
		zapLog.Fatal("invalid demo workflow config", zap.Error(err))
	}

	store := demorequest.NewSQLStore(pg.DB)
	service := demorequest.NewService(demorequest.ServiceDependencies{
		Store:       store,
		Provisioner: provisioner,
		Logger:      log,
		Obs:         obs,
		Audit:       audit,
		Notifier:    notifier,
	}, demoCfg)

	reconciler := demorequest.NewReconciler(store, demoCfg, log)
	reconciler.Start()

	srv := server.New(cfg, service, verifier, log,
		server.HealthCheck{Name: "postgres", Check: pg.Ping},
		server.HealthCheck{Name: "redis", Check: redisClient.Ping},
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	// --- Graceful shutdown ---
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		zapLog.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			zapLog.Error("http server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Millisecond)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}
	reconciler.Stop()

	zapLog.Info("Shutdown complete")
}
