// cmd/dealer-portal/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"dealer-portal/internal/api"
	"dealer-portal/internal/common/auth"
	"dealer-portal/internal/common/camunda"
	"dealer-portal/internal/common/config"
	"dealer-portal/internal/common/database"
	"dealer-portal/internal/common/logger"
	"dealer-portal/internal/common/observability"
	"dealer-portal/internal/dealer"
	"dealer-portal/internal/notification"
	"dealer-portal/internal/store"

	approve "dealer-portal/internal/workers/dealer/approve-application"
	reject "dealer-portal/internal/workers/dealer/reject-application"
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
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})

	zapLog.Info("starting dealer portal", zap.String("environment", cfg.App.Environment))

	ctx := context.Background()

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	// --- PostgreSQL ---
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
	zapLog.Info("PostgreSQL connected")

	if cfg.Database.Postgres.AutoMigrate {
		if err := database.Migrate(cfg.Database.Postgres, log); err != nil {
			zapLog.Fatal("migrations failed", zap.Error(err))
		}
	}

	st := store.New(pg.DB)

	// --- Role cache ---
	var roles dealer.RoleResolver = dealer.NewStoreRoles(st.Accounts())
	if cfg.Cache.Enabled {
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		roles = dealer.NewCachedRoles(roles, rdb, time.Duration(cfg.Cache.RoleTTL)*time.Second, log)
		zapLog.Info("Redis role cache enabled")
	}

	keycloak := auth.NewKeycloakClient(
		cfg.Auth.Keycloak.URL,
		cfg.Auth.Keycloak.Realm,
		cfg.Auth.Keycloak.ClientID,
		cfg.Auth.Keycloak.ClientSecret,
	)

	notifier, err := notification.FromConfig(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("notification setup failed", zap.Error(err))
	}

	svc := dealer.NewService(dealer.Options{
		Store:         st,
		Identity:      keycloak,
		Notifier:      notifier,
		Roles:         roles,
		Observability: obs,
		Logger:        log,
	})

	// --- Camunda workers ---
	var workers []*camunda.CamundaWorker
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(camunda.ClientConfigFrom(cfg.Camunda))
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		if err := zeebe.HealthCheck(ctx); err != nil {
			zapLog.Fatal("zeebe health check failed", zap.Error(err))
		}

		if config.IsWorkerEnabled(cfg, approve.TaskType) {
			wc := config.GetWorkerConfig(cfg, approve.TaskType)
			handler := approve.NewHandler(approve.LoadConfig(wc), svc, obs, log)
			workers = append(workers, camunda.NewWorker(zeebe.GetClient(), approve.TaskType, wc, handler, log))
		}
		if config.IsWorkerEnabled(cfg, reject.TaskType) {
			wc := config.GetWorkerConfig(cfg, reject.TaskType)
			handler := reject.NewHandler(reject.LoadConfig(wc), svc, obs, log)
			workers = append(workers, camunda.NewWorker(zeebe.GetClient(), reject.TaskType, wc, handler, log))
		}
		zapLog.Info("camunda workers registered", zap.Int("count", len(workers)))
	}

	// --- HTTP API ---
	router := api.NewRouter(
		api.NewHandler(svc, cfg.Auth.WebhookSecret, log),
		keycloak,
		api.RouterConfig{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			RequestTimeout: config.GetDuration(cfg.Server.WriteTimeout),
		},
		log,
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	for _, w := range workers {
		zapLog.Info("stopping camunda worker", zap.String("taskType", w.TaskType()))
		w.Stop()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("dealer portal stopped")
}
