// syncbridge keeps Dulcera's mobile app, B2B portal, B2C shop and ERP in
// sync: it serves the websocket hub, runs the periodic connector syncs and
// resolves cross-system conflicts.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/dulcera/syncbridge/auth"
	"github.com/dulcera/syncbridge/config"
	"github.com/dulcera/syncbridge/conflict"
	"github.com/dulcera/syncbridge/connector"
	"github.com/dulcera/syncbridge/event"
	"github.com/dulcera/syncbridge/logging"
	"github.com/dulcera/syncbridge/orchestrator"
	"github.com/dulcera/syncbridge/realtime"
	redisstore "github.com/dulcera/syncbridge/storage/redis"
	"github.com/dulcera/syncbridge/storage/sqlite"
)

func main() {
	godotenv.Load()

	logging.Init(logging.GetConfigFromEnv())
	logger := logging.Default().WithComponent("main")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	instanceID := uuid.NewString()

	// Shared store is optional: without redis the hub still serves local
	// clients, it just cannot fan out to peer instances.
	var store realtime.SharedStore
	if cfg.RedisURL != "" {
		client, err := redisstore.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, running local-only",
				slog.String("error", err.Error()))
		} else {
			defer client.Close()
			store = redisstore.NewStore(client, instanceID, logger)
		}
	}

	var journal *sqlite.DeadLetterStore
	if cfg.DeadLetterPath != "" {
		var err error
		journal, err = sqlite.New(&sqlite.Config{
			DataSourceName: cfg.DeadLetterPath,
			EnableWAL:      true,
			Logger:         logger,
		})
		if err != nil {
			return err
		}
		defer journal.Close()
	}

	emitter := connector.NewEmitter()
	erpConn := connector.NewERP(
		connector.NewClient("erp", cfg.ERP.BaseURL,
			connector.WithAPIKey(cfg.ERP.APIKey),
			connector.WithLogger(logger)),
		emitter)
	b2bConn := connector.NewB2B(
		connector.NewClient("b2b-portal", cfg.B2B.BaseURL,
			connector.WithBearerToken(cfg.B2B.APIKey),
			connector.WithLogger(logger)),
		emitter)
	b2cConn := connector.NewB2C(
		connector.NewClient("b2c-ecommerce", cfg.B2C.BaseURL,
			connector.WithAPIKey(cfg.B2C.APIKey),
			connector.WithLogger(logger)),
		emitter)

	resolver := conflict.NewResolver(logger)

	var orch *orchestrator.Orchestrator
	hub := realtime.NewHub(realtime.Options{
		Store:        store,
		Resolver:     resolver,
		Logger:       logger,
		PingInterval: cfg.PingInterval,
		PongTimeout:  cfg.PongTimeout,
		OnEventFailed: func(ev *event.SyncEvent, reason error) {
			orch.EventFailed(ev, reason)
		},
	})

	var deadLetter orchestrator.DeadLetterJournal
	if journal != nil {
		deadLetter = journal
	}
	orch = orchestrator.New(orchestrator.Options{
		ERP:                 erpConn,
		B2B:                 b2bConn,
		B2C:                 b2cConn,
		Hub:                 hub,
		Emitter:             emitter,
		DeadLetter:          deadLetter,
		History:             resolver,
		Logger:              logger,
		FullSyncInterval:    cfg.FullSyncInterval,
		HealthCheckInterval: cfg.HealthCheckInterval,
	})

	go hub.Run(ctx)
	go orch.Run(ctx)

	validator := auth.NewValidator(cfg.JWTSecret)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.With(validator.Middleware).Get("/ws", hub.ServeWS)
	r.Mount("/", orch.Routes(validator.Middleware))

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", srv.Addr), slog.String("instanceId", instanceID))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
