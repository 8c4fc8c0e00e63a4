package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/forkcast-backend/api"
	"github.com/angelmondragon/forkcast-backend/api/controllers"
	"github.com/angelmondragon/forkcast-backend/api/routes"
	"github.com/angelmondragon/forkcast-backend/internal/clarification"
	"github.com/angelmondragon/forkcast-backend/internal/location"
	"github.com/angelmondragon/forkcast-backend/internal/parties"
	"github.com/angelmondragon/forkcast-backend/pkg/config"
	"github.com/angelmondragon/forkcast-backend/pkg/db"
	"github.com/angelmondragon/forkcast-backend/pkg/firestore"
	"github.com/angelmondragon/forkcast-backend/pkg/gemini"
	"github.com/angelmondragon/forkcast-backend/pkg/instance"
	"github.com/angelmondragon/forkcast-backend/pkg/logger"
	"github.com/angelmondragon/forkcast-backend/pkg/maps"
	"github.com/angelmondragon/forkcast-backend/pkg/metrics"
	"github.com/angelmondragon/forkcast-backend/pkg/migrate"
	"github.com/angelmondragon/forkcast-backend/pkg/outbox"
	"github.com/angelmondragon/forkcast-backend/pkg/pubsub"
	"github.com/angelmondragon/forkcast-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var checks []controllers.ReadinessCheck

	store, dbClient, closeStore, err := openStore(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap party store", err)
		os.Exit(1)
	}
	defer closeStore()
	checks = append(checks, controllers.ReadinessCheck{Name: "store", Pinger: store})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()
	checks = append(checks, controllers.ReadinessCheck{Name: "redis", Pinger: redisClient})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	params := parties.ServiceParams{
		Store:       store,
		Logger:      logg,
		Config:      cfg.Preferences,
		Cache:       redisClient,
		CombinedTTL: cfg.Redis.CombinedTTL,
		Metrics:     metrics.NewAggregationMetrics(registry),
	}

	var locations location.Service
	if cfg.GoogleMaps.APIKey != "" {
		mapsClient, err := maps.NewClient(cfg.GoogleMaps.APIKey, maps.WithTimeout(cfg.GoogleMaps.Timeout))
		if err != nil {
			logg.Error(ctx, "failed to create maps client", err)
			os.Exit(1)
		}
		locations = location.NewService(mapsClient)
		params.Geocoder = locations
	} else {
		logg.Warn(ctx, "google maps api key not set, location endpoints disabled")
	}

	var generator clarification.Generator
	if cfg.Gemini.APIKey != "" {
		geminiClient, err := gemini.NewClient(ctx, cfg.Gemini, logg)
		if err != nil {
			logg.Error(ctx, "failed to create gemini client", err)
			os.Exit(1)
		}
		defer geminiClient.Close()
		generator = geminiClient
	}
	params.Clarifier = clarification.NewService(clarification.ServiceParams{Generator: generator, Logger: logg})

	switch {
	case cfg.Outbox.Enabled:
		params.Publisher = outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
		logg.Info(ctx, "party events queued in the outbox")
	case cfg.PubSub.Enabled:
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer psClient.Close()

		handle := psClient.PartyEventsPublisher()
		publisher, err := pubsub.NewEventPublisher(handle, cfg.PubSub.PublishTimeout)
		if err != nil {
			logg.Error(ctx, "failed to create event publisher", err)
			os.Exit(1)
		}
		defer handle.Stop()
		params.Publisher = publisher
		checks = append(checks, controllers.ReadinessCheck{Name: "pubsub", Pinger: psClient})
	}

	partyService, err := parties.NewService(params)
	if err != nil {
		logg.Error(ctx, "failed to create party service", err)
		os.Exit(1)
	}

	server := api.NewServer(cfg, routes.NewRouter(routes.Deps{
		Config:          cfg,
		Logger:          logg,
		Parties:         partyService,
		Locations:       locations,
		Redis:           redisClient,
		Gatherer:        registry,
		ReadinessChecks: checks,
	}))

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     server.Addr,
		"instance": instance.GetID(),
		"store":    cfg.Store.Backend,
	})
	logg.Info(ctx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "api server shutdown failed", err)
		return
	}
	logg.Info(shutdownCtx, "api server stopped")
}

// openStore connects the configured party store and returns its closer. The sql
// client is nil for the firestore backend.
func openStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) (parties.Store, *db.Client, func(), error) {
	if !cfg.Store.UsesSQL() {
		fsClient, err := firestore.New(ctx, cfg.GCP, logg)
		if err != nil {
			return nil, nil, nil, err
		}
		closer := func() {
			if err := fsClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing firestore", err)
			}
		}
		return parties.NewFirestoreStore(fsClient.Firestore()), nil, closer, nil
	}

	dbClient, err := db.New(ctx, cfg.Store.Backend, cfg.DB, logg)
	if err != nil {
		return nil, nil, nil, err
	}
	closer := func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}
	if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
		closer()
		return nil, nil, nil, err
	}
	return parties.NewRepository(dbClient.DB()), dbClient, closer, nil
}
