package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aquamarinepk/cruddemo/internal/item"
	"github.com/aquamarinepk/cruddemo/internal/platform"
	"github.com/aquamarinepk/cruddemo/internal/platform/events"
	"github.com/aquamarinepk/cruddemo/internal/platform/middleware"
	"github.com/aquamarinepk/cruddemo/internal/platform/telemetry"
)

var defaults = map[string]any{
	"http.port":            ":8080",
	"http.timeout":         "30s",
	"grpc.enabled":         false,
	"grpc.port":            ":50051",
	"log.level":            "info",
	"db.driver":            "memory",
	"db.maxconns":          10,
	"mongo.database":       appName,
	"mongo.connecttimeout": "10s",
	"cache.driver":         "none",
	"cache.ttl":            "5m",
	"events.driver":        "gochannel",
	"events.topic":         item.DefaultTopic,
	"events.group":         appName,
	"tracing.service":      appName,
	"stats.schedule":       item.DefaultStatsSchedule,
	"seed.enabled":         true,
}

func loadConfig(args []string) (*platform.Config, platform.Logger, error) {
	cfg, err := platform.LoadConfig(namespace, args, defaults)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, platform.NewLogger(cfg.GetStringOrDef("log.level", "info")), nil
}

// storageConfig gathers the db, mongo, cache and redis subtrees.
func storageConfig(cfg *platform.Config) (item.StorageConfig, error) {
	var sc item.StorageConfig
	for path, target := range map[string]any{
		"db":    &sc.DB,
		"mongo": &sc.Mongo,
		"cache": &sc.Cache,
		"redis": &sc.Cache,
	} {
		if err := cfg.Unmarshal(path, target); err != nil {
			return sc, err
		}
	}
	return sc, nil
}

func openStorage(ctx context.Context, cfg *platform.Config, log platform.Logger) (*item.Storage, error) {
	sc, err := storageConfig(cfg)
	if err != nil {
		return nil, err
	}
	storage, err := item.OpenStorage(ctx, sc, log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close(ctx)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return storage, nil
}

func eventsOptions(cfg *platform.Config) events.Options {
	return events.Options{
		Driver:  cfg.GetStringOrDef("events.driver", "none"),
		Brokers: cfg.GetStringSliceOrDef("kafka.brokers", nil),
		GroupID: cfg.GetStringOrDef("events.group", appName),
	}
}

func serve(ctx context.Context, args []string) error {
	cfg, log, err := loadConfig(args)
	if err != nil {
		return err
	}

	storage, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}

	tracer, shutdownTracing, err := telemetry.InitTracing(ctx,
		cfg.GetStringOrDef("tracing.endpoint", ""),
		cfg.GetStringOrDef("tracing.service", appName))
	if err != nil {
		_ = storage.Close(ctx)
		return err
	}

	bus, err := events.New(eventsOptions(cfg), log)
	if err != nil {
		_ = storage.Close(ctx)
		return errors.Join(err, shutdownTracing(ctx))
	}

	metrics := telemetry.NewPrometheus(appName)
	reporter := platform.NewLoggingErrorReporter(log)
	topic := cfg.GetStringOrDef("events.topic", item.DefaultTopic)

	svc := item.NewService(storage.Repo, log,
		item.WithTracer(tracer),
		item.WithPublisher(bus, topic),
	)
	if cfg.GetBoolOrDef("seed.enabled", true) {
		if err := item.ApplySeeds(ctx, svc, storage.Tracker); err != nil {
			log.Error("apply seeds", "error", err)
		}
	}

	stats, err := item.NewStats(svc, metrics, cfg.GetStringOrDef("stats.schedule", item.DefaultStatsSchedule), log)
	if err != nil {
		_ = storage.Close(ctx)
		return errors.Join(err, bus.Close(), shutdownTracing(ctx))
	}

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:              log,
		Metrics:             metrics,
		Tracer:              tracer,
		Propagator:          telemetry.Propagator,
		Errors:              reporter,
		Timeout:             cfg.GetDurationOrDef("http.timeout", 30*time.Second),
		AllowedContentTypes: []string{"application/json"},
	})

	opts := []platform.Option{
		platform.WithConfig(cfg),
		platform.WithLogger(log),
		platform.WithMetrics(metrics),
		platform.WithMetricsHandler(metrics.Handler()),
		platform.WithTracer(tracer),
		platform.WithErrorReporter(reporter),
		platform.WithPubSub(bus),
		platform.WithBuildInfo(appName, version),
		platform.WithHTTPMiddleware(stack...),
		platform.WithHealthChecks("items", nil, storage.Ready),
		platform.WithDebugRoutes(middleware.InternalOnly()),
		platform.WithLifecycle(storage.Components()...),
		platform.WithLifecycle(bus, stats, item.NewAuditLog(bus, topic, log)),
		platform.WithHTTPServerModules("http.port",
			item.NewHandler(svc, log),
			item.NewPage(svc, log),
		),
		platform.WithShutdown(func(context.Context) error { return bus.Close() }),
		platform.WithShutdown(shutdownTracing),
	}
	if cfg.GetBoolOrDef("grpc.enabled", false) {
		opts = append(opts, platform.WithGRPCServer("grpc.port"))
	}

	ms, err := platform.NewMicro(opts...)
	if err != nil {
		_ = storage.Close(ctx)
		return errors.Join(fmt.Errorf("build service: %w", err), bus.Close(), shutdownTracing(ctx))
	}
	return ms.Run(ctx)
}

func migrate(ctx context.Context, args []string) error {
	cfg, log, err := loadConfig(args)
	if err != nil {
		return err
	}
	storage, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	log.Info("schema applied", "driver", cfg.GetStringOrDef("db.driver", "memory"))
	return storage.Close(ctx)
}

func runSeeds(ctx context.Context, args []string) error {
	cfg, log, err := loadConfig(args)
	if err != nil {
		return err
	}
	storage, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	svc := item.NewService(storage.Repo, log)
	err = item.ApplySeeds(ctx, svc, storage.Tracker)
	if err == nil {
		log.Info("seeds applied")
	}
	return errors.Join(err, storage.Close(ctx))
}
