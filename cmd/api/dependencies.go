package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmondal123/excel-chat/internal/domain/terms/handler"
	"github.com/dmondal123/excel-chat/internal/domain/terms/service"
	"github.com/dmondal123/excel-chat/pkg/config"
	"github.com/dmondal123/excel-chat/pkg/cron"
	"github.com/dmondal123/excel-chat/pkg/metrics"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	Store      service.DatasetStore
	RedisStore *service.RedisStore // nil when the memory store is used

	Service   *service.Service
	Handler   *handler.Handler
	Scheduler *cron.Scheduler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	if err := deps.initStore(); err != nil {
		return nil, fmt.Errorf("failed to init dataset store: %w", err)
	}

	deps.initServices()
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initStore picks the redis-backed store when an address is configured,
// otherwise the in-process store.
func (d *Dependencies) initStore() error {
	if d.Config.Datasets.RedisAddr == "" {
		d.Store = service.NewMemoryStore()
		d.Logger.Info("using in-memory dataset store")
		return nil
	}

	store := service.NewRedisStore(d.Config.Datasets.RedisAddr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("redis at %s unreachable: %w", d.Config.Datasets.RedisAddr, err)
	}

	d.RedisStore = store
	d.Store = store
	d.Logger.Info("using redis dataset store", slog.String("addr", d.Config.Datasets.RedisAddr))
	return nil
}

func (d *Dependencies) initServices() {
	d.Service = service.NewService(d.Store, d.Config, d.Logger, d.Metrics)
	d.Scheduler = cron.NewScheduler(d.Service, d.Config.Datasets.SweepSchedule, d.Logger)
}

func (d *Dependencies) initHandlers() {
	d.Handler = handler.NewHandler(d.Service, d.Logger)
}

// Close releases held connections.
func (d *Dependencies) Close() {
	if d.RedisStore != nil {
		if err := d.RedisStore.Close(); err != nil {
			d.Logger.Warn("failed to close redis store", slog.Any("error", err))
		}
	}
}
