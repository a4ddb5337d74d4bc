package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	termshandler "github.com/dmondal123/excel-chat/internal/domain/terms/handler"
	"github.com/dmondal123/excel-chat/pkg/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	deps, err := InitDependencies(cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	if err := deps.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer deps.Scheduler.Stop()

	router := buildRouter(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func buildRouter(deps *Dependencies) http.Handler {
	router := mux.NewRouter()

	router.Use(termshandler.RequestLogger(deps.Logger))
	router.Use(termshandler.RateLimit(deps.Config.Server.RateLimitPerSecond, deps.Config.Server.RateLimitBurst))
	if deps.Config.Metrics.Enabled {
		router.Use(termshandler.Instrument(deps.Metrics))
		router.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)
	}

	deps.Handler.Register(router)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	})

	return gorillahandlers.RecoveryHandler(
		gorillahandlers.PrintRecoveryStack(false),
	)(gorillahandlers.CompressHandler(corsMiddleware.Handler(router)))
}
