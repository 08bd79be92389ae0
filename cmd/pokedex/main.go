// Package main is the entry point for the pokedex service.
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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ericreyes/pokedex/api"
	"github.com/ericreyes/pokedex/internal/cache"
	"github.com/ericreyes/pokedex/internal/config"
	"github.com/ericreyes/pokedex/internal/events"
	"github.com/ericreyes/pokedex/internal/metrics"
	"github.com/ericreyes/pokedex/internal/server"
	"github.com/ericreyes/pokedex/internal/store"
	"github.com/ericreyes/pokedex/internal/telemetry"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.DevMode {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", "pokedex").Str("version", version).Logger()
	}

	logger := log.With().Str("component", "main").Logger()
	logger.Info().Str("version", version).Str("commit", commit).Str("build_date", buildDate).Msg("starting pokedex")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "pokedex",
		ServiceVersion: version,
		TracesEnabled:  cfg.TracesEnabled,
		SampleRate:     1,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize tracing")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := shutdownTracing(shutdownCtx); shutdownErr != nil {
			logger.Error().Err(shutdownErr).Msg("failed to shut down tracing")
		}
	}()

	backend, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open store")
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if closeErr := backend.close(closeCtx); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close store")
		}
	}()
	logger.Info().Str("backend", cfg.StoreBackend).Msg("store ready")

	var st store.Store = backend.store
	if cfg.RedisAddr != "" {
		rc, cacheErr := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if cacheErr != nil {
			logger.Fatal().Err(cacheErr).Msg("failed to connect to redis")
		}
		defer rc.Close()
		st = cache.NewStore(st, rc, cfg.CacheTTL)
		logger.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.CacheTTL).Msg("read-through cache enabled")
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATSURL != "" {
		np, natsErr := events.NewNATSPublisher(events.NATSConfig{
			URL:           cfg.NATSURL,
			Name:          "pokedex-" + version,
			SubjectPrefix: cfg.NATSSubjectPrefix,
		})
		if natsErr != nil {
			logger.Fatal().Err(natsErr).Msg("failed to connect to nats")
		}
		publisher = np
		logger.Info().Str("url", cfg.NATSURL).Str("subject_prefix", cfg.NATSSubjectPrefix).Msg("change events enabled")
	}
	defer publisher.Close()

	opts := []server.Option{
		server.WithOpenAPISpec(api.OpenAPISpec),
		server.WithPublisher(publisher),
	}
	if cfg.MetricsEnabled {
		opts = append(opts, server.WithMetrics(metrics.New("pokedex")))
	}
	srv := server.New(st, cfg, version, commit, buildDate, opts...)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case serveErr := <-errCh:
		logger.Error().Err(serveErr).Msg("HTTP server error")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error().Err(shutdownErr).Msg("HTTP server shutdown error")
	}
	logger.Info().Msg("server stopped gracefully")
}
