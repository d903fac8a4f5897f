package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/torosent/collbench/internal/config"
	"github.com/torosent/collbench/internal/metrics"
	"github.com/torosent/collbench/internal/rendezvous"
	"github.com/torosent/collbench/internal/runner"
)

// storeFactory opens the rendezvous store selected by cfg.
func storeFactory(cfg *config.Config) runner.StoreFactory {
	switch cfg.Store {
	case config.StoreFile:
		return func(context.Context) (rendezvous.Store, error) {
			return rendezvous.NewFileStore(cfg.StorePath, rendezvous.FileOptions{KeyTTL: cfg.StoreKeyTTL})
		}
	default:
		opts := rendezvous.RedisOptions{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			KeyTTL:   cfg.StoreKeyTTL,
		}
		return func(context.Context) (rendezvous.Store, error) {
			return rendezvous.NewRedisStore(opts), nil
		}
	}
}

// serveMetrics exposes the exporter on addr until the returned server is
// shut down.
func serveMetrics(addr string, e *metrics.Exporter, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server")
		}
	}()
	log.Info().Str("addr", addr).Msg("serving metrics")
	return srv
}
