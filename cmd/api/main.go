package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog/log"

	"app_reviews/internal/adapters/appstore"
	"app_reviews/internal/adapters/googleplay"
	server "app_reviews/internal/adapters/http_server"
	"app_reviews/internal/adapters/observability"
	redisad "app_reviews/internal/adapters/redis"
	"app_reviews/internal/app"
	"app_reviews/internal/domain"
	"app_reviews/internal/shared"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	pipe := app.NewPipeline(
		googleplay.New(cfg.GoogleBase, cfg.OutboundRPS),
		appstore.New(cfg.AppleBase, cfg.OutboundRPS),
		app.NewNormalizer(app.LoadZone(cfg.DisplayTZ)),
	)

	// the export store is optional; without it /v1/exports answers 503
	var store domain.ExportStore
	if cfg.RedisAddr != "" {
		rs := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rs.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed; published exports may be unavailable")
		}
		defer rs.Close()
		store = rs
	}

	srv := server.New(2 * time.Minute)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		P:     pipe,
		Store: store,
		Defaults: server.Defaults{
			MaxCount: cfg.DefaultMaxCount,
			Country:  cfg.DefaultCountry,
			Lang:     cfg.DefaultLang,
		},
	})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("tz", cfg.DisplayTZ).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
