package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	_ "time/tzdata"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"app_reviews/internal/adapters/appstore"
	"app_reviews/internal/adapters/googleplay"
	"app_reviews/internal/adapters/observability"
	redisad "app_reviews/internal/adapters/redis"
	"app_reviews/internal/app"
	"app_reviews/internal/domain"
	"app_reviews/internal/shared"
	mysqlrepo "app_reviews/internal/storage/mysql"
)

func main() {
	// run owns every deferred close; exit only after they have executed
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	runID := uuid.NewString()
	l := log.With().Str("run_id", runID).Logger()

	tf, err := shared.LoadTargets(cfg.TargetsFile)
	if err != nil {
		l.Error().Err(err).Str("file", cfg.TargetsFile).Msg("failed to load targets")
		return 1
	}
	l.Info().
		Int("targets", len(tf.Targets)).
		Int("workers", cfg.Workers).
		Msg("ingestor starting")

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// 2) delivery collaborators; both are optional
	var store domain.ExportStore
	if cfg.RedisAddr != "" {
		rs := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rs.Ping(ctx); err != nil {
			l.Error().Err(err).Msg("redis ping failed")
			return 1
		}
		defer rs.Close()
		store = rs
	} else {
		l.Warn().Msg("REDIS_ADDR is empty; exports will not be published")
	}

	var archive domain.ReviewArchive
	if cfg.MySQLDSN != "" {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			l.Error().Err(err).Msg("sql.Open failed")
			return 1
		}
		if err := db.PingContext(ctx); err != nil {
			l.Error().Err(err).Msg("db.Ping failed")
			return 1
		}
		defer db.Close()
		l.Info().Msg("db ping ok")
		archive = mysqlrepo.New(db)
	}

	norm := app.NewNormalizer(app.LoadZone(cfg.DisplayTZ))
	pipe := app.NewPipeline(
		googleplay.New(cfg.GoogleBase, cfg.OutboundRPS),
		appstore.New(cfg.AppleBase, cfg.OutboundRPS),
		norm,
	)
	ing := app.NewIngestionService(pipe, store, archive, cfg.ExportTTL)

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var (
		wg     sync.WaitGroup
		failed atomic.Int32
	)

	for _, group := range tf.Groups() {
		jobs := make([]app.Job, 0, len(group))
		for _, t := range group {
			jobs = append(jobs, app.Job{Config: t.RunConfig(cfg, norm.Location()), Formats: t.ExportFormats()})
		}

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			l.Warn().Err(err).Msg("ingestion interrupted")
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			// targets of one group run sequentially, each in its own failure boundary
			results, err := ing.IngestGroup(ctx, runID, jobs...)
			for _, res := range results {
				tl := l.With().Str("source", string(res.Source)).Str("app_id", res.AppID).Logger()
				if res.Err != nil {
					tl.Warn().Err(res.Err).Msg(res.Message)
					continue
				}
				tl.Info().Int("rows", len(res.Rows)).Msg(res.Message)
			}
			if err != nil {
				failed.Add(1)
				l.Warn().Err(err).Int("targets", len(jobs)).Msg("ingest failed")
			}
		}()
	}

	wg.Wait()
	if n := failed.Load(); n > 0 {
		l.Error().Int32("failed_groups", n).Msg("ingestion completed with failures")
		return 1
	}
	l.Info().Msg("ingestion completed")
	return 0
}
