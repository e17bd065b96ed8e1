package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/david/cityguide/internal/api"
	"github.com/david/cityguide/internal/config"
	"github.com/david/cityguide/internal/db"
	"github.com/david/cityguide/internal/expiry"
	"github.com/david/cityguide/internal/logger"
	"github.com/david/cityguide/internal/metrics"
	"github.com/david/cityguide/internal/roster"
)

func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.LoggerOptions("cityguide-api"))
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	loc, _ := cfg.Location()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, log); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	m := metrics.New()

	svcCfg := cfg.RosterService()
	svcCfg.Observer = m
	rosterSvc, err := roster.NewService(svcCfg, newFetcher(cfg, log), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build roster service")
	}

	store := db.NewEventStore(pool)
	sweeper := &expiry.Sweeper{
		Store:       store,
		Normalizer:  expiry.Normalizer{Grace: cfg.Expiry.Grace},
		Location:    loc,
		Concurrency: cfg.Expiry.SweepConcurrency,
		Log:         log,
		Observer:    m,
	}

	srv, err := api.NewServer(rosterSvc, store, sweeper, api.Options{
		AdminSecret: cfg.Server.AdminSecret,
		CORSOrigins: cfg.CORSOrigins(),
		Log:         log,
		Metrics:     m.Handler(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build api server")
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server starting")
		if err := srv.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}

func newFetcher(cfg *config.Config, log *logger.Logger) roster.Fetcher {
	if cfg.Roster.Fetcher == "colly" {
		return roster.NewCollyFetcher(cfg.FetchConfig(), log)
	}
	return roster.NewHTTPFetcher(cfg.FetchConfig())
}
