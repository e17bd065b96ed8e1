package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/cityguide/internal/config"
	"github.com/david/cityguide/internal/db"
	"github.com/david/cityguide/internal/expiry"
	"github.com/david/cityguide/internal/logger"
)

// dryRunWriter records nothing; the sweep still reports what it would change.
type dryRunWriter struct{}

func (dryRunWriter) SetFeatured(context.Context, uuid.UUID, bool) error { return nil }

func main() {
	dryRun := flag.Bool("dry-run", false, "Evaluate featured events without writing")
	flag.Parse()

	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(logger.Options{Level: cfg.Log.Level, Format: "console", Service: "sweep-tool"})
	log := logger.Get()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid time zone")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	store := db.NewEventStore(pool)
	sweeper := &expiry.Sweeper{
		Store:       store,
		Normalizer:  expiry.Normalizer{Grace: cfg.Expiry.Grace},
		Location:    loc,
		Concurrency: cfg.Expiry.SweepConcurrency,
		Log:         log,
	}
	if *dryRun {
		sweeper.Store = dryRunWriter{}
	}

	before, err := store.ListFeaturedEvents(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list featured events")
	}
	after, stats := sweeper.Sweep(ctx, before)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Event", "Date", "Time", "Featured"})
	for i, e := range after {
		state := "kept"
		if before[i].IsFeatured && !e.IsFeatured {
			state = "un-featured"
		}
		t.AppendRow(table.Row{e.Title, e.Date, e.TimeText(), state})
	}
	t.Render()

	s := table.NewWriter()
	s.SetOutputMirror(os.Stdout)
	s.AppendHeader(table.Row{"Checked", "Expired", "Updated", "Failed", "Dry run"})
	s.AppendRow(table.Row{stats.Checked, stats.Expired, stats.Updated, stats.Failed, *dryRun})
	s.Render()
}
