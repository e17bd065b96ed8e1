package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/cityguide/internal/config"
	"github.com/david/cityguide/internal/db"
	"github.com/david/cityguide/internal/expiry"
	"github.com/david/cityguide/internal/logger"
	"github.com/david/cityguide/internal/models"
)

func main() {
	title := flag.String("title", "", "Event title")
	venue := flag.String("venue", "", "Venue")
	date := flag.String("date", "", "Date as the editor would type it")
	clock := flag.String("time", "", "Optional time")
	featured := flag.Bool("featured", false, "Mark the event as featured")
	flag.Parse()

	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(logger.Options{Level: cfg.Log.Level, Format: "console", Service: "add-event"})
	log := logger.Get()

	if strings.TrimSpace(*title) == "" {
		log.Fatal().Msg("please provide a title using -title")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, log); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	e := &models.Event{Title: *title, Venue: *venue, Date: *date, IsFeatured: *featured}
	if *clock != "" {
		e.Time = clock
	}
	if err := db.NewEventStore(pool).CreateEvent(ctx, e); err != nil {
		log.Fatal().Err(err).Msg("failed to create event")
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid time zone")
	}
	d := expiry.Normalizer{Grace: cfg.Expiry.Grace}.Evaluate(e.Date, e.TimeText(), time.Now().In(loc))

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Title", "Date", "Time", "Featured", "Already passed"})
	t.AppendRow(table.Row{e.ID, e.Title, e.Date, e.TimeText(), e.IsFeatured, d.Passed})
	t.Render()
}
