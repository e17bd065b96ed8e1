package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/david/cityguide/internal/config"
	"github.com/david/cityguide/internal/logger"
	"github.com/david/cityguide/internal/roster"
)

func main() {
	urlFlag := flag.String("url", "", "Roster page URL (defaults to roster.url from config)")
	fetcherFlag := flag.String("fetcher", "", "Fetcher to use: http or colly")
	fileFlag := flag.String("file", "", "Extract from a saved page instead of fetching")
	flag.Parse()

	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(logger.Options{Level: cfg.Log.Level, Format: "console", Service: "roster-tool"})
	log := logger.Get()

	if *urlFlag != "" {
		cfg.Roster.URL = *urlFlag
	}
	if *fetcherFlag != "" {
		cfg.Roster.Fetcher = *fetcherFlag
	}

	var snap roster.ScheduleSnapshot
	if *fileFlag != "" {
		snap, err = extractFile(cfg, *fileFlag)
	} else {
		snap, err = fetchAndExtract(cfg, log)
	}
	if err != nil {
		log.Fatal().Err(err).Str("kind", roster.FailureKind(err)).Msg("extraction failed")
	}

	render(snap)
}

func extractFile(cfg *config.Config, path string) (roster.ScheduleSnapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return roster.ScheduleSnapshot{}, err
	}
	enc, err := roster.LookupEncoding(cfg.Roster.Encoding)
	if err != nil {
		return roster.ScheduleSnapshot{}, err
	}
	html, err := roster.Decode(raw, enc)
	if err != nil {
		return roster.ScheduleSnapshot{}, err
	}
	ex, err := roster.NewExtractor(cfg.RosterService().Markers)
	if err != nil {
		return roster.ScheduleSnapshot{}, err
	}
	return ex.Extract(html)
}

func fetchAndExtract(cfg *config.Config, log *logger.Logger) (roster.ScheduleSnapshot, error) {
	var fetcher roster.Fetcher = roster.NewHTTPFetcher(cfg.FetchConfig())
	if cfg.Roster.Fetcher == "colly" {
		fetcher = roster.NewCollyFetcher(cfg.FetchConfig(), log)
	}

	svc, err := roster.NewService(cfg.RosterService(), fetcher, log)
	if err != nil {
		return roster.ScheduleSnapshot{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	return svc.Load(ctx)
}

func render(snap roster.ScheduleSnapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(snap.ValidityText)
	t.Style().Title.Align = text.AlignCenter
	t.AppendHeader(table.Row{"#", "Name", "Address", "Phone"})
	for i, p := range snap.Pharmacies {
		t.AppendRow(table.Row{i + 1, p.Name, p.Address, p.Phone})
	}
	t.AppendFooter(table.Row{"", "", "Total", len(snap.Pharmacies)})
	t.Render()
}
