package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/cityguide/internal/config"
	"github.com/david/cityguide/internal/expiry"
)

func main() {
	dateFlag := flag.String("date", "", "Event date as entered (e.g. 14/03/2026, 2026-03-14, \"sábado 14 de marzo\")")
	timeFlag := flag.String("time", "", "Event time as entered (e.g. 21:00, 9 pm); empty means none")
	nowFlag := flag.String("now", "", "Reference time in RFC3339 (defaults to the current time)")
	graceFlag := flag.Duration("grace", expiry.GraceWindow, "Grace window applied when a time is given")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	loc, err := cfg.Location()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	now := time.Now().In(loc)
	if *nowFlag != "" {
		parsed, err := time.Parse(time.RFC3339, *nowFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -now: %v\n", err)
			os.Exit(2)
		}
		now = parsed.In(loc)
	}

	d := expiry.Normalizer{Grace: *graceFlag}.Evaluate(*dateFlag, *timeFlag, now)

	rule := d.Rule
	if rule == "" && d.HasDate {
		rule = "(none, defaults to today)"
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"Date", *dateFlag},
		{"Time", *timeFlag},
		{"Now", now.Format(time.RFC3339)},
		{"Rule", rule},
	})
	if d.HasDate {
		t.AppendRows([]table.Row{
			{"Instant", d.Instant.Format("Mon 2006-01-02 15:04")},
			{"Deadline", d.Deadline.Format("Mon 2006-01-02 15:04")},
		})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"Passed", d.Passed})
	t.Render()
}
