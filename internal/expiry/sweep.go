package expiry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/david/cityguide/internal/logger"
	"github.com/david/cityguide/internal/models"
)

// FeaturedWriter persists the featured flag.
type FeaturedWriter interface {
	SetFeatured(ctx context.Context, id uuid.UUID, featured bool) error
}

// FeaturedLister lists events currently flagged as featured.
type FeaturedLister interface {
	ListFeaturedEvents(ctx context.Context) ([]models.Event, error)
}

// StatsObserver receives the outcome of every sweep pass.
type StatsObserver interface {
	ObserveSweep(stats SweepStats, took time.Duration)
}

// SweepStats holds metrics about one sweep pass
type SweepStats struct {
	Checked int `json:"checked"`
	Expired int `json:"expired"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// Sweeper un-features lapsed events. It runs on every read of the event list,
// so a pass over already un-featured records issues no writes.
type Sweeper struct {
	Store       FeaturedWriter
	Normalizer  Normalizer
	Now         func() time.Time
	Location    *time.Location
	Concurrency int
	Log         *logger.Logger
	Observer    StatsObserver // optional
}

func (s *Sweeper) now() time.Time {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	if s.Location != nil {
		return now().In(s.Location)
	}
	return now()
}

// Sweep evaluates every featured event in events and un-features the lapsed
// ones. The returned slice is a copy reflecting the new flags even when a
// write failed; a failed write is retried by the next pass.
func (s *Sweeper) Sweep(ctx context.Context, events []models.Event) ([]models.Event, SweepStats) {
	out := make([]models.Event, len(events))
	copy(out, events)

	log := s.Log
	if log == nil {
		log = logger.Nop()
	}
	limit := s.Concurrency
	if limit <= 0 {
		limit = 4
	}

	start := time.Now()
	now := s.now()
	var (
		stats           SweepStats
		mu              sync.Mutex
		updated, failed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range out {
		if !out[i].IsFeatured {
			continue
		}
		stats.Checked++

		d := s.Normalizer.Evaluate(out[i].Date, out[i].TimeText(), now)
		if !d.Passed {
			continue
		}
		stats.Expired++
		out[i].IsFeatured = false

		id := out[i].ID
		g.Go(func() error {
			err := s.Store.SetFeatured(gctx, id, false)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				log.Error().Err(err).Str("event_id", id.String()).Msg("failed to un-feature lapsed event")
				return nil
			}
			updated++
			log.Debug().Str("event_id", id.String()).Time("deadline", d.Deadline).Msg("event un-featured")
			return nil
		})
	}
	_ = g.Wait()
	stats.Updated, stats.Failed = updated, failed
	if s.Observer != nil {
		s.Observer.ObserveSweep(stats, time.Since(start))
	}

	return out, stats
}

// Run lists the featured events and sweeps them.
func (s *Sweeper) Run(ctx context.Context, lister FeaturedLister) ([]models.Event, SweepStats, error) {
	events, err := lister.ListFeaturedEvents(ctx)
	if err != nil {
		return nil, SweepStats{}, fmt.Errorf("list featured events: %w", err)
	}
	out, stats := s.Sweep(ctx, events)
	return out, stats, nil
}
