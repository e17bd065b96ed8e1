package roster

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/encoding"

	"github.com/david/cityguide/internal/logger"
)

const (
	DefaultCacheTTL   = 4 * time.Hour
	DefaultFailureTTL = 5 * time.Minute

	cacheKey            = "roster"
	defaultMaxPageBytes = 5 * 1024 * 1024
)

// ServiceConfig wires the roster source.
type ServiceConfig struct {
	URL          string
	Encoding     string
	CacheTTL     time.Duration
	FailureTTL   time.Duration
	MaxBodyBytes int64 // same limit the fetcher applies
	Markers      Markers
	Observer     LoadObserver // optional
}

// LoadObserver is told about every uncached load.
type LoadObserver interface {
	ObserveRosterLoad(snap ScheduleSnapshot, err error, took time.Duration)
}

// Service fetches, decodes and extracts the roster, caching the outcome.
type Service struct {
	url       string
	fetcher   Fetcher
	enc       encoding.Encoding
	extractor *Extractor
	log       *logger.Logger
	observer  LoadObserver
	maxBody   int64

	snapshots *expirable.LRU[string, ScheduleSnapshot]
	failures  *expirable.LRU[string, error]
	group     singleflight.Group
}

// NewService validates cfg and builds a Service.
func NewService(cfg ServiceConfig, fetcher Fetcher, log *logger.Logger) (*Service, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("roster url is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("roster fetcher is required")
	}
	enc, err := LookupEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	ex, err := NewExtractor(cfg.Markers)
	if err != nil {
		return nil, err
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.FailureTTL <= 0 {
		cfg.FailureTTL = DefaultFailureTTL
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxPageBytes
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Service{
		url:       cfg.URL,
		fetcher:   fetcher,
		enc:       enc,
		extractor: ex,
		log:       log,
		observer:  cfg.Observer,
		maxBody:   cfg.MaxBodyBytes,
		snapshots: expirable.NewLRU[string, ScheduleSnapshot](1, nil, cfg.CacheTTL),
		failures:  expirable.NewLRU[string, error](1, nil, cfg.FailureTTL),
	}, nil
}

// Load runs fetch, decode and extract once, uncached. The error wraps one of
// ErrFetch, ErrDecode or ErrParse.
func (s *Service) Load(ctx context.Context) (ScheduleSnapshot, error) {
	doc, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		return ScheduleSnapshot{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer doc.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(doc.Body, s.maxBody))
	if err != nil {
		return ScheduleSnapshot{}, fmt.Errorf("%w: read body: %w", ErrFetch, err)
	}

	text, err := Decode(raw, s.enc)
	if err != nil {
		return ScheduleSnapshot{}, err
	}
	return s.extractor.Extract(text)
}

// Snapshot returns the cached roster, loading it when stale. Failures are
// logged and collapse to an empty snapshot.
func (s *Service) Snapshot(ctx context.Context) ScheduleSnapshot {
	if snap, ok := s.snapshots.Get(cacheKey); ok {
		return cloneSnapshot(snap)
	}
	if _, ok := s.failures.Get(cacheKey); ok {
		return EmptySnapshot()
	}

	v, err, _ := s.group.Do(cacheKey, func() (any, error) {
		if snap, ok := s.snapshots.Get(cacheKey); ok {
			return snap, nil
		}
		start := time.Now()
		snap, err := s.Load(context.WithoutCancel(ctx))
		if s.observer != nil {
			s.observer.ObserveRosterLoad(snap, err, time.Since(start))
		}
		if err != nil {
			s.failures.Add(cacheKey, err)
			return nil, err
		}
		s.snapshots.Add(cacheKey, snap)
		s.log.Info().Int("pharmacies", len(snap.Pharmacies)).Bool("validity", snap.ValidityText != "").Msg("roster refreshed")
		return snap, nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("kind", FailureKind(err)).Str("url", s.url).Msg("roster extraction failed")
		return EmptySnapshot()
	}
	return cloneSnapshot(v.(ScheduleSnapshot))
}

// Refresh drops cached results so the next Snapshot refetches.
func (s *Service) Refresh() {
	s.snapshots.Purge()
	s.failures.Purge()
}

func cloneSnapshot(s ScheduleSnapshot) ScheduleSnapshot {
	out := ScheduleSnapshot{ValidityText: s.ValidityText, Pharmacies: slices.Clone(s.Pharmacies)}
	if out.Pharmacies == nil {
		out.Pharmacies = []PharmacyEntry{}
	}
	return out
}
