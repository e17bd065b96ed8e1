package expiry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/david/cityguide/internal/models"
)

type fakeStore struct {
	mu       sync.Mutex
	featured map[uuid.UUID]bool
	writes   int
	failFor  map[uuid.UUID]bool
	listErr  error
}

func newFakeStore(events ...models.Event) *fakeStore {
	s := &fakeStore{featured: map[uuid.UUID]bool{}, failFor: map[uuid.UUID]bool{}}
	for _, e := range events {
		s.featured[e.ID] = e.IsFeatured
	}
	return s
}

func (s *fakeStore) SetFeatured(_ context.Context, id uuid.UUID, featured bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failFor[id] {
		return errors.New("connection reset")
	}
	s.featured[id] = featured
	return nil
}

func (s *fakeStore) ListFeaturedEvents(context.Context) ([]models.Event, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return []models.Event{}, nil
}

func strPtr(s string) *string { return &s }

func event(title, date string, clock *string, featured bool) models.Event {
	return models.Event{ID: uuid.New(), Title: title, Date: date, Time: clock, IsFeatured: featured}
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSweep_UnfeaturesLapsedEvents(t *testing.T) {
	events := []models.Event{
		event("past show", "10/03/2026", nil, true),
		event("tonight", "14/03/2026", strPtr("21:00"), true),
		event("undated", "", nil, true),
		event("old but not featured", "01/01/2026", nil, false),
	}
	store := newFakeStore(events...)
	s := &Sweeper{Store: store, Now: fixedNow(at(2026, 3, 14, 12, 0))}

	out, stats := s.Sweep(context.Background(), events)

	if stats.Checked != 3 || stats.Expired != 1 || stats.Updated != 1 || stats.Failed != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if out[0].IsFeatured {
		t.Fatal("lapsed event must be un-featured")
	}
	if !out[1].IsFeatured || !out[2].IsFeatured {
		t.Fatal("upcoming and undated events must stay featured")
	}
	if out[3].IsFeatured {
		t.Fatal("non-featured event must stay non-featured")
	}
	if store.featured[events[0].ID] {
		t.Fatal("store should have received the un-feature write")
	}
	if !events[0].IsFeatured {
		t.Fatal("input slice must not be modified")
	}
}

func TestSweep_SecondPassIssuesNoWrites(t *testing.T) {
	events := []models.Event{
		event("a", "01/03/2026", nil, true),
		event("b", "2026-03-02", strPtr("20:00"), true),
		event("c", "sábado 28 de marzo", nil, true),
	}
	store := newFakeStore(events...)
	s := &Sweeper{Store: store, Now: fixedNow(at(2026, 3, 14, 12, 0))}

	first, stats := s.Sweep(context.Background(), events)
	if stats.Updated != 2 || store.writes != 2 {
		t.Fatalf("first pass: stats %+v, writes %d", stats, store.writes)
	}

	second, stats := s.Sweep(context.Background(), first)
	if store.writes != 2 {
		t.Fatalf("second pass issued %d extra writes", store.writes-2)
	}
	if stats.Expired != 0 || stats.Checked != 1 {
		t.Fatalf("second pass stats %+v", stats)
	}
	for i := range first {
		if first[i].IsFeatured != second[i].IsFeatured {
			t.Fatalf("event %d changed on second pass", i)
		}
	}
}

func TestSweep_WriteFailureDoesNotAbort(t *testing.T) {
	events := []models.Event{
		event("a", "01/03/2026", nil, true),
		event("b", "02/03/2026", nil, true),
		event("c", "03/03/2026", nil, true),
	}
	store := newFakeStore(events...)
	store.failFor[events[1].ID] = true
	s := &Sweeper{Store: store, Now: fixedNow(at(2026, 3, 14, 12, 0)), Concurrency: 1}

	out, stats := s.Sweep(context.Background(), events)

	if stats.Expired != 3 || stats.Updated != 2 || stats.Failed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if store.writes != 3 {
		t.Fatalf("expected every lapsed event to be written, got %d writes", store.writes)
	}
	for _, e := range out {
		if e.IsFeatured {
			t.Fatalf("%s should be reported as un-featured", e.Title)
		}
	}
	if !store.featured[events[1].ID] {
		t.Fatal("failed write must leave the stored flag unchanged")
	}
}

func TestSweep_UsesConfiguredLocation(t *testing.T) {
	// 02:00 UTC on the 15th is still the 14th in Buenos Aires.
	events := []models.Event{event("late", "14/03/2026", nil, true)}
	store := newFakeStore(events...)
	s := &Sweeper{
		Store:    store,
		Now:      fixedNow(time.Date(2026, 3, 15, 2, 0, 0, 0, time.UTC)),
		Location: buenosAires,
	}

	_, stats := s.Sweep(context.Background(), events)
	if stats.Expired != 0 {
		t.Fatalf("event should still be current in local time: %+v", stats)
	}
}

func TestRun_ListError(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("db down")
	s := &Sweeper{Store: store}

	if _, _, err := s.Run(context.Background(), store); err == nil {
		t.Fatal("expected list error")
	}
}

type statsRecorder struct{ got []SweepStats }

func (r *statsRecorder) ObserveSweep(stats SweepStats, _ time.Duration) { r.got = append(r.got, stats) }

func TestSweep_ReportsToObserver(t *testing.T) {
	events := []models.Event{event("a", "01/03/2026", nil, true)}
	rec := &statsRecorder{}
	s := &Sweeper{Store: newFakeStore(events...), Now: fixedNow(at(2026, 3, 14, 12, 0)), Observer: rec}

	s.Sweep(context.Background(), events)
	if len(rec.got) != 1 || rec.got[0].Updated != 1 {
		t.Fatalf("unexpected observations %+v", rec.got)
	}
}
