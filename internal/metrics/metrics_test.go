package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/david/cityguide/internal/expiry"
	"github.com/david/cityguide/internal/roster"
)

func TestObserveRosterLoad(t *testing.T) {
	m := New()

	snap := roster.ScheduleSnapshot{Pharmacies: make([]roster.PharmacyEntry, 3)}
	m.ObserveRosterLoad(snap, nil, 200*time.Millisecond)
	m.ObserveRosterLoad(roster.ScheduleSnapshot{}, fmt.Errorf("%w: boom", roster.ErrFetch), time.Second)

	if got := testutil.ToFloat64(m.rosterLoads.WithLabelValues("ok")); got != 1 {
		t.Fatalf("ok loads = %v", got)
	}
	if got := testutil.ToFloat64(m.rosterLoads.WithLabelValues("fetch")); got != 1 {
		t.Fatalf("fetch failures = %v", got)
	}
	if got := testutil.ToFloat64(m.rosterPharmacies); got != 3 {
		t.Fatalf("pharmacies gauge = %v", got)
	}
}

func TestObserveSweep(t *testing.T) {
	m := New()
	m.ObserveSweep(expiry.SweepStats{Checked: 4, Expired: 2, Updated: 1, Failed: 1}, time.Millisecond)
	m.ObserveSweep(expiry.SweepStats{Checked: 2}, time.Millisecond)

	tests := map[string]float64{"checked": 6, "expired": 2, "updated": 1, "failed": 1}
	for result, want := range tests {
		if got := testutil.ToFloat64(m.sweepEvents.WithLabelValues(result)); got != want {
			t.Fatalf("%s = %v, want %v", result, got, want)
		}
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRosterLoad(roster.ScheduleSnapshot{}, errors.Join(roster.ErrParse), time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	if !strings.Contains(string(body), `cityguide_roster_loads_total{outcome="parse"} 1`) {
		t.Fatalf("metric missing from exposition:\n%s", body)
	}
}
