package roster

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type stubFetcher struct {
	mu    sync.Mutex
	body  []byte
	err   error
	calls atomic.Int32
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (*FetchedDocument, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &FetchedDocument{URL: url, StatusCode: 200, Body: io.NopCloser(bytes.NewReader(f.body))}, nil
}

func (f *stubFetcher) set(body []byte, err error) {
	f.mu.Lock()
	f.body, f.err = body, err
	f.mu.Unlock()
}

// latin1Page is a roster cell with "Colón" encoded as windows-1252.
var latin1Page = []byte("<table><tr><td>FARMACIA SOL Col\xf3n 10 Tel. 420000</td></tr></table>")

func newTestService(t *testing.T, f Fetcher, ttl, failTTL time.Duration) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{
		URL:        "https://roster.example/turnos.htm",
		CacheTTL:   ttl,
		FailureTTL: failTTL,
		Markers:    DefaultMarkers(),
	}, f, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestService_LoadDecodesCodepage(t *testing.T) {
	f := &stubFetcher{body: latin1Page}
	snap, err := newTestService(t, f, time.Hour, time.Minute).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Pharmacies) != 1 || snap.Pharmacies[0].Address != "Colón 10" {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
}

func TestService_LoadHonoursMaxBodyBytes(t *testing.T) {
	// The roster table sits after 6 MiB of padding, past the default limit.
	page := append(bytes.Repeat([]byte(" "), 6<<20), latin1Page...)

	for _, tt := range []struct {
		name    string
		limit   int64
		wantRow bool
	}{
		{"default limit truncates", 0, false},
		{"configured limit reads the whole page", 7 << 20, true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(ServiceConfig{
				URL:          "https://roster.example/turnos.htm",
				MaxBodyBytes: tt.limit,
				Markers:      DefaultMarkers(),
			}, &stubFetcher{body: page}, nil)
			if err != nil {
				t.Fatalf("NewService: %v", err)
			}
			snap, err := svc.Load(context.Background())
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got := len(snap.Pharmacies) == 1; got != tt.wantRow {
				t.Fatalf("pharmacy found = %v, want %v", got, tt.wantRow)
			}
		})
	}
}

func TestService_LoadWrapsFetchError(t *testing.T) {
	f := &stubFetcher{err: errors.New("connection refused")}
	_, err := newTestService(t, f, time.Hour, time.Minute).Load(context.Background())
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if FailureKind(err) != "fetch" {
		t.Fatalf("unexpected kind %q", FailureKind(err))
	}
}

func TestService_SnapshotCollapsesFailure(t *testing.T) {
	f := &stubFetcher{err: errors.New("timeout")}
	snap := newTestService(t, f, time.Hour, time.Minute).Snapshot(context.Background())
	if !snap.Empty() || snap.Pharmacies == nil {
		t.Fatalf("expected empty snapshot with non-nil slice, got %#v", snap)
	}
}

func TestService_SnapshotIsCached(t *testing.T) {
	f := &stubFetcher{body: latin1Page}
	svc := newTestService(t, f, time.Hour, time.Minute)

	first := svc.Snapshot(context.Background())
	first.Pharmacies[0].Name = "mutated"
	second := svc.Snapshot(context.Background())

	if f.calls.Load() != 1 {
		t.Fatalf("expected one fetch, got %d", f.calls.Load())
	}
	if second.Pharmacies[0].Name != "FARMACIA SOL" {
		t.Fatalf("cached snapshot must not be shared with callers, got %q", second.Pharmacies[0].Name)
	}
}

func TestService_CacheExpires(t *testing.T) {
	f := &stubFetcher{body: latin1Page}
	svc := newTestService(t, f, 20*time.Millisecond, time.Minute)

	svc.Snapshot(context.Background())
	time.Sleep(80 * time.Millisecond)
	svc.Snapshot(context.Background())

	if f.calls.Load() != 2 {
		t.Fatalf("expected refetch after TTL, got %d fetches", f.calls.Load())
	}
}

func TestService_FailureIsRememberedThenRefreshed(t *testing.T) {
	f := &stubFetcher{err: errors.New("down")}
	svc := newTestService(t, f, time.Hour, time.Hour)

	svc.Snapshot(context.Background())
	svc.Snapshot(context.Background())
	if f.calls.Load() != 1 {
		t.Fatalf("expected failure to be cached, got %d fetches", f.calls.Load())
	}

	f.set(latin1Page, nil)
	svc.Refresh()
	snap := svc.Snapshot(context.Background())
	if len(snap.Pharmacies) != 1 {
		t.Fatalf("expected fresh snapshot after Refresh, got %#v", snap)
	}
}

func TestService_ConcurrentMissesFetchOnce(t *testing.T) {
	f := &slowFetcher{stubFetcher: stubFetcher{body: latin1Page}, delay: 50 * time.Millisecond}
	svc := newTestService(t, f, time.Hour, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Snapshot(context.Background())
		}()
	}
	wg.Wait()

	if f.calls.Load() != 1 {
		t.Fatalf("expected concurrent misses to share one fetch, got %d", f.calls.Load())
	}
}

type slowFetcher struct {
	stubFetcher
	delay time.Duration
}

func (f *slowFetcher) Fetch(ctx context.Context, url string) (*FetchedDocument, error) {
	time.Sleep(f.delay)
	return f.stubFetcher.Fetch(ctx, url)
}

func TestNewService_Validates(t *testing.T) {
	if _, err := NewService(ServiceConfig{}, &stubFetcher{}, nil); err == nil {
		t.Fatal("expected error for missing URL")
	}
	if _, err := NewService(ServiceConfig{URL: "https://x", Encoding: "utf-8", Markers: DefaultMarkers()}, &stubFetcher{}, nil); err == nil {
		t.Fatal("expected error for multi-byte encoding")
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	kinds []string
}

func (o *recordingObserver) ObserveRosterLoad(_ ScheduleSnapshot, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	kind := "ok"
	if err != nil {
		kind = FailureKind(err)
	}
	o.kinds = append(o.kinds, kind)
}

func TestService_ObserverSeesUncachedLoadsOnly(t *testing.T) {
	f := &stubFetcher{body: latin1Page}
	obs := &recordingObserver{}
	svc, err := NewService(ServiceConfig{
		URL:      "https://roster.example/turnos.htm",
		Markers:  DefaultMarkers(),
		Observer: obs,
	}, f, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	svc.Snapshot(ctx)
	svc.Snapshot(ctx)
	svc.Refresh()
	f.set(nil, errors.New("dial tcp: timeout"))
	svc.Snapshot(ctx)

	if len(obs.kinds) != 2 || obs.kinds[0] != "ok" || obs.kinds[1] != "fetch" {
		t.Fatalf("unexpected observations %v", obs.kinds)
	}
}
