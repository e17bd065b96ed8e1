package roster

import (
	"context"
	"errors"
	"io"
	"time"
)

// PharmacyEntry is one on-call pharmacy as read from the roster page.
type PharmacyEntry struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"` // always starts with "Tel. "
}

// ScheduleSnapshot is the result of one extraction. It is rebuilt on every call.
type ScheduleSnapshot struct {
	ValidityText string          `json:"validity_text"`
	Pharmacies   []PharmacyEntry `json:"pharmacies"`
}

// Empty reports whether the snapshot carries no data at all.
func (s ScheduleSnapshot) Empty() bool {
	return s.ValidityText == "" && len(s.Pharmacies) == 0
}

// EmptySnapshot is what callers receive when extraction fails.
func EmptySnapshot() ScheduleSnapshot {
	return ScheduleSnapshot{Pharmacies: []PharmacyEntry{}}
}

// Failure kinds. Errors returned by this package wrap exactly one of them.
var (
	ErrFetch  = errors.New("roster fetch failed")
	ErrDecode = errors.New("roster decode failed")
	ErrParse  = errors.New("roster parse failed")
)

// FailureKind names the failure class of err for logging.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFetch):
		return "fetch"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrParse):
		return "parse"
	default:
		return "unknown"
	}
}

// FetchedDocument represents the raw result of a fetch operation.
type FetchedDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
	Headers     map[string][]string
}

// Fetcher retrieves raw content from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}

// FetchConfig defines HTTP fetching behaviour for the roster source.
type FetchConfig struct {
	TimeoutSeconds int
	MaxRetries     int
	MaxBodyBytes   int64
	AcceptLanguage string
	UserAgent      string
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func (c FetchConfig) withDefaults() FetchConfig {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 5 * 1024 * 1024
	}
	if c.AcceptLanguage == "" {
		c.AcceptLanguage = "es-AR,es;q=0.9,en;q=0.5"
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	return c
}
