package roster

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/david/cityguide/internal/logger"
)

// CollyFetcher implements Fetcher using a synchronous Colly collector.
// Charset detection stays off: the roster decoder owns the codepage.
type CollyFetcher struct {
	UserAgent       string
	MaxRetries      int
	RequestTimeout  time.Duration
	MaxBodySize     int
	IgnoreRobotsTxt bool
	Log             *logger.Logger
}

// NewCollyFetcher creates a CollyFetcher from the shared fetch config.
func NewCollyFetcher(cfg FetchConfig, log *logger.Logger) *CollyFetcher {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &CollyFetcher{
		UserAgent:      cfg.UserAgent,
		MaxRetries:     cfg.MaxRetries,
		RequestTimeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxBodySize:    int(cfg.MaxBodyBytes),
		Log:            log,
	}
}

func (f *CollyFetcher) buildCollector(host string) *colly.Collector {
	opts := []colly.CollectorOption{
		colly.UserAgent(f.UserAgent),
		colly.MaxBodySize(f.MaxBodySize),
		colly.AllowURLRevisit(),
		colly.AllowedDomains(host),
	}
	if f.IgnoreRobotsTxt {
		opts = append(opts, colly.IgnoreRobotsTxt())
	}

	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(f.RequestTimeout)
	return c
}

// Fetch implements the Fetcher interface, returning a FetchedDocument.
func (f *CollyFetcher) Fetch(ctx context.Context, targetURL string) (*FetchedDocument, error) {
	parsedURL, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := f.buildCollector(parsedURL.Hostname())

	var result *FetchedDocument
	var fetchErr error

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", "es-AR,es;q=0.9")
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnResponse(func(r *colly.Response) {
		result = &FetchedDocument{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        io.NopCloser(bytes.NewReader(r.Body)),
			FetchedAt:   time.Now(),
			Headers:     map[string][]string(r.Headers.Clone()),
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		retries, _ := r.Request.Ctx.GetAny("retries").(int)
		if retries < f.MaxRetries && ctx.Err() == nil {
			r.Request.Ctx.Put("retries", retries+1)
			f.Log.Debug().Int("attempt", retries+1).Str("url", r.Request.URL.String()).Err(err).Msg("colly retry")
			time.Sleep(time.Duration(retries+1) * time.Second)
			r.Request.Retry()
			return
		}
		fetchErr = fmt.Errorf("fetch failed after %d retries (status %d): %w", retries, r.StatusCode, err)
	})

	if err := c.Visit(targetURL); err != nil {
		return nil, fmt.Errorf("visit failed: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if result == nil {
		return nil, fmt.Errorf("no response received for %s", targetURL)
	}
	return result, nil
}
