// Package calendar extracts a season calendar page into its meet rows, the
// simpler sibling of the full meet crawl. One fetch, one table, fixed
// columns: start URL, date, cancelled flag, name, place, results URL, year.
package calendar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ppiankov/heatsheet/internal/cache"
	"github.com/ppiankov/heatsheet/internal/identity"
	"github.com/ppiankov/heatsheet/internal/metrics"
	"github.com/ppiankov/heatsheet/internal/model"
	"github.com/ppiankov/heatsheet/internal/util"
	"github.com/ppiankov/heatsheet/internal/worker"
)

// maxCrawlDelay caps the robots.txt crawl delay, as the page driver does.
const maxCrawlDelay = 10 * time.Second

// Extractor fetches and parses season calendar pages.
type Extractor struct {
	client   *http.Client
	ua       string
	maxBytes int64
	limiter  *worker.Limiter
	robots   *util.RobotsChecker
	store    cache.Cache
	storeTTL time.Duration
	log      *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithCache stores fetched pages so repeated season runs skip the network.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(x *Extractor) {
		x.store = c
		x.storeTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(x *Extractor) { x.log = l }
}

// New creates an extractor over the shared HTTP settings.
func New(cfg model.HTTPConfig, opts ...Option) *Extractor {
	x := &Extractor{
		client:   &http.Client{Timeout: cfg.Timeout},
		ua:       cfg.UserAgent,
		maxBytes: cfg.MaxBodyBytes,
		limiter:  worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst),
		robots:   util.NewRobotsChecker(cfg.UserAgent, cfg.Timeout),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// FetchSeason downloads the calendar page at rawURL and parses its rows.
func (x *Extractor) FetchSeason(ctx context.Context, rawURL string) ([]model.CalendarRow, error) {
	body, err := x.page(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return x.Parse(bytes.NewReader(body), rawURL)
}

func (x *Extractor) page(ctx context.Context, rawURL string) ([]byte, error) {
	key := cache.Key(rawURL)
	if x.store != nil {
		if b, ok := x.store.Get(key); ok {
			metrics.RecordCacheHit()
			x.log.Debug("calendar page served from cache", "url", rawURL)
			return b, nil
		}
	}

	allowed, delay, err := x.robots.CanFetch(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("robots check: %w", err)
	}
	if !allowed {
		return nil, fmt.Errorf("blocked by robots.txt: %s", rawURL)
	}
	if delay > maxCrawlDelay {
		delay = maxCrawlDelay
	}
	if err := x.limiter.WaitWithDelay(ctx, rawURL, delay); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", x.ua)

	resp, err := x.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching calendar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, x.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("reading calendar: %w", err)
	}
	metrics.RecordPageFetched()
	if x.store != nil {
		_ = x.store.Set(key, b, x.storeTTL)
	}
	return b, nil
}

var (
	yearRe      = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	cancelledRe = regexp.MustCompile(`(?i)\bannullat[ao]\b`)
)

// Parse extracts the calendar rows from a season page. Rows are recognized
// by their labeled cells; when a table prints bare cells instead, column
// position decides and the fallback is logged.
func (x *Extractor) Parse(r io.Reader, sourceURL string) ([]model.CalendarRow, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	base, err := url.Parse(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("parsing source URL: %w", err)
	}

	pageYear := yearRe.FindString(identity.Collapse(doc.Find("h1, h2").First().Text()))

	var rows []model.CalendarRow
	doc.Find("table.calendario tr, table.calendar tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.Find("th").Length() > 0 {
			return
		}
		row, ok := x.parseRow(tr, base, pageYear, sourceURL)
		if ok {
			rows = append(rows, row)
		}
	})
	return rows, nil
}

func (x *Extractor) parseRow(tr *goquery.Selection, base *url.URL, pageYear, sourceURL string) (model.CalendarRow, bool) {
	row := model.CalendarRow{StartURL: sourceURL}

	date := identity.Collapse(tr.Find("td.data").First().Text())
	nameCell := tr.Find("td.manifestazione").First()
	place := identity.Collapse(tr.Find("td.luogo").First().Text())
	resultsCell := tr.Find("td.risultati").First()

	if date == "" && nameCell.Length() == 0 {
		// No labeled cells on this row; fall back to column position.
		cells := tr.Find("td")
		if cells.Length() < 2 {
			return row, false
		}
		x.log.Debug("calendar row without labeled cells, using column positions", "cells", cells.Length())
		date = identity.Collapse(cells.Eq(0).Text())
		nameCell = cells.Eq(1)
		if cells.Length() > 2 {
			place = identity.Collapse(cells.Eq(2).Text())
		}
		if cells.Length() > 3 {
			resultsCell = cells.Eq(3)
		}
	}

	name := identity.Collapse(nameCell.Text())
	if name == "" {
		return row, false
	}

	row.Cancelled = tr.HasClass("annullata") || cancelledRe.MatchString(name)
	row.Name = identity.Collapse(cancelledRe.ReplaceAllString(name, " "))
	row.Date = date
	row.Place = place

	if href, ok := nameCell.Find("a").First().Attr("href"); ok {
		row.StartURL = resolveRef(base, href)
	}
	if href, ok := resultsCell.Find("a").First().Attr("href"); ok {
		row.ResultsURL = resolveRef(base, href)
	}

	row.Year = yearRe.FindString(date)
	if row.Year == "" {
		row.Year = pageYear
	}
	return row, true
}

func resolveRef(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
