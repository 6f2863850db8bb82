// Package crawler runs complete meet crawls: one page driver per meet,
// walked by the navigation machine, every event's tables merged into the
// normalized output document.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/heatsheet/internal/browse"
	"github.com/ppiankov/heatsheet/internal/layout"
	"github.com/ppiankov/heatsheet/internal/merge"
	"github.com/ppiankov/heatsheet/internal/metrics"
	"github.com/ppiankov/heatsheet/internal/model"
	"github.com/ppiankov/heatsheet/internal/nav"
)

// DriverFactory builds the page driver one crawl uses. Tests swap in a
// scripted fake.
type DriverFactory func(cfg model.HTTPConfig, registry *layout.Registry) browse.PageDriver

// Request is one meet crawl order.
type Request struct {
	URL         string
	Season      string
	EventFilter string // substring match against menu titles, empty takes all

	// OnProgress, when set, is fired after every visited event.
	OnProgress func(done, total int, title string)
}

// Crawler turns meet URLs into normalized meet documents.
type Crawler struct {
	cfg       *model.Config
	registry  *layout.Registry
	merger    *merge.Merger
	log       *slog.Logger
	artifacts *browse.ArtifactWriter
	newDriver DriverFactory
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Crawler) { c.log = l }
}

// WithDriverFactory replaces how page drivers are built.
func WithDriverFactory(f DriverFactory) Option {
	return func(c *Crawler) { c.newDriver = f }
}

// New creates a crawler from the process configuration.
func New(cfg *model.Config, opts ...Option) *Crawler {
	c := &Crawler{
		cfg:      cfg,
		registry: layout.NewRegistry(),
		log:      slog.Default(),
		newDriver: func(hc model.HTTPConfig, registry *layout.Registry) browse.PageDriver {
			return browse.NewHTTPDriver(hc, registry)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.merger = merge.New(c.log)
	if cfg.Crawl.DebugDir != "" {
		c.artifacts = browse.NewArtifactWriter(cfg.Crawl.DebugDir)
	}
	return c
}

// CrawlMeet walks one meet page and assembles its output document. The
// returned meet may be partial: skipped events are counted, never hidden.
func (c *Crawler) CrawlMeet(ctx context.Context, req Request) (*model.Meet, error) {
	if c.cfg.Crawl.MeetTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Crawl.MeetTimeout)
		defer cancel()
	}

	start := time.Now()
	driver := c.newDriver(c.cfg.HTTP, c.registry)
	defer driver.Close()

	opts := []nav.Option{
		nav.WithLogger(c.log),
		nav.WithPollBudget(c.cfg.Crawl.PollTimeout, c.cfg.Crawl.PollInterval),
	}
	if c.artifacts != nil {
		opts = append(opts, nav.WithArtifacts(c.artifacts))
	}
	if req.OnProgress != nil {
		opts = append(opts, nav.WithProgress(req.OnProgress))
	}

	out, err := nav.New(driver, opts...).Run(ctx, req.URL, titleFilter(req.EventFilter))
	if err != nil {
		metrics.RecordMeetFailed()
		return nil, fmt.Errorf("crawl %s: %w", req.URL, err)
	}

	meet := c.assemble(req, out)
	metrics.RecordMeetCrawled()
	metrics.RecordCrawlDuration(time.Since(start).Seconds())
	metrics.RecordEventsExtracted(len(meet.Events))
	metrics.RecordEventsSkipped(meet.SkippedEvents)
	return meet, nil
}

// titleFilter builds the menu filter for an event substring. Titles are
// matched case-insensitively, the way the portals print them varies.
func titleFilter(needle string) func(string) bool {
	if needle == "" {
		return nil
	}
	up := strings.ToUpper(needle)
	return func(title string) bool {
		return strings.Contains(strings.ToUpper(title), up)
	}
}

// assemble merges every event's tables and collects the identity
// dictionary of the whole meet.
func (c *Crawler) assemble(req Request, out *nav.Outcome) *model.Meet {
	meet := &model.Meet{
		Title:         out.Header.Title,
		Place:         out.Header.Place,
		DateStart:     out.Header.DateStart,
		DateEnd:       out.Header.DateEnd,
		SourceURL:     req.URL,
		Season:        req.Season,
		Layout:        out.Layout,
		CrawledAt:     time.Now().UTC(),
		SkippedEvents: len(out.Skipped),
	}

	for _, tables := range out.Events {
		ev := layout.ParseEventDescription(tables.Description)
		if tables.Gender != model.GenderUnknown {
			ev.Gender = tables.Gender
		}
		ev.RankingMissing = len(tables.Ranking) == 0
		ev.Results = c.merger.Event(ev, tables)
		meet.Events = append(meet.Events, &ev)
	}

	dict, issues := c.merger.Dictionary(req.Season, meet.Events)
	meet.Dictionary = *dict
	meet.Issues = issues
	return meet
}
