// Package server exposes the crawl trigger API: jobs are accepted over
// HTTP, run on background goroutines and polled through their status
// records.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ppiankov/heatsheet/internal/crawler"
	"github.com/ppiankov/heatsheet/internal/metrics"
	"github.com/ppiankov/heatsheet/internal/model"
	"github.com/ppiankov/heatsheet/internal/notify"
	"github.com/ppiankov/heatsheet/internal/storage"
)

// MeetCrawler runs one meet crawl. *crawler.Crawler implements it; tests
// inject a stub.
type MeetCrawler interface {
	CrawlMeet(ctx context.Context, req crawler.Request) (*model.Meet, error)
}

// Server wires the HTTP routes of the trigger API.
type Server struct {
	cfg       *model.Config
	crawler   MeetCrawler
	store     *storage.Storage
	publisher *notify.Publisher
	tracker   *crawler.Tracker
	log       *slog.Logger
	active    atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithPublisher sets the meet-complete publisher.
func WithPublisher(p *notify.Publisher) Option {
	return func(s *Server) { s.publisher = p }
}

// New creates the server around a crawler and a results store.
func New(cfg *model.Config, c MeetCrawler, store *storage.Storage, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		crawler: c,
		store:   store,
		tracker: crawler.NewTracker(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches the API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/crawl", withMetrics(s.handleCrawl, "/api/crawl"))
	mux.HandleFunc("/api/jobs/", withMetrics(s.handleJob, "/api/jobs"))
	mux.HandleFunc("/healthz", withMetrics(s.handleHealth, "/healthz"))
	mux.Handle("/metrics", metrics.Handler())
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
// Jobs already running finish on their own budget.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	s.Register(mux)

	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("server listening", "addr", s.cfg.Server.Addr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	}
}

// startJob queues one crawl and returns its job id.
func (s *Server) startJob(req crawler.Request) string {
	id := s.tracker.Create(req.URL, req.Season)
	go s.runJob(id, req)
	return id
}

// runJob drives one crawl from queued to done or failed, mirroring every
// step into the job's status record.
func (s *Server) runJob(id string, req crawler.Request) {
	metrics.SetActiveJobs(int(s.active.Add(1)))
	defer func() { metrics.SetActiveJobs(int(s.active.Add(-1))) }()

	ctx := context.Background()
	s.tracker.Update(id, func(st *model.CrawlStatus) {
		st.State = model.JobRunning
		st.Message = "walking meet page"
	})
	req.OnProgress = func(done, total int, title string) {
		s.tracker.Update(id, func(st *model.CrawlStatus) {
			st.Progress = done
			st.Total = total
			st.Message = "visited " + title
		})
	}

	meet, err := s.crawler.CrawlMeet(ctx, req)
	if err != nil {
		s.log.Error("crawl job failed", "job", id, "url", req.URL, "error", err)
		s.tracker.Update(id, func(st *model.CrawlStatus) {
			st.State = model.JobFailed
			st.Error = err.Error()
		})
		return
	}

	var path string
	if s.store != nil {
		path, err = s.store.SaveMeet(meet)
		if err != nil {
			s.log.Error("saving meet failed", "job", id, "url", req.URL, "error", err)
			s.tracker.Update(id, func(st *model.CrawlStatus) {
				st.State = model.JobFailed
				st.Error = err.Error()
			})
			return
		}
	}

	if s.publisher != nil {
		err := s.publisher.Publish(ctx, notify.MeetComplete{
			JobID:         id,
			MeetURL:       req.URL,
			Season:        req.Season,
			Title:         meet.Title,
			Events:        len(meet.Events),
			SkippedEvents: meet.SkippedEvents,
			ResultPath:    path,
			CrawledAt:     meet.CrawledAt,
		})
		if err != nil {
			// Notification is best effort, the document is already saved.
			s.log.Warn("meet notification failed", "job", id, "error", err)
		}
	}

	s.tracker.Update(id, func(st *model.CrawlStatus) {
		st.State = model.JobDone
		st.Message = fmt.Sprintf("%d events extracted, %d skipped", len(meet.Events), meet.SkippedEvents)
		st.ResultPath = path
		st.SkippedEvents = meet.SkippedEvents
	})
	s.log.Info("crawl job done", "job", id, "url", req.URL,
		"events", len(meet.Events), "skipped", meet.SkippedEvents)
}
