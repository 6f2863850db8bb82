package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ppiankov/heatsheet/internal/crawler"
	"github.com/ppiankov/heatsheet/internal/metrics"
)

// crawlRequest is the POST /api/crawl body.
type crawlRequest struct {
	Season      string `json:"season"`
	URL         string `json:"url"`
	EventFilter string `json:"event_filter,omitempty"`
}

func (r crawlRequest) validate() error {
	switch {
	case r.URL == "":
		return fmt.Errorf("url is required")
	case r.Season == "":
		return fmt.Errorf("season is required")
	}
	if _, err := url.ParseRequestURI(r.URL); err != nil {
		return fmt.Errorf("invalid url: %s", r.URL)
	}
	return nil
}

// crawlAccepted is the 202 response to a crawl request.
type crawlAccepted struct {
	JobID string `json:"job_id"`
	State string `json:"state"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleCrawl accepts a crawl job and returns its id for polling.
func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	id := s.startJob(crawler.Request{
		URL:         req.URL,
		Season:      req.Season,
		EventFilter: req.EventFilter,
	})
	s.log.Info("crawl job accepted", "job", id, "url", req.URL, "season", req.Season)
	writeJSON(w, http.StatusAccepted, crawlAccepted{JobID: id, State: "queued"})
}

// handleJob reports the status record of one job.
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", "job id is required")
		return
	}

	st, ok := s.tracker.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown job id")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// responseWriter captures the status code for the metrics middleware.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// withMetrics counts requests per endpoint, method and status.
func withMetrics(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)
		metrics.RecordHTTPRequest(endpoint, r.Method, strconv.Itoa(rw.statusCode))
	}
}
