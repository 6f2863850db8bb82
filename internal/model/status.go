package model

import "time"

// JobState is the coarse lifecycle of a crawl job.
type JobState string

const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// CrawlStatus is the periodically-updated progress record of one crawl job,
// served to pollers while the meet is being walked event by event.
type CrawlStatus struct {
	JobID         string    `json:"job_id"`
	State         JobState  `json:"state"`
	Message       string    `json:"message,omitempty"`
	Progress      int       `json:"progress"`
	Total         int       `json:"total"`
	MeetURL       string    `json:"meet_url"`
	Season        string    `json:"season"`
	ResultPath    string    `json:"result_path,omitempty"`
	SkippedEvents int       `json:"skipped_events,omitempty"`
	Error         string    `json:"error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CalendarRow is one meet of a season calendar, in the fixed column order
// the downstream tooling expects.
type CalendarRow struct {
	StartURL   string `json:"start_url"`
	Date       string `json:"date,omitempty"`
	Cancelled  bool   `json:"cancelled,omitempty"`
	Name       string `json:"name"`
	Place      string `json:"place,omitempty"`
	ResultsURL string `json:"results_url,omitempty"`
	Year       string `json:"year,omitempty"`
}
