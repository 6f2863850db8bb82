package crawler

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/heatsheet/internal/model"
)

// Tracker keeps the status records of crawl jobs for pollers. Records are
// held in memory for the life of the process; restarting forgets them.
type Tracker struct {
	mu   sync.RWMutex
	jobs map[string]*model.CrawlStatus
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{jobs: make(map[string]*model.CrawlStatus)}
}

// Create registers a queued job and returns its id.
func (t *Tracker) Create(url, season string) string {
	id := uuid.NewString()
	now := time.Now().UTC()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[id] = &model.CrawlStatus{
		JobID:     id,
		State:     model.JobQueued,
		MeetURL:   url,
		Season:    season,
		StartedAt: now,
		UpdatedAt: now,
	}
	return id
}

// Update applies fn to a job's record under the lock and stamps UpdatedAt.
// Unknown ids are ignored.
func (t *Tracker) Update(id string, fn func(*model.CrawlStatus)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.jobs[id]
	if !ok {
		return
	}
	fn(st)
	st.UpdatedAt = time.Now().UTC()
}

// Get returns a copy of a job's record.
func (t *Tracker) Get(id string) (model.CrawlStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.jobs[id]
	if !ok {
		return model.CrawlStatus{}, false
	}
	return *st, true
}
