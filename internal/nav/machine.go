package nav

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ppiankov/heatsheet/internal/browse"
	"github.com/ppiankov/heatsheet/internal/layout"
	"github.com/ppiankov/heatsheet/internal/model"
)

var (
	errMenuNeverRendered   = errors.New("event menu never rendered")
	errEventListEmpty      = errors.New("event list stayed empty")
	errMenuVanished        = errors.New("event menu vanished after event visit")
	errHeatsNeverPopulated = errors.New("heats panel never populated")
)

// SkippedEvent records one event the walk gave up on. The meet continues;
// the caller decides what a partial crawl is worth.
type SkippedEvent struct {
	Title string
	Err   error
}

// Outcome is everything the walk extracted from one meet page.
type Outcome struct {
	Layout  string
	Header  layout.Header
	Events  []model.EventTables
	Skipped []SkippedEvent
}

// Machine drives one meet page through the navigation walk.
type Machine struct {
	driver    browse.PageDriver
	log       *slog.Logger
	artifacts *browse.ArtifactWriter

	pollTimeout   time.Duration
	pollInterval  time.Duration
	modeRetries   int
	toggleRetries int

	progress func(done, total int, title string)
	sleep    func(ctx context.Context, d time.Duration) error

	state State
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.log = l }
}

// WithPollBudget sets how long and how often each wait polls the page.
func WithPollBudget(timeout, interval time.Duration) Option {
	return func(m *Machine) {
		m.pollTimeout = timeout
		m.pollInterval = interval
	}
}

// WithModeRetries sets how many times the event-mode toggle is re-fired
// after the first attempt before the meet fails.
func WithModeRetries(n int) Option {
	return func(m *Machine) { m.modeRetries = n }
}

// WithToggleRetries sets how many away-and-back nudges a silent summary
// panel gets before the event keeps heats only.
func WithToggleRetries(n int) Option {
	return func(m *Machine) { m.toggleRetries = n }
}

// WithArtifacts makes the machine dump page markup and a snapshot whenever
// an event is skipped.
func WithArtifacts(w *browse.ArtifactWriter) Option {
	return func(m *Machine) { m.artifacts = w }
}

// WithProgress registers a callback fired after each visited event of the
// interactive walk, whether it was extracted or skipped.
func WithProgress(fn func(done, total int, title string)) Option {
	return func(m *Machine) { m.progress = fn }
}

// New creates a machine over a page driver.
func New(driver browse.PageDriver, opts ...Option) *Machine {
	m := &Machine{
		driver:        driver,
		log:           slog.Default(),
		pollTimeout:   30 * time.Second,
		pollInterval:  500 * time.Millisecond,
		modeRetries:   3,
		toggleRetries: 2,
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state of the walk.
func (m *Machine) State() State {
	return m.state
}

// Run walks the meet page at url and extracts the tables of every event
// whose menu title passes the filter. A nil filter takes every event.
//
// A per-event failure skips that event and continues; the error return is
// reserved for meet-level failures, where no further event can be reached.
func (m *Machine) Run(ctx context.Context, url string, filter func(title string) bool) (*Outcome, error) {
	m.state = Idle
	m.transition(Loading)

	if err := m.driver.Load(ctx, url); err != nil {
		return nil, m.fail(err)
	}
	lay := m.driver.Layout()
	out := &Outcome{Layout: lay.Name()}

	source, err := m.driver.PageSource(ctx)
	if err != nil {
		return nil, m.fail(err)
	}
	if doc, derr := goquery.NewDocumentFromReader(strings.NewReader(source)); derr == nil {
		out.Header = lay.MeetHeader(doc)
	}

	if sp, ok := lay.(layout.StaticParser); ok && !lay.Interactive() {
		return m.runStatic(out, sp, source, filter)
	}

	m.transition(AwaitingEventMode)
	if err := m.enterEventMode(ctx); err != nil {
		return nil, m.fail(err)
	}

	m.transition(PollingEventList)
	titles, err := m.awaitEventList(ctx)
	if err != nil {
		return nil, m.fail(err)
	}
	m.log.Info("event list ready", "events", len(titles))

	selected := make([]string, 0, len(titles))
	for _, title := range titles {
		if filter == nil || filter(title) {
			selected = append(selected, title)
		}
	}

	for i, title := range selected {
		tables, verr := m.visitEvent(ctx, title)
		if verr != nil {
			m.log.Warn("event skipped", "event", title, "error", verr)
			m.dumpArtifacts(ctx, title)
			out.Skipped = append(out.Skipped, SkippedEvent{Title: title, Err: verr})
		} else {
			out.Events = append(out.Events, *tables)
		}
		if m.progress != nil {
			m.progress(i+1, len(selected), title)
		}

		m.transition(ReturningToList)
		if err := m.confirmMenu(ctx); err != nil {
			return out, m.fail(err)
		}
	}

	m.transition(Done)
	return out, nil
}

// runStatic extracts every event from an already complete page.
func (m *Machine) runStatic(out *Outcome, sp layout.StaticParser, source string, filter func(string) bool) (*Outcome, error) {
	m.transition(Extracting)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, m.fail(err)
	}
	events, err := sp.ParseStatic(doc)
	if err != nil {
		return nil, m.fail(err)
	}
	for _, ev := range events {
		if filter != nil && !filter(ev.Description) {
			continue
		}
		out.Events = append(out.Events, ev)
	}

	m.transition(Done)
	return out, nil
}

// enterEventMode fires the results toggle and waits for the menu. The
// toggle is re-fired up to modeRetries times; a menu that never renders
// fails the meet, since without it no event is reachable.
func (m *Machine) enterEventMode(ctx context.Context) error {
	attempts := 0
	for {
		attempts++
		if err := m.driver.ClickEventMode(ctx); err != nil {
			return &model.LayoutAssertionError{
				URL: m.driver.CurrentURL(), Mode: "event-mode", Attempts: attempts, Err: err,
			}
		}

		ok, err := m.pollBool(ctx, m.driver.InEventMode)
		if err != nil {
			return &model.LayoutAssertionError{
				URL: m.driver.CurrentURL(), Mode: "event-mode", Attempts: attempts, Err: err,
			}
		}
		if ok {
			return nil
		}
		if attempts > m.modeRetries {
			return &model.LayoutAssertionError{
				URL: m.driver.CurrentURL(), Mode: "event-mode", Attempts: attempts, Err: errMenuNeverRendered,
			}
		}
		m.log.Warn("event mode did not activate, re-firing toggle", "attempt", attempts)
	}
}

// awaitEventList polls until the menu lists at least one event.
func (m *Machine) awaitEventList(ctx context.Context) ([]string, error) {
	var titles []string
	attempts := 0
	ok, err := m.pollBool(ctx, func(ctx context.Context) (bool, error) {
		attempts++
		t, err := m.driver.EventTitles(ctx)
		if err != nil {
			return false, err
		}
		titles = t
		return len(t) > 0, nil
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &model.LayoutAssertionError{
			URL: m.driver.CurrentURL(), Mode: "event-list", Attempts: attempts, Err: errEventListEmpty,
		}
	}
	return titles, nil
}

// visitEvent walks one event: select it, wait for populated heats, wait
// for the summary panel, parse both.
func (m *Machine) visitEvent(ctx context.Context, title string) (*model.EventTables, error) {
	lay := m.driver.Layout()
	ev := layout.ParseEventDescription(title)

	m.transition(SelectingEvent)
	if err := m.driver.SelectEvent(ctx, title); err != nil {
		return nil, &model.EventExtractionError{Event: title, Phase: "select", Err: err}
	}

	m.transition(AwaitingHeats)
	var heats []model.HeatRow
	ok, err := m.pollBool(ctx, func(ctx context.Context) (bool, error) {
		markup, merr := m.driver.HeatsMarkup(ctx)
		if merr != nil {
			return false, merr
		}
		rows, perr := lay.ParseHeats(markup, ev)
		if perr != nil {
			return false, perr
		}
		if !layout.HasPopulatedRow(rows) {
			return false, nil
		}
		heats = rows
		return true, nil
	})
	if err != nil {
		return nil, &model.EventExtractionError{Event: title, Phase: "heats", Err: err}
	}
	if !ok {
		return nil, &model.EventExtractionError{Event: title, Phase: "heats", Err: errHeatsNeverPopulated}
	}

	m.transition(AwaitingRanking)
	ranking, err := m.awaitRanking(ctx, lay, ev)
	if err != nil {
		return nil, &model.EventExtractionError{Event: title, Phase: "ranking", Err: err}
	}

	m.transition(Extracting)
	return &model.EventTables{
		Description: title,
		Gender:      ev.Gender,
		Heats:       heats,
		Ranking:     ranking,
	}, nil
}

// awaitRanking waits for the summary panel to stabilize, nudging it with
// away-and-back toggles. A panel that never stabilizes is not an event
// failure: the event keeps its heats and merges without ranking. Only a
// cancelled context propagates as an error.
func (m *Machine) awaitRanking(ctx context.Context, lay layout.Layout, ev model.Event) ([]model.RankingRow, error) {
	if err := m.driver.SelectRankingTab(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		m.log.Warn("summary tab unavailable, keeping heats only", "error", err)
		return nil, nil
	}

	var markup string
	stabilized := func(ctx context.Context) (bool, error) {
		mk, err := m.driver.RankingMarkup(ctx)
		if err != nil {
			return false, err
		}
		if !lay.RankingReady(mk) {
			return false, nil
		}
		markup = mk
		return true, nil
	}

	for attempt := 0; ; attempt++ {
		ok, err := m.pollBool(ctx, stabilized)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			m.log.Warn("summary panel read failed, keeping heats only", "error", err)
			return nil, nil
		}
		if ok {
			break
		}
		if attempt >= m.toggleRetries {
			m.log.Warn("summary panel never stabilized, keeping heats only")
			return nil, nil
		}
		m.log.Debug("summary panel empty, toggling away and back", "attempt", attempt+1)
		if err := m.driver.ToggleRankingTab(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			m.log.Warn("summary toggle failed, keeping heats only", "error", err)
			return nil, nil
		}
	}

	rows, err := lay.ParseRanking(markup, ev)
	if err != nil {
		m.log.Warn("summary parse failed, keeping heats only", "error", err)
		return nil, nil
	}
	return rows, nil
}

// confirmMenu verifies the event menu survived the event visit. Losing it
// means the page regressed out of event mode and no further event can be
// reached.
func (m *Machine) confirmMenu(ctx context.Context) error {
	ok, err := m.pollBool(ctx, m.driver.InEventMode)
	if err != nil {
		return err
	}
	if !ok {
		return &model.LayoutAssertionError{
			URL: m.driver.CurrentURL(), Mode: "event-menu", Err: errMenuVanished,
		}
	}
	return nil
}

// pollBool runs check until it reports true, the poll budget elapses or
// the check errors.
func (m *Machine) pollBool(ctx context.Context, check func(context.Context) (bool, error)) (bool, error) {
	deadline := time.Now().Add(m.pollTimeout)
	for {
		ok, err := check(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		if err := m.sleep(ctx, m.pollInterval); err != nil {
			return false, err
		}
	}
}

// transition moves the walk to the next state. An illegal move is a bug
// in the walk itself; it is logged at error level and taken anyway.
func (m *Machine) transition(to State) {
	if !canTransition(m.state, to) {
		m.log.Error("illegal state transition", "from", m.state.String(), "to", to.String())
	} else {
		m.log.Debug("state transition", "from", m.state.String(), "to", to.String())
	}
	m.state = to
}

func (m *Machine) fail(err error) error {
	m.transition(Failed)
	return err
}

func (m *Machine) dumpArtifacts(ctx context.Context, stem string) {
	if m.artifacts == nil {
		return
	}
	markup, err := m.driver.PageSource(ctx)
	if err != nil {
		markup = ""
	}
	snapshot, _ := m.driver.Snapshot(ctx)
	path, err := m.artifacts.Dump(stem, markup, snapshot)
	if err != nil {
		m.log.Warn("artifact dump failed", "error", err)
		return
	}
	m.log.Info("failure artifacts written", "path", path)
}
