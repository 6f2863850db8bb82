// Package layout holds the per-layout page parsers. Each result portal
// family renders meets differently; a Layout knows how to recognize its
// pages and turn their markup into rows, so the navigation machine and the
// crawler stay layout-agnostic.
package layout

import (
	"errors"

	"github.com/PuerkitoBio/goquery"
	"github.com/ppiankov/heatsheet/internal/model"
)

// ErrUnknown is returned when no registered layout recognizes a page.
var ErrUnknown = errors.New("no registered layout recognizes this page")

// Layout defines the interface for layout-specific page parsers.
type Layout interface {
	// Name returns the layout name, recorded on the output document.
	Name() string

	// CanHandle checks if this layout recognizes the loaded page.
	CanHandle(doc *goquery.Document) bool

	// Interactive reports whether the layout needs event-mode navigation.
	// Static layouts publish every table on the loaded page directly.
	Interactive() bool

	// MeetHeader reads the meet title, place and printed dates.
	MeetHeader(doc *goquery.Document) Header

	// EventTitles lists the program entries of the event menu, in page
	// order. Empty until the menu has rendered.
	EventTitles(doc *goquery.Document) []string

	// EventModeActive checks if the page is showing the per-event view.
	EventModeActive(doc *goquery.Document) bool

	// ParseHeats extracts heat rows from an event's heats markup.
	ParseHeats(markup string, ev model.Event) ([]model.HeatRow, error)

	// ParseRanking extracts ranking rows from an event's summary markup.
	ParseRanking(markup string, ev model.Event) ([]model.RankingRow, error)

	// RankingReady checks if summary markup has stabilized: at least one
	// age-category header is present.
	RankingReady(markup string) bool
}

// StaticParser is implemented by layouts whose pages carry every event
// inline, with no navigation. The crawler extracts all tables in one pass
// instead of walking the event menu.
type StaticParser interface {
	ParseStatic(doc *goquery.Document) ([]model.EventTables, error)
}

// Header is the meet-level metadata a layout reads off the landing page.
type Header struct {
	Title     string
	Place     string
	DateStart string
	DateEnd   string
}

// Registry manages the known layouts.
type Registry struct {
	layouts []Layout
}

// NewRegistry creates a registry with the built-in layouts registered.
func NewRegistry() *Registry {
	registry := &Registry{}
	registry.Register(NewPortal())
	registry.Register(NewLegacy())
	return registry
}

// Register registers a new layout.
func (r *Registry) Register(l Layout) {
	r.layouts = append(r.layouts, l)
}

// Detect finds the layout that recognizes the given page. There is no
// generic fallback: an unrecognized page means the crawl must stop rather
// than guess at table structure.
func (r *Registry) Detect(doc *goquery.Document) (Layout, error) {
	for _, l := range r.layouts {
		if l.CanHandle(doc) {
			return l, nil
		}
	}
	return nil, ErrUnknown
}

// ByName returns a registered layout by its name.
func (r *Registry) ByName(name string) (Layout, bool) {
	for _, l := range r.layouts {
		if l.Name() == name {
			return l, true
		}
	}
	return nil, false
}
