// Package browse drives result pages the way a person would: load the
// meet page, switch to the event view, open one event at a time and read
// its panels. The navigation machine only sees the PageDriver interface,
// so tests can script page behavior without a network.
package browse

import (
	"context"

	"github.com/ppiankov/heatsheet/internal/layout"
)

// PageDriver is one browsing session on one meet page. Implementations
// are not safe for concurrent use; the crawler gives each meet its own
// driver.
//
// Reads reflect the page as currently rendered. AJAX layouts fill their
// panels some time after a click, so a read immediately after an action
// may legitimately return an empty skeleton; callers poll until content
// appears instead of trusting the first answer.
type PageDriver interface {
	// Load opens the meet page and detects its layout.
	Load(ctx context.Context, url string) error

	// Layout returns the layout detected by Load.
	Layout() layout.Layout

	// CurrentURL returns the address of the loaded page.
	CurrentURL() string

	// ClickEventMode fires the switch into the per-event results view.
	// A no-op on layouts without navigation.
	ClickEventMode(ctx context.Context) error

	// InEventMode checks whether the event menu has rendered.
	InEventMode(ctx context.Context) (bool, error)

	// EventTitles lists the program entries currently shown in the menu.
	EventTitles(ctx context.Context) ([]string, error)

	// SelectEvent opens the event with the given menu title.
	SelectEvent(ctx context.Context, title string) error

	// HeatsMarkup reads the heats panel of the selected event.
	HeatsMarkup(ctx context.Context) (string, error)

	// SelectRankingTab switches the selected event to its summary panel.
	SelectRankingTab(ctx context.Context) error

	// ToggleRankingTab flips to another panel and back, nudging a summary
	// panel that failed to fill.
	ToggleRankingTab(ctx context.Context) error

	// RankingMarkup reads the summary panel of the selected event.
	RankingMarkup(ctx context.Context) (string, error)

	// PageSource returns the markup of the loaded page, for static layouts
	// and failure artifacts.
	PageSource(ctx context.Context) (string, error)

	// Snapshot renders a plain-text view of the current page for failure
	// artifacts.
	Snapshot(ctx context.Context) ([]byte, error)

	// Close releases the session.
	Close() error
}
