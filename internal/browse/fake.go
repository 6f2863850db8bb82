package browse

import (
	"context"
	"fmt"

	"github.com/ppiankov/heatsheet/internal/layout"
)

// FakePage is a scripted PageDriver for tests. Panels are described as
// sequences of fragments: each read consumes the next entry and the last
// entry repeats, so a script like {skeleton, skeleton, populated} renders
// the way a slow AJAX panel does.
type FakePage struct {
	// Lay is the layout reported to the machine. Portal when nil.
	Lay layout.Layout

	// Landing is returned by PageSource, for static layouts.
	Landing string

	// Titles appear in the event menu once TitlesDelay reads have passed.
	Titles      []string
	TitlesDelay int

	// ModeDelay is how many InEventMode checks report false before the
	// menu renders. The mode click itself never fails unless ClickErr set.
	ModeDelay int

	// Heats and Ranking script the panel reads per event title.
	Heats   map[string][]string
	Ranking map[string][]string

	// RankingAfterToggle replaces an event's ranking script after the
	// first ToggleRankingTab call for it.
	RankingAfterToggle map[string][]string

	LoadErr  error
	ClickErr error

	// SelectErrs fails SelectEvent for specific titles.
	SelectErrs map[string]error

	// Call counters for assertions.
	Loads        int
	ModeClicks   int
	ModeChecks   int
	TitleReads   int
	Toggles      int
	Selected     []string
	HeatsReads   map[string]int
	RankingReads map[string]int

	current string
	toggled map[string]bool
	closed  bool
}

var _ PageDriver = (*FakePage)(nil)

func (f *FakePage) Load(ctx context.Context, url string) error {
	f.Loads++
	return f.LoadErr
}

func (f *FakePage) Layout() layout.Layout {
	if f.Lay == nil {
		f.Lay = layout.NewPortal()
	}
	return f.Lay
}

func (f *FakePage) CurrentURL() string {
	return "fake://meet"
}

func (f *FakePage) ClickEventMode(ctx context.Context) error {
	f.ModeClicks++
	return f.ClickErr
}

func (f *FakePage) InEventMode(ctx context.Context) (bool, error) {
	f.ModeChecks++
	return f.ModeChecks > f.ModeDelay, nil
}

func (f *FakePage) EventTitles(ctx context.Context) ([]string, error) {
	f.TitleReads++
	if f.TitleReads <= f.TitlesDelay {
		return nil, nil
	}
	return f.Titles, nil
}

func (f *FakePage) SelectEvent(ctx context.Context, title string) error {
	f.Selected = append(f.Selected, title)
	if err := f.SelectErrs[title]; err != nil {
		return err
	}
	f.current = title
	return nil
}

func (f *FakePage) HeatsMarkup(ctx context.Context) (string, error) {
	if f.HeatsReads == nil {
		f.HeatsReads = make(map[string]int)
	}
	script := f.Heats[f.current]
	if len(script) == 0 {
		return "", fmt.Errorf("no heats scripted for %q", f.current)
	}
	i := f.HeatsReads[f.current]
	f.HeatsReads[f.current]++
	if i >= len(script) {
		i = len(script) - 1
	}
	return script[i], nil
}

func (f *FakePage) SelectRankingTab(ctx context.Context) error {
	return nil
}

func (f *FakePage) ToggleRankingTab(ctx context.Context) error {
	f.Toggles++
	if f.toggled == nil {
		f.toggled = make(map[string]bool)
	}
	f.toggled[f.current] = true
	return nil
}

func (f *FakePage) RankingMarkup(ctx context.Context) (string, error) {
	if f.RankingReads == nil {
		f.RankingReads = make(map[string]int)
	}
	script := f.Ranking[f.current]
	if f.toggled[f.current] && f.RankingAfterToggle[f.current] != nil {
		script = f.RankingAfterToggle[f.current]
	}
	if len(script) == 0 {
		return "", nil
	}
	i := f.RankingReads[f.current]
	f.RankingReads[f.current]++
	if i >= len(script) {
		i = len(script) - 1
	}
	return script[i], nil
}

func (f *FakePage) PageSource(ctx context.Context) (string, error) {
	return f.Landing, nil
}

func (f *FakePage) Snapshot(ctx context.Context) ([]byte, error) {
	return []byte("fake snapshot\n"), nil
}

func (f *FakePage) Close() error {
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *FakePage) Closed() bool {
	return f.closed
}
