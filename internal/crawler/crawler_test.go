package crawler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ppiankov/heatsheet/internal/browse"
	"github.com/ppiankov/heatsheet/internal/layout"
	"github.com/ppiankov/heatsheet/internal/model"
)

const landing = `<div id="intestazione">
	<h1>Trofeo Invernale</h1>
	<div class="date">14/15 Dicembre 2024</div>
	<div class="luogo">Riccione</div>
</div>
<a id="btnRisultati" href="/risultati">Risultati</a>`

const individualHeats = `<table class="batterie">
<tr class="batteria"><td>Batteria 1</td></tr>
<tr class="riga"><td class="corsia">4</td><td class="atleta">ROSSI Mario</td><td class="anno">1990</td><td class="societa">Aquatica</td><td class="tempo">1'02"34</td></tr>
<tr class="passaggi"><td><span class="passaggio">50m 29"87</span><span class="passaggio">100m 1'02"34</span></td></tr>
<tr class="riga"><td class="corsia">5</td><td class="atleta">BIANCHI Luca</td><td class="anno">1988</td><td class="societa">Nuoto Club</td><td class="tempo">1'03"10</td></tr>
</table>`

const individualRanking = `<table class="classifica">
<tr class="categoria"><td>Master 25</td></tr>
<tr class="riga"><td class="pos">1.</td><td class="atleta">ROSSI Mario</td><td class="anno">1990</td><td class="societa">Aquatica</td><td class="tempo">1'02"34</td></tr>
<tr class="riga"><td class="pos">2.</td><td class="atleta">BIANCHI Luca</td><td class="anno">1988</td><td class="societa">Nuoto Club</td><td class="tempo">1'03"10</td></tr>
</table>`

const relayHeats = `<table class="batterie">
<tr class="batteria"><td>Batteria 1</td></tr>
<tr class="riga"><td class="corsia">3</td><td class="staffetta">Aquatica A</td><td class="societa">Aquatica</td><td class="tempo">1'45"60</td></tr>
<tr class="frazionisti"><td>
<span class="frazionista">ROSSI Mario 1990</span><span class="tempoFrazione">26"10</span>
<span class="frazionista">VERDI Paolo 1991</span><span class="tempoFrazione">26"48</span>
<span class="frazionista">NERI Andrea 1989</span><span class="tempoFrazione">26"71</span>
<span class="frazionista">GIALLI Marco 1993</span><span class="tempoFrazione">26"31</span>
</td></tr>
</table>`

const relayRanking = `<table class="classifica">
<tr class="categoria"><td>Master 100</td></tr>
<tr class="riga"><td class="pos">1.</td><td class="staffetta">Aquatica A</td><td class="batteria">1</td><td class="corsia">3</td><td class="societa">Aquatica</td><td class="tempo">1'45"60</td></tr>
</table>`

func syntheticMeet() *browse.FakePage {
	return &browse.FakePage{
		Landing: landing,
		Titles:  []string{"100 SL Maschi", "4x50 SL Maschi"},
		Heats: map[string][]string{
			"100 SL Maschi":  {individualHeats},
			"4x50 SL Maschi": {relayHeats},
		},
		Ranking: map[string][]string{
			"100 SL Maschi":  {individualRanking},
			"4x50 SL Maschi": {relayRanking},
		},
	}
}

func testConfig(t *testing.T) *model.Config {
	cfg := model.DefaultConfig()
	cfg.Crawl.PollTimeout = 50 * time.Millisecond
	cfg.Crawl.PollInterval = time.Millisecond
	cfg.Crawl.DebugDir = t.TempDir()
	return cfg
}

func newTestCrawler(t *testing.T, fake *browse.FakePage) *Crawler {
	return New(testConfig(t),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithDriverFactory(func(model.HTTPConfig, *layout.Registry) browse.PageDriver {
			return fake
		}),
	)
}

func TestCrawlMeetEndToEnd(t *testing.T) {
	fake := syntheticMeet()
	c := newTestCrawler(t, fake)

	var progress [][2]int
	meet, err := c.CrawlMeet(context.Background(), Request{
		URL:    "fake://meet",
		Season: "2024",
		OnProgress: func(done, total int, title string) {
			progress = append(progress, [2]int{done, total})
		},
	})
	if err != nil {
		t.Fatalf("CrawlMeet: %v", err)
	}

	if meet.Title != "Trofeo Invernale" || meet.Place != "Riccione" {
		t.Errorf("header: %q / %q", meet.Title, meet.Place)
	}
	if meet.DateStart != "14 Dicembre 2024" || meet.DateEnd != "15 Dicembre 2024" {
		t.Errorf("dates: %q / %q", meet.DateStart, meet.DateEnd)
	}
	if meet.Layout != "portal" || meet.Season != "2024" || meet.SourceURL != "fake://meet" {
		t.Errorf("document fields: %+v", meet)
	}
	if meet.CrawledAt.IsZero() {
		t.Error("CrawledAt not stamped")
	}
	if meet.SkippedEvents != 0 || len(meet.Issues) != 0 {
		t.Errorf("clean crawl reported %d skipped, %d issues", meet.SkippedEvents, len(meet.Issues))
	}
	if len(meet.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(meet.Events))
	}

	ind := meet.Events[0]
	if ind.Description != "100 SL Maschi" || ind.Gender != model.GenderMale || ind.Distance != 100 || ind.Stroke != "SL" || ind.Relay {
		t.Errorf("individual event fields: %+v", ind)
	}
	if ind.RankingMissing {
		t.Error("individual event has a ranking table")
	}
	if len(ind.Results) != 2 {
		t.Fatalf("individual event: %d results, want 2", len(ind.Results))
	}
	first := ind.Results[0]
	if first.Key != "M|ROSSI|Mario|1990|Aquatica" {
		t.Errorf("winner key: %q", first.Key)
	}
	if first.Rank != 1 || first.Heat != 1 || first.Lane != 4 || first.Category != "M25" || first.Centis != 6234 {
		t.Errorf("winner fields: %+v", first)
	}
	if len(first.Laps) != 2 || first.Laps[1].SplitCentis != 3247 {
		t.Errorf("winner laps: %+v", first.Laps)
	}
	if ind.Results[1].Key != "M|BIANCHI|Luca|1988|Nuoto Club" || ind.Results[1].Lane != 5 {
		t.Errorf("runner-up: %+v", ind.Results[1])
	}

	relay := meet.Events[1]
	if !relay.Relay || relay.RelayCount != 4 || relay.Distance != 50 {
		t.Errorf("relay event fields: %+v", relay)
	}
	if len(relay.Results) != 1 {
		t.Fatalf("relay event: %d results, want 1", len(relay.Results))
	}
	entry := relay.Results[0]
	if entry.RelayName != "Aquatica A" || entry.Rank != 1 || entry.Category != "M100" {
		t.Errorf("relay entry: %+v", entry)
	}
	if len(entry.Legs) != 4 {
		t.Fatalf("relay entry has %d legs, want 4", len(entry.Legs))
	}
	wantLegs := []string{"ROSSI", "VERDI", "NERI", "GIALLI"}
	for i, leg := range entry.Legs {
		if leg.Order != i+1 {
			t.Errorf("leg %d order = %d", i, leg.Order)
		}
		if leg.LastName != wantLegs[i] {
			t.Errorf("leg %d = %q, want %q", i, leg.LastName, wantLegs[i])
		}
	}
	if entry.Legs[0].SplitTiming != `26"10` {
		t.Errorf("leg split: %q", entry.Legs[0].SplitTiming)
	}

	// Relay legs and individual results funnel into one dictionary; Rossi
	// appears in both and must collapse to a single entry.
	if len(meet.Swimmers) != 5 {
		t.Errorf("got %d swimmers, want 5: %v", len(meet.Swimmers), meet.Swimmers)
	}
	if len(meet.Teams) != 2 {
		t.Errorf("got %d teams, want 2", len(meet.Teams))
	}
	if len(meet.Badges) != 5 {
		t.Errorf("got %d badges, want 5", len(meet.Badges))
	}
	if _, ok := meet.Swimmers["M|GIALLI|Marco|1993|Aquatica"]; !ok {
		t.Error("relay leg swimmer missing from dictionary")
	}

	want := [][2]int{{1, 2}, {2, 2}}
	if len(progress) != len(want) {
		t.Fatalf("progress calls: %v", progress)
	}
	for i, p := range progress {
		if p != want[i] {
			t.Errorf("progress[%d] = %v, want %v", i, p, want[i])
		}
	}

	if !fake.Closed() {
		t.Error("driver not closed")
	}
}

func TestCrawlMeetSkipsFailingEvent(t *testing.T) {
	fake := syntheticMeet()
	fake.SelectErrs = map[string]error{"100 SL Maschi": errors.New("panel gone")}
	c := newTestCrawler(t, fake)

	meet, err := c.CrawlMeet(context.Background(), Request{URL: "fake://meet", Season: "2024"})
	if err != nil {
		t.Fatalf("CrawlMeet: %v", err)
	}
	if meet.SkippedEvents != 1 {
		t.Errorf("SkippedEvents = %d, want 1", meet.SkippedEvents)
	}
	if len(meet.Events) != 1 || !meet.Events[0].Relay {
		t.Errorf("surviving events: %+v", meet.Events)
	}
}

func TestCrawlMeetEventFilter(t *testing.T) {
	fake := syntheticMeet()
	c := newTestCrawler(t, fake)

	meet, err := c.CrawlMeet(context.Background(), Request{URL: "fake://meet", Season: "2024", EventFilter: "4x50"})
	if err != nil {
		t.Fatalf("CrawlMeet: %v", err)
	}
	if len(meet.Events) != 1 || meet.Events[0].Description != "4x50 SL Maschi" {
		t.Errorf("filtered events: %+v", meet.Events)
	}
	if len(fake.Selected) != 1 {
		t.Errorf("driver visited %v", fake.Selected)
	}
}

func TestCrawlMeetFailsWhenModeNeverActivates(t *testing.T) {
	fake := syntheticMeet()
	fake.ModeDelay = 1 << 30
	c := newTestCrawler(t, fake)

	_, err := c.CrawlMeet(context.Background(), Request{URL: "fake://meet", Season: "2024"})
	if err == nil {
		t.Fatal("expected meet-level failure")
	}
	var lerr *model.LayoutAssertionError
	if !errors.As(err, &lerr) {
		t.Fatalf("error type: %v", err)
	}
	if lerr.Mode != "event-mode" {
		t.Errorf("failed mode: %q", lerr.Mode)
	}
}
