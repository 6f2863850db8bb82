package layout

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ppiankov/heatsheet/internal/identity"
	"github.com/ppiankov/heatsheet/internal/model"
)

// Selectors the portal layout shares with the HTTP driver: the driver
// discovers its AJAX targets through these, the parser reads rows.
const (
	// PortalToggle is the link that switches the meet page into the
	// per-event results view.
	PortalToggle = "a#btnRisultati"

	// PortalMenu holds one link per program entry once event mode is on.
	PortalMenu = "ul#elencoGare li a"

	// PortalTabs are the per-event panel switches. Each tab link names its
	// panel in data-pannello ("batterie" or "classifica") and carries the
	// fragment URL in href.
	PortalTabs = "ul#tabGara a"

	// PortalContent is the container the fragments render into.
	PortalContent = "#contenutoGara"
)

// Portal parses the current portal generation: event navigation via AJAX,
// tables with class-labeled rows and cells. Fragments arrive asynchronously,
// so every ParseX method must tolerate a skeleton that has not filled yet.
type Portal struct{}

// NewPortal creates the portal layout.
func NewPortal() *Portal {
	return &Portal{}
}

// Name returns the layout name.
func (p *Portal) Name() string {
	return "portal"
}

// CanHandle checks for the portal chrome: the results toggle or the event
// content container.
func (p *Portal) CanHandle(doc *goquery.Document) bool {
	return doc.Find(PortalToggle).Length() > 0 || doc.Find(PortalContent).Length() > 0
}

// Interactive is true: events are reached one at a time through the menu.
func (p *Portal) Interactive() bool {
	return true
}

// MeetHeader reads the banner block above the event area.
func (p *Portal) MeetHeader(doc *goquery.Document) Header {
	h := Header{
		Title: identity.Collapse(doc.Find("#intestazione h1").First().Text()),
		Place: identity.Collapse(doc.Find("#intestazione .luogo").First().Text()),
	}
	h.DateStart, h.DateEnd = splitDates(identity.Collapse(doc.Find("#intestazione .date").First().Text()))
	return h
}

// EventTitles lists the program entries of the event menu, in page order.
func (p *Portal) EventTitles(doc *goquery.Document) []string {
	var titles []string
	doc.Find(PortalMenu).Each(func(_ int, a *goquery.Selection) {
		if t := identity.Collapse(a.Text()); t != "" {
			titles = append(titles, t)
		}
	})
	return titles
}

// EventModeActive checks that the event menu has rendered.
func (p *Portal) EventModeActive(doc *goquery.Document) bool {
	return doc.Find("ul#elencoGare").Length() > 0
}

var heatHeaderRe = regexp.MustCompile(`(?i)(?:batteria|heat)\s+(\d+)`)

// classify maps a portal table row to its kind by row class.
func (p *Portal) classify(tr *goquery.Selection) RowKind {
	switch {
	case tr.HasClass("riga"):
		return RowData
	case tr.HasClass("passaggi"), tr.HasClass("frazionisti"):
		return RowContinuation
	case tr.HasClass("batteria"), tr.HasClass("categoria"), tr.HasClass("intestazione"):
		return RowHeader
	}
	return RowUnknown
}

// ParseHeats extracts heat rows from an event's heats fragment. Rows
// without a name are dropped: a skeleton row that never filled must not
// become a phantom competitor.
func (p *Portal) ParseHeats(markup string, ev model.Event) ([]model.HeatRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parsing heats markup: %w", err)
	}

	var rows []model.HeatRow
	heat := 0
	doc.Find("table.batterie tr").Each(func(_ int, tr *goquery.Selection) {
		switch p.classify(tr) {
		case RowHeader:
			if m := heatHeaderRe.FindStringSubmatch(tr.Text()); m != nil {
				heat, _ = strconv.Atoi(m[1])
			}
		case RowData:
			row := p.heatRow(tr, ev)
			if row.LastName == "" && row.RelayName == "" {
				return
			}
			row.Heat = heat
			rows = append(rows, row)
		case RowContinuation:
			if len(rows) == 0 {
				return
			}
			last := &rows[len(rows)-1]
			if tr.HasClass("frazionisti") {
				p.attachLegs(tr, last, ev)
			} else {
				p.attachLaps(tr, last)
			}
		}
	})
	return rows, nil
}

func (p *Portal) heatRow(tr *goquery.Selection, ev model.Event) model.HeatRow {
	row := model.HeatRow{
		Lane:        cellInt(tr, "td.corsia"),
		Position:    cellInt(tr, "td.arrivo"),
		Nation:      cellText(tr, "td.naz"),
		YearOfBirth: identity.ParseYear(cellText(tr, "td.anno")),
		Team:        cellText(tr, "td.societa"),
		FinalTiming: cellText(tr, "td.tempo"),
	}
	if c, ok := identity.ParseTiming(row.FinalTiming); ok {
		row.FinalCentis = c
	}
	if ev.Relay {
		row.RelayName = cellText(tr, "td.staffetta")
		if row.RelayName == "" {
			row.RelayName = cellText(tr, "td.atleta")
		}
	} else {
		row.LastName, row.FirstName = identity.SplitName(cellText(tr, "td.atleta"))
	}
	return row
}

// passaggioRe reads one split span: "50m 29"12" or "100m 1'02"34 (33"22)".
var passaggioRe = regexp.MustCompile(`(\d+)\s*m\s*:?\s*(\S+)(?:\s*\(([^)]+)\))?`)

func (p *Portal) attachLaps(tr *goquery.Selection, row *model.HeatRow) {
	tr.Find("span.passaggio").Each(func(_ int, span *goquery.Selection) {
		m := passaggioRe.FindStringSubmatch(identity.Collapse(span.Text()))
		if m == nil {
			return
		}
		lap := model.Lap{CumulativeTiming: m[2]}
		lap.Distance, _ = strconv.Atoi(m[1])
		if c, ok := identity.ParseTiming(m[2]); ok {
			lap.CumulativeCentis = c
		}
		if m[3] != "" {
			lap.SplitTiming = m[3]
			if c, ok := identity.ParseTiming(m[3]); ok {
				lap.SplitCentis = c
			}
		} else if lap.CumulativeCentis > 0 {
			if n := len(row.Laps); n == 0 {
				lap.SplitCentis = lap.CumulativeCentis
			} else if prev := row.Laps[n-1].CumulativeCentis; prev > 0 && lap.CumulativeCentis > prev {
				lap.SplitCentis = lap.CumulativeCentis - prev
			}
		}
		row.Laps = append(row.Laps, lap)
	})
}

// attachLegs reads the relay swimmers of the preceding relay row. Leg spans
// alternate with optional split spans; order follows span order.
func (p *Portal) attachLegs(tr *goquery.Selection, row *model.HeatRow, ev model.Event) {
	tr.Find("span").Each(func(_ int, span *goquery.Selection) {
		text := identity.Collapse(span.Text())
		switch {
		case span.HasClass("frazionista"):
			leg := identity.ParseRelayLeg(text, len(row.Legs)+1)
			leg.Distance = ev.Distance
			row.Legs = append(row.Legs, leg)
		case span.HasClass("tempoFrazione") && len(row.Legs) > 0:
			last := &row.Legs[len(row.Legs)-1]
			last.SplitTiming = text
			if c, ok := identity.ParseTiming(text); ok {
				last.SplitCentis = c
			}
		}
	})
}

// ParseRanking extracts ranking rows from an event's summary fragment.
// Category headers apply to every row until the next header.
func (p *Portal) ParseRanking(markup string, ev model.Event) ([]model.RankingRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parsing ranking markup: %w", err)
	}

	var rows []model.RankingRow
	category := ""
	doc.Find("table.classifica tr").Each(func(_ int, tr *goquery.Selection) {
		switch p.classify(tr) {
		case RowHeader:
			if tr.HasClass("categoria") {
				if c := NormalizeCategory(tr.Text()); c != "" {
					category = c
				}
			}
		case RowData:
			row := p.rankingRow(tr, ev)
			if row.LastName == "" && row.RelayName == "" {
				return
			}
			row.Category = category
			rows = append(rows, row)
		}
	})
	return rows, nil
}

func (p *Portal) rankingRow(tr *goquery.Selection, ev model.Event) model.RankingRow {
	row := model.RankingRow{
		Rank:        cellInt(tr, "td.pos"),
		YearOfBirth: identity.ParseYear(cellText(tr, "td.anno")),
		Team:        cellText(tr, "td.societa"),
		Timing:      cellText(tr, "td.tempo"),
	}
	if c, ok := identity.ParseTiming(row.Timing); ok {
		row.Centis = c
	}
	if ev.Relay {
		row.RelayName = cellText(tr, "td.staffetta")
		if row.RelayName == "" {
			row.RelayName = cellText(tr, "td.atleta")
		}
		row.Heat = cellInt(tr, "td.batteria")
		row.Lane = cellInt(tr, "td.corsia")
	} else {
		row.LastName, row.FirstName = identity.SplitName(cellText(tr, "td.atleta"))
	}
	return row
}

// RankingReady checks that the summary fragment has stabilized: the
// classifica table is present and shows at least one category header.
func (p *Portal) RankingReady(markup string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return false
	}
	ready := false
	doc.Find("table.classifica tr.categoria").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		if IsCategoryHeader(tr.Text()) {
			ready = true
			return false
		}
		return true
	})
	return ready
}

func cellText(tr *goquery.Selection, selector string) string {
	return identity.Collapse(tr.Find(selector).First().Text())
}

func cellInt(tr *goquery.Selection, selector string) int {
	t := strings.TrimSuffix(cellText(tr, selector), ".")
	n, err := strconv.Atoi(t)
	if err != nil {
		return 0
	}
	return n
}

var dateRangeRe = regexp.MustCompile(`^(\d{1,2})\s*[/-]\s*(\d{1,2})\s+(.+)$`)

// splitDates expands a printed date range like "14/15 Dicembre 2024" into
// its start and end. A single date yields an empty end.
func splitDates(printed string) (start, end string) {
	if printed == "" {
		return "", ""
	}
	if m := dateRangeRe.FindStringSubmatch(printed); m != nil {
		return m[1] + " " + m[3], m[2] + " " + m[3]
	}
	return printed, ""
}
