package layout

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ppiankov/heatsheet/internal/identity"
	"github.com/ppiankov/heatsheet/internal/model"
	"golang.org/x/net/html"
)

// Legacy parses the older static generation: one page with every event
// inline, bold event titles between bare tables, rows recognized by
// positional markers instead of CSS classes. Heats tables announce heats
// with "Batteria N" rows; ranking tables open each age group with a
// category row.
type Legacy struct{}

// NewLegacy creates the legacy layout.
func NewLegacy() *Legacy {
	return &Legacy{}
}

// Name returns the layout name.
func (l *Legacy) Name() string {
	return "legacy"
}

// CanHandle checks for legacy markers: no portal chrome, but tables with
// heat or category rows.
func (l *Legacy) CanHandle(doc *goquery.Document) bool {
	if doc.Find(PortalToggle).Length() > 0 || doc.Find(PortalContent).Length() > 0 {
		return false
	}
	found := false
	doc.Find("table td").EachWithBreak(func(_ int, td *goquery.Selection) bool {
		t := identity.Collapse(td.Text())
		if heatHeaderRe.MatchString(t) || IsCategoryHeader(t) {
			found = true
			return false
		}
		return true
	})
	return found
}

// Interactive is false: nothing to navigate, the page is complete.
func (l *Legacy) Interactive() bool {
	return false
}

// MeetHeader reads the page heading. Legacy pages put the meet title in the
// first heading or bold block and the place and dates on the line below.
func (l *Legacy) MeetHeader(doc *goquery.Document) Header {
	h := Header{Title: identity.Collapse(doc.Find("h1").First().Text())}
	if h.Title == "" {
		h.Title = identity.Collapse(doc.Find("center b").First().Text())
	}
	sub := identity.Collapse(doc.Find("h1 + p, center i").First().Text())
	if place, dates, ok := strings.Cut(sub, " - "); ok {
		h.Place = identity.Collapse(place)
		h.DateStart, h.DateEnd = splitDates(identity.Collapse(dates))
	} else {
		h.Place = sub
	}
	return h
}

// EventTitles lists the bold event titles found on the page.
func (l *Legacy) EventTitles(doc *goquery.Document) []string {
	var titles []string
	doc.Find("b").Each(func(_ int, b *goquery.Selection) {
		desc := identity.Collapse(b.Text())
		if isEventTitle(desc) {
			titles = append(titles, desc)
		}
	})
	return titles
}

// EventModeActive is always true: there is no mode to enter.
func (l *Legacy) EventModeActive(doc *goquery.Document) bool {
	return true
}

// ParseStatic walks the page in document order, attaching each table to the
// bold event title that precedes it. Tables with heat markers become heats,
// tables with category rows become rankings.
func (l *Legacy) ParseStatic(doc *goquery.Document) ([]model.EventTables, error) {
	var out []model.EventTables
	var cur *model.EventTables
	var curEvent model.Event

	doc.Find("b, table").Each(func(_ int, sel *goquery.Selection) {
		if goquery.NodeName(sel) == "b" {
			desc := identity.Collapse(sel.Text())
			if !isEventTitle(desc) {
				return
			}
			if cur != nil {
				out = append(out, *cur)
			}
			curEvent = ParseEventDescription(desc)
			cur = &model.EventTables{Description: desc, Gender: curEvent.Gender}
			return
		}
		if cur == nil || len(sel.Nodes) == 0 {
			return
		}
		table := sel.Nodes[0]
		switch {
		case tableHasHeatMarker(table):
			cur.Heats = append(cur.Heats, l.heatRows(table, curEvent)...)
		case tableHasCategory(table):
			cur.Ranking = append(cur.Ranking, l.rankingRows(table, curEvent)...)
		}
	})
	if cur != nil {
		out = append(out, *cur)
	}
	return out, nil
}

// ParseHeats extracts heat rows from markup containing legacy tables. Only
// tables with heat markers contribute.
func (l *Legacy) ParseHeats(markup string, ev model.Event) ([]model.HeatRow, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parsing heats markup: %w", err)
	}
	var rows []model.HeatRow
	for _, table := range findAll(root, isElement("table")) {
		if tableHasHeatMarker(table) {
			rows = append(rows, l.heatRows(table, ev)...)
		}
	}
	return rows, nil
}

// ParseRanking extracts ranking rows from markup containing legacy tables.
func (l *Legacy) ParseRanking(markup string, ev model.Event) ([]model.RankingRow, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parsing ranking markup: %w", err)
	}
	var rows []model.RankingRow
	for _, table := range findAll(root, isElement("table")) {
		if tableHasCategory(table) {
			rows = append(rows, l.rankingRows(table, ev)...)
		}
	}
	return rows, nil
}

// RankingReady checks for at least one category row anywhere in the markup.
func (l *Legacy) RankingReady(markup string) bool {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return false
	}
	for _, table := range findAll(root, isElement("table")) {
		if tableHasCategory(table) {
			return true
		}
	}
	return false
}

// classify maps a legacy row to its kind by cell content. Single-cell rows
// are section markers; rows with a blank leading cell continue the entry
// above them; anything with enough cells is data.
func (l *Legacy) classify(cells []string) RowKind {
	switch {
	case len(cells) == 0:
		return RowUnknown
	case len(cells) == 1:
		if heatHeaderRe.MatchString(cells[0]) || IsCategoryHeader(cells[0]) {
			return RowHeader
		}
		return RowUnknown
	case cells[0] == "" && strings.Join(cells, "") != "":
		return RowContinuation
	case len(cells) >= 4:
		return RowData
	}
	return RowUnknown
}

func (l *Legacy) heatRows(table *html.Node, ev model.Event) []model.HeatRow {
	var rows []model.HeatRow
	heat := 0
	for _, tr := range findAll(table, isElement("tr")) {
		cells := rowCells(tr)
		switch l.classify(cells) {
		case RowHeader:
			if m := heatHeaderRe.FindStringSubmatch(cells[0]); m != nil {
				heat, _ = strconv.Atoi(m[1])
			}
		case RowData:
			row, ok := l.heatRow(cells, ev)
			if !ok {
				continue
			}
			row.Heat = heat
			rows = append(rows, row)
		case RowContinuation:
			if len(rows) == 0 || !ev.Relay {
				continue
			}
			attachLegacyLeg(&rows[len(rows)-1], cells, ev)
		}
	}
	return rows
}

// heatRow reads a positional heats row: lane, optional nation, name, year
// (individuals only), team, timing last.
func (l *Legacy) heatRow(cells []string, ev model.Event) (model.HeatRow, bool) {
	row := model.HeatRow{FinalTiming: cells[len(cells)-1]}
	if c, ok := identity.ParseTiming(row.FinalTiming); ok {
		row.FinalCentis = c
	}

	i := 0
	row.Lane, _ = strconv.Atoi(cells[i])
	i++
	if i < len(cells) && nationRe.MatchString(cells[i]) {
		row.Nation = cells[i]
		i++
	}
	if i >= len(cells)-1 {
		return row, false
	}

	if ev.Relay {
		row.RelayName = cells[i]
		i++
	} else {
		row.LastName, row.FirstName = identity.SplitName(cells[i])
		i++
		if i < len(cells)-1 {
			row.YearOfBirth = identity.ParseYear(cells[i])
			i++
		}
	}
	if i < len(cells)-1 {
		row.Team = identity.Collapse(strings.Join(cells[i:len(cells)-1], " "))
	}
	// Without a lane number this is a column legend, not an entrant.
	return row, row.Lane > 0 && (row.LastName != "" || row.RelayName != "")
}

func (l *Legacy) rankingRows(table *html.Node, ev model.Event) []model.RankingRow {
	var rows []model.RankingRow
	category := ""
	for _, tr := range findAll(table, isElement("tr")) {
		cells := rowCells(tr)
		switch l.classify(cells) {
		case RowHeader:
			if c := NormalizeCategory(cells[0]); c != "" {
				category = c
			}
		case RowData:
			row, ok := l.rankingRow(cells, ev)
			if !ok {
				continue
			}
			row.Category = category
			rows = append(rows, row)
		}
	}
	return rows
}

// rankingRow reads a positional ranking row: rank, name, year (individuals
// only), team, timing last.
func (l *Legacy) rankingRow(cells []string, ev model.Event) (model.RankingRow, bool) {
	row := model.RankingRow{Timing: cells[len(cells)-1]}
	if c, ok := identity.ParseTiming(row.Timing); ok {
		row.Centis = c
	}

	i := 0
	row.Rank, _ = strconv.Atoi(strings.TrimSuffix(cells[i], "."))
	i++
	if i >= len(cells)-1 {
		return row, false
	}

	if ev.Relay {
		row.RelayName = cells[i]
		i++
	} else {
		row.LastName, row.FirstName = identity.SplitName(cells[i])
		i++
		if i < len(cells)-1 {
			row.YearOfBirth = identity.ParseYear(cells[i])
			i++
		}
	}
	if i < len(cells)-1 {
		row.Team = identity.Collapse(strings.Join(cells[i:len(cells)-1], " "))
	}
	return row, row.Rank > 0 && (row.LastName != "" || row.RelayName != "")
}

// attachLegacyLeg reads a relay continuation row: blank lead cell, then the
// combined swimmer token, then an optional split timing.
func attachLegacyLeg(row *model.HeatRow, cells []string, ev model.Event) {
	token := ""
	split := ""
	for _, c := range cells[1:] {
		if c == "" {
			continue
		}
		if _, ok := identity.ParseTiming(c); ok {
			split = c
			continue
		}
		if token == "" {
			token = c
		}
	}
	if token == "" {
		return
	}
	leg := identity.ParseRelayLeg(token, len(row.Legs)+1)
	leg.Distance = ev.Distance
	if split != "" {
		leg.SplitTiming = split
		if c, ok := identity.ParseTiming(split); ok {
			leg.SplitCentis = c
		}
	}
	row.Legs = append(row.Legs, leg)
}

var nationRe = regexp.MustCompile(`^[A-Z]{3}$`)

// isEventTitle checks whether a bold block is a program entry title rather
// than decoration: it must parse to a distance and stroke.
func isEventTitle(desc string) bool {
	ev := ParseEventDescription(desc)
	return ev.Distance > 0 && ev.Stroke != ""
}

func tableHasHeatMarker(table *html.Node) bool {
	for _, td := range findAll(table, isElement("td", "th")) {
		if heatHeaderRe.MatchString(nodeText(td)) {
			return true
		}
	}
	return false
}

func tableHasCategory(table *html.Node) bool {
	for _, tr := range findAll(table, isElement("tr")) {
		cells := rowCells(tr)
		if len(cells) == 1 && IsCategoryHeader(cells[0]) {
			return true
		}
	}
	return false
}

// rowCells collects the collapsed text of each cell in a row.
func rowCells(tr *html.Node) []string {
	var cells []string
	for _, td := range findAll(tr, isElement("td", "th")) {
		cells = append(cells, identity.Collapse(nodeText(td)))
	}
	return cells
}

// nodeText extracts the text content of a node tree.
func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var buf strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		buf.WriteString(nodeText(c))
		buf.WriteString(" ")
	}
	return strings.TrimSpace(buf.String())
}

// findAll finds all nodes matching a predicate.
func findAll(n *html.Node, predicate func(*html.Node) bool) []*html.Node {
	var results []*html.Node

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if predicate(node) {
			results = append(results, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return results
}

func isElement(names ...string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, name := range names {
			if n.Data == name {
				return true
			}
		}
		return false
	}
}
