package model

import "time"

// Meet is the primary output document: one normalized record per crawled
// meet, shaped for the downstream review workflow.
type Meet struct {
	Title     string    `json:"title"`
	Place     string    `json:"place,omitempty"`
	DateStart string    `json:"date_start,omitempty"` // as printed by the source
	DateEnd   string    `json:"date_end,omitempty"`
	SourceURL string    `json:"source_url"`
	Season    string    `json:"season"`
	Layout    string    `json:"layout,omitempty"` // which page layout produced this document
	CrawledAt time.Time `json:"crawled_at"`

	Dictionary

	Events        []*Event          `json:"events"`
	SkippedEvents int               `json:"skipped_events"` // never silently mistaken for a complete crawl
	Issues        []EnrichmentIssue `json:"issues,omitempty"`
}

// Event is one program entry (e.g. "50 Freestyle M") with its merged results.
type Event struct {
	Description    string          `json:"description"`
	Gender         Gender          `json:"gender,omitempty"`
	Distance       int             `json:"distance,omitempty"` // meters per swimmer
	Stroke         string          `json:"stroke,omitempty"`
	Relay          bool            `json:"relay,omitempty"`
	RelayCount     int             `json:"relay_count,omitempty"` // legs per relay entry
	RankingMissing bool            `json:"ranking_missing,omitempty"`
	Results        []*MergedResult `json:"results"`
}

// Lap is one split inside a heat row, at a cumulative distance mark.
type Lap struct {
	Distance         int    `json:"distance"`
	SplitTiming      string `json:"split_timing,omitempty"`
	SplitCentis      int    `json:"split_centis,omitempty"`
	CumulativeTiming string `json:"cumulative_timing,omitempty"`
	CumulativeCentis int    `json:"cumulative_centis,omitempty"`
}

// RelayLeg is one swimmer of a relay entry, parsed from a combined
// name/year token in the heats table.
type RelayLeg struct {
	Order       int    `json:"order"` // 1..N
	LastName    string `json:"last_name"`
	FirstName   string `json:"first_name"`
	YearOfBirth int    `json:"year_of_birth,omitempty"`
	Distance    int    `json:"distance,omitempty"`
	SplitTiming string `json:"split_timing,omitempty"`
	SplitCentis int    `json:"split_centis,omitempty"`
}

// HeatRow is one competitor's raw record from a heats table: timing, lane
// position and lap splits, before any join with the ranking table.
type HeatRow struct {
	Heat        int        `json:"heat,omitempty"`
	Lane        int        `json:"lane,omitempty"`
	Position    int        `json:"position,omitempty"`
	Nation      string     `json:"nation,omitempty"`
	LastName    string     `json:"last_name,omitempty"`
	FirstName   string     `json:"first_name,omitempty"`
	YearOfBirth int        `json:"year_of_birth,omitempty"`
	Team        string     `json:"team,omitempty"`
	FinalTiming string     `json:"final_timing,omitempty"`
	FinalCentis int        `json:"final_centis,omitempty"`
	Laps        []Lap      `json:"laps,omitempty"`
	RelayName   string     `json:"relay_name,omitempty"` // relay events only
	Legs        []RelayLeg `json:"legs,omitempty"`
}

// RankingRow is one competitor's final placement record from a summary
// table, carrying rank and age category but no lap detail. Heat and lane
// appear only on relay summary tables, where they anchor the join back to
// the heats table.
type RankingRow struct {
	Rank        int    `json:"rank,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	YearOfBirth int    `json:"year_of_birth,omitempty"`
	Team        string `json:"team,omitempty"`
	Timing      string `json:"timing,omitempty"`
	Centis      int    `json:"centis,omitempty"`
	Category    string `json:"category,omitempty"`
	RelayName   string `json:"relay_name,omitempty"` // relay events only
	Heat        int    `json:"heat,omitempty"`
	Lane        int    `json:"lane,omitempty"`
}

// MergedResult joins a ranking row with its heat row by identity key.
// Rank and category are absent when the event had no ranking table; lane,
// nation, heat and laps are attached only when a heat row matched.
type MergedResult struct {
	Rank        int        `json:"rank,omitempty"`
	Key         string     `json:"key"`
	LastName    string     `json:"last_name,omitempty"`
	FirstName   string     `json:"first_name,omitempty"`
	YearOfBirth int        `json:"year_of_birth,omitempty"`
	Team        string     `json:"team,omitempty"`
	Timing      string     `json:"timing,omitempty"`
	Centis      int        `json:"centis,omitempty"`
	Category    string     `json:"category,omitempty"`
	Heat        int        `json:"heat,omitempty"`
	Lane        int        `json:"lane,omitempty"`
	Nation      string     `json:"nation,omitempty"`
	Laps        []Lap      `json:"laps,omitempty"`
	RelayName   string     `json:"relay_name,omitempty"`
	Legs        []RelayLeg `json:"legs,omitempty"`
}

// EventTables is the per-event output of the navigation machine: the parsed
// rows of one event before merging. Ranking may be empty when the summary
// tab never stabilized; the event then merges heats-only.
type EventTables struct {
	Description string
	Gender      Gender
	Heats       []HeatRow
	Ranking     []RankingRow
}
