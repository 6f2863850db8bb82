package model

// Gender is the normalized gender token carried on swimmers, events and keys.
type Gender string

const (
	GenderMale    Gender = "M"
	GenderFemale  Gender = "F"
	GenderMixed   Gender = "X" // relays only, produced by inference
	GenderUnknown Gender = ""
)

// Known reports whether the gender carries an identity-relevant value.
// Mixed counts as known for events but is never part of a swimmer key.
func (g Gender) Known() bool {
	return g == GenderMale || g == GenderFemale || g == GenderMixed
}

// Swimmer is one reconciled individual across the tables of a meet.
// Key is a deterministic function of (gender, lastName, firstName, year,
// team); the gender segment is omitted when gender is unknown or mixed.
type Swimmer struct {
	Key          string       `json:"key"`
	LastName     string       `json:"last_name"`
	FirstName    string       `json:"first_name"`
	YearOfBirth  int          `json:"year_of_birth,omitempty"`
	Gender       Gender       `json:"gender,omitempty"`
	TeamKey      string       `json:"team_key,omitempty"`
	ExternalID   string       `json:"external_id,omitempty"`
	CategoryCode string       `json:"category_code,omitempty"`
	FuzzyMatches []FuzzyMatch `json:"fuzzy_matches,omitempty"`
}

// FuzzyMatch is a candidate external identity for a swimmer whose exact
// match could not be established. Candidates are surfaced to the review
// workflow untouched; nothing in this repository ever auto-applies one.
type FuzzyMatch struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Team is a club or federation section. Key is the whitespace-normalized
// name, matched exactly with no case folding.
type Team struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
}

// Badge is a swimmer-team-season affiliation record. At most one badge per
// (swimmer, team, season) may exist in a dictionary; a swimmer key carrying
// a gender segment supersedes the same key without one, never the reverse.
type Badge struct {
	SwimmerKey   string `json:"swimmer_key"`
	TeamKey      string `json:"team_key"`
	Season       string `json:"season"`
	ExternalID   string `json:"external_id,omitempty"`
	CategoryCode string `json:"category_code,omitempty"`
}

// Dictionary bundles the identity entities of one source document. The meet
// document embeds one; auxiliary enrichment files are dictionaries of the
// same shape from other meets.
type Dictionary struct {
	Season   string              `json:"season,omitempty"`
	Swimmers map[string]*Swimmer `json:"swimmers"`
	Teams    map[string]*Team    `json:"teams"`
	Badges   []*Badge            `json:"badges,omitempty"`
}

// NewDictionary returns an empty dictionary with initialized maps.
func NewDictionary(season string) *Dictionary {
	return &Dictionary{
		Season:   season,
		Swimmers: make(map[string]*Swimmer),
		Teams:    make(map[string]*Team),
	}
}
