// Package validate checks dictionaries on their way into an enrichment
// run. Auxiliary files come from outside the crawler and carry no
// guarantees; a dictionary whose keys disagree with its own entries would
// corrupt every join downstream, so findings reject the source file
// rather than individual entries.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/heatsheet/internal/identity"
	"github.com/ppiankov/heatsheet/internal/model"
)

// Finding is one structural inconsistency in a dictionary.
type Finding struct {
	Kind   string // swimmer, team or badge
	Key    string
	Detail string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s %q: %s", f.Kind, f.Key, f.Detail)
}

// Dictionary checks one dictionary's internal consistency: every entry
// filed under the key its own fields derive, team keys whitespace
// normalized, at most one badge per (swimmer, team, season). Findings
// come back sorted so reports are stable.
//
// Badges may reference swimmers the same file does not list; affiliation
// rosters carry badges for entries the primary document tracks.
func Dictionary(d *model.Dictionary) []Finding {
	var findings []Finding

	for mapKey, sw := range d.Swimmers {
		findings = append(findings, checkSwimmer(mapKey, sw)...)
	}
	for mapKey, team := range d.Teams {
		findings = append(findings, checkTeam(mapKey, team)...)
	}
	findings = append(findings, checkBadges(d.Badges)...)

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Kind != findings[j].Kind {
			return findings[i].Kind < findings[j].Kind
		}
		if findings[i].Key != findings[j].Key {
			return findings[i].Key < findings[j].Key
		}
		return findings[i].Detail < findings[j].Detail
	})
	return findings
}

func checkSwimmer(mapKey string, sw *model.Swimmer) []Finding {
	if sw == nil {
		return []Finding{{Kind: "swimmer", Key: mapKey, Detail: "null entry"}}
	}

	var findings []Finding
	if sw.Key != mapKey {
		findings = append(findings, Finding{Kind: "swimmer", Key: mapKey,
			Detail: fmt.Sprintf("filed under a different key than its own (%q)", sw.Key)})
	}
	switch sw.Gender {
	case model.GenderMale, model.GenderFemale, model.GenderUnknown:
	default:
		findings = append(findings, Finding{Kind: "swimmer", Key: mapKey,
			Detail: fmt.Sprintf("gender token %q is not M, F or blank", sw.Gender)})
	}
	if sw.YearOfBirth != 0 && (sw.YearOfBirth < 1900 || sw.YearOfBirth > 2099) {
		findings = append(findings, Finding{Kind: "swimmer", Key: mapKey,
			Detail: fmt.Sprintf("implausible year of birth %d", sw.YearOfBirth)})
	}

	derived := identity.SwimmerKey(sw.Gender, sw.LastName, sw.FirstName, sw.YearOfBirth, sw.TeamKey)
	switch {
	case derived == "":
		findings = append(findings, Finding{Kind: "swimmer", Key: mapKey,
			Detail: "fields are too incomplete to derive a key"})
	case derived != sw.Key:
		findings = append(findings, Finding{Kind: "swimmer", Key: mapKey,
			Detail: fmt.Sprintf("key does not match its fields (derived %q)", derived)})
	}
	return findings
}

func checkTeam(mapKey string, team *model.Team) []Finding {
	if team == nil {
		return []Finding{{Kind: "team", Key: mapKey, Detail: "null entry"}}
	}

	var findings []Finding
	if mapKey == "" {
		findings = append(findings, Finding{Kind: "team", Detail: "empty team key"})
	}
	if team.Key != mapKey {
		findings = append(findings, Finding{Kind: "team", Key: mapKey,
			Detail: fmt.Sprintf("filed under a different key than its own (%q)", team.Key)})
	}
	if norm := identity.TeamKey(mapKey); norm != mapKey {
		findings = append(findings, Finding{Kind: "team", Key: mapKey,
			Detail: fmt.Sprintf("key is not whitespace normalized (want %q)", norm)})
	}
	return findings
}

func checkBadges(badges []*model.Badge) []Finding {
	var findings []Finding
	seen := make(map[string]bool)
	for _, b := range badges {
		if b == nil {
			findings = append(findings, Finding{Kind: "badge", Detail: "null entry"})
			continue
		}
		if b.SwimmerKey == "" {
			findings = append(findings, Finding{Kind: "badge", Key: b.TeamKey,
				Detail: "empty swimmer key"})
		} else if strings.Count(b.SwimmerKey, identity.Separator) < 3 {
			findings = append(findings, Finding{Kind: "badge", Key: b.SwimmerKey,
				Detail: "swimmer key is not an identity key"})
		}
		if b.TeamKey == "" {
			findings = append(findings, Finding{Kind: "badge", Key: b.SwimmerKey,
				Detail: "empty team key"})
		}

		id := b.SwimmerKey + "\x00" + b.TeamKey + "\x00" + b.Season
		if seen[id] {
			findings = append(findings, Finding{Kind: "badge", Key: b.SwimmerKey,
				Detail: fmt.Sprintf("duplicate affiliation with %q in season %q", b.TeamKey, b.Season)})
		}
		seen[id] = true
	}
	return findings
}
