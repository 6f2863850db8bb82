// Package merge joins the heat and ranking tables of one event into merged
// results, correlating rows by identity key. The ranking table is
// authoritative for final placement: when it exists, exactly one result is
// emitted per ranking row and unmatched heat rows are dropped, so a swimmer
// never appears twice.
package merge

import (
	"fmt"
	"log/slog"

	"github.com/ppiankov/heatsheet/internal/identity"
	"github.com/ppiankov/heatsheet/internal/model"
)

// Merger turns extracted event tables into merged results and accumulates
// the meet's identity dictionary.
type Merger struct {
	log *slog.Logger
}

// New creates a merger.
func New(log *slog.Logger) *Merger {
	if log == nil {
		log = slog.Default()
	}
	return &Merger{log: log}
}

// Event merges the heat and ranking rows of one event. The event's gender is
// authoritative when deriving row keys: both tables describe the same program
// entry, so per-row gender guesses would only split identities.
func (m *Merger) Event(ev model.Event, t model.EventTables) []*model.MergedResult {
	if ev.Relay {
		return m.relayEvent(ev, t)
	}
	return m.individualEvent(ev, t)
}

func (m *Merger) individualEvent(ev model.Event, t model.EventTables) []*model.MergedResult {
	byKey := make(map[string]model.HeatRow, len(t.Heats))
	for _, h := range t.Heats {
		key := identity.SwimmerKey(ev.Gender, h.LastName, h.FirstName, h.YearOfBirth, h.Team)
		if key == "" {
			continue
		}
		if _, dup := byKey[key]; dup {
			m.log.Warn("duplicate heat key, keeping the later row",
				"event", ev.Description, "key", key)
		}
		byKey[key] = h
	}

	if len(t.Ranking) == 0 {
		return m.heatsOnly(ev, t.Heats)
	}

	results := make([]*model.MergedResult, 0, len(t.Ranking))
	for _, r := range t.Ranking {
		key := identity.SwimmerKey(ev.Gender, r.LastName, r.FirstName, r.YearOfBirth, r.Team)
		res := &model.MergedResult{
			Rank:        r.Rank,
			Key:         key,
			LastName:    r.LastName,
			FirstName:   r.FirstName,
			YearOfBirth: r.YearOfBirth,
			Team:        r.Team,
			Timing:      r.Timing,
			Centis:      r.Centis,
			Category:    r.Category,
		}
		if key != "" {
			if h, ok := byKey[key]; ok {
				attachHeatFields(res, h)
			}
		}
		results = append(results, res)
	}
	return results
}

// heatsOnly emits one result per heat row, in table order. Rank and category
// stay absent; rows without a derivable key are still emitted, they are just
// never indexed in the dictionary.
func (m *Merger) heatsOnly(ev model.Event, heats []model.HeatRow) []*model.MergedResult {
	results := make([]*model.MergedResult, 0, len(heats))
	for _, h := range heats {
		res := &model.MergedResult{
			Key:         identity.SwimmerKey(ev.Gender, h.LastName, h.FirstName, h.YearOfBirth, h.Team),
			LastName:    h.LastName,
			FirstName:   h.FirstName,
			YearOfBirth: h.YearOfBirth,
			Team:        h.Team,
			Timing:      h.FinalTiming,
			Centis:      h.FinalCentis,
		}
		attachHeatFields(res, h)
		results = append(results, res)
	}
	return results
}

func (m *Merger) relayEvent(ev model.Event, t model.EventTables) []*model.MergedResult {
	byKey := make(map[string]model.HeatRow, len(t.Heats))
	for _, h := range t.Heats {
		key := relayRowKey(h.RelayName, h.Team, h.Heat, h.Lane, h.FinalTiming)
		if key == "" {
			continue
		}
		if _, dup := byKey[key]; dup {
			m.log.Warn("duplicate relay key, keeping the later row",
				"event", ev.Description, "key", key)
		}
		byKey[key] = h
	}

	if len(t.Ranking) == 0 {
		results := make([]*model.MergedResult, 0, len(t.Heats))
		for _, h := range t.Heats {
			res := &model.MergedResult{
				Key:       relayRowKey(h.RelayName, h.Team, h.Heat, h.Lane, h.FinalTiming),
				RelayName: h.RelayName,
				Team:      h.Team,
				Timing:    h.FinalTiming,
				Centis:    h.FinalCentis,
				Legs:      h.Legs,
			}
			attachHeatFields(res, h)
			results = append(results, res)
		}
		return results
	}

	results := make([]*model.MergedResult, 0, len(t.Ranking))
	for _, r := range t.Ranking {
		key := relayRowKey(r.RelayName, r.Team, r.Heat, r.Lane, r.Timing)
		res := &model.MergedResult{
			Rank:      r.Rank,
			Key:       key,
			RelayName: r.RelayName,
			Team:      r.Team,
			Timing:    r.Timing,
			Centis:    r.Centis,
			Category:  r.Category,
		}
		if key != "" {
			if h, ok := byKey[key]; ok {
				res.Legs = h.Legs
				attachHeatFields(res, h)
			}
		}
		results = append(results, res)
	}
	return results
}

// relayRowKey derives the relay correlation key, falling back to the team
// name when the table prints no relay name of its own.
func relayRowKey(relayName, team string, heat, lane int, timing string) string {
	name := relayName
	if name == "" {
		name = team
	}
	if name == "" {
		return ""
	}
	return identity.RelayKey(name, heat, lane, timing)
}

// attachHeatFields copies the fields only the heats table knows onto a
// result, and fills the timing when the summary printed none.
func attachHeatFields(res *model.MergedResult, h model.HeatRow) {
	res.Heat = h.Heat
	res.Lane = h.Lane
	res.Nation = h.Nation
	res.Laps = h.Laps
	if res.Timing == "" {
		res.Timing = h.FinalTiming
		res.Centis = h.FinalCentis
	}
}

type badgeID struct {
	swimmer, team, season string
}

// Dictionary builds the meet's identity dictionary from its merged events:
// one swimmer entry per distinct key, one team entry per distinct team, and
// at most one badge per (swimmer, team, season).
//
// Individual events are collected first. Each relay event's printed gender
// is then reconciled against the gender composition of its legs, resolved
// through the entries collected so far: the printed gender always wins and a
// disagreement becomes an issue for the review workflow, while a relay
// without a printed gender takes the composed one. Composition across mixed
// legs is the only path that produces gender mixed. Leg swimmers join the
// dictionary last, keyed with the settled relay gender when it is male or
// female.
func (m *Merger) Dictionary(season string, events []*model.Event) (*model.Dictionary, []model.EnrichmentIssue) {
	dict := model.NewDictionary(season)
	seen := make(map[badgeID]bool)
	for _, ev := range events {
		if ev.Relay {
			continue
		}
		for _, res := range ev.Results {
			m.collectSwimmer(dict, seen, res)
		}
	}

	var issues []model.EnrichmentIssue
	for _, ev := range events {
		if !ev.Relay {
			continue
		}
		for _, res := range ev.Results {
			composed := m.composeLegGender(dict, res)
			if composed != model.GenderUnknown {
				if !ev.Gender.Known() {
					ev.Gender = composed
				} else if composed != ev.Gender {
					issues = append(issues, model.EnrichmentIssue{
						SubjectKey: res.Key,
						Kind:       model.IssueGenderConflict,
						Detail: fmt.Sprintf("event %q prints gender %s but leg composition reads %s",
							ev.Description, ev.Gender, composed),
						Candidates: []string{string(ev.Gender), string(composed)},
					})
				}
			}
			m.collectLegs(dict, seen, ev.Gender, res)
		}
	}
	return dict, issues
}

func (m *Merger) collectSwimmer(dict *model.Dictionary, seen map[badgeID]bool, res *model.MergedResult) {
	if res.Key == "" {
		return
	}
	sw, ok := dict.Swimmers[res.Key]
	if !ok {
		sw = &model.Swimmer{
			Key:         res.Key,
			LastName:    res.LastName,
			FirstName:   res.FirstName,
			YearOfBirth: res.YearOfBirth,
			Gender:      identity.KeyGender(res.Key),
			TeamKey:     m.collectTeam(dict, res.Team),
		}
		dict.Swimmers[res.Key] = sw
	}
	if sw.CategoryCode == "" {
		sw.CategoryCode = res.Category
	}
	m.collectBadge(dict, seen, sw, res.Category)
}

func (m *Merger) collectLegs(dict *model.Dictionary, seen map[badgeID]bool, relayGender model.Gender, res *model.MergedResult) {
	team := res.Team
	if team == "" {
		team = res.RelayName
	}
	teamKey := m.collectTeam(dict, team)

	legGender := model.GenderUnknown
	if relayGender == model.GenderMale || relayGender == model.GenderFemale {
		legGender = relayGender
	}
	for _, leg := range res.Legs {
		key := identity.SwimmerKey(legGender, leg.LastName, leg.FirstName, leg.YearOfBirth, team)
		if key == "" {
			continue
		}
		sw, ok := dict.Swimmers[key]
		if !ok {
			sw = &model.Swimmer{
				Key:         key,
				LastName:    leg.LastName,
				FirstName:   leg.FirstName,
				YearOfBirth: leg.YearOfBirth,
				Gender:      legGender,
				TeamKey:     teamKey,
			}
			dict.Swimmers[key] = sw
		}
		m.collectBadge(dict, seen, sw, "")
	}
}

func (m *Merger) collectTeam(dict *model.Dictionary, name string) string {
	key := identity.TeamKey(name)
	if key == "" {
		return ""
	}
	if _, ok := dict.Teams[key]; !ok {
		dict.Teams[key] = &model.Team{Key: key, DisplayName: key}
	}
	return key
}

func (m *Merger) collectBadge(dict *model.Dictionary, seen map[badgeID]bool, sw *model.Swimmer, category string) {
	if sw.TeamKey == "" {
		return
	}
	id := badgeID{swimmer: sw.Key, team: sw.TeamKey, season: dict.Season}
	if seen[id] {
		return
	}
	seen[id] = true
	dict.Badges = append(dict.Badges, &model.Badge{
		SwimmerKey:   sw.Key,
		TeamKey:      sw.TeamKey,
		Season:       dict.Season,
		CategoryCode: category,
	})
}

// composeLegGender resolves every leg swimmer against the dictionary and
// composes the relay gender: uniform legs give that gender, both genders
// present give mixed, nothing resolvable gives unknown. A leg found under
// both genders counts for both, which surfaces as mixed.
func (m *Merger) composeLegGender(dict *model.Dictionary, res *model.MergedResult) model.Gender {
	team := res.Team
	if team == "" {
		team = res.RelayName
	}

	sawMale, sawFemale := false, false
	for _, leg := range res.Legs {
		base := identity.SwimmerKey(model.GenderUnknown, leg.LastName, leg.FirstName, leg.YearOfBirth, team)
		if base == "" {
			continue
		}
		if m.knownAs(dict, base, model.GenderMale) {
			sawMale = true
		}
		if m.knownAs(dict, base, model.GenderFemale) {
			sawFemale = true
		}
	}

	switch {
	case sawMale && sawFemale:
		return model.GenderMixed
	case sawMale:
		return model.GenderMale
	case sawFemale:
		return model.GenderFemale
	}
	return model.GenderUnknown
}

func (m *Merger) knownAs(dict *model.Dictionary, genderlessKey string, g model.Gender) bool {
	_, ok := dict.Swimmers[identity.WithGender(genderlessKey, g)]
	return ok
}
