// Package enrich fills missing attributes of a primary identity dictionary
// from auxiliary dictionaries of the same shape, built from other meets.
// Enrichment only fills blanks on existing entries: the primary swimmer-key
// set never grows or shrinks, auxiliary-only swimmers are ignored, and an
// attribute the auxiliaries disagree on is recorded as an issue, never
// guessed.
package enrich

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/heatsheet/internal/identity"
	"github.com/ppiankov/heatsheet/internal/model"
)

// Enricher runs the tiered matching passes over one primary dictionary.
type Enricher struct {
	log *slog.Logger
}

// New creates an enricher.
func New(log *slog.Logger) *Enricher {
	if log == nil {
		log = slog.Default()
	}
	return &Enricher{log: log}
}

// Enrich mutates primary in place and reports what changed. Passes per
// missing attribute, in order:
//
//  1. exact key: copy from any auxiliary entry under the identical key.
//  2. gender: strip the gender slot from both keys; exactly one distinct
//     gender among the candidates applies it and re-keys the primary entry,
//     more than one records ambiguousGender.
//  3. year: group by gender and name; disambiguated the same way, else
//     ambiguousYear.
//  4. externalId: first exact-key auxiliary entry with it populated.
//
// Re-running with the same auxiliaries reports zero further updates.
func (e *Enricher) Enrich(primary *model.Dictionary, aux []*model.Dictionary) *model.EnrichStats {
	stats := &model.EnrichStats{}
	idx := buildIndex(aux)

	keys := make([]string, 0, len(primary.Swimmers))
	for k := range primary.Swimmers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sw, ok := primary.Swimmers[k]
		if !ok {
			// Already re-keyed away under a gendered key this run.
			continue
		}
		e.fillGender(primary, sw, idx, stats)
		e.fillYear(sw, idx, stats)
		e.fillExternalID(sw, idx, stats)
		reportMissing(sw, stats)
	}

	e.mergeBadges(primary, aux, stats)
	return stats
}

func (e *Enricher) fillGender(primary *model.Dictionary, sw *model.Swimmer, idx *auxIndex, stats *model.EnrichStats) {
	if sw.Gender == model.GenderMale || sw.Gender == model.GenderFemale {
		return
	}

	for _, cand := range idx.exact[sw.Key] {
		if cand.Gender == model.GenderMale || cand.Gender == model.GenderFemale {
			e.applyGender(primary, sw, cand.Gender, stats)
			return
		}
	}

	genders := distinctGenders(idx.byName[identity.StripGender(sw.Key)])
	switch len(genders) {
	case 0:
	case 1:
		e.applyGender(primary, sw, genders[0], stats)
	default:
		candidates := make([]string, len(genders))
		for i, g := range genders {
			candidates[i] = string(g)
		}
		stats.Ambiguous = append(stats.Ambiguous, model.EnrichmentIssue{
			SubjectKey: sw.Key,
			Kind:       model.IssueAmbiguousGender,
			Detail:     "auxiliary sources disagree on gender",
			Candidates: candidates,
		})
	}
}

// applyGender sets the gender and rewrites the primary key to carry it,
// re-indexing the entry and every badge that references the old key. When
// the gendered key is already taken the fill is abandoned and surfaced:
// silently merging two entries would shrink the key set.
func (e *Enricher) applyGender(primary *model.Dictionary, sw *model.Swimmer, g model.Gender, stats *model.EnrichStats) {
	newKey := identity.WithGender(sw.Key, g)
	if newKey != sw.Key {
		if _, taken := primary.Swimmers[newKey]; taken {
			stats.Ambiguous = append(stats.Ambiguous, model.EnrichmentIssue{
				SubjectKey: sw.Key,
				Kind:       model.IssueAmbiguousGender,
				Detail:     fmt.Sprintf("gender %s confirmed but key %q is already indexed; entries need manual merge", g, newKey),
				Candidates: []string{newKey},
			})
			return
		}
		delete(primary.Swimmers, sw.Key)
		old := sw.Key
		sw.Key = newKey
		primary.Swimmers[newKey] = sw
		for _, b := range primary.Badges {
			if b.SwimmerKey == old {
				b.SwimmerKey = newKey
			}
		}
	}
	sw.Gender = g
	stats.Updated++
	e.log.Debug("gender filled", "key", sw.Key)
}

func (e *Enricher) fillYear(sw *model.Swimmer, idx *auxIndex, stats *model.EnrichStats) {
	if sw.YearOfBirth != 0 {
		return
	}

	for _, cand := range idx.exact[sw.Key] {
		if cand.YearOfBirth != 0 {
			sw.YearOfBirth = cand.YearOfBirth
			stats.Updated++
			return
		}
	}

	years := distinctYears(idx.byGenderName[genderNameKey(sw.Gender, sw.LastName, sw.FirstName)])
	switch len(years) {
	case 0:
	case 1:
		sw.YearOfBirth = years[0]
		stats.Updated++
	default:
		candidates := make([]string, len(years))
		for i, y := range years {
			candidates[i] = strconv.Itoa(y)
		}
		stats.Ambiguous = append(stats.Ambiguous, model.EnrichmentIssue{
			SubjectKey: sw.Key,
			Kind:       model.IssueAmbiguousYear,
			Detail:     "auxiliary sources disagree on year of birth",
			Candidates: candidates,
		})
	}
}

func (e *Enricher) fillExternalID(sw *model.Swimmer, idx *auxIndex, stats *model.EnrichStats) {
	if sw.ExternalID != "" {
		return
	}
	for _, cand := range idx.exact[sw.Key] {
		if cand.ExternalID != "" {
			sw.ExternalID = cand.ExternalID
			stats.Updated++
			return
		}
	}
}

func reportMissing(sw *model.Swimmer, stats *model.EnrichStats) {
	if !(sw.Gender == model.GenderMale || sw.Gender == model.GenderFemale) {
		stats.Missing = append(stats.Missing, model.EnrichmentIssue{
			SubjectKey: sw.Key, Kind: model.IssueMissingGender,
		})
	}
	if sw.YearOfBirth == 0 {
		stats.Missing = append(stats.Missing, model.EnrichmentIssue{
			SubjectKey: sw.Key, Kind: model.IssueMissingYear,
		})
	}
	if sw.ExternalID == "" {
		stats.Missing = append(stats.Missing, model.EnrichmentIssue{
			SubjectKey: sw.Key, Kind: model.IssueMissingExternalID,
		})
	}
}

// mergeBadges copies auxiliary badges whose swimmer the primary already
// tracks. A badge is added only when no primary badge matches on
// (swimmer, team, season) modulo the gender segment; on such a match a
// gender-carrying key supersedes a genderless one, never the reverse.
func (e *Enricher) mergeBadges(primary *model.Dictionary, aux []*model.Dictionary, stats *model.EnrichStats) {
	for _, dict := range aux {
		for _, b := range dict.Badges {
			if !hasBadgeForSwimmer(primary, b.SwimmerKey) {
				continue
			}
			match := findBadge(primary, b)
			if match == nil {
				added := *b
				added.SwimmerKey = resolveSwimmerKey(primary, b.SwimmerKey)
				primary.Badges = append(primary.Badges, &added)
				stats.BadgesAdded++
				continue
			}
			if identity.KeyGender(match.SwimmerKey) == model.GenderUnknown &&
				identity.KeyGender(b.SwimmerKey) != model.GenderUnknown {
				match.SwimmerKey = b.SwimmerKey
				stats.Updated++
			}
		}
	}
}

func hasBadgeForSwimmer(primary *model.Dictionary, swimmerKey string) bool {
	for _, pb := range primary.Badges {
		if sameSwimmer(pb.SwimmerKey, swimmerKey) {
			return true
		}
	}
	return false
}

func findBadge(primary *model.Dictionary, b *model.Badge) *model.Badge {
	for _, pb := range primary.Badges {
		if pb.TeamKey == b.TeamKey && pb.Season == b.Season && sameSwimmer(pb.SwimmerKey, b.SwimmerKey) {
			return pb
		}
	}
	return nil
}

// resolveSwimmerKey maps an auxiliary swimmer key onto the key the primary
// dictionary indexes that swimmer under. Only a genderless key is upgraded
// to a gendered variant; a key that already names a gender is never remapped
// across genders.
func resolveSwimmerKey(primary *model.Dictionary, key string) string {
	if _, ok := primary.Swimmers[key]; ok {
		return key
	}
	if identity.KeyGender(key) != model.GenderUnknown {
		return key
	}
	for _, g := range []model.Gender{model.GenderMale, model.GenderFemale} {
		if _, ok := primary.Swimmers[identity.WithGender(key, g)]; ok {
			return identity.WithGender(key, g)
		}
	}
	return key
}

// sameSwimmer reports whether two keys name the same swimmer: identical, or
// equal once the gender slot is stripped with at most one side gendered.
// "M|..." and "F|..." share a stripped key but are different swimmers.
func sameSwimmer(a, b string) bool {
	if a == b {
		return true
	}
	if identity.StripGender(a) != identity.StripGender(b) {
		return false
	}
	return identity.KeyGender(a) == model.GenderUnknown || identity.KeyGender(b) == model.GenderUnknown
}

type auxIndex struct {
	exact        map[string][]*model.Swimmer
	byName       map[string][]*model.Swimmer // gender-stripped key, gendered entries only
	byGenderName map[string][]*model.Swimmer // gender+name fields, entries with a year only
}

func buildIndex(aux []*model.Dictionary) *auxIndex {
	idx := &auxIndex{
		exact:        make(map[string][]*model.Swimmer),
		byName:       make(map[string][]*model.Swimmer),
		byGenderName: make(map[string][]*model.Swimmer),
	}
	for _, dict := range aux {
		keys := make([]string, 0, len(dict.Swimmers))
		for k := range dict.Swimmers {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			sw := dict.Swimmers[k]
			idx.exact[k] = append(idx.exact[k], sw)
			if sw.Gender == model.GenderMale || sw.Gender == model.GenderFemale {
				idx.byName[identity.StripGender(k)] = append(idx.byName[identity.StripGender(k)], sw)
			}
			if sw.YearOfBirth != 0 {
				gn := genderNameKey(sw.Gender, sw.LastName, sw.FirstName)
				idx.byGenderName[gn] = append(idx.byGenderName[gn], sw)
			}
		}
	}
	return idx
}

func genderNameKey(g model.Gender, last, first string) string {
	gender := ""
	if g == model.GenderMale || g == model.GenderFemale {
		gender = string(g)
	}
	return strings.Join([]string{gender, identity.Collapse(last), identity.Collapse(first)}, identity.Separator)
}

func distinctGenders(cands []*model.Swimmer) []model.Gender {
	seen := make(map[model.Gender]bool)
	var out []model.Gender
	for _, c := range cands {
		if c.Gender != model.GenderMale && c.Gender != model.GenderFemale {
			continue
		}
		if !seen[c.Gender] {
			seen[c.Gender] = true
			out = append(out, c.Gender)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func distinctYears(cands []*model.Swimmer) []int {
	seen := make(map[int]bool)
	var out []int
	for _, c := range cands {
		if c.YearOfBirth == 0 {
			continue
		}
		if !seen[c.YearOfBirth] {
			seen[c.YearOfBirth] = true
			out = append(out, c.YearOfBirth)
		}
	}
	sort.Ints(out)
	return out
}
