// Package identity derives the canonical keys that join swimmers, teams and
// relays across the tables of a meet and across meets. Every function here
// is pure: identical input always yields the identical key.
package identity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/heatsheet/internal/model"
)

// Separator joins key segments. Segment positions are fixed: the gender
// slot is always first and stays empty when gender is unknown or mixed, so
// "|Rossi|Mario|1990" and "M|Rossi|Mario|1990" differ only in that slot.
const Separator = "|"

// SwimmerKey derives the canonical identity key for a swimmer.
// It returns "" when lastName, firstName or year is blank: indexing partial
// records under a shared stub key would collide unrelated people, so
// callers must skip empty keys entirely.
func SwimmerKey(gender model.Gender, lastName, firstName string, year int, team string) string {
	last := Collapse(lastName)
	first := Collapse(firstName)
	if last == "" || first == "" || year == 0 {
		return ""
	}

	g := ""
	if gender == model.GenderMale || gender == model.GenderFemale {
		g = string(gender)
	}

	parts := []string{g, last, first, strconv.Itoa(year)}
	if t := Collapse(team); t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, Separator)
}

// TeamKey derives the dictionary key for a team: the whitespace-normalized
// name, used exactly as written. No case folding: "SSD Aquatica" and
// "SSD AQUATICA" are distinct teams until a human says otherwise.
func TeamKey(name string) string {
	return Collapse(name)
}

// RelayKey correlates the same relay entry appearing independently in the
// heats table and the summary table of one meet. Relay names repeat across
// events ("Aquatica A"), so heat, lane and timing anchor the entry.
func RelayKey(nameOrTeam string, heat, lane int, timing string) string {
	return fmt.Sprintf("%s|%d|%d|%s", Collapse(nameOrTeam), heat, lane, Collapse(timing))
}

// StripGender removes the gender slot from a swimmer key, leaving the
// name/year/team remainder both gendered and genderless variants share.
func StripGender(key string) string {
	i := strings.Index(key, Separator)
	if i < 0 {
		return key
	}
	return key[i+1:]
}

// WithGender rewrites a swimmer key's gender slot.
func WithGender(key string, gender model.Gender) string {
	return string(gender) + Separator + StripGender(key)
}

// KeyGender reads the gender slot of a swimmer key.
func KeyGender(key string) model.Gender {
	i := strings.Index(key, Separator)
	if i <= 0 {
		return model.GenderUnknown
	}
	switch key[:i] {
	case "M":
		return model.GenderMale
	case "F":
		return model.GenderFemale
	}
	return model.GenderUnknown
}

// NormalizeGender maps a raw page token to a gender. Any token starting
// with "M" or "F" (case-insensitive) counts; everything else is unknown.
// Mixed is never produced here; only relay-leg inference yields it.
func NormalizeGender(token string) model.Gender {
	t := strings.TrimSpace(token)
	if t == "" {
		return model.GenderUnknown
	}
	switch t[0] {
	case 'M', 'm':
		return model.GenderMale
	case 'F', 'f':
		return model.GenderFemale
	}
	return model.GenderUnknown
}

// Collapse trims s and collapses every internal whitespace run to a single
// space, so " Rossi  Mario " and "Rossi Mario" derive the same key.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// twoDigitPivot splits two-digit years: below it 20xx, from it on 19xx.
const twoDigitPivot = 30

// ParseYear reads a birth year token in two- or four-digit notation.
// Returns 0 for anything unparseable; 0 is the "blank year" the key
// derivation refuses to index.
func ParseYear(token string) int {
	t := strings.TrimSpace(token)
	n, err := strconv.Atoi(t)
	if err != nil {
		return 0
	}
	switch {
	case n >= 1900 && n <= 2099:
		return n
	case n >= 0 && n < 100 && len(t) == 2:
		if n < twoDigitPivot {
			return 2000 + n
		}
		return 1900 + n
	}
	return 0
}

// timingRe matches the notations the enumerated layouts print:
// 1'02"34, 1:02.34 and bare 62.34 / 45"12 seconds.
var timingRe = regexp.MustCompile(`^(?:(\d+)[':])?(\d{1,2})[".](\d{1,2})$`)

// ParseTiming converts a printed timing into centiseconds. The verbatim
// string is kept alongside in every row; a false second return means the
// token was not a timing at all.
func ParseTiming(s string) (int, bool) {
	m := timingRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	minutes := 0
	if m[1] != "" {
		minutes, _ = strconv.Atoi(m[1])
	}
	seconds, _ := strconv.Atoi(m[2])
	centis, _ := strconv.Atoi(m[3])
	if len(m[3]) == 1 {
		centis *= 10
	}
	if seconds >= 60 && minutes > 0 {
		return 0, false
	}
	return (minutes*60+seconds)*100 + centis, true
}

// SplitName separates "ROSSI Mario" style combined tokens: the leading run
// of all-uppercase words is the last name, the remainder the first name.
// Results pages print surnames in capitals, which survives multi-word
// names like "DE ROSSI Gian Maria".
func SplitName(combined string) (last, first string) {
	fields := strings.Fields(combined)
	i := 0
	for i < len(fields) && isUpperWord(fields[i]) {
		i++
	}
	if i == 0 || i == len(fields) {
		// No case boundary to split on; fall back to first word = last name.
		if len(fields) > 1 {
			return fields[0], strings.Join(fields[1:], " ")
		}
		return strings.Join(fields, " "), ""
	}
	return strings.Join(fields[:i], " "), strings.Join(fields[i:], " ")
}

func isUpperWord(w string) bool {
	hasLetter := false
	for _, r := range w {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if (r >= 'A' && r <= 'Z') || r > 127 {
			hasLetter = true
		}
	}
	return hasLetter
}

// legRe matches a combined relay-leg token: "ROSSI Mario 1990".
var legRe = regexp.MustCompile(`^(.*?)\s+(\d{2}|\d{4})$`)

// ParseRelayLeg parses one combined relay-leg token into its swimmer
// identity fields. Order and lap data are supplied by the caller from the
// surrounding table structure.
func ParseRelayLeg(token string, order int) model.RelayLeg {
	leg := model.RelayLeg{Order: order}
	t := Collapse(token)
	if m := legRe.FindStringSubmatch(t); m != nil {
		if y := ParseYear(m[2]); y != 0 {
			leg.YearOfBirth = y
			t = m[1]
		}
	}
	leg.LastName, leg.FirstName = SplitName(t)
	return leg
}
