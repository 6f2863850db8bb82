package layout

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/heatsheet/internal/identity"
	"github.com/ppiankov/heatsheet/internal/model"
)

// strokeTokens maps the stroke spellings the enumerated layouts print to
// the canonical two-letter codes. Italian portals abbreviate, legacy pages
// spell out, English mirrors appear on international meets.
var strokeTokens = map[string]string{
	"SL":           "SL",
	"STILE":        "SL",
	"LIBERO":       "SL",
	"FREE":         "SL",
	"FREESTYLE":    "SL",
	"DO":           "DO",
	"DORSO":        "DO",
	"BACK":         "DO",
	"BACKSTROKE":   "DO",
	"RA":           "RA",
	"RANA":         "RA",
	"BREAST":       "RA",
	"BREASTSTROKE": "RA",
	"FA":           "FA",
	"DF":           "FA",
	"FARFALLA":     "FA",
	"DELFINO":      "FA",
	"FLY":          "FA",
	"BUTTERFLY":    "FA",
	"MX":           "MX",
	"MI":           "MX",
	"MISTI":        "MX",
	"MEDLEY":       "MX",
}

var relayRe = regexp.MustCompile(`(\d+)\s*[xX]\s*(\d+)`)

// ParseEventDescription reads a program entry title such as "100 SL Maschi"
// or "Mistaffetta 4x50 MX" into its structured fields. Unrecognized parts
// are left zero; the verbatim description always survives on the event.
func ParseEventDescription(desc string) model.Event {
	ev := model.Event{Description: identity.Collapse(desc)}

	rest := ev.Description
	if m := relayRe.FindStringSubmatch(rest); m != nil {
		ev.Relay = true
		ev.RelayCount, _ = strconv.Atoi(m[1])
		ev.Distance, _ = strconv.Atoi(m[2])
		rest = strings.Replace(rest, m[0], " ", 1)
	}

	for _, tok := range strings.Fields(rest) {
		up := strings.ToUpper(strings.Trim(tok, ".,-"))

		if !ev.Relay && ev.Distance == 0 {
			if n, err := strconv.Atoi(up); err == nil && n >= 25 && n <= 1500 {
				ev.Distance = n
				continue
			}
		}
		if ev.Stroke == "" {
			if code, ok := strokeTokens[up]; ok {
				ev.Stroke = code
				continue
			}
		}
		if g := genderWord(up); g != model.GenderUnknown && !ev.Gender.Known() {
			ev.Gender = g
		}
	}
	return ev
}

// genderWord recognizes only explicit gender words. Bare "M" is left to the
// caller's section context: in a title it collides with too many
// abbreviations to trust.
func genderWord(up string) model.Gender {
	switch up {
	case "MASCHI", "MASCHILE", "MASCHILI", "UOMINI", "MEN", "MALE":
		return model.GenderMale
	case "FEMMINE", "FEMMINILE", "FEMMINILI", "DONNE", "WOMEN", "FEMALE":
		return model.GenderFemale
	case "MISTA", "MISTE", "MIXED", "MISTAFFETTA":
		return model.GenderMixed
	}
	return model.GenderUnknown
}

var categoryRe = regexp.MustCompile(`^([MUA])\s*(\d{2,3})$`)

// categoryWords are the age-group spellings that normalize to a code.
var categoryWords = map[string]string{
	"MASTER":  "M",
	"UNDER":   "U",
	"AMATORI": "A",
}

// plainCategories are group names printed without a numeric band.
var plainCategories = map[string]bool{
	"ASSOLUTI":   true,
	"SENIORES":   true,
	"JUNIORES":   true,
	"CADETTI":    true,
	"RAGAZZI":    true,
	"ESORDIENTI": true,
}

// NormalizeCategory maps an age-category header ("Master 25", "M 25",
// "M25") to its compact code ("M25"). It returns "" when the text is not a
// category at all, which doubles as the header-recognition test during
// summary-tab polling.
func NormalizeCategory(text string) string {
	t := strings.ToUpper(identity.Collapse(text))
	if t == "" {
		return ""
	}

	for word, letter := range categoryWords {
		if rest, ok := strings.CutPrefix(t, word+" "); ok {
			t = letter + " " + rest
			break
		}
	}
	if m := categoryRe.FindStringSubmatch(t); m != nil {
		return m[1] + m[2]
	}

	first := strings.Fields(t)[0]
	if plainCategories[first] {
		return t
	}
	return ""
}

// IsCategoryHeader reports whether a row's text is an age-category header.
func IsCategoryHeader(text string) bool {
	return NormalizeCategory(text) != ""
}

// HasPopulatedRow reports whether at least one heat row carries both an
// identity and a timing. The navigation machine polls on this: AJAX tabs
// render their skeleton before the data arrives, and an empty skeleton
// must never be mistaken for a parsed event.
func HasPopulatedRow(rows []model.HeatRow) bool {
	for _, r := range rows {
		named := r.LastName != "" || r.RelayName != ""
		if named && r.FinalTiming != "" {
			return true
		}
	}
	return false
}
