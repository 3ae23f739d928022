package dedup

import (
	"regexp"
	"strings"
)

type synonym struct {
	re   *regexp.Regexp
	repl string
}

// Applied top to bottom. STREET and SAINT both collapse to ST.
var synonyms = compileSynonyms([][2]string{
	{"STREET", "ST"},
	{"AVENUE", "AVE"},
	{"DRIVE", "DR"},
	{"ROAD", "RD"},
	{"BOULEVARD", "BLVD"},
	{"COURT", "CT"},
	{"LANE", "LN"},
	{"PLACE", "PL"},
	{"CIRCLE", "CIR"},
	{"CIRC", "CIR"},
	{"PARKWAY", "PKWY"},
	{"TERRACE", "TER"},
	{"CRESCENT", "CRES"},
	{"HEIGHTS", "HTS"},
	{"MOUNT", "MT"},
	{"SAINT", "ST"},
	{"NORTH", "N"},
	{"SOUTH", "S"},
	{"EAST", "E"},
	{"WEST", "W"},
})

func compileSynonyms(pairs [][2]string) []synonym {
	out := make([]synonym, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, synonym{re: regexp.MustCompile(`\b` + p[0] + `\b`), repl: p[1]})
	}
	return out
}

var unitPrefixes = []*regexp.Regexp{
	regexp.MustCompile(`^UNIT\s+\d+\s*-\s*`),
	regexp.MustCompile(`^APT\s+\d+\s*-\s*`),
	regexp.MustCompile(`^#\d+\s*-\s*`),
}

// Priority order matters: the dash forms must win over the bare forms.
var unitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`UNIT\s+(\d+[A-Z]*)\s*-\s*`),
	regexp.MustCompile(`APT\s+(\d+[A-Z]*)\s*-\s*`),
	regexp.MustCompile(`#(\d+[A-Z]*)\s*-\s*`),
	regexp.MustCompile(`UNIT\s+(\d+[A-Z]*)\s+`),
	regexp.MustCompile(`APT\s+(\d+[A-Z]*)\s+`),
}

// Normalize canonicalizes a free-text address for grouping: upper case,
// single spaces, street-type and compass abbreviations, no leading unit prefix.
// Missing addresses normalize to "" and therefore group together; callers must
// not read a shared empty key as evidence of duplication.
func Normalize(address string) string {
	s := strings.Join(strings.Fields(strings.ToUpper(address)), " ")
	if s == "" {
		return ""
	}
	for _, syn := range synonyms {
		s = syn.re.ReplaceAllString(s, syn.repl)
	}
	// strip prefixes until none is left so that Normalize is idempotent
	// for stacked forms like "#3 - UNIT 4 - ..."
	for stripped := true; stripped; {
		stripped = false
		for _, re := range unitPrefixes {
			if loc := re.FindStringIndex(s); loc != nil {
				s = strings.TrimSpace(s[loc[1]:])
				stripped = true
			}
		}
	}
	return strings.TrimSpace(s)
}

// NormalizePtr is Normalize for nullable addresses.
func NormalizePtr(address *string) string {
	if address == nil {
		return ""
	}
	return Normalize(*address)
}

// ExtractUnit finds the first unit/apartment token in priority order and
// returns it with the address stripped of that pattern. unit is "" when no
// pattern matches, in which case base is the upper-cased, trimmed input.
func ExtractUnit(address string) (unit, base string) {
	addr := strings.ToUpper(strings.TrimSpace(address))
	for _, re := range unitPatterns {
		m := re.FindStringSubmatch(addr)
		if m == nil {
			continue
		}
		return m[1], strings.TrimSpace(re.ReplaceAllString(addr, ""))
	}
	return "", addr
}
