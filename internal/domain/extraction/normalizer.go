package extraction

import (
	"regexp"
	"strconv"
	"strings"
)

// unitAliases maps lower-cased, whitespace-stripped unit spellings to their
// canonical symbol. Unknown units pass through lower-cased and unchanged.
var unitAliases = map[string]string{
	"pcs": "pcs", "pce": "pcs", "pieces": "pcs", "piece": "pcs",
	"ea": "pcs", "each": "pcs", "nos": "pcs", "no": "pcs", "unit": "pcs", "units": "pcs",
	"kg": "kg", "kgs": "kg", "kilo": "kg", "kilos": "kg", "kilogram": "kg", "kilograms": "kg",
	"g": "g", "gr": "g", "gram": "g", "grams": "g",
	"m": "m", "mtr": "m", "mtrs": "m", "meter": "m", "meters": "m", "metre": "m", "metres": "m",
	"cm": "cm", "mm": "mm",
	"l": "L", "ltr": "L", "ltrs": "L", "liter": "L", "liters": "L", "litre": "L", "litres": "L",
	"rls": "roll", "roll": "roll", "rolls": "roll",
	"box": "box", "boxes": "box", "ctn": "box", "carton": "box", "cartons": "box",
	"set": "set", "sets": "set",
	"pair": "pair", "pairs": "pair",
	"drum": "drum", "drums": "drum",
	"can": "can", "cans": "can",
	"bag": "bag", "bags": "bag",
	"gal": "gal", "gallon": "gal", "gallons": "gal",
	"ft": "ft", "feet": "ft", "foot": "ft",
}

var (
	quantityUnitPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([A-Za-z]+)`)
	bareNumberPattern   = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
	lineNumberPrefix    = regexp.MustCompile(`^\s*\d+[.\)\-\s]+`)
	sixDigitCode        = regexp.MustCompile(`\b(\d{6})\b`)
	whitespaceRun       = regexp.MustCompile(`\s+`)
)

var ambiguityPhrases = map[string]struct{}{
	"as required": {},
	"tbd":         {},
	"as needed":   {},
	"lot":         {},
	"assorted":    {},
}

const (
	impaCodeMin = 100000
	impaCodeMax = 999999

	maxDescriptionLength = 500
	truncatedLength      = 497
)

// NormalizeUnit canonicalizes a free-text unit spelling. Input is
// lower-cased and whitespace-stripped before lookup; an unrecognized unit
// is returned lower-cased and unchanged.
func NormalizeUnit(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = whitespaceRun.ReplaceAllString(key, "")
	if canonical, ok := unitAliases[key]; ok {
		return canonical
	}
	return key
}

// ParseQuantity extracts a numeric quantity and its canonical unit from raw
// free text. It returns (nil, nil) for ambiguity phrases such as "as
// required" or "tbd", matched case-insensitively against the whole trimmed
// string. When no number/unit pair is found it falls back to a bare number
// with no unit; when nothing numeric is found at all it returns (nil, nil).
func ParseQuantity(raw string) (*float64, *string) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if _, ambiguous := ambiguityPhrases[trimmed]; ambiguous {
		return nil, nil
	}

	if m := quantityUnitPattern.FindStringSubmatch(raw); m != nil {
		qty, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			unit := NormalizeUnit(m[2])
			return &qty, &unit
		}
	}

	if m := bareNumberPattern.FindStringSubmatch(raw); m != nil {
		qty, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return &qty, nil
		}
	}

	return nil, nil
}

// NormalizeDescription strips a leading line-number prefix, collapses
// interior whitespace to single spaces, and truncates to at most 500
// characters (497 plus an ellipsis) so the result fits the persisted column
// width. It is idempotent: applying it twice yields the same string.
func NormalizeDescription(raw string) string {
	s := lineNumberPrefix.ReplaceAllString(raw, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if len(s) > maxDescriptionLength {
		s = s[:truncatedLength] + "..."
	}
	return s
}

// DetectIMPAInText scans raw for a standalone 6-digit run and returns the
// first one whose numeric value falls in the valid IMPA code range
// [100000, 999999]. Returns nil when no such code is present.
func DetectIMPAInText(raw string) *string {
	matches := sixDigitCode.FindAllString(raw, -1)
	for _, candidate := range matches {
		n, err := strconv.Atoi(candidate)
		if err != nil {
			continue
		}
		if n >= impaCodeMin && n <= impaCodeMax {
			code := candidate
			return &code
		}
	}
	return nil
}
