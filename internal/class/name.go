package class

import (
	"strings"

	"github.com/jeffboody/osmdb-sub000/internal/translit"
)

// abbrevWords is the word-level substitution table applied to names.
// Matches are case-sensitive and whole-word only.
var abbrevWords = map[string]string{
	"North":      "N",
	"South":      "S",
	"East":       "E",
	"West":       "W",
	"Northeast":  "NE",
	"Northwest":  "NW",
	"Southeast":  "SE",
	"Southwest":  "SW",
	"Avenue":     "Ave",
	"Boulevard":  "Blvd",
	"Circle":     "Cir",
	"Court":      "Ct",
	"Drive":      "Dr",
	"Expressway": "Expy",
	"Freeway":    "Fwy",
	"Highway":    "Hwy",
	"Lane":       "Ln",
	"Parkway":    "Pkwy",
	"Place":      "Pl",
	"Road":       "Rd",
	"Street":     "St",
	"Terrace":    "Ter",
	"Trail":      "Trl",
	"Turnpike":   "Tpke",
	"Mount":      "Mt",
	"Mountain":   "Mtn",
	"Junction":   "Jct",
	"Crossing":   "Xing",
	"Heights":    "Hts",
	"Springs":    "Spgs",
}

// AbbreviateName normalizes a raw name and produces its abbreviated
// form. The input is transliterated to ASCII; quotes and the reserved
// '|' separator become spaces; a trailing "<number> ft" elevation
// suffix is trimmed. Words are split on whitespace and ';'. If no word
// needed abbreviation the abbreviated form is returned empty.
func AbbreviateName(input string) (full string, abbrev string) {
	s := translit.ToASCII(input)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '"', '\'', '|', ';':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}

	words := strings.Fields(b.String())

	// Trim a trailing elevation suffix like "4345 ft".
	if n := len(words); n >= 2 && isFt(words[n-1]) && isNumber(words[n-2]) {
		words = words[:n-2]
	}

	if len(words) == 0 {
		return "", ""
	}

	full = strings.Join(words, " ")

	changed := false
	short := make([]string, len(words))
	for i, w := range words {
		if a, ok := abbrevWords[w]; ok {
			short[i] = a
			changed = true
		} else {
			short[i] = w
		}
	}
	if !changed {
		return full, ""
	}
	return full, strings.Join(short, " ")
}

func isFt(w string) bool {
	return w == "ft" || w == "ft." || w == "feet"
}

func isNumber(w string) bool {
	if w == "" {
		return false
	}
	for i := 0; i < len(w); i++ {
		c := w[i]
		if (c < '0' || c > '9') && c != ',' && c != '.' {
			return false
		}
	}
	return true
}
