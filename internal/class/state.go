package class

import "strings"

// stateCodes maps the two-letter USPS abbreviation to the numeric FIPS
// state code. The FIPS code itself is what gets stored.
var stateCodes = map[string]int{
	"AL": 1, "AK": 2, "AZ": 4, "AR": 5, "CA": 6, "CO": 8, "CT": 9,
	"DE": 10, "DC": 11, "FL": 12, "GA": 13, "HI": 15, "ID": 16,
	"IL": 17, "IN": 18, "IA": 19, "KS": 20, "KY": 21, "LA": 22,
	"ME": 23, "MD": 24, "MA": 25, "MI": 26, "MN": 27, "MS": 28,
	"MO": 29, "MT": 30, "NE": 31, "NV": 32, "NH": 33, "NJ": 34,
	"NM": 35, "NY": 36, "NC": 37, "ND": 38, "OH": 39, "OK": 40,
	"OR": 41, "PA": 42, "RI": 44, "SC": 45, "SD": 46, "TN": 47,
	"TX": 48, "UT": 49, "VT": 50, "VA": 51, "WA": 53, "WV": 54,
	"WI": 55, "WY": 56,
	"AS": 60, "GU": 66, "MP": 69, "PR": 72, "VI": 78,
}

var fipsValid map[int]bool

func init() {
	fipsValid = make(map[int]bool, len(stateCodes))
	for _, v := range stateCodes {
		fipsValid[v] = true
	}
}

// ParseState accepts a two-letter postal code or a numeric FIPS code
// and returns the FIPS state code. Invalid input folds to 0.
func ParseState(text string) int {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0
	}

	if code, ok := stateCodes[strings.ToUpper(s)]; ok {
		return code
	}

	// Numeric FIPS form, e.g. "08" for Colorado.
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	if fipsValid[n] {
		return n
	}
	return 0
}
