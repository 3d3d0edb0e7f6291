package class

import (
	"math"
	"strconv"
	"strings"
)

// ParseElevation parses an elevation tag value and returns the height
// in feet. The text is either a bare number or "<number> ft"/"feet";
// a bare number is interpreted per unitFt (true = feet, false = meters,
// the OSM default for ele). Metric input is converted with
// ft = round(m * 3937 / 1200), the US survey-foot ratio.
// Unparseable input folds to 0.
func ParseElevation(text string, unitFt bool) int32 {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0
	}

	feet := unitFt
	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, "feet"):
		s = strings.TrimSpace(s[:len(s)-4])
		feet = true
	case strings.HasSuffix(lower, "ft"):
		s = strings.TrimSpace(s[:len(s)-2])
		feet = true
	case strings.HasSuffix(lower, "m"):
		s = strings.TrimSpace(s[:len(s)-1])
		feet = false
	}

	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}

	if !feet {
		v = v * 3937.0 / 1200.0
	}
	return int32(math.Round(v))
}
