package changes

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var relativeExpressionPattern = regexp.MustCompile(`(?i)^(\d+)([mhdw])$`)

var relativeUnits = map[string]time.Duration{
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// absoluteLayouts are tried in order; layouts without a zone are read as UTC.
var absoluteLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC850,
	time.UnixDate,
	time.ANSIC,
	"Jan 2, 2006 15:04",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
}

// ParseTimeExpression converts a relative shorthand ("30m", "2h", "3d", "1w") or an
// absolute date string into a UTC cutoff instant. The boolean is false when the
// expression matches neither form.
func ParseTimeExpression(expression string, now time.Time) (time.Time, bool) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return time.Time{}, false
	}

	if match := relativeExpressionPattern.FindStringSubmatch(trimmed); match != nil {
		amount, parseError := strconv.ParseInt(match[1], 10, 64)
		if parseError != nil {
			return time.Time{}, false
		}
		unit := relativeUnits[strings.ToLower(match[2])]
		if amount > math.MaxInt64/int64(unit) {
			return time.Time{}, false
		}
		return now.Add(-time.Duration(amount) * unit).UTC(), true
	}

	for _, layout := range absoluteLayouts {
		parsed, parseError := time.ParseInLocation(layout, trimmed, time.UTC)
		if parseError == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}
