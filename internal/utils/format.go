package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	timestampLayout = "2006-01-02 15:04"
	bytesPerUnit    = 1024
	day             = 24 * time.Hour
	week            = 7 * day
)

var sizeUnits = [...]string{"kb", "mb", "gb", "tb", "pb"}

// FormatFileSize renders a byte count with a lower-case unit: "512b", "1.5kb", "10mb".
func FormatFileSize(byteCount int64) string {
	if byteCount < 0 {
		byteCount = 0
	}
	if byteCount < bytesPerUnit {
		return strconv.FormatInt(byteCount, 10) + "b"
	}
	value := float64(byteCount) / bytesPerUnit
	unitIndex := 0
	for value >= bytesPerUnit && unitIndex < len(sizeUnits)-1 {
		value /= bytesPerUnit
		unitIndex++
	}
	precision := 0
	if value < 10 {
		precision = 1
	}
	formatted := strconv.FormatFloat(value, 'f', precision, 64)
	return strings.TrimSuffix(formatted, ".0") + sizeUnits[unitIndex]
}

// FormatTimestamp renders value in the local zone to the minute. The zero time renders empty.
func FormatTimestamp(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.In(time.Local).Format(timestampLayout)
}

// FormatAge renders the distance between then and now in the largest whole unit,
// e.g. "just now", "5m ago", "3h ago", "2d ago", "6w ago".
func FormatAge(then time.Time, now time.Time) string {
	elapsed := now.Sub(then)
	switch {
	case elapsed < 0:
		return "in the future"
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", elapsed/time.Minute)
	case elapsed < day:
		return fmt.Sprintf("%dh ago", elapsed/time.Hour)
	case elapsed < 2*week:
		return fmt.Sprintf("%dd ago", elapsed/day)
	default:
		return fmt.Sprintf("%dw ago", elapsed/week)
	}
}
