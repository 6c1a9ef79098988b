// Package utils provides small shared formatting helpers.
package utils

import (
	"fmt"
	"time"
)

// FormatTimeAgo renders a timestamp as a rough relative age, falling back
// to an absolute date beyond a month.
func FormatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	elapsed := time.Since(t)
	if elapsed < 0 {
		return "in the future"
	}

	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return pluralAgo(int(elapsed.Minutes()), "minute")
	case elapsed < 24*time.Hour:
		return pluralAgo(int(elapsed.Hours()), "hour")
	case elapsed < 7*24*time.Hour:
		return pluralAgo(int(elapsed.Hours()/24), "day")
	case elapsed < 30*24*time.Hour:
		return pluralAgo(int(elapsed.Hours()/(24*7)), "week")
	default:
		return t.Format("Jan 2, 2006")
	}
}

func pluralAgo(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
