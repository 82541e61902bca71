package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatNumber renders an integer with comma thousands separators (12,345).
func FormatNumber(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}

	var sb strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		sb.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + sb.String()
	}
	return sb.String()
}

// FormatDate renders a timestamp as "January 2, 2006 03:04 PM", or "N/A" when zero.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format("January 2, 2006 03:04 PM")
}

// FormatSeconds renders a processing time in seconds with one decimal, or "N/A".
func FormatSeconds(secs float64) string {
	if secs <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1fs", secs)
}

// FormatPercent renders a 0..1 ratio as a whole percentage.
func FormatPercent(ratio float64) string {
	return fmt.Sprintf("%.0f%%", ratio*100)
}

// TruncateText cuts s to maxLen runes and appends "..." when it was longer.
func TruncateText(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
