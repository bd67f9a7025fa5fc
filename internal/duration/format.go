package duration

import (
	"fmt"
	"strings"
)

// Format renders seconds as "1h 23m 45s", dropping zero units.
// Zero and negative durations render as "0s".
func Format(seconds float64) string {
	if seconds <= 0 {
		return "0s"
	}

	total := int64(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	var parts []string

	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}

	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}

	if secs > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", secs))
	}

	return strings.Join(parts, " ")
}
