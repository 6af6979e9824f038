package poll

import (
	"fmt"
	"strings"

	cerrors "github.com/PratikDhanave/analytics-capture/internal/errors"
	"github.com/PratikDhanave/analytics-capture/internal/models"
)

// CheckCount checks the number of captured events. A nil exact means "at least one".
func CheckCount(events []models.Event, exact *int) (bool, string, error) {
	if exact != nil && *exact < 0 {
		return false, "", cerrors.NewUsage(cerrors.CodeInvalidQuery, "expected count must not be negative").
			WithDetail("count", *exact)
	}

	total := len(events)
	if exact == nil {
		if total > 0 {
			return true, fmt.Sprintf("captured %d event(s): %s", total, summarize(events)), nil
		}
		return false, "expected at least one captured event, but none were captured", nil
	}

	if total == *exact {
		return true, fmt.Sprintf("captured exactly %d event(s)", total), nil
	}
	msg := fmt.Sprintf("expected exactly %d captured event(s), got %d", *exact, total)
	if total > 0 {
		msg += "\ncaptured: " + summarize(events)
	}
	return false, msg, nil
}

// summarize lists names in capture order with repeat counts, e.g. "pageview x2, signup".
func summarize(events []models.Event) string {
	var order []string
	counts := make(map[string]int)
	for _, e := range events {
		if counts[e.Name] == 0 {
			order = append(order, e.Name)
		}
		counts[e.Name]++
	}
	parts := make([]string, len(order))
	for i, n := range order {
		if counts[n] > 1 {
			parts[i] = fmt.Sprintf("%q x%d", n, counts[n])
		} else {
			parts[i] = fmt.Sprintf("%q", n)
		}
	}
	return strings.Join(parts, ", ")
}
