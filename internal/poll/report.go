package poll

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PratikDhanave/analytics-capture/internal/matcher"
	"github.com/PratikDhanave/analytics-capture/internal/models"
)

// Reason is the best-guess category of an assertion outcome.
type Reason string

const (
	ReasonMatched          Reason = "matched"
	ReasonNoEvents         Reason = "no events captured"
	ReasonNameMismatch     Reason = "event name not captured"
	ReasonPropertyMismatch Reason = "event captured with different properties"
)

// NearMiss is a captured event with the right name but the wrong properties.
type NearMiss struct {
	Index      int
	Properties map[string]interface{}
	Mismatches []string
}

// Report explains an assertion outcome.
type Report struct {
	EventName     string
	Expected      map[string]interface{}
	Timeout       time.Duration
	Elapsed       time.Duration
	Total         int
	MatchedIndex  int
	Matched       map[string]interface{}
	NearMisses    []NearMiss
	ObservedNames []string
	Reason        Reason
}

func newReport(q Query, events []models.Event, matchedIdx int, elapsed time.Duration) Report {
	r := Report{
		EventName:    q.EventName,
		Expected:     q.Expected,
		Timeout:      q.Timeout,
		Elapsed:      elapsed,
		Total:        len(events),
		MatchedIndex: matchedIdx,
	}
	if matchedIdx >= 0 {
		r.Reason = ReasonMatched
		r.Matched = events[matchedIdx].Properties
		return r
	}

	seen := make(map[string]bool)
	for i, e := range events {
		if e.Name == q.EventName {
			r.NearMisses = append(r.NearMisses, NearMiss{
				Index:      i,
				Properties: e.Properties,
				Mismatches: matcher.Mismatches(e.Properties, q.Expected),
			})
		}
		if !seen[e.Name] {
			seen[e.Name] = true
			r.ObservedNames = append(r.ObservedNames, e.Name)
		}
	}

	switch {
	case len(events) == 0:
		r.Reason = ReasonNoEvents
	case len(r.NearMisses) > 0:
		r.Reason = ReasonPropertyMismatch
	default:
		r.Reason = ReasonNameMismatch
	}
	return r
}

// Message renders the report for a positive assertion ("event should fire").
func (r Report) Message() string {
	var b strings.Builder
	if r.Reason == ReasonMatched {
		fmt.Fprintf(&b, "event %q%s fired after %s (event #%d of %d captured)",
			r.EventName, r.withProperties(), round(r.Elapsed), r.MatchedIndex+1, r.Total)
		return b.String()
	}

	fmt.Fprintf(&b, "expected event %q%s to fire within %s, but it did not\n",
		r.EventName, r.withProperties(), round(r.Timeout))
	r.writeDiagnosis(&b)
	return strings.TrimRight(b.String(), "\n")
}

// NegatedMessage renders the same report for a negative assertion
// ("event should not fire").
func (r Report) NegatedMessage() string {
	var b strings.Builder
	if r.Reason == ReasonMatched {
		fmt.Fprintf(&b, "expected event %q%s not to fire, but it fired after %s\n",
			r.EventName, r.withProperties(), round(r.Elapsed))
		fmt.Fprintf(&b, "matching event #%d of %d captured, properties: %s",
			r.MatchedIndex+1, r.Total, dump(r.Matched))
		return b.String()
	}

	fmt.Fprintf(&b, "event %q%s did not fire within %s\n", r.EventName, r.withProperties(), round(r.Timeout))
	r.writeDiagnosis(&b)
	return strings.TrimRight(b.String(), "\n")
}

func (r Report) writeDiagnosis(b *strings.Builder) {
	fmt.Fprintf(b, "captured %d event(s); reason: %s\n", r.Total, r.Reason)
	switch r.Reason {
	case ReasonNoEvents:
		b.WriteString("no analytics requests were captured: check that capture is attached before the page loads " +
			"and that the ingestion endpoint is recognized\n")
	case ReasonPropertyMismatch:
		fmt.Fprintf(b, "expected properties: %s\n", dump(r.Expected))
		fmt.Fprintf(b, "events named %q with other properties:\n", r.EventName)
		for _, nm := range r.NearMisses {
			fmt.Fprintf(b, "  #%d properties: %s\n", nm.Index+1, dump(nm.Properties))
			for _, m := range nm.Mismatches {
				fmt.Fprintf(b, "      %s\n", m)
			}
		}
	case ReasonNameMismatch:
		fmt.Fprintf(b, "captured event names: %s\n", strings.Join(quoteAll(r.ObservedNames), ", "))
	}
}

func (r Report) withProperties() string {
	if len(r.Expected) == 0 {
		return ""
	}
	return " with properties " + dump(r.Expected)
}

func dump(v map[string]interface{}) string {
	if v == nil {
		v = map[string]interface{}{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%d unprintable properties>", len(v))
	}
	return string(b)
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("%q", n)
	}
	return out
}

func round(d time.Duration) time.Duration {
	if d < time.Millisecond {
		return d
	}
	return d.Round(time.Millisecond)
}
