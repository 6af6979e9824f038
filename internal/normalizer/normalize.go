// Package normalizer maps decoded ingestion payloads onto canonical events.
//
// Exactly one interpretation is applied per payload, first match wins:
//
//  1. a "batch" array: each element is an event
//  2. a top-level array: each element is an event
//  3. an "event" (or shorthand "e") field: the whole object is one event
//  4. a "data" field: rules 1 and 2 applied to its value
//  5. anything else: no events
//
// Elements that are not JSON objects are dropped. Objects without a string name
// are kept under models.UnknownEventName, in every rule.
package normalizer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/PratikDhanave/analytics-capture/internal/models"
)

// Canonical field names consumed from a raw event; everything else goes to Extra.
const (
	fieldEvent      = "event"
	fieldEventShort = "e"
	fieldProperties = "properties"
	fieldTimestamp  = "timestamp"
	fieldTS         = "ts"
	fieldDistinctID = "distinct_id"
	fieldBatch      = "batch"
	fieldData       = "data"
)

// Normalize converts payload using the current time for events without a timestamp.
func Normalize(payload interface{}) []models.Event {
	return NormalizeAt(payload, time.Now())
}

// NormalizeAt converts payload; now stamps events whose payload has no timestamp.
func NormalizeAt(payload interface{}, now time.Time) []models.Event {
	return toEvents(rawEvents(payload, true), now)
}

// rawEvents picks the elements to convert. allowSingle is false when recursing
// into "data", which only honours the batch and array shapes.
func rawEvents(payload interface{}, allowSingle bool) []interface{} {
	switch v := payload.(type) {
	case []interface{}:
		return v
	case map[string]interface{}:
		if batch, ok := v[fieldBatch].([]interface{}); ok {
			return batch
		}
		if !allowSingle {
			return nil
		}
		if hasEventMarker(v) {
			return []interface{}{v}
		}
		if data, ok := v[fieldData]; ok {
			return rawEvents(data, false)
		}
	}
	return nil
}

func hasEventMarker(m map[string]interface{}) bool {
	if _, ok := m[fieldEvent]; ok {
		return true
	}
	_, ok := m[fieldEventShort]
	return ok
}

func toEvents(raw []interface{}, now time.Time) []models.Event {
	if len(raw) == 0 {
		return nil
	}
	events := make([]models.Event, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		events = append(events, toEvent(m, now))
	}
	return events
}

func toEvent(m map[string]interface{}, now time.Time) models.Event {
	e := models.Event{
		Name:       models.UnknownEventName,
		Properties: map[string]interface{}{},
	}
	consumed := map[string]bool{fieldProperties: true, fieldTimestamp: true, fieldDistinctID: true}

	if name, ok := m[fieldEvent].(string); ok && name != "" {
		e.Name = name
		consumed[fieldEvent] = true
	} else if name, ok := m[fieldEventShort].(string); ok && name != "" {
		e.Name = name
		consumed[fieldEventShort] = true
	}
	// a present but unusable marker is not a canonical field; keep it visible
	if _, ok := m[fieldEvent]; ok && e.Name == models.UnknownEventName {
		consumed[fieldEvent] = false
	}

	if props, ok := m[fieldProperties].(map[string]interface{}); ok {
		e.Properties = props
	}

	if ts, ok := m[fieldTimestamp]; ok && usableTimestamp(ts) {
		e.Timestamp = ts
	} else if ts, ok := m[fieldTS]; ok && usableTimestamp(ts) {
		e.Timestamp = ts
		consumed[fieldTS] = true
	} else {
		e.Timestamp = now.UTC().Format(time.RFC3339Nano)
	}

	e.DistinctID = stringID(m[fieldDistinctID])
	if e.DistinctID == "" {
		e.DistinctID = stringID(e.Properties[fieldDistinctID])
	}

	for k, v := range m {
		if consumed[k] {
			continue
		}
		if e.Extra == nil {
			e.Extra = make(map[string]interface{})
		}
		e.Extra[k] = v
	}
	return e
}

func usableTimestamp(v interface{}) bool {
	switch t := v.(type) {
	case string:
		return t != ""
	case json.Number:
		return t != ""
	case float64, int, int64, uint64:
		return true
	}
	return false
}

func stringID(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int, int64, uint64:
		return fmt.Sprint(t)
	}
	return ""
}
