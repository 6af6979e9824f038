package models

import "encoding/json"

// UnknownEventName is the name given to captured events whose payload carried no name.
const UnknownEventName = "unknown"

// Event is a captured analytics event in canonical form, regardless of the wire shape
// it arrived in. Extra holds every top-level payload field that is not one of the
// canonical ones, under its original key.
type Event struct {
	Name       string                 `json:"event"`
	Properties map[string]interface{} `json:"properties"`
	Timestamp  interface{}            `json:"timestamp"`
	DistinctID string                 `json:"distinct_id,omitempty"`
	Extra      map[string]interface{} `json:"-"`
}

// MarshalJSON flattens Extra next to the canonical fields so the event reads like
// the payload it came from.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(e.Extra)+4)
	for k, v := range e.Extra {
		out[k] = v
	}
	props := e.Properties
	if props == nil {
		props = map[string]interface{}{}
	}
	out["event"] = e.Name
	out["properties"] = props
	out["timestamp"] = e.Timestamp
	if e.DistinctID != "" {
		out["distinct_id"] = e.DistinctID
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON; unknown keys land in Extra.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Event{Properties: map[string]interface{}{}}
	for k, v := range raw {
		switch k {
		case "event":
			e.Name, _ = v.(string)
		case "properties":
			if props, ok := v.(map[string]interface{}); ok {
				e.Properties = props
			}
		case "timestamp":
			e.Timestamp = v
		case "distinct_id":
			e.DistinctID, _ = v.(string)
		default:
			if e.Extra == nil {
				e.Extra = make(map[string]interface{})
			}
			e.Extra[k] = v
		}
	}
	return nil
}

// Clone returns a deep copy so callers can never mutate an event held by a log.
func (e Event) Clone() Event {
	c := e
	c.Properties = cloneMap(e.Properties)
	if c.Properties == nil {
		c.Properties = map[string]interface{}{}
	}
	c.Timestamp = cloneValue(e.Timestamp)
	if e.Extra != nil {
		c.Extra = cloneMap(e.Extra)
	}
	return c
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
