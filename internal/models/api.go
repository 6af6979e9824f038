package models

// Assertion kinds accepted by POST /sessions/:id/assert.
const (
	AssertFired    = "fired"
	AssertNotFired = "not_fired"
	AssertCount    = "count"
)

// SessionCreateResponse is returned by POST /sessions.
type SessionCreateResponse struct {
	SessionID string `json:"session_id"`
	IngestURL string `json:"ingest_url"`
}

// EventsResponse is returned by GET /sessions/:id/events.
type EventsResponse struct {
	SessionID string  `json:"session_id"`
	Count     int     `json:"count"`
	Events    []Event `json:"events"`
}

// CountResponse is returned by GET /sessions/:id/count.
type CountResponse struct {
	EventName string `json:"event_name,omitempty"`
	Count     int    `json:"count"`
}

// AssertRequest is the POST /sessions/:id/assert payload.
// timeout_ms and poll_interval_ms fall back to the server defaults when zero.
type AssertRequest struct {
	Kind           string                 `json:"kind"`
	EventName      string                 `json:"event_name,omitempty"`
	Properties     map[string]interface{} `json:"properties,omitempty"`
	Count          *int                   `json:"count,omitempty"`
	TimeoutMS      int64                  `json:"timeout_ms,omitempty"`
	PollIntervalMS int64                  `json:"poll_interval_ms,omitempty"`
}

// AssertResponse is returned by POST /sessions/:id/assert.
// Pass=false is a normal outcome; Message carries the diagnostic.
type AssertResponse struct {
	Pass      bool   `json:"pass"`
	Message   string `json:"message"`
	ElapsedMS int64  `json:"elapsed_ms"`
}
