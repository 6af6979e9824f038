// Package poll implements the poll-wait assertion protocol over an event log.
//
// Analytics SDKs batch and delay their requests, so an assertion cannot check the
// log once. AwaitMatch rescans the log every poll interval until a matching event
// shows up or the timeout elapses. Not finding the event is a normal outcome
// carrying a diagnostic report; only an invalid query is an error.
package poll

import (
	"context"
	"time"

	cerrors "github.com/PratikDhanave/analytics-capture/internal/errors"
	"github.com/PratikDhanave/analytics-capture/internal/matcher"
	"github.com/PratikDhanave/analytics-capture/internal/models"
)

// Defaults used when a query leaves timing unset.
const (
	DefaultTimeout      = 2 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// Source is anything that can hand out an ordered snapshot of captured events.
type Source interface {
	Snapshot() []models.Event
}

// Query describes one assertion.
type Query struct {
	EventName    string
	Expected     map[string]interface{}
	Timeout      time.Duration
	PollInterval time.Duration
}

// Validate rejects queries that violate the caller contract.
func (q Query) Validate() error {
	if q.EventName == "" {
		return cerrors.NewUsage(cerrors.CodeInvalidQuery, "event name is required")
	}
	if q.Timeout < 0 {
		return cerrors.NewUsage(cerrors.CodeInvalidQuery, "timeout must not be negative").
			WithDetail("timeout", q.Timeout.String())
	}
	if q.PollInterval <= 0 {
		return cerrors.NewUsage(cerrors.CodeInvalidQuery, "poll interval must be positive").
			WithDetail("poll_interval", q.PollInterval.String())
	}
	return nil
}

// Result is the outcome of AwaitMatch. Event is the first matching event when
// Matched is true.
type Result struct {
	Matched bool
	Event   *models.Event
	Report  Report
}

// AwaitMatch polls src until an event named q.EventName whose properties satisfy
// q.Expected is found, or q.Timeout elapses. The log is scanned once more at the
// deadline, so a timeout of zero is a single immediate check.
//
// The returned error is non-nil only for an invalid query or a cancelled ctx.
func AwaitMatch(ctx context.Context, src Source, q Query) (Result, error) {
	if err := q.Validate(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	deadline := start.Add(q.Timeout)
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		events := src.Snapshot()
		if idx := FindMatch(events, q.EventName, q.Expected); idx >= 0 {
			found := events[idx]
			return Result{
				Matched: true,
				Event:   &found,
				Report:  newReport(q, events, idx, time.Since(start)),
			}, nil
		}

		now := time.Now()
		if !now.Before(deadline) {
			return Result{Report: newReport(q, events, -1, now.Sub(start))}, nil
		}

		wait := q.PollInterval
		if remaining := deadline.Sub(now); remaining < wait {
			wait = remaining
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return Result{Report: newReport(q, events, -1, time.Since(start))}, ctx.Err()
		case <-timer.C:
		}
	}
}

// FindMatch returns the index of the first event named name whose properties
// satisfy expected, or -1.
func FindMatch(events []models.Event, name string, expected map[string]interface{}) int {
	for i, e := range events {
		if e.Name == name && matcher.Matches(e.Properties, expected) {
			return i
		}
	}
	return -1
}
