// Package eventlog holds the ordered, append-only record of events captured for
// one test session.
package eventlog

import (
	"sync"

	"github.com/PratikDhanave/analytics-capture/internal/models"
)

// Log is safe for concurrent use: the interception path appends while assertions
// take snapshots. Events are copied on the way in and on the way out, so an
// appended event can no longer be changed by anyone.
type Log struct {
	mu         sync.RWMutex
	events     []models.Event
	totalAdded int64
	clears     int64
	closed     bool
}

// New returns an empty log.
func New() *Log {
	return &Log{}
}

// Append adds events in the given order after everything already recorded. It
// reports false, recording nothing, once the log is closed.
func (l *Log) Append(events ...models.Event) bool {
	cloned := make([]models.Event, len(events))
	for i, e := range events {
		cloned[i] = e.Clone()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.events = append(l.events, cloned...)
	l.totalAdded += int64(len(cloned))
	return true
}

// Snapshot returns an independent copy of the log in append order.
func (l *Log) Snapshot() []models.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Event, len(l.events))
	for i, e := range l.events {
		out[i] = e.Clone()
	}
	return out
}

// Len returns the number of events currently held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Clear empties the log. Clearing an empty log is a no-op.
func (l *Log) Clear() {
	l.mu.Lock()
	if len(l.events) > 0 {
		l.events = nil
		l.clears++
	}
	l.mu.Unlock()
}

// Close empties the log for good: later Appends are dropped.
func (l *Log) Close() {
	l.mu.Lock()
	l.closed = true
	if len(l.events) > 0 {
		l.events = nil
		l.clears++
	}
	l.mu.Unlock()
}

// Stats reports monotonic counters that survive Clear.
type Stats struct {
	Current    int
	TotalAdded int64
	Clears     int64
}

// Stats returns the current counters.
func (l *Log) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Stats{Current: len(l.events), TotalAdded: l.totalAdded, Clears: l.clears}
}
