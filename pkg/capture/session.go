// Package capture records the analytics events a page sends during a test and
// answers assertions about them.
//
// A Session is created per test (per browser page or context). Hand every outgoing
// request to Session.HandleRequest, directly or through one of the adapters
// (Transport for Go HTTP clients, HandleRequestPaused for Chrome DevTools). Requests
// to ingestion endpoints are decoded into events and appended to the session's log;
// every request is continued unmodified. Assertions then poll that log.
package capture

import (
	"context"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/stratastor/logger"

	"github.com/PratikDhanave/analytics-capture/internal/classifier"
	"github.com/PratikDhanave/analytics-capture/internal/decoder"
	cerrors "github.com/PratikDhanave/analytics-capture/internal/errors"
	"github.com/PratikDhanave/analytics-capture/internal/eventlog"
	"github.com/PratikDhanave/analytics-capture/internal/models"
	"github.com/PratikDhanave/analytics-capture/internal/normalizer"
	"github.com/PratikDhanave/analytics-capture/internal/poll"
)

type (
	// Event is a captured analytics event in canonical form.
	Event = models.Event
	// Body is a request body: raw bytes or a value the host already parsed.
	Body = decoder.Body
	// Report explains an assertion outcome.
	Report = poll.Report
)

// UnknownEventName is the name of captured events whose payload had none.
const UnknownEventName = models.UnknownEventName

// Request is one outgoing network request as seen by the host's interception hook.
type Request interface {
	URL() string
	// Body returns the request body. An error is treated like an undecodable body.
	Body() (Body, error)
	// ContentEncoding returns the Content-Encoding header, if any.
	ContentEncoding() string
	// Continue lets the request proceed unmodified.
	Continue(ctx context.Context) error
}

// Stats are per-session counters for the capture path.
type Stats struct {
	RequestsSeen    int64
	RequestsTracked int64
	DecodeFailures  int64
	EventsCaptured  int64
	EventsHeld      int
}

// Session owns the event log of one test. It is safe for concurrent use.
type Session struct {
	id         string
	log        *eventlog.Log
	classifier *classifier.Classifier
	decoder    *decoder.Decoder
	logger     logger.Logger
	debug      bool

	timeout      time.Duration
	pollInterval time.Duration
	now          func() time.Time

	closed         atomic.Bool
	requestsSeen   atomic.Int64
	tracked        atomic.Int64
	decodeFailures atomic.Int64
}

// NewSession starts a session with an empty event log.
func NewSession(opts ...Option) *Session {
	s := &Session{
		id:           uuid.New().String(),
		log:          eventlog.New(),
		classifier:   classifier.New(),
		decoder:      decoder.New(decoder.DefaultMaxSize),
		timeout:      poll.DefaultTimeout,
		pollInterval: poll.DefaultPollInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.debug && s.logger == nil {
		if l, err := logger.NewTag(logger.Config{LogLevel: "debug"}, "capture"); err == nil {
			s.logger = l
		}
	}
	s.trace("Capture session started", "session", s.id)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Close ends the session: later requests are still continued but no longer
// recorded, and assertions fail with a session error.
func (s *Session) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.log.Close()
		s.trace("Capture session closed", "session", s.id)
	}
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// HandleRequest is the interception observer. It records the events carried by
// req when req targets an ingestion endpoint, then always continues req. Decoding
// problems never surface here; the only error returned is Continue's.
func (s *Session) HandleRequest(ctx context.Context, req Request) error {
	s.observe(req)
	return req.Continue(ctx)
}

// Observe records the events carried by a request without continuing it and
// returns how many were appended. It is used by hosts whose continuation is
// implicit, such as HTTP middleware.
func (s *Session) Observe(rawURL string, body Body, contentEncoding string) int {
	return s.capture(rawURL, func() (Body, error) { return body, nil }, contentEncoding)
}

func (s *Session) observe(req Request) {
	s.capture(req.URL(), req.Body, req.ContentEncoding())
}

func (s *Session) capture(rawURL string, body func() (Body, error), contentEncoding string) (appended int) {
	s.requestsSeen.Add(1)
	if s.closed.Load() || !s.classifier.IsTrackedEndpoint(rawURL) {
		return 0
	}
	s.tracked.Add(1)

	defer func() {
		// the capture path must never take the request down with it
		if r := recover(); r != nil {
			s.decodeFailures.Add(1)
			s.trace("Capture panicked, request skipped", "url", rawURL, "panic", r)
			appended = 0
		}
	}()

	b, err := body()
	if err != nil {
		s.decodeFailures.Add(1)
		s.trace("Request body unavailable", "url", rawURL, "err", err)
		return 0
	}

	res := s.decoder.Decode(b, encodingHint(rawURL, contentEncoding))
	switch res.Status {
	case decoder.StatusEmpty:
		s.trace("Tracked request without payload", "url", rawURL)
		return 0
	case decoder.StatusFailed:
		s.decodeFailures.Add(1)
		s.trace("Tracked request could not be decoded", "url", rawURL, "err", res.Err,
			"size", humanize.Bytes(uint64(res.Size)))
		return 0
	}

	events := normalizer.NormalizeAt(res.Payload, s.now())
	if !s.log.Append(events...) {
		s.trace("Session closed during capture, events dropped", "url", rawURL, "count", len(events))
		return 0
	}
	s.trace("Captured analytics events", "url", rawURL, "count", len(events),
		"size", humanize.Bytes(uint64(res.Size)), "encoding", res.Encoding)
	return len(events)
}

// encodingHint prefers the Content-Encoding header and falls back to the
// compression query parameter analytics SDKs append to their requests.
func encodingHint(rawURL, contentEncoding string) string {
	if contentEncoding != "" {
		return contentEncoding
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("compression")
}

// CapturedEvents returns the captured events in interception order.
func (s *Session) CapturedEvents() []Event {
	return s.log.Snapshot()
}

// ClearCapturedEvents empties the log. Calling it repeatedly is harmless.
func (s *Session) ClearCapturedEvents() {
	s.log.Clear()
	s.trace("Captured events cleared", "session", s.id)
}

// Stats returns the session counters.
func (s *Session) Stats() Stats {
	ls := s.log.Stats()
	return Stats{
		RequestsSeen:    s.requestsSeen.Load(),
		RequestsTracked: s.tracked.Load(),
		DecodeFailures:  s.decodeFailures.Load(),
		EventsCaptured:  ls.TotalAdded,
		EventsHeld:      ls.Current,
	}
}

func (s *Session) trace(msg string, kv ...interface{}) {
	if s.debug && s.logger != nil {
		s.logger.Debug(msg, kv...)
	}
}

func (s *Session) checkOpen() error {
	if s.closed.Load() {
		return cerrors.NewSession(cerrors.CodeSessionClosed, "capture session "+s.id+" is closed")
	}
	return nil
}
