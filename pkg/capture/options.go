package capture

import (
	"time"

	"github.com/stratastor/logger"

	"github.com/PratikDhanave/analytics-capture/internal/classifier"
	"github.com/PratikDhanave/analytics-capture/internal/decoder"
)

// Option configures a Session.
type Option func(*Session)

// WithDebug turns on per-request trace lines.
func WithDebug(debug bool) Option {
	return func(s *Session) {
		s.debug = debug
	}
}

// WithLogger sets the logger trace lines go to. Without it a debug session
// creates its own.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithEndpointFragments recognizes extra ingestion path fragments on top of the
// defaults, e.g. a self-hosted proxy's "/ingest/".
func WithEndpointFragments(fragments ...string) Option {
	return func(s *Session) {
		s.classifier = classifier.New(fragments...).WithHosts(s.classifier.Hosts()...)
	}
}

// WithHosts limits capture to requests sent to the given hosts.
func WithHosts(hosts ...string) Option {
	return func(s *Session) {
		s.classifier = s.classifier.WithHosts(hosts...)
	}
}

// WithMaxBodySize caps the decoded size of a single request body.
func WithMaxBodySize(n int64) Option {
	return func(s *Session) {
		s.decoder = decoder.New(n)
	}
}

// WithDefaults sets the timing assertions use when the caller gives none.
// Non-positive values keep the built-in defaults.
func WithDefaults(timeout, pollInterval time.Duration) Option {
	return func(s *Session) {
		if timeout > 0 {
			s.timeout = timeout
		}
		if pollInterval > 0 {
			s.pollInterval = pollInterval
		}
	}
}

// WithClock overrides the capture instant used for events that carry no timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// AssertOption adjusts the timing of a single assertion.
type AssertOption func(*assertConfig)

type assertConfig struct {
	timeout      time.Duration
	pollInterval time.Duration
}

// Timeout bounds how long an assertion waits. Zero means a single immediate check.
func Timeout(d time.Duration) AssertOption {
	return func(c *assertConfig) {
		c.timeout = d
	}
}

// PollInterval sets how often the log is rescanned while waiting.
func PollInterval(d time.Duration) AssertOption {
	return func(c *assertConfig) {
		c.pollInterval = d
	}
}
