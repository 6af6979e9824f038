package capture

import (
	"context"
	"time"

	"github.com/PratikDhanave/analytics-capture/internal/poll"
)

// Outcome is the result of an assertion. A failed assertion is not an error:
// Pass is false and Message explains what was captured instead.
type Outcome struct {
	Pass    bool
	Message string
	Elapsed time.Duration
	Report  Report
}

// AssertFired waits until an event named name whose properties include expected
// has been captured. Only an invalid query, a closed session or a cancelled ctx
// return an error.
func (s *Session) AssertFired(ctx context.Context, name string, expected map[string]interface{}, opts ...AssertOption) (Outcome, error) {
	res, err := s.await(ctx, name, expected, opts)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{
		Pass:    res.Matched,
		Message: res.Report.Message(),
		Elapsed: res.Report.Elapsed,
		Report:  res.Report,
	}
	s.trace("Asserted event fired", "event", name, "pass", out.Pass, "elapsed", out.Elapsed)
	return out, nil
}

// AssertNotFired passes when no matching event is captured within the timeout.
// It fails as soon as one shows up, so a passing call always waits the full timeout.
func (s *Session) AssertNotFired(ctx context.Context, name string, expected map[string]interface{}, opts ...AssertOption) (Outcome, error) {
	res, err := s.await(ctx, name, expected, opts)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{
		Pass:    !res.Matched,
		Message: res.Report.NegatedMessage(),
		Elapsed: res.Report.Elapsed,
		Report:  res.Report,
	}
	s.trace("Asserted event not fired", "event", name, "pass", out.Pass, "elapsed", out.Elapsed)
	return out, nil
}

// AssertCapturedCount checks the number of captured events right now. A nil
// exact asserts that at least one event was captured.
func (s *Session) AssertCapturedCount(exact *int) (Outcome, error) {
	if err := s.checkOpen(); err != nil {
		return Outcome{}, err
	}
	pass, msg, err := poll.CheckCount(s.log.Snapshot(), exact)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Pass: pass, Message: msg}, nil
}

// CountEvents returns how many captured events are named name, or all captured
// events when name is empty.
func (s *Session) CountEvents(name string) int {
	events := s.log.Snapshot()
	if name == "" {
		return len(events)
	}
	n := 0
	for _, e := range events {
		if e.Name == name {
			n++
		}
	}
	return n
}

func (s *Session) await(ctx context.Context, name string, expected map[string]interface{}, opts []AssertOption) (poll.Result, error) {
	if err := s.checkOpen(); err != nil {
		return poll.Result{}, err
	}
	cfg := assertConfig{timeout: s.timeout, pollInterval: s.pollInterval}
	for _, opt := range opts {
		opt(&cfg)
	}
	return poll.AwaitMatch(ctx, s.log, poll.Query{
		EventName:    name,
		Expected:     expected,
		Timeout:      cfg.timeout,
		PollInterval: cfg.pollInterval,
	})
}
