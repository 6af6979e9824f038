package capture

import "context"

// TB is the part of testing.TB the helpers below need.
type TB interface {
	Helper()
	Errorf(format string, args ...interface{})
	Cleanup(func())
}

// ForTest returns a session that is closed when t finishes.
func ForTest(t TB, opts ...Option) *Session {
	t.Helper()
	s := NewSession(opts...)
	t.Cleanup(s.Close)
	return s
}

// Fired reports an error on t unless a matching event is captured in time.
func Fired(t TB, s *Session, name string, expected map[string]interface{}, opts ...AssertOption) bool {
	t.Helper()
	out, err := s.AssertFired(context.Background(), name, expected, opts...)
	return report(t, out, err)
}

// NotFired reports an error on t if a matching event is captured in time.
func NotFired(t TB, s *Session, name string, expected map[string]interface{}, opts ...AssertOption) bool {
	t.Helper()
	out, err := s.AssertNotFired(context.Background(), name, expected, opts...)
	return report(t, out, err)
}

// CapturedCount reports an error on t unless exactly *exact events, or at least
// one when exact is nil, were captured.
func CapturedCount(t TB, s *Session, exact *int) bool {
	t.Helper()
	out, err := s.AssertCapturedCount(exact)
	return report(t, out, err)
}

func report(t TB, out Outcome, err error) bool {
	t.Helper()
	if err != nil {
		t.Errorf("analytics assertion: %v", err)
		return false
	}
	if !out.Pass {
		t.Errorf("%s", out.Message)
	}
	return out.Pass
}
