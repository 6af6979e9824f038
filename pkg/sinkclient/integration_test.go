package sinkclient

import (
	"context"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

////////////////////////////////////////////////////////////////////////////////
// INTEGRATION TEST SUITE
//
// These tests validate a running sink end-to-end:
//
//   SDK traffic → /ingest → capture → session log → assert API → Response
//
// They only run when CAPTURE_SINK_URL points at a sink, for example one
// started with `capture-sink serve`.
//
// Optional environment overrides:
//
//   CAPTURE_SINK_URL      required, e.g. http://localhost:8080
//   CAPTURE_CLIENT1_KEY   default client-key-123
//   CAPTURE_CLIENT2_KEY   no default; isolation test skipped when unset
//
////////////////////////////////////////////////////////////////////////////////

func sinkURL(t *testing.T) string {
	t.Helper()
	v := os.Getenv("CAPTURE_SINK_URL")
	if v == "" {
		t.Skip("CAPTURE_SINK_URL not set")
	}
	return strings.TrimRight(v, "/")
}

func client1Key() string {
	if v := os.Getenv("CAPTURE_CLIENT1_KEY"); v != "" {
		return v
	}
	return "client-key-123"
}

// waitReady polls /ready until the sink answers, so a sink that is still
// booting does not fail the suite.
func waitReady(t *testing.T, c *Client) {
	t.Helper()

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := c.Ready(ctx)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(300 * time.Millisecond)
	}
	t.Fatalf("sink not ready after 30s")
}

func liveClient(t *testing.T, key string) *Client {
	t.Helper()
	cfg := NewConfig(sinkURL(t), key)
	cfg.RetryCount = 0
	c := New(cfg)
	waitReady(t, c)
	return c
}

func ingest(t *testing.T, url, body string) {
	t.Helper()
	resp, err := (&http.Client{Timeout: 5 * time.Second}).Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Errorf("ingest: %v", err)
		return
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ingest expected 200 got %d", resp.StatusCode)
	}
}

////////////////////////////////////////////////////////////////////////////////
// CONTRACT TESTS
////////////////////////////////////////////////////////////////////////////////

// Session routes without an API key must be rejected.
func TestLive_UnauthorizedWithoutAPIKey(t *testing.T) {
	c := liveClient(t, "")

	_, err := c.CreateSession(context.Background())
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %v", err)
	}
}

// A late event is found by a waiting assertion.
func TestLive_AssertWaitsForLateEvent(t *testing.T) {
	c := liveClient(t, client1Key())
	ctx := context.Background()

	sess, err := c.CreateSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer c.DeleteSession(ctx, sess.SessionID)

	go func() {
		time.Sleep(150 * time.Millisecond)
		ingest(t, c.IngestURL(sess)+"/e/", `{"event":"signup","properties":{"plan":"pro"}}`)
	}()

	res, err := c.Fired(ctx, sess.SessionID, "signup", map[string]interface{}{"plan": "pro"}, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Pass {
		t.Fatalf("expected pass: %s", res.Message)
	}
}

// Repeated events are captured every time: the log does not deduplicate.
func TestLive_DuplicatesAreKept(t *testing.T) {
	c := liveClient(t, client1Key())
	ctx := context.Background()

	sess, err := c.CreateSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer c.DeleteSession(ctx, sess.SessionID)

	ingest(t, c.IngestURL(sess)+"/e/", `{"event":"click","properties":{"id":1}}`)
	ingest(t, c.IngestURL(sess)+"/e/", `{"event":"click","properties":{"id":1}}`)

	n, err := c.Count(ctx, sess.SessionID, "click")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 captured clicks got %d", n)
	}
}

////////////////////////////////////////////////////////////////////////////////
// CLIENT ISOLATION
////////////////////////////////////////////////////////////////////////////////

// Each client must see only its own sessions.
func TestLive_ClientsDoNotSeeEachOthersSessions(t *testing.T) {
	key2 := os.Getenv("CAPTURE_CLIENT2_KEY")
	if key2 == "" {
		t.Skip("CAPTURE_CLIENT2_KEY not set")
	}
	c1 := liveClient(t, client1Key())
	c2 := liveClient(t, key2)
	ctx := context.Background()

	sess, err := c1.CreateSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer c1.DeleteSession(ctx, sess.SessionID)

	if _, err := c2.Events(ctx, sess.SessionID); !IsNotFound(err) {
		t.Fatalf("expected 404 for other client, got %v", err)
	}
}
