package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/stratastor/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/analytics-capture/internal/config"
	"github.com/PratikDhanave/analytics-capture/internal/models"
	"github.com/PratikDhanave/analytics-capture/internal/store"
)

const testKey = "key-ci"

func newTestServer(t *testing.T) (*gin.Engine, *store.SessionStore) {
	t.Helper()
	l, err := logger.NewTag(logger.Config{LogLevel: "error"}, "test")
	require.NoError(t, err)

	cfg := config.Config{
		ListenAddr:          ":0",
		DefaultTimeout:      time.Second,
		DefaultPollInterval: 20 * time.Millisecond,
		MaxBodySize:         1 << 20,
		APIKeys:             map[string]string{testKey: "ci", "key-other": "other"},
	}
	st := store.NewSessionStore()
	t.Cleanup(st.Close)
	return NewRouter(cfg, st, l), st
}

func do(t *testing.T, r http.Handler, method, path, key string, body []byte, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, r http.Handler) models.SessionCreateResponse {
	t.Helper()
	w := do(t, r, http.MethodPost, "/sessions", testKey, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var resp models.SessionCreateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	return resp
}

func assertCall(t *testing.T, r http.Handler, id string, req models.AssertRequest) (int, models.AssertResponse) {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	w := do(t, r, http.MethodPost, "/sessions/"+id+"/assert", testKey, body)
	var resp models.AssertResponse
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestHealthAndReady(t *testing.T) {
	r, st := newTestServer(t)

	w := do(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	st.Close()
	w = do(t, r, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSessionRoutesRequireAPIKey(t *testing.T) {
	r, _ := newTestServer(t)

	w := do(t, r, http.MethodPost, "/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, r, http.MethodPost, "/sessions", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIngestAndInspect(t *testing.T) {
	r, _ := newTestServer(t)
	sess := createSession(t, r)
	assert.Equal(t, "/ingest/"+sess.SessionID, sess.IngestURL)

	w := do(t, r, http.MethodPost, sess.IngestURL+"/e/", "", []byte(`{"event":"pageview","properties":{"path":"/"}}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":1}`, w.Body.String())

	w = do(t, r, http.MethodPost, sess.IngestURL+"/batch/?compression=gzip-js", "",
		gzipBytes(t, `{"batch":[{"event":"signup","properties":{"plan":"pro"}},{"event":"pageview"}]}`))
	require.Equal(t, http.StatusOK, w.Code)

	// not an ingestion route: answered but not captured
	w = do(t, r, http.MethodPost, sess.IngestURL+"/decide/", "", []byte(`{"event":"ignored"}`))
	require.Equal(t, http.StatusOK, w.Code)

	// undecodable body is still answered
	w = do(t, r, http.MethodPost, sess.IngestURL+"/e/", "", []byte(`{"event":`))
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/sessions/"+sess.SessionID+"/events", testKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var events models.EventsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	assert.Equal(t, 3, events.Count)
	require.Len(t, events.Events, 3)
	assert.Equal(t, "pageview", events.Events[0].Name)
	assert.Equal(t, "signup", events.Events[1].Name)
	assert.Equal(t, "pro", events.Events[1].Properties["plan"])
	assert.Equal(t, "pageview", events.Events[2].Name)

	w = do(t, r, http.MethodGet, "/sessions/"+sess.SessionID+"/count?event_name=pageview", testKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"event_name":"pageview","count":2}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/sessions/"+sess.SessionID, testKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, float64(4), info["requests_seen"])
	assert.Equal(t, float64(3), info["requests_tracked"])
	assert.Equal(t, float64(1), info["decode_failures"])
}

func TestIngestPixelAndForm(t *testing.T) {
	r, _ := newTestServer(t)
	sess := createSession(t, r)

	data := url.QueryEscape(`{"event":"pixel"}`)
	w := do(t, r, http.MethodGet, sess.IngestURL+"/e/?data="+data, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	form := "data=" + url.QueryEscape(`[{"event":"form"}]`)
	w = do(t, r, http.MethodPost, sess.IngestURL+"/e/", "", []byte(form), "Content-Type", "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/sessions/"+sess.SessionID+"/count", testKey, nil)
	assert.JSONEq(t, `{"count":2}`, w.Body.String())
}

func TestIngestCORS(t *testing.T) {
	r, _ := newTestServer(t)
	sess := createSession(t, r)

	w := do(t, r, http.MethodOptions, sess.IngestURL+"/e/", "", nil, "Origin", "http://localhost:3000")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestIngestUnknownSessionIsAnswered(t *testing.T) {
	r, _ := newTestServer(t)

	w := do(t, r, http.MethodPost, "/ingest/does-not-exist/e/", "", []byte(`{"event":"a"}`))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAssertEndpoint(t *testing.T) {
	r, _ := newTestServer(t)
	sess := createSession(t, r)
	do(t, r, http.MethodPost, sess.IngestURL+"/e/", "", []byte(`{"event":"signup","properties":{"plan":"pro","seats":3}}`))

	code, resp := assertCall(t, r, sess.SessionID, models.AssertRequest{
		Kind: models.AssertFired, EventName: "signup", Properties: map[string]interface{}{"plan": "pro"},
	})
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Pass, resp.Message)

	code, resp = assertCall(t, r, sess.SessionID, models.AssertRequest{
		Kind: models.AssertFired, EventName: "signup", Properties: map[string]interface{}{"plan": "free"}, TimeoutMS: 60,
	})
	require.Equal(t, http.StatusOK, code)
	assert.False(t, resp.Pass)
	assert.Contains(t, resp.Message, `"plan": expected "free", got "pro"`)
	assert.GreaterOrEqual(t, resp.ElapsedMS, int64(60))

	code, resp = assertCall(t, r, sess.SessionID, models.AssertRequest{
		Kind: models.AssertNotFired, EventName: "error_occurred", TimeoutMS: 50, PollIntervalMS: 10,
	})
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Pass)

	one := 1
	code, resp = assertCall(t, r, sess.SessionID, models.AssertRequest{Kind: models.AssertCount, Count: &one})
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Pass, resp.Message)
}

func TestAssertEndpointRejectsBadRequests(t *testing.T) {
	r, _ := newTestServer(t)
	sess := createSession(t, r)

	code, _ := assertCall(t, r, sess.SessionID, models.AssertRequest{Kind: "sometimes", EventName: "x"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = assertCall(t, r, sess.SessionID, models.AssertRequest{Kind: models.AssertFired})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = assertCall(t, r, sess.SessionID, models.AssertRequest{Kind: models.AssertFired, EventName: "x", TimeoutMS: -5})
	assert.Equal(t, http.StatusBadRequest, code)

	start := time.Now()
	w := do(t, r, http.MethodPost, "/sessions/"+sess.SessionID+"/assert", testKey,
		[]byte(`{"kind":"fired","event_name":"x","timeout_ms":9223372036854775807}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "timeout_ms")
	assert.Less(t, time.Since(start), time.Second)

	code, _ = assertCall(t, r, sess.SessionID, models.AssertRequest{
		Kind: models.AssertNotFired, EventName: "x", PollIntervalMS: (6 * time.Minute).Milliseconds(),
	})
	assert.Equal(t, http.StatusBadRequest, code)

	w = do(t, r, http.MethodPost, "/sessions/"+sess.SessionID+"/assert", testKey, []byte(`{"kind":`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/sessions/"+sess.SessionID+"/assert", testKey,
		[]byte(`{"kind":"fired","event_name":"x","properties":[1,2]}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionsAreScopedToClient(t *testing.T) {
	r, _ := newTestServer(t)
	sess := createSession(t, r)

	w := do(t, r, http.MethodGet, "/sessions/"+sess.SessionID+"/events", "key-other", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "SESSION_NOT_FOUND")

	w = do(t, r, http.MethodDelete, "/sessions/"+sess.SessionID, "key-other", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClearAndDeleteSession(t *testing.T) {
	r, st := newTestServer(t)
	sess := createSession(t, r)
	do(t, r, http.MethodPost, sess.IngestURL+"/e/", "", []byte(`{"event":"a"}`))

	w := do(t, r, http.MethodDelete, "/sessions/"+sess.SessionID+"/events", testKey, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, r, http.MethodDelete, "/sessions/"+sess.SessionID+"/events", testKey, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodGet, "/sessions/"+sess.SessionID+"/events", testKey, nil)
	assert.True(t, strings.Contains(w.Body.String(), `"events":[]`), w.Body.String())

	w = do(t, r, http.MethodDelete, "/sessions/"+sess.SessionID, testKey, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, st.Len())

	w = do(t, r, http.MethodGet, "/sessions/"+sess.SessionID+"/events", testKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
