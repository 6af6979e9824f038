package handlers

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stratastor/logger"

	"github.com/PratikDhanave/analytics-capture/internal/store"
	"github.com/PratikDhanave/analytics-capture/pkg/capture"
)

// RegisterIngestRoutes registers the endpoint browsers under test post their
// analytics traffic to.
//
// ANY /ingest/:id/*path
// - No API key: the page under test cannot carry one
// - Every request is answered the way an ingestion API would, whether or not
//   the session exists or the body could be decoded
func RegisterIngestRoutes(r gin.IRouter, st *store.SessionStore, maxBody int64, l logger.Logger) {
	g := r.Group(IngestPrefix)
	g.Use(CORSMiddleware(), CaptureMiddleware(st, maxBody, l))
	g.Any("/:id/*path", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": 1})
	})
}

// CORSMiddleware lets pages on any origin post to the sink and answers preflights.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = "*"
		} else {
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Encoding")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// CaptureMiddleware is the sink's interception hook. It hands the request to the
// session named by :id and then always continues the chain with the body
// restored. GET pixels carry their payload in the data query parameter.
func CaptureMiddleware(st *store.SessionStore, maxBody int64, l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		sess, ok := st.Lookup(id)
		if !ok {
			l.Warn("Ingest for unknown session", "session", id, "path", c.Request.URL.Path)
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			b, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBody))
			if err != nil {
				l.Warn("Ingest body unreadable", "session", id, "err", err)
			}
			body = b
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}
		if len(bytes.TrimSpace(body)) == 0 {
			if data := c.Query("data"); data != "" {
				body = []byte(data)
			}
		}

		n := sess.Observe(requestURL(c.Request), capture.Body{Raw: body}, c.GetHeader("Content-Encoding"))
		if n > 0 {
			l.Debug("Captured events", "session", id, "count", n)
		}
		c.Next()
	}
}

// requestURL rebuilds the absolute URL the browser used, so host allow-lists apply.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
