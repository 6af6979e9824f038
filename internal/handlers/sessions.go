package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/analytics-capture/internal/auth"
	"github.com/PratikDhanave/analytics-capture/internal/models"
	"github.com/PratikDhanave/analytics-capture/internal/store"
	"github.com/PratikDhanave/analytics-capture/pkg/capture"
)

// IngestPrefix is where browsers under test send their analytics traffic:
// /ingest/<session id>/<sdk path>.
const IngestPrefix = "/ingest"

// IngestURL returns the path an SDK should use as its API host for session id.
func IngestURL(id string) string {
	return IngestPrefix + "/" + id
}

// RegisterSessionRoutes registers session lifecycle and inspection endpoints.
//
// POST   /sessions                  start a capture session
// GET    /sessions/:id              session counters
// DELETE /sessions/:id              end a session and drop its events
// GET    /sessions/:id/events       captured events in interception order
// DELETE /sessions/:id/events       clear captured events
// GET    /sessions/:id/count        number of captured events, optionally by event_name
//
// All routes require X-API-Key; sessions of other clients answer 404.
func RegisterSessionRoutes(r gin.IRoutes, st *store.SessionStore) {
	r.POST("/sessions", func(c *gin.Context) {
		clientID := auth.ClientID(c)
		if clientID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		sess, err := st.Create(clientID)
		if err != nil {
			APIError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SessionCreateResponse{
			SessionID: sess.ID(),
			IngestURL: IngestURL(sess.ID()),
		})
	})

	r.GET("/sessions/:id", func(c *gin.Context) {
		info, err := st.Info(auth.ClientID(c), c.Param("id"))
		if err != nil {
			APIError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id":       info.ID,
			"created":          info.Created,
			"requests_seen":    info.Stats.RequestsSeen,
			"requests_tracked": info.Stats.RequestsTracked,
			"decode_failures":  info.Stats.DecodeFailures,
			"events_captured":  info.Stats.EventsCaptured,
			"events_held":      info.Stats.EventsHeld,
		})
	})

	r.DELETE("/sessions/:id", func(c *gin.Context) {
		if err := st.Delete(auth.ClientID(c), c.Param("id")); err != nil {
			APIError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.GET("/sessions/:id/events", withSession(st, func(c *gin.Context, sess *capture.Session) {
		events := sess.CapturedEvents()
		if events == nil {
			events = []capture.Event{}
		}
		c.JSON(http.StatusOK, models.EventsResponse{
			SessionID: sess.ID(),
			Count:     len(events),
			Events:    events,
		})
	}))

	r.DELETE("/sessions/:id/events", withSession(st, func(c *gin.Context, sess *capture.Session) {
		sess.ClearCapturedEvents()
		c.Status(http.StatusNoContent)
	}))

	r.GET("/sessions/:id/count", withSession(st, func(c *gin.Context, sess *capture.Session) {
		eventName := c.Query("event_name")
		c.JSON(http.StatusOK, models.CountResponse{
			EventName: eventName,
			Count:     sess.CountEvents(eventName),
		})
	}))
}

// withSession resolves :id for the authenticated client before calling h.
func withSession(st *store.SessionStore, h func(*gin.Context, *capture.Session)) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := st.Get(auth.ClientID(c), c.Param("id"))
		if err != nil {
			APIError(c, err)
			return
		}
		h(c, sess)
	}
}
