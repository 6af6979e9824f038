package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	cerrors "github.com/PratikDhanave/analytics-capture/internal/errors"
	"github.com/PratikDhanave/analytics-capture/internal/models"
	"github.com/PratikDhanave/analytics-capture/internal/store"
	"github.com/PratikDhanave/analytics-capture/pkg/capture"
)

// MaxAssertWait bounds timeout_ms and poll_interval_ms so one request cannot
// hold a connection open indefinitely.
const MaxAssertWait = 5 * time.Minute

// RegisterAssertionRoutes registers the assertion endpoint.
//
// POST /sessions/:id/assert
// - Requires X-API-Key
// - Blocks for up to timeout_ms while polling the session's events
// - timeout_ms and poll_interval_ms of 0 select the session defaults; values
//   above MaxAssertWait are rejected
// - A failed assertion is 200 with pass=false; only malformed requests are 4xx
func RegisterAssertionRoutes(r gin.IRoutes, st *store.SessionStore) {
	r.POST("/sessions/:id/assert", withSession(st, func(c *gin.Context, sess *capture.Session) {
		var req models.AssertRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		if err := checkWait("timeout_ms", req.TimeoutMS); err != nil {
			APIError(c, err)
			return
		}
		if err := checkWait("poll_interval_ms", req.PollIntervalMS); err != nil {
			APIError(c, err)
			return
		}

		var opts []capture.AssertOption
		if req.TimeoutMS != 0 {
			opts = append(opts, capture.Timeout(time.Duration(req.TimeoutMS)*time.Millisecond))
		}
		if req.PollIntervalMS != 0 {
			opts = append(opts, capture.PollInterval(time.Duration(req.PollIntervalMS)*time.Millisecond))
		}

		ctx := c.Request.Context()
		var (
			out capture.Outcome
			err error
		)
		switch req.Kind {
		case models.AssertFired, "":
			out, err = sess.AssertFired(ctx, req.EventName, req.Properties, opts...)
		case models.AssertNotFired:
			out, err = sess.AssertNotFired(ctx, req.EventName, req.Properties, opts...)
		case models.AssertCount:
			out, err = sess.AssertCapturedCount(req.Count)
		default:
			err = cerrors.NewUsage(cerrors.CodeInvalidRequest, "kind must be fired, not_fired or count").
				WithDetail("kind", req.Kind)
		}
		if err != nil {
			APIError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.AssertResponse{
			Pass:      out.Pass,
			Message:   out.Message,
			ElapsedMS: out.Elapsed.Milliseconds(),
		})
	}))
}

func checkWait(field string, ms int64) error {
	if ms < 0 || ms > MaxAssertWait.Milliseconds() {
		return cerrors.NewUsage(cerrors.CodeInvalidRequest, field+" must be between 0 and "+MaxAssertWait.String()).
			WithDetail(field, ms)
	}
	return nil
}
