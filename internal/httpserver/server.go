package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stratastor/logger"

	"github.com/PratikDhanave/analytics-capture/internal/auth"
	"github.com/PratikDhanave/analytics-capture/internal/config"
	"github.com/PratikDhanave/analytics-capture/internal/handlers"
	"github.com/PratikDhanave/analytics-capture/internal/store"
)

// NewRouter wires public endpoints, ingest and authenticated APIs.
// Public: /health, /ready, /ingest/:id/*path
// Authenticated: /sessions/...
func NewRouter(cfg config.Config, st *store.SessionStore, l logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(l))
	r.Use(handlers.ErrorHandler())

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the session store still accepts sessions.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "sessions": st.Len()})
	})

	handlers.RegisterIngestRoutes(r, st, cfg.MaxBodySize, l)

	// Auth group enforces client context via X-API-Key.
	authGroup := r.Group("/")
	authGroup.Use(auth.APIKeyMiddleware(cfg.APIKeys))

	handlers.RegisterSessionRoutes(authGroup, st)
	handlers.RegisterAssertionRoutes(authGroup, st)

	return r
}

// Run serves the sink on cfg.ListenAddr until ctx is cancelled, then shuts down
// gracefully and closes every session.
func Run(ctx context.Context, cfg config.Config, st *store.SessionStore, l logger.Logger) error {
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           NewRouter(cfg, st, l),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		l.Info("Capture sink started", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server startup failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	st.Close()
	l.Info("Capture sink stopped")
	return err
}
