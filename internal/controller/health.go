package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskhub/internal/cache"
	"taskhub/pkg/logger"
)

// Pinger checks the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheStats reports cache connection state and counters.
type CacheStats interface {
	Stats() cache.StatsSnapshot
}

// Health returns 200 if the process is alive. Used by load balancers.
func Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// Ready returns 200 if the store is reachable. The cache is optional, so its
// state is reported but never fails the probe.
func Ready(store Pinger, stats CacheStats) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		body := gin.H{"status": "ok"}
		if stats != nil {
			body["cache"] = stats.Stats()
		}
		if err := store.Ping(ctx); err != nil {
			logger.Warn(ctx, "Readiness store ping failed", "error", err)
			body["status"] = "database unavailable"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		c.JSON(http.StatusOK, body)
	}
}
