package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck checks one dependency
type HealthCheck func(ctx context.Context) error

// Health reports 200 when every check passes and 503 otherwise
func Health(checks map[string]HealthCheck) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := gin.H{}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = "down"
				continue
			}
			results[name] = "ok"
		}
		c.JSON(status, gin.H{"ok": status == http.StatusOK, "checks": results})
	}
}
