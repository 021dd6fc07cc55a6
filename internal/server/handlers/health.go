package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scriptor/internal/core/database"
	"scriptor/pkg/version"
)

// HealthHandler provides liveness and readiness probes.
type HealthHandler struct {
	manager  *database.Manager
	database string
}

// NewHealthHandler creates the handler bound to the deployment database.
func NewHealthHandler(manager *database.Manager, db string) *HealthHandler {
	return &HealthHandler{manager: manager, database: db}
}

// Live handles GET /health/live.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /health/ready. Ready means the bound database is
// reachable and compatible.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.manager.Compatible(ctx, h.database); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": map[string]string{
				"database": "unhealthy: " + err.Error(),
			},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": map[string]string{
			"database": "healthy",
		},
	})
}

// Info handles GET /health/info.
func (h *HealthHandler) Info(c *gin.Context) {
	stat := h.manager.Admin().Stat()
	c.JSON(http.StatusOK, gin.H{
		"app":      "scriptor",
		"version":  version.Version,
		"database": h.database,
		"pool": map[string]any{
			"total_conns":    stat.TotalConns(),
			"acquired_conns": stat.AcquiredConns(),
			"idle_conns":     stat.IdleConns(),
			"max_conns":      stat.MaxConns(),
		},
	})
}
