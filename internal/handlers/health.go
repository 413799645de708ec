package handlers

import (
	"context"
	"net/http"
	"time"

	"contesthub/internal/logger"

	"github.com/gin-gonic/gin"
)

// Checker 健康检查依赖（数据库、Redis）。
type Checker interface {
	Name() string
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	checkers []Checker
	timeout  time.Duration
}

func NewHealthHandler(checkers ...Checker) *HealthHandler {
	return &HealthHandler{checkers: checkers, timeout: 2 * time.Second}
}

// Live 进程存活即可。
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready 逐个 ping 依赖，任一失败返回 503。
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.checkers))
	for _, ch := range h.checkers {
		if err := ch.Ping(ctx); err != nil {
			logger.From(ctx).Warn("readiness check failed", "check", ch.Name(), "err", err)
			checks[ch.Name()] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[ch.Name()] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{"status": overall, "checks": checks})
}
