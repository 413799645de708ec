package middleware

import (
	"log/slog"
	"net/http"

	"contesthub/internal/apierror"
	"contesthub/internal/logger"

	"github.com/gin-gonic/gin"
)

// Recover 捕获 panic，返回统一的 500 响应，panic 细节只进日志。
func Recover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				ctx := c.Request.Context()
				logger.From(ctx).LogAttrs(ctx, slog.LevelError, "panic",
					slog.String("path", c.Request.URL.Path),
					slog.Any("reason", rec),
				)
				apierror.Abort(c, http.StatusInternalServerError, apierror.CodeInternal, "internal error")
			}
		}()
		c.Next()
	}
}
