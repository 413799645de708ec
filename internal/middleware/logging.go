package middleware

import (
	"log/slog"
	"time"

	"contesthub/internal/apierror"
	"contesthub/internal/logger"

	"github.com/gin-gonic/gin"
)

// Logging 把带 request_id 的 logger 放进 context，请求结束后记一条访问日志。
func Logging(l *slog.Logger) gin.HandlerFunc {
	if l == nil {
		l = slog.Default()
	}
	return func(c *gin.Context) {
		reqLogger := l
		if rid := c.GetHeader(apierror.HeaderRequestID); rid != "" {
			reqLogger = reqLogger.With(slog.String("request_id", rid))
		}
		c.Request = c.Request.WithContext(logger.Into(c.Request.Context(), reqLogger))

		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= 500 {
			level = slog.LevelError
		}
		ctx := c.Request.Context()
		logger.From(ctx).LogAttrs(ctx, level, "http",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("route", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("dur", time.Since(start)),
			slog.Int("bytes", c.Writer.Size()),
		)
	}
}
