package middleware

import (
	"contesthub/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestID 保证每个请求都有 X-Request-Id：沿用客户端给的，否则生成 UUID。
// 同时写回响应头，错误响应体里的 request_id 也取自这里。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(apierror.HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
			c.Request.Header.Set(apierror.HeaderRequestID, id)
		}
		c.Writer.Header().Set(apierror.HeaderRequestID, id)
		c.Next()
	}
}
