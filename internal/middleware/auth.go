package middleware

import (
	"errors"
	"net/http"

	"contesthub/internal/apierror"
	"contesthub/internal/identity"
	"contesthub/internal/logger"

	"github.com/gin-gonic/gin"
)

// IdentityKey gin 上下文里存放 *identity.Identity 的键。
const IdentityKey = "identity"

// LoadIdentity 解析请求身份并放进 request context。匿名请求直接放行，
// 携带了无效凭证则返回 401，不会悄悄降级为匿名。
func LoadIdentity(p identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := p.Resolve(c)
		switch {
		case err == nil:
			c.Set(IdentityKey, id)
			ctx := identity.Into(c.Request.Context(), id)
			ctx = logger.Into(ctx, logger.From(ctx).With("user_id", id.UserID))
			c.Request = c.Request.WithContext(ctx)
		case errors.Is(err, identity.ErrNoCredentials):
		default:
			logger.From(c.Request.Context()).Warn("rejected credentials", "err", err)
			apierror.Abort(c, http.StatusUnauthorized, apierror.CodeUnauthenticated, "invalid credentials")
			return
		}
		c.Next()
	}
}

// AuthRequired ensures the caller is authenticated
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentIdentity(c); !ok {
			apierror.Abort(c, http.StatusUnauthorized, apierror.CodeUnauthenticated, "authentication required")
			return
		}
		c.Next()
	}
}

// CurrentIdentity 返回 LoadIdentity 解析出的身份。
func CurrentIdentity(c *gin.Context) (*identity.Identity, bool) {
	return identity.From(c.Request.Context())
}
