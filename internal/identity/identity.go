// Package identity 解析“当前请求是谁”。身份只存在于请求的 context 里，
// 不存在任何全局的登录态。
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionUserKey 外部登录页写入 session 的键。
	SessionUserKey = "user_id"
	SessionRoleKey = "role"

	HeaderUserID = "X-User-Id"

	RoleUser = "user"
)

var (
	// ErrNoCredentials 请求没有携带任何凭证（匿名）。
	ErrNoCredentials = errors.New("no credentials")
	// ErrInvalidCredentials 携带了凭证但无效：签名错误、过期、X-User-Id 与 token 不一致。
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Identity 已认证的调用方。
type Identity struct {
	UserID uint
	Role   string
}

type ctxKey struct{}

func Into(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From 返回请求的身份；匿名请求返回 nil, false。
func From(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}

// Provider 从请求中解析身份。没有凭证时返回 ErrNoCredentials，
// 让 Chain 继续尝试下一个 Provider。
type Provider interface {
	Resolve(c *gin.Context) (*Identity, error)
}

// Chain 依次尝试各 Provider，第一个给出身份或给出“凭证无效”的生效。
type Chain []Provider

func (ch Chain) Resolve(c *gin.Context) (*Identity, error) {
	for _, p := range ch {
		id, err := p.Resolve(c)
		if errors.Is(err, ErrNoCredentials) {
			continue
		}
		return id, err
	}
	return nil, ErrNoCredentials
}

type claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier 校验 Authorization: Bearer <token>（HS256，sub 为用户 ID）。
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Resolve(c *gin.Context) (*Identity, error) {
	const op = "identity.JWTVerifier.Resolve"

	auth := c.GetHeader("Authorization")
	if auth == "" {
		return nil, ErrNoCredentials
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) || len(auth) == len(prefix) {
		return nil, fmt.Errorf("%s: malformed authorization header: %w", op, ErrInvalidCredentials)
	}
	raw := strings.TrimSpace(auth[len(prefix):])

	token, err := jwt.ParseWithClaims(raw, &claims{},
		func(t *jwt.Token) (interface{}, error) {
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidCredentials, err)
	}
	cl, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	uid, err := strconv.ParseUint(cl.Subject, 10, 64)
	if err != nil || uid == 0 {
		return nil, fmt.Errorf("%s: bad subject: %w", op, ErrInvalidCredentials)
	}

	// X-User-Id 可选，但给了就必须和 token 一致
	if h := strings.TrimSpace(c.GetHeader(HeaderUserID)); h != "" && h != cl.Subject {
		return nil, fmt.Errorf("%s: %s does not match token subject: %w", op, HeaderUserID, ErrInvalidCredentials)
	}

	role := cl.Role
	if role == "" {
		role = RoleUser
	}
	return &Identity{UserID: uint(uid), Role: role}, nil
}

// IssueToken 签发访问令牌。正式环境的令牌由外部登录服务签发，
// 这里供本地调试和测试使用。
func IssueToken(secret string, userID uint, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	cl := claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString([]byte(secret))
}

// SessionProvider 读取外部登录页写入 cookie session 的 user_id。
// 需要在 sessions.Sessions 中间件之后使用。
type SessionProvider struct{}

func (SessionProvider) Resolve(c *gin.Context) (*Identity, error) {
	session := sessions.Default(c)
	uid, ok := toUint(session.Get(SessionUserKey))
	if !ok {
		return nil, ErrNoCredentials
	}
	role, _ := session.Get(SessionRoleKey).(string)
	if role == "" {
		role = RoleUser
	}
	return &Identity{UserID: uid, Role: role}, nil
}

// toUint session 经过 gob/securecookie 编码，数字类型可能不同。
func toUint(v interface{}) (uint, bool) {
	switch n := v.(type) {
	case uint:
		return n, n > 0
	case uint64:
		return uint(n), n > 0
	case uint32:
		return uint(n), n > 0
	case int:
		return uint(n), n > 0
	case int64:
		return uint(n), n > 0
	case float64:
		return uint(n), n > 0 && n == float64(uint(n))
	case string:
		u, err := strconv.ParseUint(n, 10, 64)
		return uint(u), err == nil && u > 0
	default:
		return 0, false
	}
}
