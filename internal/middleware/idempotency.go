package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"contesthub/internal/apierror"
	"contesthub/internal/idempotency"
	"contesthub/internal/logger"

	"github.com/gin-gonic/gin"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
	HeaderRefetchPage    = "X-Refetch-Page"

	maxIdempotencyKeyLen   = 255
	idempotencySaveTimeout = 2 * time.Second
)

// ResourceFunc 从请求里取出被操作资源的 ID（作品或评论），参与幂等键。
type ResourceFunc func(c *gin.Context) (uint, bool)

// replayHeaders 回放时需要一起恢复的响应头。
var replayHeaders = []string{HeaderRefetchPage}

// recordingWriter 在写给客户端的同时保留一份响应体。
type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.body.Write(p)
	return w.ResponseWriter.Write(p)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotent 让写接口支持 Idempotency-Key：同一用户对同一资源用同一个键
// 重试时，回放首次执行的状态码和响应体，不再重复执行。没有这个头时
// 按原语义执行。必须放在 AuthRequired 之后。
//
// 5xx、panic 和被取消的请求不记录，允许客户端重试。同一个键换了请求体
// 返回 422，不回放。
func Idempotent(store idempotency.Store, action string, resource ResourceFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if clientKey == "" || store == nil {
			c.Next()
			return
		}
		if len(clientKey) > maxIdempotencyKeyLen {
			apierror.BadRequest(c, "idempotency key too long")
			return
		}

		id, ok := CurrentIdentity(c)
		if !ok {
			apierror.Abort(c, http.StatusUnauthorized, apierror.CodeUnauthenticated, "authentication required")
			return
		}
		resourceID, ok := resource(c)
		if !ok {
			// 参数错误交给 handler 按正常路径报 400
			c.Next()
			return
		}
		fingerprint, err := bodyFingerprint(c)
		if err != nil {
			apierror.BadRequest(c, "unreadable request body")
			return
		}

		ctx := c.Request.Context()
		lg := logger.From(ctx).With("idempotency_action", action)
		key := idempotency.Key(action, resourceID, id.UserID, clientKey)

		rec, err := store.Reserve(ctx, key)
		switch {
		case errors.Is(err, idempotency.ErrInProgress):
			apierror.Abort(c, http.StatusConflict, apierror.CodeRequestInProgress, "a request with this idempotency key is in progress")
			return
		case err != nil:
			lg.Error("idempotency reserve failed", "err", err)
			apierror.Write(c, err)
			return
		case rec != nil:
			if rec.Fingerprint != "" && rec.Fingerprint != fingerprint {
				lg.Warn("idempotency key reused with a different body")
				apierror.Abort(c, http.StatusUnprocessableEntity, apierror.CodeKeyReused, "idempotency key was used with a different request body")
				return
			}
			for k, v := range rec.Headers {
				c.Header(k, v)
			}
			c.Header(HeaderReplayed, "true")
			c.Data(rec.Status, rec.ContentType, rec.Body)
			c.Abort()
			return
		}

		// 请求的 ctx 可能已经超时，落盘用独立的 ctx
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), idempotencySaveTimeout)
		defer cancel()

		rw := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = rw

		// handler panic 时 Recover 在外层，这里先放掉占位再继续向上抛
		completed := false
		defer func() {
			c.Writer = rw.ResponseWriter
			if completed {
				return
			}
			if err := store.Release(saveCtx, key); err != nil {
				lg.Error("idempotency release failed", "err", err)
			}
		}()

		c.Next()

		status := rw.Status()
		if status >= http.StatusInternalServerError || ctx.Err() != nil {
			return
		}

		out := idempotency.Record{
			Status:      status,
			ContentType: rw.Header().Get("Content-Type"),
			Body:        rw.body.Bytes(),
			Fingerprint: fingerprint,
		}
		for _, h := range replayHeaders {
			if v := rw.Header().Get(h); v != "" {
				if out.Headers == nil {
					out.Headers = make(map[string]string)
				}
				out.Headers[h] = v
			}
		}
		if err := store.Complete(saveCtx, key, out); err != nil {
			lg.Error("idempotency complete failed", "err", err)
			return
		}
		completed = true
	}
}

// bodyFingerprint 读出请求体并算 sha256。读出的内容放回 gin.BodyBytesKey，
// handler 里的 ShouldBindBodyWith 直接复用，Request.Body 也重新装好。
func bodyFingerprint(c *gin.Context) (string, error) {
	if cached, ok := c.Get(gin.BodyBytesKey); ok {
		if body, ok := cached.([]byte); ok {
			return fingerprintOf(body), nil
		}
	}
	var body []byte
	if c.Request.Body != nil {
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return "", err
		}
		body = raw
	}
	c.Set(gin.BodyBytesKey, body)
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return fingerprintOf(body), nil
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
