// Package apierror 统一 HTTP 层的错误响应：服务层错误 -> 状态码 + 简短安全的文案。
// 存储层的细节不会出现在响应里。
package apierror

import (
	"context"
	"errors"
	"net/http"

	"contesthub/internal/services"

	"github.com/gin-gonic/gin"
)

// StatusClientClosedRequest 非标准码，客户端主动断开。
const StatusClientClosedRequest = 499

const HeaderRequestID = "X-Request-Id"

// Codes 稳定的机器可读错误码。
const (
	CodeInvalidArgument   = "invalid_argument"
	CodeUnauthenticated   = "unauthenticated"
	CodePermissionDenied  = "permission_denied"
	CodeNotFound          = "not_found"
	CodeAlreadyExists     = "already_exists"
	CodeRequestInProgress = "request_in_progress"
	CodeKeyReused         = "idempotency_key_reused"
	CodeCanceled          = "canceled"
	CodeDeadlineExceeded  = "deadline_exceeded"
	CodeInternal          = "internal"
)

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP 把服务层错误映射成状态码和响应体。nil 视为调用错误，返回 500。
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := classify(err)
	return status, ErrorResponse{Error: APIError{Code: code, Message: msg}}
}

func classify(err error) (int, string, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, CodeInternal, "internal error"
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, CodeInvalidArgument, "invalid argument"
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, CodePermissionDenied, "permission denied"
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, "not found"
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict, CodeAlreadyExists, "already exists"
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, CodeCanceled, "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeDeadlineExceeded, "deadline exceeded"
	default:
		return http.StatusInternalServerError, CodeInternal, "internal error"
	}
}

// Write 写出 err 对应的错误响应并中止后续 handler。
func Write(c *gin.Context, err error) {
	status, resp := ToHTTP(err)
	resp.Error.RequestID = requestID(c)
	c.AbortWithStatusJSON(status, resp)
}

// Abort 直接以给定状态码/错误码中止请求，用于中间件（401、409 in progress 等）。
func Abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: APIError{
		Code:      code,
		Message:   msg,
		RequestID: requestID(c),
	}})
}

// BadRequest 参数解析失败的快捷方式。
func BadRequest(c *gin.Context, msg string) {
	Abort(c, http.StatusBadRequest, CodeInvalidArgument, msg)
}

func requestID(c *gin.Context) string {
	if rid := c.Writer.Header().Get(HeaderRequestID); rid != "" {
		return rid
	}
	return c.GetHeader(HeaderRequestID)
}
