package handlers

import (
	"net/http"
	"strings"

	"contesthub/internal/apierror"
	"contesthub/internal/middleware"
	"contesthub/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// userID 返回当前用户 ID。路由上都挂了 AuthRequired，这里取不到说明路由配置错了。
func userID(c *gin.Context) (uint, bool) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		apierror.Abort(c, http.StatusUnauthorized, apierror.CodeUnauthenticated, "authentication required")
		return 0, false
	}
	return id.UserID, true
}

// submissionParam 读取并校验 ?submissionId=。
func submissionParam(c *gin.Context) (uint, bool) {
	id, ok := utils.ParseID(c.Query("submissionId"))
	if !ok {
		apierror.BadRequest(c, "submissionId must be a positive integer")
		return 0, false
	}
	return id, true
}

// commentParam 读取并校验路径参数 :id。
func commentParam(c *gin.Context) (uint, bool) {
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		apierror.BadRequest(c, "comment id must be a positive integer")
		return 0, false
	}
	return id, true
}

// markRefetch 告诉客户端丢弃已取到的评论页并重新取第 1 页。
func markRefetch(c *gin.Context) {
	c.Header(middleware.HeaderRefetchPage, "1")
}

// bindJSON 请求体可能已被幂等中间件读过，统一走 ShouldBindBodyWith。
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindBodyWith(obj, binding.JSON); err != nil {
		apierror.BadRequest(c, "invalid request body")
		return false
	}
	return true
}

// Idempotency 资源提取器，供 router 给 middleware.Idempotent 使用。

func SubmissionFromQuery(c *gin.Context) (uint, bool) {
	return utils.ParseID(c.Query("submissionId"))
}

func SubmissionFromBody(c *gin.Context) (uint, bool) {
	var req createCommentRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		return 0, false
	}
	return req.SubmissionID, req.SubmissionID > 0
}

func CommentFromParam(c *gin.Context) (uint, bool) {
	return utils.ParseID(strings.TrimSpace(c.Param("id")))
}
