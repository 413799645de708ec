package handlers

import (
	"net/http"

	"contesthub/internal/apierror"
	"contesthub/internal/services"
	"contesthub/internal/utils"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	comments *services.CommentStore
}

func NewCommentHandler(comments *services.CommentStore) *CommentHandler {
	return &CommentHandler{comments: comments}
}

type createCommentRequest struct {
	SubmissionID uint   `json:"submissionId" binding:"required"`
	Content      string `json:"content"`
	ParentID     *uint  `json:"parentId"`
}

type updateCommentRequest struct {
	Content string `json:"content"`
}

// List GET /comments/list?submissionId=&page=&size=&sortBy=createdAt&order=desc
func (h *CommentHandler) List(c *gin.Context) {
	sid, ok := submissionParam(c)
	if !ok {
		return
	}

	page := 1
	if raw := c.Query("page"); raw != "" {
		page = utils.StringToInt(raw)
		if page < 1 {
			apierror.BadRequest(c, "page must be a positive integer")
			return
		}
	}
	size := 0
	if raw := c.Query("size"); raw != "" {
		size = utils.StringToInt(raw)
		if size < 1 {
			apierror.BadRequest(c, "size must be a positive integer")
			return
		}
	}

	result, err := h.comments.List(c.Request.Context(), services.ListInput{
		SubmissionID: sid,
		Page:         page,
		PageSize:     size,
		SortBy:       c.DefaultQuery("sortBy", services.SortByCreatedAt),
		Order:        c.DefaultQuery("order", services.OrderDesc),
	})
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Create POST /comments ：发表评论或回复。
func (h *CommentHandler) Create(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req createCommentRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.comments.Create(c.Request.Context(), services.CreateInput{
		SubmissionID: req.SubmissionID,
		AuthorID:     uid,
		Content:      req.Content,
		ParentID:     req.ParentID,
	})
	if err != nil {
		apierror.Write(c, err)
		return
	}
	markRefetch(c)
	c.JSON(http.StatusCreated, comment)
}

// Update PUT /comments/:id ，仅作者。
func (h *CommentHandler) Update(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := commentParam(c)
	if !ok {
		return
	}
	var req updateCommentRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.comments.Update(c.Request.Context(), id, uid, req.Content)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	markRefetch(c)
	c.JSON(http.StatusOK, comment)
}

// Delete DELETE /comments/:id ，仅作者；顶层评论连同回复一起删除。
func (h *CommentHandler) Delete(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := commentParam(c)
	if !ok {
		return
	}

	if err := h.comments.Delete(c.Request.Context(), id, uid); err != nil {
		apierror.Write(c, err)
		return
	}
	markRefetch(c)
	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
}
