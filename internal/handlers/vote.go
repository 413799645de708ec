package handlers

import (
	"net/http"

	"contesthub/internal/apierror"
	"contesthub/internal/services"

	"github.com/gin-gonic/gin"
)

type VoteHandler struct {
	ledger *services.VoteLedger
}

func NewVoteHandler(ledger *services.VoteLedger) *VoteHandler {
	return &VoteHandler{ledger: ledger}
}

// Cast POST /votes?submissionId= ：投票，返回最新票数。重复投票 409。
func (h *VoteHandler) Cast(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	sid, ok := submissionParam(c)
	if !ok {
		return
	}

	summary, err := h.ledger.Cast(c.Request.Context(), sid, uid)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}

// Cancel DELETE /votes?submissionId= ：撤回投票。没有投过 404。
func (h *VoteHandler) Cancel(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	sid, ok := submissionParam(c)
	if !ok {
		return
	}

	summary, err := h.ledger.Cancel(c.Request.Context(), sid, uid)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Count GET /votes/count?submissionId= ，匿名可访问，返回整数。
func (h *VoteHandler) Count(c *gin.Context) {
	sid, ok := submissionParam(c)
	if !ok {
		return
	}

	n, err := h.ledger.Count(c.Request.Context(), sid)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// Status GET /votes/status?submissionId= ，返回当前用户是否已投票。
func (h *VoteHandler) Status(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	sid, ok := submissionParam(c)
	if !ok {
		return
	}

	voted, err := h.ledger.Status(c.Request.Context(), sid, uid)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, voted)
}
