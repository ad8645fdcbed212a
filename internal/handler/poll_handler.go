package handler

import (
	"log/slog"
	"net/http"
	"time"

	"Coop_Voting/internal/service"

	"github.com/gin-gonic/gin"
)

type PollHandler struct {
	svc *service.PollService
}

type CreatePollReq struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	ClosesAt    time.Time `json:"closes_at" binding:"required"`
	Options     []string  `json:"options" binding:"required"`
}

// UpdatePollReq 未出现的字段保持不变
type UpdatePollReq struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	ClosesAt    *time.Time `json:"closes_at"`
}

type VoteReq struct {
	OptionID uint64 `json:"option_id" binding:"required"`
}

func NewPollHandler(svc *service.PollService) *PollHandler {
	return &PollHandler{svc: svc}
}

// List 当前用户所在合作社的投票列表
func (h *PollHandler) List(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	polls, err := h.svc.ListPolls(c.Request.Context(), caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"polls": polls})
}

// Create 主席发起投票
func (h *PollHandler) Create(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req CreatePollReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	poll, err := h.svc.CreatePoll(c.Request.Context(), caller, service.CreatePollInput{
		Title:       req.Title,
		Description: req.Description,
		ClosesAt:    req.ClosesAt,
		Options:     req.Options,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, poll)
}

func (h *PollHandler) Get(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	detail, err := h.svc.GetPoll(c.Request.Context(), caller, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *PollHandler) Update(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req UpdatePollReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	poll, err := h.svc.UpdatePoll(c.Request.Context(), caller, id, service.PollPatch{
		Title:       req.Title,
		Description: req.Description,
		ClosesAt:    req.ClosesAt,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, poll)
}

// Vote 投票，成功后返回最新的统计结果
func (h *PollHandler) Vote(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req VoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "option_id is required"})
		return
	}

	ctx := c.Request.Context()
	vote, err := h.svc.CastVote(ctx, caller, id, req.OptionID)
	if err != nil {
		writeError(c, err)
		return
	}
	// 票已经提交，统计失败只记日志，客户端可以再拉 /data
	tally, err := h.svc.Tally(ctx, caller, id)
	if err != nil {
		slog.Warn("tally after vote failed", "poll_id", id, "error", err)
	}
	c.JSON(http.StatusCreated, gin.H{"vote": vote, "tally": tally})
}

// Data 轮询和实时刷新共用的统计接口
func (h *PollHandler) Data(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	tally, err := h.svc.Tally(c.Request.Context(), caller, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tally)
}
