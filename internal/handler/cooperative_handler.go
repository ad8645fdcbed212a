package handler

import (
	"net/http"

	"Coop_Voting/internal/service"

	"github.com/gin-gonic/gin"
)

type CooperativeHandler struct {
	svc *service.CooperativeService
}

type CreateCooperativeReq struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
}

type UpdateCooperativeReq struct {
	ResultsVisibleToPresident *bool `json:"results_visible_to_president" binding:"required"`
}

func NewCooperativeHandler(svc *service.CooperativeService) *CooperativeHandler {
	return &CooperativeHandler{svc: svc}
}

func (h *CooperativeHandler) List(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	coops, err := h.svc.List(c.Request.Context(), caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cooperatives": coops})
}

func (h *CooperativeHandler) Create(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req CreateCooperativeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	coop, err := h.svc.Create(c.Request.Context(), caller, req.Name, req.Address)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, coop)
}

// Update 目前只能修改明细可见开关
func (h *CooperativeHandler) Update(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req UpdateCooperativeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	coop, err := h.svc.SetResultsVisible(c.Request.Context(), caller, id, *req.ResultsVisibleToPresident)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, coop)
}

func (h *CooperativeHandler) CreatePresident(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req MemberReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	u, tempPassword, err := h.svc.CreatePresident(c.Request.Context(), caller, id, req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u, "temporary_password": tempPassword})
}
