package handler

import (
	"net/http"

	"Coop_Voting/internal/service"

	"github.com/gin-gonic/gin"
)

type ResidentHandler struct {
	svc *service.ResidentService
}

// MemberReq 新建住户或主席的请求体
type MemberReq struct {
	Username   string `json:"username" binding:"required"`
	Name       string `json:"name"`
	Email      string `json:"email" binding:"required"`
	UnitNumber string `json:"unit_number"`
}

func (r MemberReq) input() service.MemberInput {
	return service.MemberInput{
		Username:   r.Username,
		Name:       r.Name,
		Email:      r.Email,
		UnitNumber: r.UnitNumber,
	}
}

type UpdateResidentReq struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	UnitNumber *string `json:"unit_number"`
}

func NewResidentHandler(svc *service.ResidentService) *ResidentHandler {
	return &ResidentHandler{svc: svc}
}

func (h *ResidentHandler) List(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	residents, err := h.svc.List(c.Request.Context(), caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"residents": residents})
}

// Create 临时密码只在这里返回一次
func (h *ResidentHandler) Create(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req MemberReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	u, tempPassword, err := h.svc.Create(c.Request.Context(), caller, req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u, "temporary_password": tempPassword})
}

func (h *ResidentHandler) Update(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req UpdateResidentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	u, err := h.svc.Update(c.Request.Context(), caller, id, service.MemberPatch{
		Name:       req.Name,
		Email:      req.Email,
		UnitNumber: req.UnitNumber,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *ResidentHandler) Delete(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), caller, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
