package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"Coop_Voting/internal/middleware"
	"Coop_Voting/internal/pkg"
	"Coop_Voting/internal/service"

	"github.com/gin-gonic/gin"
)

// writeError 把领域错误映射成 http 状态码，未知错误只记日志不外泄
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidOption):
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, pkg.ErrRefreshExpired), errors.Is(err, pkg.ErrRefreshInvalid):
		c.JSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"msg": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"msg": err.Error()})
	case errors.Is(err, service.ErrAlreadyVoted), errors.Is(err, service.ErrPollClosed),
		errors.Is(err, service.ErrPollHasVotes), errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"msg": err.Error()})
	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"msg": "internal error"})
	}
}

func callerOrAbort(c *gin.Context) (service.Caller, bool) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"msg": "unauthorized"})
	}
	return caller, ok
}

func idParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid id"})
		return 0, false
	}
	return id, true
}
