package middleware

import (
	"errors"
	"net/http"
	"strings"

	"Coop_Voting/internal/model"
	"Coop_Voting/internal/pkg"
	"Coop_Voting/internal/repository/redis"
	"Coop_Voting/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserIDKey     = "user_id"
	ContextRoleKey       = "role"
	ContextCoopKey       = "cooperative_id"
	ContextMustChangeKey = "must_change_password"
)

// AuthMiddleware 校验 Bearer token；websocket 无法带请求头，允许用 ?token= 传入。
// tokens 不为 nil 时要求 token 与 redis 中保存的一致（单点登录）
func AuthMiddleware(issuer *pkg.TokenIssuer, tokens *redis.TokenRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := bearerToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
			return
		}

		claims, err := issuer.ParseAccess(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "invalid or expired token"})
			return
		}

		if tokens != nil {
			// redis校验是否是正确的token
			origin, err := tokens.GetUserToken(c.Request.Context(), claims.UserID)
			if errors.Is(err, redis.ErrRedisUnavailable) {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"msg": "session store unavailable"})
				return
			}
			if err != nil || origin != tokenStr {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "session expired or logged in elsewhere"})
				return
			}
			// 校验通过后更新过期时间
			if err := tokens.ExtendUserToken(c.Request.Context(), claims.UserID); err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"msg": err.Error()})
				return
			}
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextRoleKey, claims.Role)
		c.Set(ContextCoopKey, claims.CooperativeID)
		c.Set(ContextMustChangeKey, claims.MustChangePassword)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if q := c.Query("token"); q != "" {
			return q, nil
		}
		return "", errors.New("missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.New("invalid authorization format")
	}
	return parts[1], nil
}

// RequirePasswordChanged 临时密码登录的用户只能先去修改密码
func RequirePasswordChanged() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetBool(ContextMustChangeKey) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"msg": "password change required", "must_change_password": true})
			return
		}
		c.Next()
	}
}

// RequireRole 只放行指定角色
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(ContextRoleKey)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"msg": "forbidden"})
	}
}

// CallerFrom 读取 AuthMiddleware 注入的身份
func CallerFrom(c *gin.Context) (service.Caller, bool) {
	userID, ok := c.Get(ContextUserIDKey)
	if !ok {
		return service.Caller{}, false
	}
	caller := service.Caller{UserID: userID.(uint64)}
	if role, ok := c.Get(ContextRoleKey); ok {
		caller.Role, _ = role.(model.Role)
	}
	if coop, ok := c.Get(ContextCoopKey); ok {
		caller.CooperativeID, _ = coop.(*uint64)
	}
	return caller, true
}
