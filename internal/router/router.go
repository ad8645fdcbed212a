package router

import (
	"context"
	"net/http"
	"time"

	"Coop_Voting/internal/handler"
	"Coop_Voting/internal/middleware"
	"Coop_Voting/internal/model"
	"Coop_Voting/internal/observability"
	"Coop_Voting/internal/pkg"
	"Coop_Voting/internal/relay"
	"Coop_Voting/internal/repository/redis"
	"Coop_Voting/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Deps 路由需要的全部依赖，由 main 组装
type Deps struct {
	DB        *gorm.DB
	Issuer    *pkg.TokenIssuer
	Tokens    *redis.TokenRepository // 为 nil 时不做单点登录校验
	Relay     relay.Relay
	Metrics   *observability.Metrics
	Gatherer  prometheus.Gatherer // 为 nil 时不暴露 /metrics
	Users     *service.UserService
	Polls     *service.PollService
	Residents *service.ResidentService
	Coops     *service.CooperativeService
}

func InitRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(d.Metrics), gin.Recovery())

	user := handler.NewUserHandler(d.Users)
	poll := handler.NewPollHandler(d.Polls)
	live := handler.NewLiveHandler(d.Polls, d.Relay, d.Metrics)
	resident := handler.NewResidentHandler(d.Residents)
	coop := handler.NewCooperativeHandler(d.Coops)

	r.GET("/health", health(d.DB))
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	// 用户相关接口
	userGroup := r.Group("/api/user")
	{
		userGroup.POST("/login", user.Login)
	}

	// token相关接口
	tokenGroup := r.Group("/api/token")
	{
		tokenGroup.POST("/refresh", user.TokenRefresh)
	}

	auth := middleware.AuthMiddleware(d.Issuer, d.Tokens)

	// 登录态接口，临时密码用户也能访问
	authGroup := r.Group("/api/auth")
	authGroup.Use(auth)
	{
		authGroup.POST("/logout", user.Logout)
		authGroup.POST("/change-password", user.ChangePassword)
	}

	president := middleware.RequireRole(model.RolePresident)
	voter := middleware.RequireRole(model.RolePresident, model.RoleResident)

	// 投票相关接口
	pollGroup := r.Group("/api/polls")
	pollGroup.Use(auth, middleware.RequirePasswordChanged())
	{
		pollGroup.GET("", poll.List)
		pollGroup.POST("", president, poll.Create)
		pollGroup.GET("/:id", poll.Get)
		pollGroup.PATCH("/:id", president, poll.Update)
		pollGroup.POST("/:id/vote", voter, poll.Vote)
		pollGroup.GET("/:id/data", poll.Data)
		pollGroup.GET("/:id/live", live.Live)
	}

	// 住户管理接口
	residentGroup := r.Group("/api/residents")
	residentGroup.Use(auth, middleware.RequirePasswordChanged(), president)
	{
		residentGroup.GET("", resident.List)
		residentGroup.POST("", resident.Create)
		residentGroup.PUT("/:id", resident.Update)
		residentGroup.DELETE("/:id", resident.Delete)
	}

	// 超级管理员接口
	adminGroup := r.Group("/api/admin")
	adminGroup.Use(auth, middleware.RequirePasswordChanged(), middleware.RequireRole(model.RoleSuperAdmin))
	{
		adminGroup.GET("/cooperatives", coop.List)
		adminGroup.POST("/cooperatives", coop.Create)
		adminGroup.PATCH("/cooperatives/:id", coop.Update)
		adminGroup.POST("/cooperatives/:id/president", coop.CreatePresident)
	}

	return r
}

func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
