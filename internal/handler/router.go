package handler

import (
	"rewardsystem/internal/config"
	"rewardsystem/internal/economy"
	"rewardsystem/internal/infrastructure/cache"
	"rewardsystem/internal/service"

	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由
// simClock 为 nil 时不注册 admin 接口；limiter 为 nil 时不限流
func SetupRouter(cfg *config.Config, svc *service.EconomyService, simClock *economy.SimClock, limiter cache.RateLimiter) *gin.Engine {
	mode := cfg.Server.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	r := gin.New()

	// 注册中间件
	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(svc, simClock, cfg.Auth.JWTSecret)

	limited := []gin.HandlerFunc{}
	if limiter != nil {
		limited = append(limited, RateLimitMiddleware(limiter))
	}

	api := r.Group("/api/v1")
	{
		// 账户相关
		account := api.Group("/account", AuthMiddleware(cfg.Auth.JWTSecret))
		{
			account.POST("/open", h.OpenAccount)
			account.GET("/snapshot", h.GetSnapshot)
			account.GET("/transactions", h.ListTransactions)
			account.POST("/credit", append(limited, h.Credit)...)
			account.POST("/action", append(limited, h.PerformAction)...)
		}

		// 静态目录
		catalog := api.Group("/catalog", AuthMiddleware(cfg.Auth.JWTSecret))
		{
			catalog.GET("/tiers", h.ListTiers)
			catalog.GET("/pools", h.ListPools)
			catalog.GET("/rewards", h.ListRewards)
		}

		// 模拟时钟
		if simClock != nil {
			admin := api.Group("/admin")
			admin.POST("/clock/advance", h.AdvanceClock)
			if cfg.Auth.JWTSecret != "" {
				admin.POST("/token", h.IssueToken)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
