package handler

import (
	"log"
	"strconv"
	"time"

	"rewardsystem/internal/auth"
	"rewardsystem/internal/infrastructure/cache"
	"rewardsystem/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-ID"
	ctxRequestID    = "request_id"
	ctxAuthUserID   = "auth_user_id"
)

// LoggerMiddleware 日志中间件
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// 处理请求
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if query != "" {
			path = path + "?" + query
		}

		log.Printf("[HTTP] %d | %13v | %15s | %-7s %s | %s",
			status,
			latency,
			c.ClientIP(),
			c.Request.Method,
			path,
			c.GetString(ctxRequestID),
		)
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[PANIC] %v, requestID=%s", err, c.GetString(ctxRequestID))
				c.AbortWithStatusJSON(500, gin.H{
					"code":    500,
					"message": "服务器内部错误",
				})
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware 沿用调用方的 X-Request-ID，没有则生成
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// AuthMiddleware 校验 Bearer token，secret 为空时不启用
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		claims, err := auth.ParseToken(secret, c.GetHeader("Authorization"))
		if err != nil {
			response.Error(c, response.CodeUnauthorized, "token 无效")
			c.Abort()
			return
		}
		c.Set(ctxAuthUserID, claims.UserID)
		c.Next()
	}
}

// RateLimitMiddleware 登录用户按 user_id 限流，否则按 IP
// 限流组件出错时放行
func RateLimitMiddleware(limiter cache.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if userID := c.GetInt64(ctxAuthUserID); userID > 0 {
			key = "user:" + strconv.FormatInt(userID, 10)
		}
		key += ":" + c.FullPath()

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Printf("[RateLimit] 限流检查失败, 放行: key=%s, err=%v", key, err)
			c.Next()
			return
		}
		if !allowed {
			response.Error(c, response.CodeTooManyCalls, "请求过于频繁")
			c.Abort()
			return
		}
		c.Next()
	}
}
