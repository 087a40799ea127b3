package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"rewardsystem/internal/config"

	"github.com/go-redis/redis/v8"
)

var RedisClient *redis.Client

// NewRedisClient 创建客户端并 Ping 一次
func NewRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return client, nil
}

// InitRedis 未启用时返回 nil，连接失败直接退出
func InitRedis(cfg *config.RedisConfig) *redis.Client {
	if !cfg.Enabled {
		log.Println("Redis 未启用，使用进程内锁和限流")
		return nil
	}

	client, err := NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	RedisClient = client
	log.Println("Redis 连接成功")
	return client
}
