package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"rewardsystem/internal/config"
	"rewardsystem/internal/economy"
	"rewardsystem/internal/handler"
	"rewardsystem/internal/infrastructure/cache"
	"rewardsystem/internal/infrastructure/database"
	"rewardsystem/internal/infrastructure/lock"
	"rewardsystem/internal/infrastructure/mq"
	"rewardsystem/internal/job"
	"rewardsystem/internal/service"
	"rewardsystem/pkg/idgen"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	workerID := flag.Int64("worker-id", 1, "雪花算法 workerID")
	flag.Parse()

	// .env 不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("加载 .env 失败: %v", err)
	}

	// 加载配置
	cfg := config.LoadConfig(*configPath)

	econ, err := economy.FromConfig(cfg)
	if err != nil {
		log.Fatalf("经济系统配置无效: %v", err)
	}

	// 初始化 ID 生成器
	idgen.Init(*workerID)

	var clock economy.Clock = economy.SystemClock{}
	var simClock *economy.SimClock
	if cfg.Business.SimulatedClock {
		simClock = economy.NewSimClock(time.Time{})
		clock = simClock
		log.Println("使用模拟时钟，可通过 /api/v1/admin/clock/advance 拨动")
	}

	// 初始化数据库
	db := database.InitDatabase(cfg)

	// 初始化 Redis，未启用时退化为进程内锁和限流
	redisClient := cache.InitRedis(&cfg.Redis)
	lockTimeout := time.Duration(cfg.Business.LockTimeoutSeconds) * time.Second
	var locker lock.Locker
	var limiter cache.RateLimiter
	if redisClient != nil {
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, lockTimeout)
		limiter = cache.NewRedisRateLimiter(redisClient, cfg.Business.RateLimitPerMinute, time.Minute)
	} else {
		locker = lock.NewLocalLocker()
		limiter = cache.NewLocalRateLimiter(cfg.Business.RateLimitPerMinute)
	}

	// 初始化 Kafka
	publisher := mq.InitPublisher(&cfg.Kafka)
	defer publisher.Close()

	svc := service.NewServices(db, service.Deps{
		Config:  cfg,
		Economy: econ,
		Locker:  locker,
		Clock:   clock,
	})

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	outboxSender := job.NewOutboxSender(db, cfg, publisher)
	go outboxSender.Start(ctx)

	expiryJob := job.NewPointsExpiryJob(db, cfg, svc.Points(), clock)
	go expiryJob.Start(ctx)

	unlockNotifier := job.NewStakeUnlockNotifier(cfg, svc.Staking())
	go unlockNotifier.Start(ctx)

	// 设置路由
	router := handler.SetupRouter(cfg, svc, simClock, limiter)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已关闭")
}
