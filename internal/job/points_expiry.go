package job

import (
	"context"
	"log"
	"time"

	"rewardsystem/internal/config"
	"rewardsystem/internal/economy"
	"rewardsystem/internal/repository"
	"rewardsystem/internal/service"

	"gorm.io/gorm"
)

// PointsExpiryJob 长期未活跃账户的积分过期
// 扣减走账本的 Execute，和用户请求一样加锁
type PointsExpiryJob struct {
	accountRepo *repository.AccountRepository
	points      *service.PointsService
	clock       economy.Clock
	expiry      time.Duration
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
}

func NewPointsExpiryJob(db *gorm.DB, cfg *config.Config, points *service.PointsService, clock economy.Clock) *PointsExpiryJob {
	return &PointsExpiryJob{
		accountRepo: repository.NewAccountRepository(db),
		points:      points,
		clock:       clock,
		expiry:      time.Duration(cfg.Business.PointsExpiryDays) * economy.Day,
		stopCh:      make(chan struct{}),
		interval:    time.Minute,
		batchSize:   100,
	}
}

func (j *PointsExpiryJob) Start(ctx context.Context) {
	if j.expiry <= 0 {
		log.Println("[PointsExpiryJob] 积分永不过期，任务不启动")
		return
	}
	log.Println("[PointsExpiryJob] 积分过期任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[PointsExpiryJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[PointsExpiryJob] 任务停止")
			return
		case <-ticker.C:
			j.expireInactive(ctx)
		}
	}
}

func (j *PointsExpiryJob) Stop() {
	close(j.stopCh)
}

// expireInactive 返回本轮处理的账户数
func (j *PointsExpiryJob) expireInactive(ctx context.Context) int {
	cutoff := j.clock.Now().UTC().Add(-j.expiry)
	accounts, err := j.accountRepo.ListInactiveWithPoints(ctx, cutoff, j.batchSize)
	if err != nil {
		log.Printf("[PointsExpiryJob] 查询未活跃账户失败: %v", err)
		return 0
	}

	if len(accounts) == 0 {
		return 0
	}

	log.Printf("[PointsExpiryJob] 发现 %d 个未活跃账户", len(accounts))

	expiredCount := 0
	for _, acc := range accounts {
		expired, err := j.points.ExpireInactive(ctx, acc.UserID, cutoff)
		if err != nil {
			log.Printf("[PointsExpiryJob] 积分过期失败: userID=%d, err=%v", acc.UserID, err)
			continue
		}
		if expired > 0 {
			expiredCount++
		}
	}

	log.Printf("[PointsExpiryJob] 本轮处理完成: 总数=%d, 过期=%d", len(accounts), expiredCount)
	return expiredCount
}
