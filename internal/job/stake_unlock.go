package job

import (
	"context"
	"log"
	"time"

	"rewardsystem/internal/config"
	"rewardsystem/internal/service"
)

// StakeUnlockNotifier 质押到期后写一次 stake.unlocked 事件，由 OutboxSender 投递
type StakeUnlockNotifier struct {
	staking   *service.StakingService
	topic     string
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewStakeUnlockNotifier(cfg *config.Config, staking *service.StakingService) *StakeUnlockNotifier {
	return &StakeUnlockNotifier{
		staking:   staking,
		topic:     cfg.Kafka.Topic.StakeEvents,
		stopCh:    make(chan struct{}),
		interval:  30 * time.Second,
		batchSize: 100,
	}
}

func (j *StakeUnlockNotifier) Start(ctx context.Context) {
	log.Println("[StakeUnlockNotifier] 质押到期通知任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[StakeUnlockNotifier] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[StakeUnlockNotifier] 任务停止")
			return
		case <-ticker.C:
			j.notify(ctx)
		}
	}
}

func (j *StakeUnlockNotifier) Stop() {
	close(j.stopCh)
}

func (j *StakeUnlockNotifier) notify(ctx context.Context) int {
	n, err := j.staking.NotifyUnlocked(ctx, j.topic, j.batchSize)
	if err != nil {
		log.Printf("[StakeUnlockNotifier] 处理失败: %v", err)
		return 0
	}
	if n > 0 {
		log.Printf("[StakeUnlockNotifier] 写入到期通知: %d 条", n)
	}
	return n
}
