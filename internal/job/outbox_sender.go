package job

import (
	"context"
	"log"
	"time"

	"rewardsystem/internal/config"
	"rewardsystem/internal/infrastructure/mq"
	"rewardsystem/internal/model"
	"rewardsystem/internal/repository"

	"gorm.io/gorm"
)

// OutboxSender 轮询本地消息表，把账务事件投递到消息队列
// 投递是至少一次语义，消费方按 message_key 去重
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  mq.Publisher
	maxRetry   int
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int

	retention     time.Duration // 0 表示不清理
	purgeInterval time.Duration
}

func NewOutboxSender(db *gorm.DB, cfg *config.Config, publisher mq.Publisher) *OutboxSender {
	maxRetry := cfg.Business.MaxRetryCount
	if maxRetry <= 0 {
		maxRetry = 5
	}
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		maxRetry:   maxRetry,
		stopCh:     make(chan struct{}),
		interval:   100 * time.Millisecond,
		batchSize:  100,

		retention:     time.Duration(cfg.Business.OutboxRetentionDays) * 24 * time.Hour,
		purgeInterval: time.Hour,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	log.Println("[OutboxSender] 消息发送任务启动")
	if pending, err := s.outboxRepo.CountByStatus(ctx, model.OutboxStatusPending); err == nil && pending > 0 {
		log.Printf("[OutboxSender] 启动时待投递消息: %d", pending)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	purgeTicker := time.NewTicker(s.purgeInterval)
	defer purgeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			log.Println("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		case <-purgeTicker.C:
			s.purgeSent(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// processPendingMessages 返回本轮投递成功的条数
func (s *OutboxSender) processPendingMessages(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		log.Printf("[OutboxSender] 查询消息失败: %v", err)
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.Publish(msg.Topic, msg.MessageKey, msg.Payload)

	if err == nil {
		if updateErr := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			log.Printf("[OutboxSender] 更新消息状态失败: id=%d, err=%v", msg.ID, updateErr)
			return false
		}
		return true
	}

	log.Printf("[OutboxSender] 消息发送失败: id=%d, event=%s, err=%v", msg.ID, msg.EventType, err)

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		log.Printf("[OutboxSender] 增加重试次数失败: id=%d, err=%v", msg.ID, err)
	}

	if msg.RetryCount+1 >= s.maxRetry {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			log.Printf("[OutboxSender] 标记消息失败状态失败: id=%d, err=%v", msg.ID, err)
		} else {
			log.Printf("[OutboxSender] 消息超过最大重试次数，标记为失败: id=%d", msg.ID)
		}
	}
	return false
}

// purgeSent 清理超过保留期的已投递消息
func (s *OutboxSender) purgeSent(ctx context.Context) int64 {
	if s.retention <= 0 {
		return 0
	}
	deleted, err := s.outboxRepo.PurgeSent(ctx, time.Now().Add(-s.retention))
	if err != nil {
		log.Printf("[OutboxSender] 清理已投递消息失败: %v", err)
		return 0
	}
	if deleted > 0 {
		log.Printf("[OutboxSender] 清理已投递消息: %d", deleted)
	}
	return deleted
}
