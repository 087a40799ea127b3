package job

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"rewardsystem/internal/config"
	"rewardsystem/internal/economy"
	"rewardsystem/internal/infrastructure/database"
	"rewardsystem/internal/infrastructure/lock"
	"rewardsystem/internal/infrastructure/mq"
	"rewardsystem/internal/model"
	"rewardsystem/internal/service"

	"github.com/IBM/sarama/mocks"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fixture struct {
	db    *gorm.DB
	cfg   *config.Config
	clock *economy.SimClock
	svc   *service.EconomyService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "jobs.db"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cfg := &config.Config{}
	cfg.Business.MaxRetryCount = 2
	cfg.Business.PointsExpiryDays = 365
	cfg.Kafka.Topic.LedgerEvents = "rewards.ledger"
	cfg.Kafka.Topic.StakeEvents = "rewards.stake"

	clock := economy.NewSimClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	svc := service.NewServices(db, service.Deps{
		Config:  cfg,
		Economy: economy.Default(),
		Locker:  lock.NewLocalLocker(),
		Clock:   clock,
	})
	return &fixture{db: db, cfg: cfg, clock: clock, svc: svc}
}

func (f *fixture) credit(t *testing.T, userID, amount int64) {
	t.Helper()
	_, err := f.svc.CreditCurrency(context.Background(), &service.CreditRequest{
		UserID: userID, Amount: amount, Source: string(economy.SourceMissionComplete),
	})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
}

func (f *fixture) outboxByStatus(status string) int64 {
	var n int64
	f.db.Model(&model.OutboxMessage{}).Where("status = ?", status).Count(&n)
	return n
}

func TestOutboxSenderPublishes(t *testing.T) {
	f := newFixture(t)
	f.credit(t, 1, 1000)

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndSucceed()
	defer producer.Close()

	sender := NewOutboxSender(f.db, f.cfg, mq.NewPublisherWithProducer(producer))
	if sent := sender.processPendingMessages(context.Background()); sent != 2 {
		t.Fatalf("sent = %d, want 2", sent)
	}
	if n := f.outboxByStatus(model.OutboxStatusSent); n != 2 {
		t.Errorf("SENT = %d, want 2", n)
	}
	if sent := sender.processPendingMessages(context.Background()); sent != 0 {
		t.Errorf("second round sent = %d", sent)
	}
}

func TestOutboxSenderMarksFailedAfterMaxRetry(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Ledger().Credit(context.Background(), 1, model.AssetCurrency, 10, service.Entry{Kind: model.TxnKindEarn})
	if !errors.Is(err, economy.ErrUnknownAccount) {
		t.Fatalf("credit without account err = %v", err)
	}
	f.svc.Ledger().Open(context.Background(), 1)
	if _, err := f.svc.Ledger().Credit(context.Background(), 1, model.AssetCurrency, 10, service.Entry{Kind: model.TxnKindEarn}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(errors.New("broker down"))
	producer.ExpectSendMessageAndFail(errors.New("broker down"))
	defer producer.Close()

	sender := NewOutboxSender(f.db, f.cfg, mq.NewPublisherWithProducer(producer))
	ctx := context.Background()

	sender.processPendingMessages(ctx)
	var msg model.OutboxMessage
	f.db.First(&msg)
	if msg.Status != model.OutboxStatusPending || msg.RetryCount != 1 {
		t.Fatalf("after first failure: status=%s retry=%d", msg.Status, msg.RetryCount)
	}

	sender.processPendingMessages(ctx)
	f.db.First(&msg, msg.ID)
	if msg.Status != model.OutboxStatusFailed || msg.RetryCount != 2 {
		t.Errorf("after second failure: status=%s retry=%d", msg.Status, msg.RetryCount)
	}
}

func TestOutboxSenderPurgesSent(t *testing.T) {
	f := newFixture(t)
	f.cfg.Business.OutboxRetentionDays = 7
	old := time.Now().Add(-10 * 24 * time.Hour)
	msgs := []*model.OutboxMessage{
		{EventType: "ledger.transaction", Topic: "rewards.ledger", MessageKey: "a", Payload: "{}", Status: model.OutboxStatusSent, CreatedAt: old, UpdatedAt: old},
		{EventType: "ledger.transaction", Topic: "rewards.ledger", MessageKey: "b", Payload: "{}", Status: model.OutboxStatusFailed, CreatedAt: old, UpdatedAt: old},
		{EventType: "ledger.transaction", Topic: "rewards.ledger", MessageKey: "c", Payload: "{}", Status: model.OutboxStatusSent},
	}
	if err := f.db.Create(&msgs).Error; err != nil {
		t.Fatalf("seed outbox: %v", err)
	}

	sender := NewOutboxSender(f.db, f.cfg, mq.LogPublisher{})
	if deleted := sender.purgeSent(context.Background()); deleted != 1 {
		t.Fatalf("purged = %d, want 1", deleted)
	}
	if n := f.outboxByStatus(model.OutboxStatusSent); n != 1 {
		t.Errorf("SENT left = %d, want 1", n)
	}
	if n := f.outboxByStatus(model.OutboxStatusFailed); n != 1 {
		t.Errorf("FAILED left = %d, want 1", n)
	}

	f.cfg.Business.OutboxRetentionDays = 0
	if deleted := NewOutboxSender(f.db, f.cfg, mq.LogPublisher{}).purgeSent(context.Background()); deleted != 0 {
		t.Errorf("retention 0 purged %d", deleted)
	}
}

func TestOutboxSenderStop(t *testing.T) {
	f := newFixture(t)
	sender := NewOutboxSender(f.db, f.cfg, mq.LogPublisher{})

	done := make(chan struct{})
	go func() {
		sender.Start(context.Background())
		close(done)
	}()
	sender.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sender did not stop")
	}
}

func TestPointsExpiryJob(t *testing.T) {
	f := newFixture(t)
	f.credit(t, 1, 1000)
	f.credit(t, 2, 1000)

	j := NewPointsExpiryJob(f.db, f.cfg, f.svc.Points(), f.clock)
	ctx := context.Background()

	f.clock.Advance(300 * economy.Day)
	f.credit(t, 2, 10)
	if n := j.expireInactive(ctx); n != 0 {
		t.Fatalf("expired before deadline: %d", n)
	}

	f.clock.Advance(66 * economy.Day)
	if n := j.expireInactive(ctx); n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}

	acc1, _ := f.svc.Ledger().Read(ctx, 1)
	acc2, _ := f.svc.Ledger().Read(ctx, 2)
	if acc1.PointsBalance != 0 || acc1.LifetimePointsEarned != 100 {
		t.Errorf("account 1 = %d points, %d lifetime", acc1.PointsBalance, acc1.LifetimePointsEarned)
	}
	if acc2.PointsBalance != 101 {
		t.Errorf("active account points = %d, want 101", acc2.PointsBalance)
	}
}

func TestPointsExpiryDisabled(t *testing.T) {
	f := newFixture(t)
	f.cfg.Business.PointsExpiryDays = 0
	j := NewPointsExpiryJob(f.db, f.cfg, f.svc.Points(), f.clock)

	done := make(chan struct{})
	go func() {
		j.Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled job kept running")
	}
}

func TestStakeUnlockNotifier(t *testing.T) {
	f := newFixture(t)
	f.credit(t, 1, 1000)
	if _, err := f.svc.Staking().Stake(context.Background(), 1, "starter", 500); err != nil {
		t.Fatalf("stake: %v", err)
	}

	j := NewStakeUnlockNotifier(f.cfg, f.svc.Staking())
	if n := j.notify(context.Background()); n != 0 {
		t.Fatalf("notified while locked: %d", n)
	}

	f.clock.Advance(7 * economy.Day)
	if n := j.notify(context.Background()); n != 1 {
		t.Fatalf("notified = %d, want 1", n)
	}

	var msg model.OutboxMessage
	f.db.Where("event_type = ?", model.EventStakeUnlocked).First(&msg)
	if msg.Topic != "rewards.stake" {
		t.Errorf("topic = %q", msg.Topic)
	}
}
