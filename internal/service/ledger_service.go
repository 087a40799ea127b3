package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"rewardsystem/internal/config"
	"rewardsystem/internal/economy"
	"rewardsystem/internal/infrastructure/lock"
	"rewardsystem/internal/model"
	"rewardsystem/internal/repository"
	"rewardsystem/pkg/idgen"

	"gorm.io/gorm"
)

var ErrRequestConflict = errors.New("request_id 已被其他请求使用")

// Entry 一笔流水的描述信息
type Entry struct {
	Kind   string
	Reason string
	Source string
	RefNo  string
}

// LedgerService 账本：账户余额唯一的写入方
//
// 所有变更都经过 Execute：账户锁 -> 数据库事务 -> SELECT FOR UPDATE -> 版本号 CAS，
// 同一账户的读-改-写不会交错
type LedgerService struct {
	db              *gorm.DB
	cfg             *config.Config
	econ            *economy.Economy
	locker          lock.Locker
	clock           economy.Clock
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
	requestRepo     *repository.RequestRepository
	maxRetries      int
}

func NewLedgerService(db *gorm.DB, cfg *config.Config, econ *economy.Economy, locker lock.Locker, clock economy.Clock) *LedgerService {
	maxRetries := cfg.Business.MaxRetryCount
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &LedgerService{
		db:              db,
		cfg:             cfg,
		econ:            econ,
		locker:          locker,
		clock:           clock,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
		requestRepo:     repository.NewRequestRepository(db),
		maxRetries:      maxRetries,
	}
}

// LedgerTx 一次提交内的账户视图，只在 Execute 的回调内有效
type LedgerTx struct {
	ctx     context.Context
	tx      *gorm.DB
	svc     *LedgerService
	account *model.Account
	now     time.Time
}

func (l *LedgerTx) Account() *model.Account {
	return l.account
}

func (l *LedgerTx) Now() time.Time {
	return l.now
}

// Today 经济时区下的当天日期
func (l *LedgerTx) Today() economy.Date {
	return l.svc.econ.Today(l.now)
}

// Execute 在账户锁和数据库事务中执行 fn，fn 返回错误则整体回滚
// 乐观锁冲突在内部重试，不会返回给调用方
func (s *LedgerService) Execute(ctx context.Context, userID int64, fn func(*LedgerTx) error) error {
	return s.execute(ctx, userID, false, fn)
}

// ExecuteOpen 同 Execute，账户不存在时先开户
func (s *LedgerService) ExecuteOpen(ctx context.Context, userID int64, fn func(*LedgerTx) error) error {
	return s.execute(ctx, userID, true, fn)
}

func (s *LedgerService) execute(ctx context.Context, userID int64, open bool, fn func(*LedgerTx) error) error {
	if userID <= 0 {
		return economy.ErrUnknownAccount
	}

	release, err := s.locker.Acquire(ctx, lock.UserLockKey(userID))
	if err != nil {
		return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer release()

	for attempt := 1; ; attempt++ {
		err := s.executeOnce(ctx, userID, open, fn)
		if errors.Is(err, repository.ErrOptimisticLock) && attempt < s.maxRetries {
			log.Printf("[Ledger] 乐观锁冲突，重试: userID=%d, attempt=%d", userID, attempt)
			continue
		}
		return err
	}
}

func (s *LedgerService) executeOnce(ctx context.Context, userID int64, open bool, fn func(*LedgerTx) error) error {
	now := s.clock.Now().UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if open {
			if err := s.accountRepo.CreateIfAbsent(ctx, tx, s.newAccount(userID, now)); err != nil {
				return fmt.Errorf("开户失败: %w", err)
			}
		}

		account, err := s.accountRepo.GetByUserIDForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return economy.ErrUnknownAccount
			}
			return fmt.Errorf("查询账户失败: %w", err)
		}

		return fn(&LedgerTx{ctx: ctx, tx: tx, svc: s, account: account, now: now})
	})
}

func (s *LedgerService) newAccount(userID int64, now time.Time) *model.Account {
	return &model.Account{
		UserID:         userID,
		CurrentTier:    s.econ.Tiers.TierOf(0).Name,
		LastActivityAt: now,
	}
}

// Credit 入账，amount 必须为正；余额或累计积分会溢出时拒绝，账户不做任何修改
func (l *LedgerTx) Credit(asset string, amount int64, entry Entry) (*model.AccountTransaction, error) {
	if amount <= 0 {
		return nil, economy.ErrInvalidAmount
	}

	acc := l.account
	var before int64
	switch asset {
	case model.AssetCurrency:
		before = acc.CurrencyBalance
		if before > math.MaxInt64-amount {
			return nil, economy.ErrInvalidAmount
		}
		acc.CurrencyBalance += amount
	case model.AssetPoints:
		before = acc.PointsBalance
		if before > math.MaxInt64-amount || acc.LifetimePointsEarned > math.MaxInt64-amount {
			return nil, economy.ErrInvalidAmount
		}
		acc.PointsBalance += amount
		acc.LifetimePointsEarned += amount
		acc.CurrentTier = l.svc.econ.Tiers.TierOf(acc.LifetimePointsEarned).Name
	default:
		return nil, fmt.Errorf("未知的余额类型: %s", asset)
	}
	acc.LastActivityAt = l.now

	return l.apply(asset, amount, before, entry)
}

// Debit 出账，余额不足时不做任何修改
func (l *LedgerTx) Debit(asset string, amount int64, entry Entry) (*model.AccountTransaction, error) {
	if amount <= 0 {
		return nil, economy.ErrInvalidAmount
	}

	acc := l.account
	var before int64
	switch asset {
	case model.AssetCurrency:
		if acc.CurrencyBalance < amount {
			return nil, economy.ErrInsufficientFunds
		}
		before = acc.CurrencyBalance
		acc.CurrencyBalance -= amount
	case model.AssetPoints:
		if acc.PointsBalance < amount {
			return nil, economy.ErrInsufficientPoints
		}
		before = acc.PointsBalance
		acc.PointsBalance -= amount
		if entry.Kind == model.TxnKindRedeem {
			acc.LifetimePointsRedeemed += amount
		}
	default:
		return nil, fmt.Errorf("未知的余额类型: %s", asset)
	}
	if entry.Kind != model.TxnKindExpire {
		acc.LastActivityAt = l.now
	}

	return l.apply(asset, -amount, before, entry)
}

// SetStreak 只更新连续签到状态，不产生流水
func (l *LedgerTx) SetStreak(state economy.StreakState) error {
	l.account.SetStreak(state)
	l.account.LastActivityAt = l.now
	return l.save()
}

func (l *LedgerTx) save() error {
	if err := l.svc.accountRepo.UpdateWithVersion(l.ctx, l.tx, l.account); err != nil {
		if errors.Is(err, repository.ErrOptimisticLock) {
			return err
		}
		return fmt.Errorf("更新账户失败: %w", err)
	}
	return nil
}

// apply 写回账户、追加流水、写入 outbox，三者在同一事务
func (l *LedgerTx) apply(asset string, signed, before int64, entry Entry) (*model.AccountTransaction, error) {
	if err := l.save(); err != nil {
		return nil, err
	}

	trans := &model.AccountTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		UserID:        l.account.UserID,
		Kind:          entry.Kind,
		Asset:         asset,
		Amount:        signed,
		Reason:        entry.Reason,
		Source:        entry.Source,
		RefNo:         entry.RefNo,
		RequestID:     requestIDFrom(l.ctx),
		BalanceBefore: before,
		BalanceAfter:  before + signed,
		CreatedAt:     l.now,
	}
	if err := l.svc.transactionRepo.Create(l.ctx, l.tx, trans); err != nil {
		return nil, fmt.Errorf("记录流水失败: %w", err)
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"transaction_no": trans.TransactionNo,
		"user_id":        trans.UserID,
		"kind":           trans.Kind,
		"asset":          trans.Asset,
		"amount":         trans.Amount,
		"balance_after":  trans.BalanceAfter,
		"source":         trans.Source,
		"ref_no":         trans.RefNo,
		"tier":           l.account.CurrentTier,
		"created_at":     trans.CreatedAt.Format(time.RFC3339),
	})
	if err := l.Enqueue(model.EventLedgerTransaction, l.svc.cfg.Kafka.Topic.LedgerEvents, string(payload)); err != nil {
		return nil, err
	}

	return trans, nil
}

// Enqueue 写入 outbox，随本次事务一起提交
func (l *LedgerTx) Enqueue(eventType, topic, payload string) error {
	msg := &model.OutboxMessage{
		MessageKey: strconv.FormatInt(l.account.UserID, 10),
		EventType:  eventType,
		Topic:      topic,
		Payload:    payload,
		Status:     model.OutboxStatusPending,
	}
	if err := l.svc.outboxRepo.Create(l.ctx, l.tx, msg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}

// LookupRequest 查询幂等记录；记录属于其他用户或其他操作时返回 ErrRequestConflict
func (l *LedgerTx) LookupRequest(requestID, action string, out interface{}) (bool, error) {
	if requestID == "" {
		return false, nil
	}
	record, err := l.svc.requestRepo.GetByRequestID(l.ctx, l.tx, requestID)
	if err != nil {
		return false, fmt.Errorf("查询幂等记录失败: %w", err)
	}
	if record == nil {
		return false, nil
	}
	if record.UserID != l.account.UserID || record.Action != action {
		return false, ErrRequestConflict
	}
	if err := json.Unmarshal([]byte(record.Response), out); err != nil {
		return false, fmt.Errorf("解析幂等记录失败: %w", err)
	}
	return true, nil
}

// SaveRequest 与业务变更同事务写入幂等记录
func (l *LedgerTx) SaveRequest(requestID, action string, result interface{}) error {
	if requestID == "" {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("序列化结果失败: %w", err)
	}
	record := &model.RequestRecord{
		RequestID: requestID,
		UserID:    l.account.UserID,
		Action:    action,
		Response:  string(data),
	}
	if err := l.svc.requestRepo.Create(l.ctx, l.tx, record); err != nil {
		// 不同用户并发使用同一个 request_id，各自加的是自己的账户锁
		if errors.Is(err, repository.ErrRequestExists) {
			return ErrRequestConflict
		}
		return fmt.Errorf("写入幂等记录失败: %w", err)
	}
	return nil
}

// Open 开户，已存在时直接返回
func (s *LedgerService) Open(ctx context.Context, userID int64) (*model.Account, error) {
	var account model.Account
	err := s.ExecuteOpen(ctx, userID, func(ltx *LedgerTx) error {
		account = *ltx.Account()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Read 不加锁的快照读
func (s *LedgerService) Read(ctx context.Context, userID int64) (*model.Account, error) {
	account, err := s.accountRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, economy.ErrUnknownAccount
		}
		return nil, fmt.Errorf("查询账户失败: %w", err)
	}
	return account, nil
}

// Credit 单独提交一笔入账
func (s *LedgerService) Credit(ctx context.Context, userID int64, asset string, amount int64, entry Entry) (*model.AccountTransaction, error) {
	var trans *model.AccountTransaction
	err := s.Execute(ctx, userID, func(ltx *LedgerTx) error {
		var err error
		trans, err = ltx.Credit(asset, amount, entry)
		return err
	})
	return trans, err
}

// Debit 单独提交一笔出账
func (s *LedgerService) Debit(ctx context.Context, userID int64, asset string, amount int64, entry Entry) (*model.AccountTransaction, error) {
	var trans *model.AccountTransaction
	err := s.Execute(ctx, userID, func(ltx *LedgerTx) error {
		var err error
		trans, err = ltx.Debit(asset, amount, entry)
		return err
	})
	return trans, err
}

type TransactionPage struct {
	Total        int64                       `json:"total"`
	Page         int                         `json:"page"`
	PageSize     int                         `json:"page_size"`
	Transactions []*model.AccountTransaction `json:"transactions"`
}

func (s *LedgerService) ListTransactions(ctx context.Context, userID int64, page, pageSize int) (*TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	if _, err := s.Read(ctx, userID); err != nil {
		return nil, err
	}

	transactions, total, err := s.transactionRepo.ListByUserID(ctx, userID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("查询流水失败: %w", err)
	}
	return &TransactionPage{Total: total, Page: page, PageSize: pageSize, Transactions: transactions}, nil
}

// ListByRef 按业务单号查询流水，例如一笔质押的全部出入账
func (s *LedgerService) ListByRef(ctx context.Context, userID int64, refNo string) (*TransactionPage, error) {
	if _, err := s.Read(ctx, userID); err != nil {
		return nil, err
	}
	transactions, err := s.transactionRepo.ListByRef(ctx, userID, refNo)
	if err != nil {
		return nil, fmt.Errorf("查询流水失败: %w", err)
	}
	return &TransactionPage{
		Total:        int64(len(transactions)),
		Page:         1,
		PageSize:     len(transactions),
		Transactions: transactions,
	}, nil
}

type requestIDKey struct{}

// WithRequestID 把调用方的 request_id 带到流水记录上
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func requestIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}
