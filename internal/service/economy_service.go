package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"rewardsystem/internal/config"
	"rewardsystem/internal/economy"
	"rewardsystem/internal/infrastructure/lock"
	"rewardsystem/internal/model"

	"gorm.io/gorm"
)

// 外部可调用的操作类型
const (
	ActionStake               = "stake"
	ActionUnstake             = "unstake"
	ActionClaim               = "claim"
	ActionClaimAll            = "claimAll"
	ActionCompound            = "compound"
	ActionRedeem              = "redeem"
	ActionRecordDailyActivity = "recordDailyActivity"

	actionCreditCurrency = "creditCurrency"
)

type CreditRequest struct {
	RequestID string `json:"request_id"`
	UserID    int64  `json:"user_id" binding:"required,gt=0"`
	Amount    int64  `json:"amount" binding:"required,gt=0"`
	Source    string `json:"source" binding:"required"`
	Reason    string `json:"reason"`
}

type CreditResult struct {
	TransactionNo    string `json:"transaction_no"`
	CurrencyCredited int64  `json:"currency_credited"`
	PointsCredited   int64  `json:"points_credited"`
	CurrencyBalance  int64  `json:"currency_balance"`
	PointsBalance    int64  `json:"points_balance"`
	Tier             string `json:"tier"`
	Replayed         bool   `json:"replayed"`
}

type Action struct {
	RequestID string `json:"request_id"`
	Type      string `json:"action" binding:"required"`
	PoolID    string `json:"pool_id"`
	Amount    int64  `json:"amount"`
	StakeNo   string `json:"stake_no"`
	Force     bool   `json:"force"`
	ItemID    string `json:"item_id"`
}

type ActionResult struct {
	Action     string          `json:"action"`
	Stake      *StakeView      `json:"stake,omitempty"`
	Claim      *ClaimResult    `json:"claim,omitempty"`
	Claims     []ClaimResult   `json:"claims,omitempty"`
	Compound   *CompoundResult `json:"compound,omitempty"`
	Unstake    *UnstakeResult  `json:"unstake,omitempty"`
	Redemption *RedeemResult   `json:"redemption,omitempty"`
	Streak     *StreakResult   `json:"streak,omitempty"`
	Replayed   bool            `json:"replayed"`
}

type AccountSnapshot struct {
	UserID                 int64                `json:"user_id"`
	CurrencyBalance        int64                `json:"currency_balance"`
	PointsBalance          int64                `json:"points_balance"`
	LifetimePointsEarned   int64                `json:"lifetime_points_earned"`
	LifetimePointsRedeemed int64                `json:"lifetime_points_redeemed"`
	Tier                   economy.Tier         `json:"tier"`
	TierProgress           economy.TierProgress `json:"tier_progress"`
	Streak                 StreakView           `json:"streak"`
	Stakes                 []StakeView          `json:"stakes"`
	TotalStaked            int64                `json:"total_staked"`
	TotalPendingRewards    int64                `json:"total_pending_rewards"`
	AsOf                   time.Time            `json:"as_of"`
}

// EconomyService 对外的唯一入口：所有修改操作都经过 PerformAction / CreditCurrency，
// 最终落到 LedgerService.Execute 这一个串行化点
type EconomyService struct {
	econ       *economy.Economy
	clock      economy.Clock
	ledger     *LedgerService
	points     *PointsService
	streak     *StreakService
	staking    *StakingService
	redemption *RedemptionService
}

func NewEconomyService(econ *economy.Economy, clock economy.Clock, ledger *LedgerService, points *PointsService,
	streak *StreakService, staking *StakingService, redemption *RedemptionService) *EconomyService {
	return &EconomyService{
		econ:       econ,
		clock:      clock,
		ledger:     ledger,
		points:     points,
		streak:     streak,
		staking:    staking,
		redemption: redemption,
	}
}

// Deps 创建业务服务所需的基础设施
type Deps struct {
	Config  *config.Config
	Economy *economy.Economy
	Locker  lock.Locker
	Clock   economy.Clock
}

// NewServices 按依赖顺序创建全部业务服务
func NewServices(db *gorm.DB, deps Deps) *EconomyService {
	ledger := NewLedgerService(db, deps.Config, deps.Economy, deps.Locker, deps.Clock)
	points := NewPointsService(deps.Economy, ledger)
	streak := NewStreakService(deps.Economy, ledger, points)
	staking := NewStakingService(db, deps.Economy, ledger, points, deps.Clock)
	redemption := NewRedemptionService(db, deps.Economy, ledger)
	return NewEconomyService(deps.Economy, deps.Clock, ledger, points, streak, staking, redemption)
}

func (s *EconomyService) Economy() *economy.Economy { return s.econ }

func (s *EconomyService) Ledger() *LedgerService { return s.ledger }

func (s *EconomyService) Points() *PointsService { return s.points }

func (s *EconomyService) Staking() *StakingService { return s.staking }

func (s *EconomyService) Redemption() *RedemptionService { return s.redemption }

func (s *EconomyService) Streak() *StreakService { return s.streak }

// CreditCurrency 入账货币并按同一来源换算积分，两笔流水在一次提交中完成
// 账户不存在时自动开户；request_id 重复时返回第一次的结果
func (s *EconomyService) CreditCurrency(ctx context.Context, req *CreditRequest) (*CreditResult, error) {
	if req.Amount <= 0 {
		return nil, economy.ErrInvalidAmount
	}
	source := economy.Source(req.Source)
	if _, ok := s.econ.Rates.Lookup(source); !ok {
		return nil, economy.ErrUnknownSource
	}

	ctx = WithRequestID(ctx, req.RequestID)
	result := &CreditResult{}
	err := s.ledger.ExecuteOpen(ctx, req.UserID, func(ltx *LedgerTx) error {
		*result = CreditResult{}
		replayed, err := ltx.LookupRequest(req.RequestID, actionCreditCurrency, result)
		if err != nil {
			return err
		}
		if replayed {
			result.Replayed = true
			return nil
		}

		reason := req.Reason
		if reason == "" {
			reason = req.Source
		}
		trans, err := ltx.Credit(model.AssetCurrency, req.Amount, Entry{
			Kind:   model.TxnKindEarn,
			Reason: reason,
			Source: req.Source,
		})
		if err != nil {
			return err
		}

		points, err := s.points.ConvertIn(ltx, req.Amount, source, trans.TransactionNo)
		if err != nil {
			return err
		}

		acc := ltx.Account()
		*result = CreditResult{
			TransactionNo:    trans.TransactionNo,
			CurrencyCredited: req.Amount,
			PointsCredited:   points,
			CurrencyBalance:  acc.CurrencyBalance,
			PointsBalance:    acc.PointsBalance,
			Tier:             acc.CurrentTier,
		}
		return ltx.SaveRequest(req.RequestID, actionCreditCurrency, result)
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		log.Printf("[Economy] 货币入账: userID=%d, amount=%d, source=%s, points=%d",
			req.UserID, req.Amount, req.Source, result.PointsCredited)
	}
	return result, nil
}

// GetAccountSnapshot 只读，不加锁
func (s *EconomyService) GetAccountSnapshot(ctx context.Context, userID int64) (*AccountSnapshot, error) {
	account, err := s.ledger.Read(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	stakes, err := s.staking.ListStakes(ctx, account, now)
	if err != nil {
		return nil, err
	}

	snap := &AccountSnapshot{
		UserID:                 account.UserID,
		CurrencyBalance:        account.CurrencyBalance,
		PointsBalance:          account.PointsBalance,
		LifetimePointsEarned:   account.LifetimePointsEarned,
		LifetimePointsRedeemed: account.LifetimePointsRedeemed,
		Tier:                   s.econ.Tiers.TierOf(account.LifetimePointsEarned),
		TierProgress:           s.econ.Tiers.ProgressToNext(account.LifetimePointsEarned),
		Streak:                 s.streak.View(account, s.econ.Today(now)),
		Stakes:                 stakes,
		AsOf:                   now,
	}
	for _, v := range stakes {
		if v.IsActive() {
			snap.TotalStaked += v.EffectivePrincipal
			snap.TotalPendingRewards += v.PendingRewards
		}
	}
	return snap, nil
}

// PerformAction 所有修改类操作的统一入口
func (s *EconomyService) PerformAction(ctx context.Context, userID int64, action *Action) (*ActionResult, error) {
	run, err := s.dispatch(action)
	if err != nil {
		return nil, err
	}

	ctx = WithRequestID(ctx, action.RequestID)
	result := &ActionResult{}
	err = s.ledger.Execute(ctx, userID, func(ltx *LedgerTx) error {
		*result = ActionResult{}
		replayed, err := ltx.LookupRequest(action.RequestID, action.Type, result)
		if err != nil {
			return err
		}
		if replayed {
			result.Replayed = true
			return nil
		}

		result.Action = action.Type
		if err := run(ltx, result); err != nil {
			return err
		}
		return ltx.SaveRequest(action.RequestID, action.Type, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// dispatch 在加锁之前完成参数校验
func (s *EconomyService) dispatch(action *Action) (func(*LedgerTx, *ActionResult) error, error) {
	switch action.Type {
	case ActionStake:
		if action.Amount <= 0 {
			return nil, economy.ErrInvalidAmount
		}
		return func(ltx *LedgerTx, r *ActionResult) error {
			view, err := s.staking.StakeIn(ltx, action.PoolID, action.Amount)
			r.Stake = view
			return err
		}, nil

	case ActionUnstake:
		return func(ltx *LedgerTx, r *ActionResult) error {
			res, err := s.staking.UnstakeIn(ltx, action.StakeNo, action.Force)
			r.Unstake = res
			return err
		}, nil

	case ActionClaim:
		return func(ltx *LedgerTx, r *ActionResult) error {
			res, err := s.staking.ClaimIn(ltx, action.StakeNo)
			r.Claim = res
			return err
		}, nil

	case ActionClaimAll:
		return func(ltx *LedgerTx, r *ActionResult) error {
			res, err := s.staking.ClaimAllIn(ltx)
			r.Claims = res
			return err
		}, nil

	case ActionCompound:
		return func(ltx *LedgerTx, r *ActionResult) error {
			res, err := s.staking.CompoundIn(ltx, action.StakeNo)
			r.Compound = res
			return err
		}, nil

	case ActionRedeem:
		return func(ltx *LedgerTx, r *ActionResult) error {
			res, err := s.redemption.RedeemIn(ltx, action.ItemID)
			r.Redemption = res
			return err
		}, nil

	case ActionRecordDailyActivity:
		return func(ltx *LedgerTx, r *ActionResult) error {
			res, err := s.streak.RecordIn(ltx, ltx.Today())
			r.Streak = res
			return err
		}, nil

	default:
		return nil, fmt.Errorf("%w: %s", economy.ErrUnknownAction, action.Type)
	}
}
