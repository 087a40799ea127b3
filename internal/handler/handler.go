package handler

import (
	"errors"
	"log"
	"strconv"
	"time"

	"rewardsystem/internal/auth"
	"rewardsystem/internal/economy"
	"rewardsystem/internal/service"
	"rewardsystem/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler 统一处理器
type Handler struct {
	svc       *service.EconomyService
	simClock  *economy.SimClock // 非模拟时钟时为 nil
	jwtSecret string
}

// NewHandler 创建处理器实例
func NewHandler(svc *service.EconomyService, simClock *economy.SimClock, jwtSecret string) *Handler {
	return &Handler{svc: svc, simClock: simClock, jwtSecret: jwtSecret}
}

// 业务错误 -> 响应码
var errorCodes = []struct {
	err  error
	code int
}{
	{economy.ErrInsufficientFunds, response.CodeInsufficientFunds},
	{economy.ErrInsufficientPoints, response.CodeInsufficientPoints},
	{economy.ErrBelowMinimumStake, response.CodeBelowMinimumStake},
	{economy.ErrAboveMaximumStake, response.CodeAboveMaximumStake},
	{economy.ErrStillLocked, response.CodeStillLocked},
	{economy.ErrTierNotMet, response.CodeTierNotMet},
	{economy.ErrOutOfStock, response.CodeOutOfStock},
	{economy.ErrLimitReached, response.CodeLimitReached},
	{economy.ErrUnknownAccount, response.CodeAccountNotFound},
	{economy.ErrUnknownPool, response.CodePoolNotFound},
	{economy.ErrUnknownItem, response.CodeItemNotFound},
	{economy.ErrUnknownStake, response.CodeStakeNotFound},
	{economy.ErrStakeClosed, response.CodeStakeClosed},
	{economy.ErrUnknownSource, response.CodeUnknownSource},
	{economy.ErrUnknownAction, response.CodeUnknownAction},
	{economy.ErrInvalidAmount, response.CodeInvalidAmount},
}

func (h *Handler) fail(c *gin.Context, err error) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			response.BusinessError(c, e.code, err.Error())
			return
		}
	}
	if errors.Is(err, service.ErrRequestConflict) {
		response.ParamError(c, err.Error())
		return
	}

	log.Printf("[Handler] 请求失败: path=%s, requestID=%s, err=%v",
		c.Request.URL.Path, c.GetString(ctxRequestID), err)
	response.ServerError(c, "服务器内部错误")
}

// authorize 开启鉴权时 token 中的 user_id 必须与请求一致
func (h *Handler) authorize(c *gin.Context, userID int64) bool {
	if h.jwtSecret == "" {
		return true
	}
	if c.GetInt64(ctxAuthUserID) != userID {
		response.Error(c, response.CodeForbidden, "无权操作该账户")
		return false
	}
	return true
}

func queryUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		response.ParamError(c, "user_id 参数错误")
		return 0, false
	}
	return userID, true
}

// ============================================================
// 账户相关接口
// ============================================================

type OpenAccountRequest struct {
	UserID int64 `json:"user_id" binding:"required,gt=0"`
}

// OpenAccount 开户，已存在时返回现有账户
// POST /api/v1/account/open
func (h *Handler) OpenAccount(c *gin.Context) {
	var req OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if !h.authorize(c, req.UserID) {
		return
	}

	if _, err := h.svc.Ledger().Open(c.Request.Context(), req.UserID); err != nil {
		h.fail(c, err)
		return
	}
	snap, err := h.svc.GetAccountSnapshot(c.Request.Context(), req.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, snap)
}

// GetSnapshot 账户快照：余额、等级、连续签到、质押及待领取收益
// GET /api/v1/account/snapshot?user_id=xxx
func (h *Handler) GetSnapshot(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok || !h.authorize(c, userID) {
		return
	}

	snap, err := h.svc.GetAccountSnapshot(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, snap)
}

// ListTransactions 流水列表，带 ref_no 时只返回该业务单号下的流水
// GET /api/v1/account/transactions?user_id=xxx&page=1&page_size=20&ref_no=STKxxx
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok || !h.authorize(c, userID) {
		return
	}
	if refNo := c.Query("ref_no"); refNo != "" {
		result, err := h.svc.Ledger().ListByRef(c.Request.Context(), userID, refNo)
		if err != nil {
			h.fail(c, err)
			return
		}
		response.Success(c, result)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	result, err := h.svc.Ledger().ListTransactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// Credit 货币入账并换算积分
// POST /api/v1/account/credit
func (h *Handler) Credit(c *gin.Context) {
	var req service.CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if !h.authorize(c, req.UserID) {
		return
	}

	result, err := h.svc.CreditCurrency(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

type ActionRequest struct {
	UserID int64 `json:"user_id" binding:"required,gt=0"`
	service.Action
}

// PerformAction 质押、领取、复投、赎回、兑换、签到
// POST /api/v1/account/action
func (h *Handler) PerformAction(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if !h.authorize(c, req.UserID) {
		return
	}

	result, err := h.svc.PerformAction(c.Request.Context(), req.UserID, &req.Action)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// ============================================================
// 静态目录
// ============================================================

// ListTiers GET /api/v1/catalog/tiers
func (h *Handler) ListTiers(c *gin.Context) {
	response.Success(c, h.svc.Economy().Tiers.All())
}

// ListPools GET /api/v1/catalog/pools
func (h *Handler) ListPools(c *gin.Context) {
	response.Success(c, h.svc.Economy().Pools.All())
}

// ListRewards 带 user_id 时附带该账户的可兑换状态
// GET /api/v1/catalog/rewards?user_id=xxx
func (h *Handler) ListRewards(c *gin.Context) {
	if c.Query("user_id") == "" {
		response.Success(c, h.svc.Economy().Rewards.All())
		return
	}
	userID, ok := queryUserID(c)
	if !ok || !h.authorize(c, userID) {
		return
	}

	entries, err := h.svc.Redemption().Catalog(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, entries)
}

// ============================================================
// 模拟时钟（仅开发环境）
// ============================================================

type AdvanceClockRequest struct {
	Hours int `json:"hours" binding:"required,gt=0,lte=87600"` // 最多十年
}

// AdvanceClock POST /api/v1/admin/clock/advance
func (h *Handler) AdvanceClock(c *gin.Context) {
	var req AdvanceClockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	h.simClock.Advance(time.Duration(req.Hours) * time.Hour)
	log.Printf("[Clock] 模拟时钟前进 %d 小时, offset=%s", req.Hours, h.simClock.Offset())
	response.Success(c, gin.H{
		"now":    h.simClock.Now().UTC(),
		"offset": h.simClock.Offset().String(),
	})
}

type IssueTokenRequest struct {
	UserID int64 `json:"user_id" binding:"required,gt=0"`
}

// IssueToken 开发环境签发测试 token
// POST /api/v1/admin/token
func (h *Handler) IssueToken(c *gin.Context) {
	var req IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	token, err := auth.GenerateToken(h.jwtSecret, req.UserID, 2*time.Hour)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"token": token})
}
