package economy

import "errors"

// 经济系统的业务错误，都是可预期、可恢复的，调用方用 errors.Is 判断
var (
	ErrInvalidAmount      = errors.New("金额必须大于0")
	ErrInsufficientFunds  = errors.New("余额不足")
	ErrInsufficientPoints = errors.New("积分不足")
	ErrBelowMinimumStake  = errors.New("低于质押池最小数量")
	ErrAboveMaximumStake  = errors.New("超过质押池最大数量")
	ErrStillLocked        = errors.New("质押仍在锁定期内")
	ErrTierNotMet         = errors.New("会员等级不满足兑换要求")
	ErrOutOfStock         = errors.New("奖励暂时缺货")
	ErrLimitReached       = errors.New("已达到该奖励的兑换上限")
	ErrUnknownAccount     = errors.New("账户不存在")
	ErrUnknownPool        = errors.New("质押池不存在")
	ErrUnknownItem        = errors.New("奖励不存在")
	ErrUnknownStake       = errors.New("质押记录不存在")
	ErrStakeClosed        = errors.New("质押已赎回")
	ErrUnknownSource      = errors.New("未知的收益来源")
	ErrUnknownAction      = errors.New("未知的操作类型")
)
