package service

import (
	"salonsystem/internal/model"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 订单结算引擎
// ============================================================================
//
// 会员有两个资金池：充值余额和赠金余额。订单支付时按两个策略开关组合扣减：
//
//   giftDiscountEnabled（赠金是否参与折扣）
//     - true:  两个资金池一视同仁，都按折后价覆盖订单
//     - false: 赠金按原价抵扣（1元赠金只能买1元原价），充值余额享受折扣
//              （1元充值余额能买 1/折扣 元原价）
//
//   deductionOrder（扣减顺序）
//     - GIFT_FIRST:     先扣赠金，不够再扣充值余额
//     - RECHARGE_FIRST: 先扣充值余额，不够再扣赠金
//
// 赠金不参与折扣时，"原价值"和"折后价值"之间要按扣减的资金池做换算，
// 这是整套算法唯一容易算错的地方。
//
// 这里只做纯计算，不碰任何存储；充足性校验分两步：
//   1. 便宜的必要条件预检（总余额 >= 预估所需）
//   2. 算完扣减额后的权威校验（实际抵扣价值 >= 折后应付）
// 第二步不可省略：第一步只是必要不充分条件。
// ============================================================================

// SettlementInput 结算输入：订单在创建时快照下来的金额和策略，加上会员当前余额。
// 余额必须是事务内加行锁重读的最新值
type SettlementInput struct {
	TotalAmount         decimal.Decimal // 折前原价
	ActualAmount        decimal.Decimal // 折后应付
	MemberDiscount      decimal.Decimal // 会员折扣（0.7~1）
	GiftDiscountEnabled bool
	DeductionOrder      string
	RechargeBalance     decimal.Decimal
	BonusBalance        decimal.Decimal
}

// SettlementResult 两个资金池各自的实际扣减额
type SettlementResult struct {
	RechargePaid decimal.Decimal
	GiftPaid     decimal.Decimal
}

// ComputeSettlement 计算两个资金池的扣减额并验证充足性
// 余额不足时返回 *InsufficientBalanceError，携带扣减明细
func ComputeSettlement(in SettlementInput) (SettlementResult, error) {
	var result SettlementResult

	// 第一步：充足性预检（必要条件）
	totalBalance := in.RechargeBalance.Add(in.BonusBalance)
	requiredBalance := in.ActualAmount
	if !in.GiftDiscountEnabled {
		// 赠金不参与折扣时折后应付只是下界，先用它做粗检，精确校验在第三步
		minRequired := in.TotalAmount.Sub(in.TotalAmount.Mul(decimal.NewFromInt(1).Sub(in.MemberDiscount)))
		if minRequired.GreaterThan(requiredBalance) {
			requiredBalance = minRequired
		}
	}
	if totalBalance.LessThan(requiredBalance) {
		return result, &InsufficientBalanceError{
			Required:  requiredBalance,
			Available: totalBalance,
		}
	}

	// 第二步：按 2x2 策略组合计算各池扣减额
	if in.GiftDiscountEnabled {
		// 赠金参与折扣，整单按折后价覆盖，两个池等价
		remaining := in.ActualAmount
		if in.DeductionOrder == model.DeductionGiftFirst {
			result.GiftPaid = decimal.Min(in.BonusBalance, remaining)
			remaining = remaining.Sub(result.GiftPaid)
			result.RechargePaid = decimal.Min(in.RechargeBalance, remaining)
		} else {
			result.RechargePaid = decimal.Min(in.RechargeBalance, remaining)
			remaining = remaining.Sub(result.RechargePaid)
			result.GiftPaid = decimal.Min(in.BonusBalance, remaining)
		}
	} else {
		if in.DeductionOrder == model.DeductionGiftFirst {
			// 赠金按原价抵扣，剩余原价部分换算成折后价后由充值余额覆盖
			result.GiftPaid = decimal.Min(in.BonusBalance, in.TotalAmount)
			remainingOriginal := in.TotalAmount.Sub(result.GiftPaid)
			remainingDiscounted := remainingOriginal.Mul(in.MemberDiscount).Round(2)
			result.RechargePaid = decimal.Min(in.RechargeBalance, remainingDiscounted)
		} else {
			// 充值余额按折后价抵扣，剩余折后价换算回原价后由赠金覆盖
			result.RechargePaid = decimal.Min(in.RechargeBalance, in.ActualAmount)
			remainingDiscounted := in.ActualAmount.Sub(result.RechargePaid)
			remainingOriginal := remainingDiscounted.DivRound(in.MemberDiscount, 2)
			result.GiftPaid = decimal.Min(in.BonusBalance, remainingOriginal)
		}
	}

	// 第三步：权威校验，确认扣减额足以覆盖折后应付
	var totalValuePaid decimal.Decimal
	if in.GiftDiscountEnabled {
		totalValuePaid = result.RechargePaid.Add(result.GiftPaid)
	} else {
		// 赠金的抵扣价值要按折扣换算后才能和折后应付比较
		totalValuePaid = result.RechargePaid.Add(result.GiftPaid.Mul(in.MemberDiscount))
	}
	// 换算经过四舍五入，允许一分钱以内的精度误差
	epsilon := decimal.RequireFromString("0.01")
	if totalValuePaid.LessThan(in.ActualAmount.Sub(epsilon)) {
		return SettlementResult{}, &InsufficientBalanceError{
			Required:            in.ActualAmount,
			Available:           totalValuePaid,
			RechargePaid:        result.RechargePaid,
			GiftPaid:            result.GiftPaid,
			MemberDiscount:      in.MemberDiscount,
			GiftDiscountEnabled: in.GiftDiscountEnabled,
		}
	}

	return result, nil
}

// SplitDirectConsume 直接余额消费的固定扣减规则：赠金优先，不够再扣充值余额
// 和订单结算的可配置策略是两个独立的产品口径，不要合并
func SplitDirectConsume(amount, rechargeBalance, bonusBalance decimal.Decimal) (rechargePart, giftPart decimal.Decimal) {
	giftPart = decimal.Min(bonusBalance, amount)
	rechargePart = amount.Sub(giftPart)
	return rechargePart, giftPart
}
