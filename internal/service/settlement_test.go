package service

import (
	"errors"
	"testing"

	"salonsystem/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeSettlement_GiftDiscountEnabled_GiftFirst(t *testing.T) {
	// 原价200 折扣0.9 应付180，赠金100先扣完，充值余额补80
	result, err := ComputeSettlement(SettlementInput{
		TotalAmount:         d("200"),
		ActualAmount:        d("180"),
		MemberDiscount:      d("0.9"),
		GiftDiscountEnabled: true,
		DeductionOrder:      model.DeductionGiftFirst,
		RechargeBalance:     d("100"),
		BonusBalance:        d("100"),
	})

	require.NoError(t, err)
	assert.True(t, result.GiftPaid.Equal(d("100")), "giftPaid=%s", result.GiftPaid)
	assert.True(t, result.RechargePaid.Equal(d("80")), "rechargePaid=%s", result.RechargePaid)
	// 赠金参与折扣时两池之和必须精确等于应付金额
	assert.True(t, result.RechargePaid.Add(result.GiftPaid).Equal(d("180")))
}

func TestComputeSettlement_GiftDiscountEnabled_RechargeFirst(t *testing.T) {
	result, err := ComputeSettlement(SettlementInput{
		TotalAmount:         d("200"),
		ActualAmount:        d("180"),
		MemberDiscount:      d("0.9"),
		GiftDiscountEnabled: true,
		DeductionOrder:      model.DeductionRechargeFirst,
		RechargeBalance:     d("100"),
		BonusBalance:        d("100"),
	})

	require.NoError(t, err)
	assert.True(t, result.RechargePaid.Equal(d("100")))
	assert.True(t, result.GiftPaid.Equal(d("80")))
	assert.True(t, result.RechargePaid.Add(result.GiftPaid).Equal(d("180")))
}

func TestComputeSettlement_GiftDiscountDisabled_GiftFirst(t *testing.T) {
	// 赠金按原价抵扣100，剩余原价100换算成折后90由充值余额覆盖
	result, err := ComputeSettlement(SettlementInput{
		TotalAmount:         d("200"),
		ActualAmount:        d("180"),
		MemberDiscount:      d("0.9"),
		GiftDiscountEnabled: false,
		DeductionOrder:      model.DeductionGiftFirst,
		RechargeBalance:     d("100"),
		BonusBalance:        d("100"),
	})

	require.NoError(t, err)
	assert.True(t, result.GiftPaid.Equal(d("100")), "giftPaid=%s", result.GiftPaid)
	assert.True(t, result.RechargePaid.Equal(d("90")), "rechargePaid=%s", result.RechargePaid)
	// 抵扣价值校验：充值扣款 + 赠金扣款×折扣 >= 应付
	value := result.RechargePaid.Add(result.GiftPaid.Mul(d("0.9")))
	assert.True(t, value.GreaterThanOrEqual(d("180").Sub(d("0.01"))))
}

func TestComputeSettlement_GiftDiscountDisabled_RechargeFirst(t *testing.T) {
	// 充值余额按折后价抵扣100，剩余折后80换算回原价 80/0.9=88.89 由赠金覆盖
	result, err := ComputeSettlement(SettlementInput{
		TotalAmount:         d("200"),
		ActualAmount:        d("180"),
		MemberDiscount:      d("0.9"),
		GiftDiscountEnabled: false,
		DeductionOrder:      model.DeductionRechargeFirst,
		RechargeBalance:     d("100"),
		BonusBalance:        d("100"),
	})

	require.NoError(t, err)
	assert.True(t, result.RechargePaid.Equal(d("100")))
	assert.True(t, result.GiftPaid.Equal(d("88.89")), "giftPaid=%s", result.GiftPaid)
	// 88.89×0.9=80.001，和应付的差在一分钱以内
	value := result.RechargePaid.Add(result.GiftPaid.Mul(d("0.9")))
	assert.True(t, value.GreaterThanOrEqual(d("180").Sub(d("0.01"))))
}

func TestComputeSettlement_InsufficientBalance_PreCheck(t *testing.T) {
	// 总余额150 < 应付180，预检直接拒绝
	_, err := ComputeSettlement(SettlementInput{
		TotalAmount:         d("200"),
		ActualAmount:        d("180"),
		MemberDiscount:      d("0.9"),
		GiftDiscountEnabled: true,
		DeductionOrder:      model.DeductionGiftFirst,
		RechargeBalance:     d("100"),
		BonusBalance:        d("50"),
	})

	var insufficientErr *InsufficientBalanceError
	require.True(t, errors.As(err, &insufficientErr))
	assert.True(t, insufficientErr.Required.Equal(d("180")))
	assert.True(t, insufficientErr.Available.Equal(d("150")))
}

func TestComputeSettlement_InsufficientBalance_ValueCheck(t *testing.T) {
	// 总余额190 >= 180 通过预检，但赠金不参与折扣：
	// 赠金180按原价只能抵掉180原价，剩余20原价折后18，充值余额10不够
	// 实际抵扣价值 10 + 180×0.9 = 172 < 180，权威校验必须拦下
	_, err := ComputeSettlement(SettlementInput{
		TotalAmount:         d("200"),
		ActualAmount:        d("180"),
		MemberDiscount:      d("0.9"),
		GiftDiscountEnabled: false,
		DeductionOrder:      model.DeductionGiftFirst,
		RechargeBalance:     d("10"),
		BonusBalance:        d("180"),
	})

	var insufficientErr *InsufficientBalanceError
	require.True(t, errors.As(err, &insufficientErr))
	assert.True(t, insufficientErr.GiftPaid.Equal(d("180")))
	assert.True(t, insufficientErr.RechargePaid.Equal(d("10")))
	assert.False(t, insufficientErr.GiftDiscountEnabled)
}

func TestComputeSettlement_NoDiscount(t *testing.T) {
	// 折扣为1时四种策略组合结果一致
	for _, giftEnabled := range []bool{true, false} {
		for _, order := range []string{model.DeductionGiftFirst, model.DeductionRechargeFirst} {
			result, err := ComputeSettlement(SettlementInput{
				TotalAmount:         d("100"),
				ActualAmount:        d("100"),
				MemberDiscount:      d("1"),
				GiftDiscountEnabled: giftEnabled,
				DeductionOrder:      order,
				RechargeBalance:     d("60"),
				BonusBalance:        d("60"),
			})
			require.NoError(t, err, "giftEnabled=%v order=%s", giftEnabled, order)
			assert.True(t, result.RechargePaid.Add(result.GiftPaid).Equal(d("100")),
				"giftEnabled=%v order=%s recharge=%s gift=%s",
				giftEnabled, order, result.RechargePaid, result.GiftPaid)
		}
	}
}

func TestComputeSettlement_ExactBalance(t *testing.T) {
	// 余额正好等于应付，扣完两池清零
	result, err := ComputeSettlement(SettlementInput{
		TotalAmount:         d("180"),
		ActualAmount:        d("180"),
		MemberDiscount:      d("1"),
		GiftDiscountEnabled: true,
		DeductionOrder:      model.DeductionGiftFirst,
		RechargeBalance:     d("80"),
		BonusBalance:        d("100"),
	})

	require.NoError(t, err)
	assert.True(t, result.GiftPaid.Equal(d("100")))
	assert.True(t, result.RechargePaid.Equal(d("80")))
}

func TestComputeSettlement_ConservationTable(t *testing.T) {
	// 赠金参与折扣时，只要余额充足，两池扣减之和必须精确等于应付
	cases := []struct {
		name     string
		actual   string
		recharge string
		bonus    string
		order    string
	}{
		{"赠金优先_赠金够", "50", "100", "100", model.DeductionGiftFirst},
		{"赠金优先_跨池", "150", "100", "100", model.DeductionGiftFirst},
		{"充值优先_充值够", "50", "100", "100", model.DeductionRechargeFirst},
		{"充值优先_跨池", "150", "100", "100", model.DeductionRechargeFirst},
		{"小数金额", "123.45", "100", "100", model.DeductionGiftFirst},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ComputeSettlement(SettlementInput{
				TotalAmount:         d(tc.actual),
				ActualAmount:        d(tc.actual),
				MemberDiscount:      d("1"),
				GiftDiscountEnabled: true,
				DeductionOrder:      tc.order,
				RechargeBalance:     d(tc.recharge),
				BonusBalance:        d(tc.bonus),
			})
			require.NoError(t, err)
			assert.True(t, result.RechargePaid.Add(result.GiftPaid).Equal(d(tc.actual)))
			// 扣减额不能超过各自资金池
			assert.True(t, result.RechargePaid.LessThanOrEqual(d(tc.recharge)))
			assert.True(t, result.GiftPaid.LessThanOrEqual(d(tc.bonus)))
			assert.True(t, result.RechargePaid.GreaterThanOrEqual(decimal.Zero))
			assert.True(t, result.GiftPaid.GreaterThanOrEqual(decimal.Zero))
		})
	}
}

func TestSplitDirectConsume(t *testing.T) {
	// 直接消费固定赠金优先：80 = 赠金50 + 充值30
	rechargePart, giftPart := SplitDirectConsume(d("80"), d("470"), d("50"))
	assert.True(t, giftPart.Equal(d("50")))
	assert.True(t, rechargePart.Equal(d("30")))

	// 赠金足够覆盖时充值余额不动
	rechargePart, giftPart = SplitDirectConsume(d("30"), d("100"), d("50"))
	assert.True(t, giftPart.Equal(d("30")))
	assert.True(t, rechargePart.Equal(decimal.Zero))

	// 赠金为零时全部走充值余额
	rechargePart, giftPart = SplitDirectConsume(d("80"), d("100"), decimal.Zero)
	assert.True(t, giftPart.Equal(decimal.Zero))
	assert.True(t, rechargePart.Equal(d("80")))
}
