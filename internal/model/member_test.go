package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTotalBalance(t *testing.T) {
	member := &Member{
		RechargeBalance: decimal.RequireFromString("500"),
		BonusBalance:    decimal.RequireFromString("50"),
	}
	assert.True(t, member.TotalBalance().Equal(decimal.RequireFromString("550")))

	empty := &Member{}
	assert.True(t, empty.TotalBalance().Equal(decimal.Zero))
}

func TestIsValidDiscount(t *testing.T) {
	for _, valid := range []string{"1", "1.00", "0.9", "0.90", "0.88", "0.85", "0.8", "0.75", "0.7"} {
		assert.True(t, IsValidDiscount(decimal.RequireFromString(valid)), "折扣 %s 应该合法", valid)
	}

	for _, invalid := range []string{"0.95", "0.5", "0", "-0.9", "1.1", "0.89"} {
		assert.False(t, IsValidDiscount(decimal.RequireFromString(invalid)), "折扣 %s 不应该合法", invalid)
	}
}
