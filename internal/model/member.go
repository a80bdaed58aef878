package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Member 会员表
// 记录会员的双余额（充值余额 + 赠金余额），是整个结算系统的核心数据
//
// 【重要】余额设计原则：
// 1. 充值余额和赠金余额是两个独立的资金池，扣减规则不同
// 2. 总余额 = 充值余额 + 赠金余额，永远实时计算，不单独存储
// 3. 两个余额任何时刻都不允许为负数
type Member struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name            string          `gorm:"type:varchar(64);not null" json:"name"`
	Phone           string          `gorm:"type:varchar(16);uniqueIndex;not null" json:"phone"` // 手机号，业务上的自然主键
	Email           string          `gorm:"type:varchar(128)" json:"email"`
	Birthday        *time.Time      `json:"birthday"`
	Gender          string          `gorm:"type:varchar(8)" json:"gender"`
	Address         string          `gorm:"type:varchar(256)" json:"address"`
	MemberDiscount  decimal.Decimal `gorm:"type:decimal(4,2);not null;default:1.00" json:"member_discount"`  // 会员折扣，只允许固定档位
	RechargeBalance decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"recharge_balance"`   // 充值余额（现金充入）
	BonusBalance    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"bonus_balance"`      // 赠金余额（充值时商家赠送）
	TotalSpent      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_spent"`        // 累计消费金额
	CashSpent       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"cash_spent"`         // 累计现金消费金额
	VisitCount      int             `gorm:"not null;default:0" json:"visit_count"`                           // 到店次数
	JoinDate        time.Time       `gorm:"autoCreateTime" json:"join_date"`
	LastVisit       *time.Time      `json:"last_visit"`
	Notes           string          `gorm:"type:varchar(512)" json:"notes"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Member) TableName() string {
	return "member"
}

// TotalBalance 总余额 = 充值余额 + 赠金余额
// 永远实时计算，避免冗余字段产生不一致
func (m *Member) TotalBalance() decimal.Decimal {
	return m.RechargeBalance.Add(m.BonusBalance)
}

// AllowedDiscounts 允许的会员折扣档位（1.00 表示无折扣）
var AllowedDiscounts = []decimal.Decimal{
	decimal.RequireFromString("1"),
	decimal.RequireFromString("0.9"),
	decimal.RequireFromString("0.88"),
	decimal.RequireFromString("0.85"),
	decimal.RequireFromString("0.8"),
	decimal.RequireFromString("0.75"),
	decimal.RequireFromString("0.7"),
}

// IsValidDiscount 校验折扣是否在允许的档位内
func IsValidDiscount(d decimal.Decimal) bool {
	for _, allowed := range AllowedDiscounts {
		if d.Equal(allowed) {
			return true
		}
	}
	return false
}
