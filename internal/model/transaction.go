package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionTypeRecharge = "RECHARGE" // 充值
	TransactionTypeConsume  = "CONSUME"  // 消费（余额扣减）

	// 以下两个类型在流水类型枚举中保留，但当前没有对应的结算流程，
	// 任何代码不得对其发起余额变动
	TransactionTypeRefund       = "REFUND"        // 退款（未实现）
	TransactionTypePointsRedeem = "POINTS_REDEEM" // 积分兑换（未实现）
)

// ============================================================================
// 支付方式常量
// ============================================================================

const (
	PaymentMethodCash    = "CASH"
	PaymentMethodCard    = "CARD"
	PaymentMethodAlipay  = "ALIPAY"
	PaymentMethodWechat  = "WECHAT"
	PaymentMethodBalance = "BALANCE" // 仅用于余额扣减（消费/订单结算）
)

// ServiceItemSnapshot 结算时订单服务项目的快照，随流水落库做审计
// 以结构化 JSON 存储，下游消费方不需要再解析字符串
type ServiceItemSnapshot struct {
	ServiceName  string          `json:"service_name"`
	ServiceStaff string          `json:"service_staff,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// Transaction 会员资金流水表
// 记录会员的每一笔资金变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除，保证审计可追溯
// 2. 每笔流水必须和一次余额变动在同一个事务中落库，反之亦然
// 3. 记录交易前后的总余额（充值+赠金），便于校验余额一致性
type Transaction struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	MemberID      int64           `gorm:"index;not null" json:"member_id"`
	OrderID       *int64          `gorm:"index" json:"order_id"`       // 关联订单（订单结算时才有）
	AppointmentID *int64          `gorm:"index" json:"appointment_id"` // 关联预约
	Type          string          `gorm:"type:varchar(20);not null" json:"type"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`                // 充值为充值金额，消费为实际扣减金额
	GiftAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"gift_amount"` // 赠金金额，仅充值时使用
	BalanceBefore decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_before"`        // 交易前总余额
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_after"`         // 交易后总余额
	PaymentMethod string          `gorm:"type:varchar(16);not null" json:"payment_method"`
	Description   string          `gorm:"type:varchar(256)" json:"description"`
	OperatorName  string          `gorm:"type:varchar(64)" json:"operator_name"`

	// 以下为订单结算的明细字段，便于审计和排查
	OriginalAmount      decimal.Decimal       `gorm:"type:decimal(12,2);not null;default:0" json:"original_amount"` // 折前原价
	MemberDiscount      decimal.Decimal       `gorm:"type:decimal(4,2);not null;default:1.00" json:"member_discount"`
	DiscountAmount      decimal.Decimal       `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	GiftDiscountEnabled bool                  `gorm:"not null;default:true" json:"gift_discount_enabled"`
	DeductionOrder      string                `gorm:"type:varchar(20)" json:"deduction_order"`
	RechargePaid        decimal.Decimal       `gorm:"type:decimal(12,2);not null;default:0" json:"recharge_paid"` // 充值余额实际扣减
	GiftPaid            decimal.Decimal       `gorm:"type:decimal(12,2);not null;default:0" json:"gift_paid"`     // 赠金余额实际扣减
	ServiceItems        []ServiceItemSnapshot `gorm:"serializer:json" json:"service_items,omitempty"`             // 服务项目快照

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transaction"
}
