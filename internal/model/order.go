package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending = "PENDING" // 待支付
	OrderStatusPaid    = "PAID"    // 已支付（终态，不可回退）
)

// ValidOrderTransitions 订单状态机：PAID 是终态
var ValidOrderTransitions = map[string][]string{
	OrderStatusPending: {OrderStatusPaid},
}

func CanTransitionOrder(currentStatus, targetStatus string) bool {
	allowed, exists := ValidOrderTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == targetStatus {
			return true
		}
	}
	return false
}

const (
	OrderSourceManual = "MANUAL" // 手工开单
	OrderSourcePhone  = "PHONE"
	OrderSourceApp    = "APP"
)

// ============================================================================
// 扣减顺序常量
// ============================================================================

const (
	DeductionGiftFirst     = "GIFT_FIRST"     // 赠金优先
	DeductionRechargeFirst = "RECHARGE_FIRST" // 充值余额优先
)

func IsValidDeductionOrder(order string) bool {
	return order == DeductionGiftFirst || order == DeductionRechargeFirst
}

// Order 订单表
//
// 金额字段约定：
//   - TotalAmount: 服务项目小计之和（折前原价）
//   - MemberDiscount: 创建订单时从会员快照下来的折扣，会员后续改折扣不影响已有订单
//   - DiscountAmount = TotalAmount * (1 - MemberDiscount)
//   - ActualAmount = TotalAmount - DiscountAmount
//   - RechargePaid / GiftPaid: 支付时由结算引擎计算的两个资金池实际扣减额
type Order struct {
	ID            int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber   string `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_number"` // 手工单号，全局唯一
	MemberID      *int64 `gorm:"index" json:"member_id"`                                    // 非会员订单为空
	AppointmentID *int64 `gorm:"uniqueIndex" json:"appointment_id"`                         // 一个预约至多一个订单
	CustomerName  string `gorm:"type:varchar(64)" json:"customer_name"`
	CustomerPhone string `gorm:"type:varchar(16)" json:"customer_phone"`
	MaleCount     int    `gorm:"not null;default:0" json:"male_count"`
	FemaleCount   int    `gorm:"not null;default:0" json:"female_count"`
	Source        string `gorm:"type:varchar(16);not null;default:MANUAL" json:"source"`

	TotalAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	MemberDiscount decimal.Decimal `gorm:"type:decimal(4,2);not null;default:1.00" json:"member_discount"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	ActualAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"actual_amount"`

	GiftDiscountEnabled bool   `gorm:"not null;default:true" json:"gift_discount_enabled"` // 赠金是否参与折扣
	DeductionOrder      string `gorm:"type:varchar(20);not null;default:GIFT_FIRST" json:"deduction_order"`

	Status       string          `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	PaidAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"paid_amount"`
	RechargePaid decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"recharge_paid"`
	GiftPaid     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"gift_paid"`

	Notes        string    `gorm:"type:varchar(512)" json:"notes"`
	OperatorName string    `gorm:"type:varchar(64)" json:"operator_name"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	OrderItems  []OrderItem  `gorm:"foreignKey:OrderID" json:"order_items,omitempty"`
	Member      *Member      `gorm:"foreignKey:MemberID" json:"member,omitempty"`
	Appointment *Appointment `gorm:"foreignKey:AppointmentID" json:"appointment,omitempty"`
}

func (Order) TableName() string {
	return "order"
}

// OrderItem 订单服务项目
type OrderItem struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID      int64           `gorm:"index;not null" json:"order_id"`
	ServiceName  string          `gorm:"type:varchar(64);not null" json:"service_name"`
	ServiceStaff string          `gorm:"type:varchar(64)" json:"service_staff"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Quantity     int             `gorm:"not null;default:1" json:"quantity"`
	Subtotal     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (OrderItem) TableName() string {
	return "order_item"
}
