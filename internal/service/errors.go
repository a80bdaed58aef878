package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// 业务错误统一在这里定义，校验类错误一律在任何写操作之前返回
var (
	ErrInvalidAmount             = errors.New("金额必须大于0")
	ErrInvalidGiftAmount         = errors.New("赠金金额不能为负数")
	ErrInvalidDiscount           = errors.New("会员折扣不在允许的档位内")
	ErrInvalidPhone              = errors.New("手机号格式不正确")
	ErrInvalidEmail              = errors.New("邮箱格式不正确")
	ErrDuplicatePhone            = errors.New("该手机号已被注册")
	ErrDuplicateOrderNumber      = errors.New("手工单号已存在")
	ErrDuplicateAppointmentOrder = errors.New("该预约已有关联订单")
	ErrDuplicateServiceName      = errors.New("同名服务项目已存在")
	ErrOrderAlreadyPaid          = errors.New("订单已支付")
	ErrNotMemberOrder            = errors.New("非会员无法使用余额支付")
	ErrEmptyOrderItems           = errors.New("订单必须包含至少一个服务项目")
	ErrAppointmentConflict       = errors.New("该时段与已有预约冲突")
	ErrInvalidStatus             = errors.New("预约状态不合法")
)

// InsufficientBalanceError 余额不足
// 携带所需金额和可用金额，结算场景下还带上两个资金池的扣减明细，便于前端给出精确提示
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal

	// 结算诊断信息，直接余额消费场景下为零值
	RechargePaid        decimal.Decimal
	GiftPaid            decimal.Decimal
	MemberDiscount      decimal.Decimal
	GiftDiscountEnabled bool
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("余额不足: 需要 %s, 可用 %s", e.Required.StringFixed(2), e.Available.StringFixed(2))
}
