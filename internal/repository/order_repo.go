package repository

import (
	"context"
	"errors"
	"time"

	"salonsystem/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound      = errors.New("订单不存在")
	ErrOrderStatusInvalid = errors.New("订单状态不合法")
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create 创建订单及其服务项目（gorm 关联写入）
func (r *OrderRepository) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(order).Error
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("OrderItems").
		Preload("Member").
		Preload("Appointment").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// GetByOrderNumber 按手工单号查订单，不存在时返回 (nil, nil)
func (r *OrderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Where("order_number = ?", orderNumber).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByAppointmentID 查预约已有的订单，不存在时返回 (nil, nil)
func (r *OrderRepository) GetByAppointmentID(ctx context.Context, appointmentID int64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Where("appointment_id = ?", appointmentID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// MarkPaid 订单置为已支付并记录两个资金池的实际扣减额
//
// WHERE 条件带上 status = PENDING：RowsAffected 为 0 说明订单被并发支付
// 或状态不合法，调用方据此判定 AlreadyPaid
func (r *OrderRepository) MarkPaid(
	ctx context.Context,
	tx *gorm.DB,
	orderID int64,
	paidAmount, rechargePaid, giftPaid decimal.Decimal,
) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, model.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":        model.OrderStatusPaid,
			"paid_amount":   paidAmount,
			"recharge_paid": rechargePaid,
			"gift_paid":     giftPaid,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderStatusInvalid
	}
	return nil
}

type OrderListFilter struct {
	Status        string
	OrderNumber   string
	CustomerPhone string
	StartDate     *time.Time
	EndDate       *time.Time
}

func (r *OrderRepository) List(ctx context.Context, filter OrderListFilter, page, pageSize int) ([]*model.Order, int64, error) {
	var orders []*model.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Order{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.OrderNumber != "" {
		query = query.Where("order_number LIKE ?", "%"+filter.OrderNumber+"%")
	}
	if filter.CustomerPhone != "" {
		query = query.Where("customer_phone LIKE ?", "%"+filter.CustomerPhone+"%")
	}
	if filter.StartDate != nil {
		query = query.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("created_at <= ?", *filter.EndDate)
	}

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Preload("OrderItems").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error

	return orders, total, err
}
